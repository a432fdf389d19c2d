package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	blockchain "docnotary/blockchain/client"
	"docnotary/blockchain/types"
	"docnotary/config"
	"docnotary/gas"
	"docnotary/ingestion"
	"docnotary/notarization"
	"docnotary/validation"

	"github.com/spf13/pflag"
)

type options struct {
	configPath string
	meta       string
	dryRun     bool
	noWait     bool
	timeout    time.Duration
	verbose    bool
}

func main() {
	var opts options
	pflag.StringVarP(&opts.configPath, "config", "c", "./config/notary.defaults.yml", "daemon configuration file")
	pflag.StringVarP(&opts.meta, "meta", "m", "", "metadata stored with each document (defaults to the file name)")
	pflag.BoolVar(&opts.dryRun, "dry-run", false, "fingerprint and estimate gas without submitting")
	pflag.BoolVar(&opts.noWait, "no-wait", false, "return after submission without waiting for receipts")
	pflag.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "overall time limit")
	pflag.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] FILE...\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}
	if err := run(opts, pflag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "notarize: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, paths []string) error {
	logOut := io.Discard
	if opts.verbose {
		logOut = os.Stderr
	}
	logger := log.New(logOut, "[NOTARIZE] ", log.LstdFlags)

	cfg, err := config.LoadNotaryConfig(opts.configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	files := make([]ingestion.File, 0, len(paths))
	for _, path := range paths {
		f, err := ingestion.NewLocalFile(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	// 1. Validate and fingerprint
	pipeline := ingestion.NewPipeline(validation.PolicyFromConfig(cfg.Validation), cfg.Fingerprint, logger)
	defer pipeline.Close()
	hashed, failed, err := hashFiles(ctx, os.Stdout, pipeline, files)
	if err != nil {
		return err
	}
	if len(hashed) == 0 {
		return fmt.Errorf("no valid files to notarize")
	}

	// 2. Connect to the registry
	chain, err := blockchain.NewRegistryFromFile(ctx, cfg.BlockchainClientConfigPath, logger)
	if err != nil {
		if opts.dryRun {
			fmt.Printf("gas estimate unavailable: %v\n", err)
			return notProcessed(failed, len(paths))
		}
		return fmt.Errorf("%w: %v", notarization.ErrWalletNotConnected, err)
	}
	defer chain.Close()

	estimator := gas.NewEstimator(cfg.Gas, logger)
	if opts.dryRun {
		for _, record := range hashed {
			digest, err := types.ParseHash(record.Hash)
			if err != nil {
				return err
			}
			estimate, err := estimator.Estimate(ctx, digest, metaFor(opts, record), chain)
			if err != nil {
				fmt.Printf("%s: gas estimation failed: %v\n", record.Name, err)
				failed++
				continue
			}
			fmt.Printf("%s: gas limit %d, max cost %s (%s)\n", record.Name, estimate.GasLimit, estimate.EstimatedCostNative, estimate.Source)
			if estimate.Warning != "" {
				fmt.Printf("%s: warning: %s\n", record.Name, estimate.Warning)
			}
		}
		return notProcessed(failed, len(paths))
	}

	// 3. Submit and wait for receipts
	manager := notarization.NewManager(chain, estimator, cfg.Transactions, logger)
	defer manager.Close()

	for _, record := range hashed {
		id, err := manager.NotarizeDocument(ctx, record.Hash, record.Name, metaFor(opts, record))
		if err != nil {
			fmt.Printf("%s: %v\n", record.Name, err)
			failed++
			continue
		}
		tx, _ := manager.Get(id)
		fmt.Printf("%s: submitted %s\n", record.Name, tx.ExplorerURL)
		if opts.noWait {
			// Frees the watch slot for the next submission
			manager.StopWatching(id)
			continue
		}
		tx, err = manager.Wait(ctx, id)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", record.Name, err)
		}
		if tx.Status == notarization.StatusConfirmed {
			fmt.Printf("%s: confirmed in block %d %s\n", record.Name, tx.BlockNumber, tx.ExplorerURL)
		} else {
			fmt.Printf("%s: %s\n", record.Name, tx.Error)
			failed++
		}
	}
	stats := manager.Stats()
	fmt.Printf("%d submitted, %d confirmed, %d failed\n", stats.Total, stats.Confirmed, stats.Failed)
	return notProcessed(failed, len(paths))
}

// hashFiles validates and fingerprints files, printing one line per outcome.
// It returns the hashed records and how many files were rejected or failed to hash.
func hashFiles(ctx context.Context, out io.Writer, pipeline *ingestion.Pipeline, files []ingestion.File) ([]ingestion.ProcessedFile, int, error) {
	batch, added, err := pipeline.Add(ctx, files)
	if err != nil {
		return nil, 0, err
	}
	for _, e := range batch.GlobalErrors {
		fmt.Fprintf(out, "rejected: %s\n", e)
	}
	failed := 0
	for _, r := range batch.Results {
		if !r.Valid {
			failed++
		}
		for _, e := range r.Errors {
			fmt.Fprintf(out, "%s: %s\n", r.FileInfo.Name, e)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "%s: warning: %s\n", r.FileInfo.Name, w)
		}
	}
	if len(batch.GlobalErrors) > 0 {
		return nil, len(files), nil
	}

	var hashed []ingestion.ProcessedFile
	for _, pf := range added {
		record, err := pipeline.Await(ctx, pf.ID)
		if err != nil {
			return nil, failed, err
		}
		if record.Status != ingestion.FileCompleted {
			fmt.Fprintf(out, "%s: fingerprint failed: %s\n", record.Name, record.Error)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s  %s  %s\n", record.Hash, validation.FormatSize(record.Size), record.Name)
		hashed = append(hashed, record)
	}
	return hashed, failed, nil
}

func notProcessed(failed, total int) error {
	if failed > 0 {
		return fmt.Errorf("%d of %d documents were not notarized", failed, total)
	}
	return nil
}

func metaFor(opts options, record ingestion.ProcessedFile) string {
	if opts.meta != "" {
		return opts.meta
	}
	return record.Name
}
