package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"docnotary/backup"
	blockchain "docnotary/blockchain/client"
	"docnotary/config"
	"docnotary/gas"
	"docnotary/ingestion"
	core "docnotary/ingestion/service/core"
	grpchandler "docnotary/ingestion/service/grpc"
	httphandler "docnotary/ingestion/service/http"
	"docnotary/internal/messaging/consumer"
	"docnotary/internal/messaging/producer"
	"docnotary/internal/metrics"
	"docnotary/notarization"
	worker "docnotary/processing"
	"docnotary/storage/store"
	"docnotary/validation"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"
)

func main() {
	configPath := pflag.StringP("config", "c", "./config/notary.defaults.yml", "daemon configuration file")
	pflag.Parse()

	logger := log.New(os.Stdout, "[NOTARYD] ", log.LstdFlags|log.Lshortfile)
	logger.Println("Starting document notary daemon...")

	// 1. Load configuration
	cfg, err := config.LoadNotaryConfig(*configPath)
	if err != nil {
		logger.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Transaction journal
	var journal store.Store
	if cfg.Database.Enabled() {
		logger.Printf("Initializing %s transaction journal...", cfg.Database.Driver)
		journal, err = store.New(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatalf("FATAL: Failed to initialize transaction journal: %v", err)
		}
		defer journal.Close()
	} else {
		logger.Println("database.driver not configured, transactions are kept in memory only.")
	}

	// 3. Registry connection; without one the daemon runs with the wallet disconnected
	var chain blockchain.Registry
	registry, err := blockchain.NewRegistryFromFile(ctx, cfg.BlockchainClientConfigPath, logger)
	if err != nil {
		logger.Printf("Warning: registry unavailable, notarization disabled: %v", err)
	} else {
		chain = registry
		defer chain.Close()
		logger.Printf("Connected to chain %s as %s (contract %s)", chain.ChainID(), chain.Account(), chain.ContractAddress())
	}

	// 4. Observers: metrics and lifecycle events
	m := metrics.New()
	observers := notarization.Observers{m}
	eventProducer, err := producer.New(cfg.Events, logger)
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize %s event producer: %v", cfg.Events.Kind, err)
	}
	if eventProducer != nil {
		defer eventProducer.Close()
		if cfg.Events.BatchSize > 1 {
			batcher := producer.NewBatchObserver(eventProducer, cfg.Events.BatchSize,
				cfg.Events.FlushIntervalDuration(), cfg.Events.FlushBuffer, logger)
			defer batcher.Close()
			observers = append(observers, batcher)
		} else {
			observers = append(observers, producer.NewEventObserver(eventProducer, logger))
		}
	}

	// 5. Transaction manager
	estimator := gas.NewEstimator(cfg.Gas, logger)
	opts := []notarization.Option{notarization.WithObserver(observers)}
	if journal != nil {
		opts = append(opts, notarization.WithJournal(journal))
	}
	manager := notarization.NewManager(chain, estimator, cfg.Transactions, logger, opts...)
	defer manager.Close()
	m.TrackStats(manager.Stats)

	if n, err := manager.Restore(ctx); err != nil {
		logger.Printf("Warning: %v", err)
	} else if n > 0 && chain != nil {
		go func() {
			resumed, err := manager.ResumeAll(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("Failed to resume confirming notarizations: %v", err)
			}
			logger.Printf("Resumed %d receipt watches from the journal", resumed)
		}()
	}

	// 6. File pipeline with optional backup
	uploader, err := backup.New(ctx, cfg.Backup, logger)
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize backup store: %v", err)
	}
	pipeline := ingestion.NewPipeline(validation.PolicyFromConfig(cfg.Validation), cfg.Fingerprint, logger,
		ingestion.WithHashObserver(m.ObserveFingerprint),
		ingestion.WithBackup(uploader))

	coreService := core.NewService(pipeline, manager, estimator, logger)
	defer coreService.Close()

	var wg sync.WaitGroup

	// 7. Queue workers
	if cfg.KafkaConsumer.Enabled() {
		var mqConsumers []consumer.Consumer
		if cfg.KafkaConsumer.IsMock() {
			logger.Println("Initializing Mock message queue consumer...")
			mqConsumers = append(mqConsumers, consumer.NewMockConsumer(logger))
		} else {
			logger.Printf("Initializing %d Kafka message queue consumers...", cfg.KafkaConsumer.Count)
			for i := 0; i < cfg.KafkaConsumer.Count; i++ {
				kafkaConsumer, err := consumer.NewKafkaConsumer(cfg.KafkaConsumer, logger)
				if err != nil {
					logger.Fatalf("FATAL: Failed to initialize Kafka consumer %d: %v", i, err)
				}
				mqConsumers = append(mqConsumers, kafkaConsumer)
			}
		}
		defer func() {
			for _, c := range mqConsumers {
				c.Close()
			}
		}()

		for i, c := range mqConsumers {
			w := worker.New(cfg.Worker, logger, c, manager)
			wg.Add(1)
			go func(workerID int, w *worker.Worker) {
				defer wg.Done()
				logger.Printf("Starting worker %d with its dedicated consumer...", workerID)
				w.Run(ctx)
				logger.Printf("Worker %d stopped.", workerID)
			}(i+1, w)
		}
	} else {
		logger.Println("kafka_consumer not configured, skipping queue workers.")
	}

	// 8. HTTP gateway
	var httpServer *http.Server
	if cfg.Gateway.HttpListenAddr != "" {
		httpServer = &http.Server{
			Addr:           cfg.Gateway.HttpListenAddr,
			Handler:        httphandler.NewRouter(coreService, m, cfg.Gateway, logger),
			ReadTimeout:    cfg.Gateway.HttpServer.ReadTimeout,
			WriteTimeout:   cfg.Gateway.HttpServer.WriteTimeout,
			IdleTimeout:    cfg.Gateway.HttpServer.IdleTimeout,
			MaxHeaderBytes: cfg.Gateway.HttpServer.MaxHeaderBytes,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Printf("HTTP server listening on %s", cfg.Gateway.HttpListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("HTTP server startup failed: %v", err)
			}
			logger.Println("HTTP server stopped listening.")
		}()
	} else {
		logger.Println("http_listen_addr not configured, skipping HTTP server startup.")
	}

	// 9. gRPC health service
	var healthServer *grpchandler.Server
	if cfg.Gateway.GrpcListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.Gateway.GrpcListenAddr)
		if err != nil {
			logger.Fatalf("Unable to listen on gRPC port %s: %v", cfg.Gateway.GrpcListenAddr, err)
		}
		healthServer = grpchandler.NewServer(coreService, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := healthServer.Serve(lis, 30*time.Second); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Fatalf("gRPC server startup failed: %v", err)
			}
			logger.Println("gRPC server stopped listening.")
		}()
	} else {
		logger.Println("grpc_listen_addr not configured, skipping gRPC server startup.")
	}

	// 10. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Printf("Received shutdown signal: %s, initiating graceful shutdown...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		logger.Println("Shutting down HTTP server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP server shutdown failed: %v", err)
		}
	}
	if healthServer != nil {
		logger.Println("Shutting down gRPC server...")
		healthServer.Stop(shutdownCtx)
	}

	logger.Println("Waiting for servers and workers to finish...")
	wg.Wait()
	logger.Println("Document notary daemon shut down gracefully.")
}
