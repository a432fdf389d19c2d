package service

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"docnotary/blockchain/chains"
	blockchain "docnotary/blockchain/client"
	"docnotary/blockchain/types"
	"docnotary/config"
	"docnotary/gas"
	"docnotary/ingestion"
	"docnotary/notarization"
	"docnotary/validation"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// sha256("hello world")
const helloHash = "0xb94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func newTestService(t *testing.T, r *blockchain.RegistryMock) *Service {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	estimator := gas.NewEstimator(config.GasConfig{}, logger)
	manager := notarization.NewManager(r, estimator, config.TransactionConfig{WatchPolicy: notarization.WatchSingle}, logger)
	pipeline := ingestion.NewPipeline(validation.DefaultPolicy(), config.FingerprintConfig{Workers: 1, QueueSize: 4}, logger)
	svc := NewService(pipeline, manager, estimator, logger)
	t.Cleanup(func() {
		manager.Close()
		svc.Close()
	})
	return svc
}

func newRegistry() *blockchain.RegistryMock {
	r := new(blockchain.RegistryMock)
	r.On("Account").Return("0x00000000000000000000000000000000000000aa").Maybe()
	r.On("ContractAddress").Return("0xB8C12Ff0f2628Af59dEF9D4BAf89BB250D8A87F3").Maybe()
	r.On("ChainID").Return(chains.BaseSepolia).Maybe()
	return r
}

func addHelloFile(t *testing.T, svc *Service) ingestion.ProcessedFile {
	t.Helper()
	f := ingestion.NewMemoryFile("hello.txt", "", []byte("hello world"), 1700000000000)
	_, added, err := svc.AddFiles(context.Background(), []ingestion.File{f})
	require.NoError(t, err)
	require.Len(t, added, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	file, err := svc.Files().Await(ctx, added[0].ID)
	require.NoError(t, err)
	require.Equal(t, ingestion.FileCompleted, file.Status)
	return file
}

func TestNotarize_FromProcessedFile(t *testing.T) {
	// Arrange
	r := newRegistry()
	digest := common.HexToHash(helloHash)
	handle := types.TxHandle{TxHash: "0x02"}
	r.On("Exists", mock.Anything, digest).Return(false, nil)
	r.On("Notarize", mock.Anything, digest, "hello.txt", mock.Anything).Return(handle, nil)
	r.On("WaitReceipt", mock.Anything, handle).Return(&types.Receipt{TxHash: "0x02", BlockNumber: 3, Success: true}, nil)
	svc := newTestService(t, r)
	file := addHelloFile(t, svc)

	// Act
	result, err := svc.Notarize(context.Background(), &NotarizeInput{FileID: file.ID})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, helloHash, result.Hash)
	assert.NotEmpty(t, result.RequestID)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tx, err := svc.Transactions().Wait(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, notarization.StatusConfirmed, tx.Status)
	assert.Equal(t, "hello.txt", tx.FileName)
	assert.Equal(t, "hello.txt", tx.Meta)
}

func TestNotarize_HashMismatch(t *testing.T) {
	svc := newTestService(t, newRegistry())
	file := addHelloFile(t, svc)

	_, err := svc.Notarize(context.Background(), &NotarizeInput{FileID: file.ID, Hash: "0x" + strings.Repeat("c", 64)})

	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.Empty(t, svc.Transactions().List())
}

func TestNotarize_UnknownFile(t *testing.T) {
	svc := newTestService(t, newRegistry())

	_, err := svc.Notarize(context.Background(), &NotarizeInput{FileID: "nope"})

	assert.ErrorIs(t, err, ingestion.ErrFileNotFound)
}

func TestEstimateGas(t *testing.T) {
	svc := newTestService(t, newRegistry())

	estimate, err := svc.EstimateGas(context.Background(), helloHash, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(120000), estimate.GasLimit)

	_, err = svc.EstimateGas(context.Background(), "0xzz", "")
	assert.ErrorIs(t, err, types.ErrInvalidHash)
}
