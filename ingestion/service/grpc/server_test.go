package grpc

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"docnotary/blockchain/chains"
	blockchain "docnotary/blockchain/client"
	"docnotary/config"
	"docnotary/gas"
	"docnotary/ingestion"
	core "docnotary/ingestion/service/core"
	"docnotary/notarization"
	"docnotary/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func newService(t *testing.T, chain blockchain.Registry) *core.Service {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	estimator := gas.NewEstimator(config.GasConfig{}, logger)
	manager := notarization.NewManager(chain, estimator, config.TransactionConfig{WatchPolicy: notarization.WatchSingle}, logger)
	pipeline := ingestion.NewPipeline(validation.DefaultPolicy(), config.FingerprintConfig{Workers: 1, QueueSize: 1}, logger)
	svc := core.NewService(pipeline, manager, estimator, logger)
	t.Cleanup(func() {
		manager.Close()
		svc.Close()
	})
	return svc
}

func checkHealth(t *testing.T, svc *core.Service) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(svc, log.New(io.Discard, "", 0))
	go srv.Serve(lis, 0)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: NotaryService})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_Serving(t *testing.T) {
	r := new(blockchain.RegistryMock)
	r.On("ChainID").Return(chains.BaseSepolia).Maybe()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkHealth(t, newService(t, r)))
}

func TestHealth_NotServingWithoutChain(t *testing.T) {
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkHealth(t, newService(t, nil)))
}
