package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docnotary/blockchain/chains"
	blockchain "docnotary/blockchain/client"
	"docnotary/blockchain/types"
	"docnotary/config"
	"docnotary/gas"
	"docnotary/ingestion"
	core "docnotary/ingestion/service/core"
	"docnotary/internal/metrics"
	"docnotary/notarization"
	"docnotary/validation"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var hashA = "0x" + strings.Repeat("a", 64)

type testServer struct {
	handler http.Handler
	svc     *core.Service
	manager *notarization.Manager
}

func newRegistry() *blockchain.RegistryMock {
	r := new(blockchain.RegistryMock)
	r.On("Account").Return("0x00000000000000000000000000000000000000aa").Maybe()
	r.On("ContractAddress").Return("0xB8C12Ff0f2628Af59dEF9D4BAf89BB250D8A87F3").Maybe()
	r.On("ChainID").Return(chains.BaseSepolia).Maybe()
	return r
}

func newTestServer(t *testing.T, chain blockchain.Registry) *testServer {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	estimator := gas.NewEstimator(config.GasConfig{}, logger)
	manager := notarization.NewManager(chain, estimator, config.TransactionConfig{WatchPolicy: notarization.WatchSingle}, logger)
	pipeline := ingestion.NewPipeline(validation.DefaultPolicy(), config.FingerprintConfig{Workers: 2, QueueSize: 8}, logger)
	svc := core.NewService(pipeline, manager, estimator, logger)
	t.Cleanup(func() {
		manager.Close()
		svc.Close()
	})

	cfg := config.GatewayConfig{MaxUploadBytes: 1 << 20}
	cfg.SetDefaults()
	cfg.Monitoring.EnableMetrics = true
	return &testServer{handler: NewRouter(svc, metrics.New(), cfg, logger), svc: svc, manager: manager}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, newRegistry())

	w := s.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, chains.BaseSepolia, resp.ChainID)
}

func TestUploadFiles(t *testing.T) {
	// Arrange
	s := newTestServer(t, newRegistry())
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "hello.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("last_modified", "1700000000000"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	// Act
	s.handler.ServeHTTP(w, req)

	// Assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp UploadResponse
	decode(t, w, &resp)
	assert.True(t, resp.Validation.OverallValid)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "text/plain", resp.Files[0].Type)
	assert.Equal(t, int64(1700000000000), resp.Files[0].LastModified)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	file, err := s.svc.Files().Await(ctx, resp.Files[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "0xb94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", file.Hash)

	w = s.do(t, http.MethodGet, "/v1/files/"+file.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, "/v1/files/"+file.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/v1/files/"+file.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitNotarization(t *testing.T) {
	// Arrange
	r := newRegistry()
	digest := common.HexToHash(hashA)
	handle := types.TxHandle{TxHash: "0x01"}
	r.On("Exists", mock.Anything, digest).Return(false, nil)
	r.On("Notarize", mock.Anything, digest, "deed.pdf", mock.Anything).Return(handle, nil)
	r.On("WaitReceipt", mock.Anything, handle).Return(&types.Receipt{TxHash: "0x01", BlockNumber: 7, GasUsed: 50000, Success: true}, nil)
	s := newTestServer(t, r)

	// Act
	w := s.do(t, http.MethodPost, "/v1/notarizations", map[string]string{"hash": hashA, "file_name": "deed.pdf"})

	// Assert
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "ACCEPTED", resp["status"])
	assert.Equal(t, hashA, resp["hash"])
	assert.NotEmpty(t, resp["request_id"])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tx, err := s.manager.Wait(ctx, resp["transaction_id"])
	require.NoError(t, err)
	assert.Equal(t, notarization.StatusConfirmed, tx.Status)
	assert.Equal(t, "deed.pdf", tx.Meta)

	w = s.do(t, http.MethodGet, "/v1/notarizations/"+tx.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got notarization.Transaction
	decode(t, w, &got)
	assert.Equal(t, uint64(7), got.BlockNumber)

	w = s.do(t, http.MethodGet, "/v1/notarizations/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats notarization.Stats
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 100.0, stats.SuccessRate)

	w = s.do(t, http.MethodDelete, "/v1/notarizations", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, s.manager.List())
}

func TestSubmitNotarization_Rejections(t *testing.T) {
	r := newRegistry()
	r.On("Exists", mock.Anything, common.HexToHash(hashA)).Return(true, nil)
	s := newTestServer(t, r)

	w := s.do(t, http.MethodPost, "/v1/notarizations", map[string]string{"hash": hashA})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/v1/notarizations", map[string]string{"hash": "0x1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/notarizations", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/notarizations", map[string]string{"file_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Empty(t, s.manager.List())
}

func TestSubmitNotarization_NoWallet(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/notarizations", map[string]string{"hash": hashA})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodPost, "/v1/gas/estimate", map[string]string{"hash": hashA})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/health", nil)
	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "degraded", resp.Status)
}

func TestEstimateGas(t *testing.T) {
	s := newTestServer(t, newRegistry())

	w := s.do(t, http.MethodPost, "/v1/gas/estimate", map[string]string{"hash": hashA, "meta": "deed.pdf"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var estimate gas.Estimate
	decode(t, w, &estimate)
	assert.Equal(t, uint64(120000), estimate.GasLimit)
	assert.Equal(t, gas.SourceProfile, estimate.Source)
}

func TestGetDocument(t *testing.T) {
	r := newRegistry()
	r.On("Document", mock.Anything, common.HexToHash(hashA)).Return(&types.DocumentRecord{
		Hash: common.HexToHash(hashA), Submitter: "0x00000000000000000000000000000000000000aa", Timestamp: 1700000000, Meta: "deed.pdf",
	}, nil)
	r.On("Document", mock.Anything, mock.Anything).Return(&types.DocumentRecord{}, nil)
	s := newTestServer(t, r)

	w := s.do(t, http.MethodGet, "/v1/documents/"+hashA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var details notarization.DocumentDetails
	decode(t, w, &details)
	assert.Equal(t, "deed.pdf", details.Meta)

	w = s.do(t, http.MethodGet, "/v1/documents/0x"+strings.Repeat("b", 64), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, newRegistry())
	s.do(t, http.MethodGet, "/v1/notarizations", nil)

	w := s.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",route="/v1/notarizations`)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{notarization.ErrAlreadyNotarized, http.StatusConflict},
		{fmt.Errorf("%w: 1-0xaaaaaa", notarization.ErrInFlight), http.StatusConflict},
		{fmt.Errorf("%w: bad", types.ErrInvalidHash), http.StatusBadRequest},
		{core.ErrHashMismatch, http.StatusBadRequest},
		{notarization.ErrDocumentNotFound, http.StatusNotFound},
		{notarization.ErrNoContract, http.StatusServiceUnavailable},
		{fmt.Errorf("failed to check document existence: %w", types.ErrNetwork), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), "%v", tc.err)
	}
}
