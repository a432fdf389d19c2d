package chainmaker

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"docnotary/blockchain/types"
	"docnotary/config"

	"chainmaker.org/chainmaker/pb-go/v2/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sdkMock struct {
	mock.Mock
}

func (m *sdkMock) InvokeContract(contractName, method, txId string, kvs []*common.KeyValuePair, timeout int64, withSyncResult bool) (*common.TxResponse, error) {
	args := m.Called(contractName, method, kvs, withSyncResult)
	resp, _ := args.Get(0).(*common.TxResponse)
	return resp, args.Error(1)
}

func (m *sdkMock) QueryContract(contractName, method string, kvs []*common.KeyValuePair, timeout int64) (*common.TxResponse, error) {
	args := m.Called(contractName, method, kvs)
	resp, _ := args.Get(0).(*common.TxResponse)
	return resp, args.Error(1)
}

func (m *sdkMock) GetTxByTxId(txId string) (*common.TransactionInfo, error) {
	args := m.Called(txId)
	info, _ := args.Get(0).(*common.TransactionInfo)
	return info, args.Error(1)
}

func (m *sdkMock) Stop() error {
	return m.Called().Error(0)
}

var testHash = ethcommon.HexToHash("0x" + "ab12000000000000000000000000000000000000000000000000000000000001")

func newTestClient(api sdkAPI) *Client {
	cm := &ChainMakerConfig{ChainID: "chain1", OrgID: "org1", ContractName: "doc_registry"}
	cm.SetDefaults()
	cfg := &config.BlockchainConfig{TimeoutSeconds: 5, PollIntervalMillis: 1, ChainSpecific: cm}
	return newClient(api, cfg, cm, log.New(io.Discard, "", 0))
}

func TestNotarize(t *testing.T) {
	t.Run("accepted write returns the tx id", func(t *testing.T) {
		// Arrange
		api := new(sdkMock)
		kvs := []*common.KeyValuePair{
			{Key: "hash", Value: []byte(testHash.Hex())},
			{Key: "meta", Value: []byte("contract.pdf")},
		}
		api.On("InvokeContract", "doc_registry", "notarize", kvs, false).
			Return(&common.TxResponse{Code: common.TxStatusCode_SUCCESS, TxId: "tx-1"}, nil)
		client := newTestClient(api)

		// Act
		handle, err := client.Notarize(context.Background(), testHash, "contract.pdf", types.FeeEnvelope{})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "tx-1", handle.TxHash)
		api.AssertExpectations(t)
	})

	t.Run("sdk failure is a network error", func(t *testing.T) {
		api := new(sdkMock)
		api.On("InvokeContract", mock.Anything, mock.Anything, mock.Anything, false).
			Return(nil, errors.New("all nodes unreachable"))
		client := newTestClient(api)

		_, err := client.Notarize(context.Background(), testHash, "", types.FeeEnvelope{})

		assert.ErrorIs(t, err, types.ErrNetwork)
	})

	t.Run("balance failure is insufficient funds", func(t *testing.T) {
		api := new(sdkMock)
		api.On("InvokeContract", mock.Anything, mock.Anything, mock.Anything, false).
			Return(&common.TxResponse{Code: common.TxStatusCode_CONTRACT_FAIL, Message: "gas balance not enough"}, nil)
		client := newTestClient(api)

		_, err := client.Notarize(context.Background(), testHash, "", types.FeeEnvelope{})

		assert.ErrorIs(t, err, types.ErrInsufficientFunds)
	})
}

func TestExistsAndDocument(t *testing.T) {
	api := new(sdkMock)
	api.On("QueryContract", "doc_registry", "exists", mock.Anything).
		Return(&common.TxResponse{Code: common.TxStatusCode_SUCCESS, ContractResult: &common.ContractResult{Result: []byte("true")}}, nil)
	api.On("QueryContract", "doc_registry", "docs", mock.Anything).
		Return(&common.TxResponse{Code: common.TxStatusCode_SUCCESS, ContractResult: &common.ContractResult{
			Result: []byte(`{"hash":"x","submitter":"org1","timestamp":1700000000,"meta":"a.pdf"}`),
		}}, nil)
	client := newTestClient(api)

	exists, err := client.Exists(context.Background(), testHash)
	require.NoError(t, err)
	assert.True(t, exists)

	doc, err := client.Document(context.Background(), testHash)
	require.NoError(t, err)
	assert.True(t, doc.Registered())
	assert.Equal(t, "org1", doc.Submitter)
	assert.Equal(t, "a.pdf", doc.Meta)
	assert.Equal(t, testHash, doc.Hash)
}

func TestWaitReceipt(t *testing.T) {
	t.Run("polls until the transaction is found", func(t *testing.T) {
		api := new(sdkMock)
		api.On("GetTxByTxId", "tx-1").Return(nil, errors.New("no such transaction")).Twice()
		api.On("GetTxByTxId", "tx-1").Return(&common.TransactionInfo{
			BlockHeight: 42,
			Transaction: &common.Transaction{Result: &common.Result{
				Code:           common.TxStatusCode_SUCCESS,
				ContractResult: &common.ContractResult{GasUsed: 900},
			}},
		}, nil)
		client := newTestClient(api)

		receipt, err := client.WaitReceipt(context.Background(), types.TxHandle{TxHash: "tx-1"})

		require.NoError(t, err)
		assert.True(t, receipt.Success)
		assert.Equal(t, uint64(42), receipt.BlockNumber)
		assert.Equal(t, uint64(900), receipt.GasUsed)
	})

	t.Run("contract failure is not a success", func(t *testing.T) {
		api := new(sdkMock)
		api.On("GetTxByTxId", "tx-2").Return(&common.TransactionInfo{
			Transaction: &common.Transaction{Result: &common.Result{
				Code:           common.TxStatusCode_SUCCESS,
				ContractResult: &common.ContractResult{Code: 1, Message: "already notarized"},
			}},
		}, nil)
		client := newTestClient(api)

		receipt, err := client.WaitReceipt(context.Background(), types.TxHandle{TxHash: "tx-2"})

		require.NoError(t, err)
		assert.False(t, receipt.Success)
		assert.Equal(t, "already notarized", receipt.Reason)
	})

	t.Run("context deadline stops polling", func(t *testing.T) {
		api := new(sdkMock)
		api.On("GetTxByTxId", "tx-3").Return(nil, errors.New("no such transaction"))
		client := newTestClient(api)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := client.WaitReceipt(ctx, types.TxHandle{TxHash: "tx-3"})

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
