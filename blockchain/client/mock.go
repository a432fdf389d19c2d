package blockchain

import (
	"context"

	"docnotary/blockchain/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// RegistryMock is a testify mock of Registry that can also act as a FeeOracle
type RegistryMock struct {
	mock.Mock
}

func (m *RegistryMock) Notarize(ctx context.Context, hash common.Hash, meta string, fee types.FeeEnvelope) (types.TxHandle, error) {
	args := m.Called(ctx, hash, meta, fee)
	return args.Get(0).(types.TxHandle), args.Error(1)
}

func (m *RegistryMock) Exists(ctx context.Context, hash common.Hash) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *RegistryMock) Document(ctx context.Context, hash common.Hash) (*types.DocumentRecord, error) {
	args := m.Called(ctx, hash)
	doc, _ := args.Get(0).(*types.DocumentRecord)
	return doc, args.Error(1)
}

func (m *RegistryMock) WaitReceipt(ctx context.Context, handle types.TxHandle) (*types.Receipt, error) {
	args := m.Called(ctx, handle)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

func (m *RegistryMock) ChainID() string {
	return m.Called().String(0)
}

func (m *RegistryMock) Account() string {
	return m.Called().String(0)
}

func (m *RegistryMock) ContractAddress() string {
	return m.Called().String(0)
}

func (m *RegistryMock) Close() error {
	return m.Called().Error(0)
}

// FeeOracleMock is a testify mock of FeeOracle
type FeeOracleMock struct {
	mock.Mock
}

func (m *FeeOracleMock) SuggestFees(ctx context.Context, hash common.Hash, meta string) (*types.FeeQuote, error) {
	args := m.Called(ctx, hash, meta)
	quote, _ := args.Get(0).(*types.FeeQuote)
	return quote, args.Error(1)
}
