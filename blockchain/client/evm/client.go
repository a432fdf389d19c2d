package evm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net"
	"strings"
	"time"

	"docnotary/blockchain/chains"
	"docnotary/blockchain/types"
	"docnotary/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// RegistryABI is the subset of the document registry contract the client calls
const RegistryABI = `[
  {"type":"function","name":"notarize","stateMutability":"nonpayable",
   "inputs":[{"name":"hash","type":"bytes32"},{"name":"meta","type":"string"}],"outputs":[]},
  {"type":"function","name":"exists","stateMutability":"view",
   "inputs":[{"name":"hash","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"docs","stateMutability":"view",
   "inputs":[{"name":"","type":"bytes32"}],
   "outputs":[{"name":"hash","type":"bytes32"},{"name":"submitter","type":"address"},
              {"name":"timestamp","type":"uint40"},{"name":"meta","type":"string"}]},
  {"type":"event","name":"DocumentNotarized","anonymous":false,
   "inputs":[{"name":"hash","type":"bytes32","indexed":true},{"name":"submitter","type":"address","indexed":true},
             {"name":"timestamp","type":"uint40","indexed":false},{"name":"meta","type":"string","indexed":false}]}
]`

// backend is the subset of ethclient.Client used by the registry client
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	Close()
}

// Client talks to the registry contract on an EVM chain over JSON-RPC
type Client struct {
	backend  backend
	abi      abi.ABI
	chainID  *big.Int
	contract *common.Address // nil when no registry is deployed on this chain
	signer   Signer          // nil when no account is available
	cfg      *config.BlockchainConfig
	logger   *log.Logger
}

// NewEVMClient dials the RPC endpoint and binds the registry contract for the connected chain
func NewEVMClient(ctx context.Context, cfg *config.BlockchainConfig, logger *log.Logger) (*Client, error) {
	logger.Println("Initializing EVM client...")

	evmCfg, ok := cfg.ChainSpecific.(*EVMConfig)
	if !ok {
		return nil, fmt.Errorf("invalid EVM configuration type")
	}

	dialCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	rpc, err := ethclient.DialContext(dialCtx, evmCfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %v", types.ErrNetwork, evmCfg.RPCURL, err)
	}

	signer, err := newSigner(evmCfg.Signer)
	if err != nil {
		rpc.Close()
		return nil, err
	}

	client, err := newClient(dialCtx, rpc, signer, cfg, evmCfg.ExpectedChainID, logger)
	if err != nil {
		rpc.Close()
		return nil, err
	}

	logger.Printf("EVM client initialized on %s (chain %s), account %q, registry %q",
		chains.Name(client.ChainID()), client.ChainID(), client.Account(), client.ContractAddress())
	return client, nil
}

func newClient(ctx context.Context, b backend, signer Signer, cfg *config.BlockchainConfig, expectedChainID string, logger *log.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(RegistryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	chainID, err := b.ChainID(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read chain id: %w", err))
	}
	if expectedChainID != "" && chainID.String() != expectedChainID {
		return nil, fmt.Errorf("connected to chain %s, expected %s", chainID, expectedChainID)
	}

	c := &Client{
		backend: b,
		abi:     parsed,
		chainID: chainID,
		signer:  signer,
		cfg:     cfg,
		logger:  logger,
	}

	addr, err := chains.RegistryAddress(chainID.String(), cfg.RegistryAddresses)
	if err != nil {
		logger.Printf("Warning: %v; notarization disabled on this chain", err)
	} else if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("invalid registry address %q for chain %s", addr, chainID)
	} else {
		contract := common.HexToAddress(addr)
		c.contract = &contract
	}
	return c, nil
}

// ChainID returns the decimal chain id reported by the node
func (c *Client) ChainID() string {
	return c.chainID.String()
}

// Account returns the signer address, empty when no signer is configured
func (c *Client) Account() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address().Hex()
}

// ContractAddress returns the bound registry address, empty when none
func (c *Client) ContractAddress() string {
	if c.contract == nil {
		return ""
	}
	return c.contract.Hex()
}

// Close closes the RPC connection
func (c *Client) Close() error {
	c.logger.Println("Closing EVM client...")
	c.backend.Close()
	return nil
}

// Notarize signs and sends a dynamic-fee notarize(hash, meta) transaction
func (c *Client) Notarize(ctx context.Context, hash common.Hash, meta string, fee types.FeeEnvelope) (types.TxHandle, error) {
	if c.signer == nil {
		return types.TxHandle{}, fmt.Errorf("no signer configured")
	}
	if c.contract == nil {
		return types.TxHandle{}, fmt.Errorf("no registry contract on chain %s", c.chainID)
	}
	data, err := c.abi.Pack("notarize", [32]byte(hash), meta)
	if err != nil {
		return types.TxHandle{}, fmt.Errorf("failed to pack notarize call: %w", err)
	}

	from := c.signer.Address()
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return types.TxHandle{}, classify(fmt.Errorf("failed to read nonce: %w", err))
	}

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: fee.MaxPriorityFeePerGas,
		GasFeeCap: fee.MaxFeePerGas,
		Gas:       fee.GasLimit,
		To:        c.contract,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return types.TxHandle{}, classify(fmt.Errorf("signing failed: %w", err))
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return types.TxHandle{}, classify(fmt.Errorf("send failed: %w", err))
	}

	c.logger.Printf("Sent notarize(%s) as %s (nonce %d)", hash.Hex(), signed.Hash().Hex(), nonce)
	return types.TxHandle{TxHash: signed.Hash().Hex()}, nil
}

// Exists calls exists(hash)
func (c *Client) Exists(ctx context.Context, hash common.Hash) (bool, error) {
	out, err := c.call(ctx, "exists", hash)
	if err != nil {
		return false, err
	}
	values, err := c.abi.Unpack("exists", out)
	if err != nil {
		return false, fmt.Errorf("failed to unpack exists result: %w", err)
	}
	exists, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected exists result type %T", values[0])
	}
	return exists, nil
}

// Document calls docs(hash)
func (c *Client) Document(ctx context.Context, hash common.Hash) (*types.DocumentRecord, error) {
	out, err := c.call(ctx, "docs", hash)
	if err != nil {
		return nil, err
	}
	values, err := c.abi.Unpack("docs", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack docs result: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("malformed docs result: expected 4 fields, got %d", len(values))
	}

	record := &types.DocumentRecord{Hash: hash}
	if submitter, ok := values[1].(common.Address); ok && submitter != (common.Address{}) {
		record.Submitter = submitter.Hex()
	}
	if ts, ok := values[2].(*big.Int); ok && ts != nil {
		record.Timestamp = ts.Uint64()
	}
	if meta, ok := values[3].(string); ok {
		record.Meta = meta
	}
	return record, nil
}

// SuggestFees estimates gas for notarize(hash, meta) and reads the current fee market
func (c *Client) SuggestFees(ctx context.Context, hash common.Hash, meta string) (*types.FeeQuote, error) {
	if c.contract == nil {
		return nil, fmt.Errorf("no registry contract on chain %s", c.chainID)
	}
	data, err := c.abi.Pack("notarize", [32]byte(hash), meta)
	if err != nil {
		return nil, fmt.Errorf("failed to pack notarize call: %w", err)
	}
	msg := ethereum.CallMsg{To: c.contract, Data: data}
	if c.signer != nil {
		msg.From = c.signer.Address()
	}

	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, classify(fmt.Errorf("gas estimation failed: %w", err))
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("tip suggestion failed: %w", err))
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read latest header: %w", err))
	}
	return &types.FeeQuote{GasLimit: gas, BaseFee: head.BaseFee, TipCap: tip}, nil
}

// WaitReceipt polls for the receipt until it is mined or ctx is done
func (c *Client) WaitReceipt(ctx context.Context, handle types.TxHandle) (*types.Receipt, error) {
	if handle.TxHash == "" {
		return nil, fmt.Errorf("transaction hash cannot be empty")
	}
	txHash := common.HexToHash(handle.TxHash)
	ticker := time.NewTicker(time.Duration(c.cfg.PollIntervalMillis) * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return toReceipt(handle.TxHash, receipt), nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Printf("Receipt poll for %s failed: %v", handle.TxHash, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) call(ctx context.Context, method string, hash common.Hash) ([]byte, error) {
	if c.contract == nil {
		return nil, fmt.Errorf("no registry contract on chain %s", c.chainID)
	}
	data, err := c.abi.Pack(method, [32]byte(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: c.contract, Data: data}, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("%s call failed: %w", method, err))
	}
	return out, nil
}

func toReceipt(txHash string, r *ethtypes.Receipt) *types.Receipt {
	out := &types.Receipt{
		TxHash:  txHash,
		GasUsed: r.GasUsed,
		Success: r.Status == ethtypes.ReceiptStatusSuccessful,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if !out.Success {
		out.Reason = "execution reverted"
	}
	return out
}

// classify tags a node or signer error with the matching sentinel from blockchain/types
func classify(err error) error {
	if err == nil {
		return nil
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "insufficient funds"):
		return fmt.Errorf("%w: %v", types.ErrInsufficientFunds, err)
	case strings.Contains(lower, "denied"), strings.Contains(lower, "rejected"), strings.Contains(lower, "declined"):
		return fmt.Errorf("%w: %v", types.ErrUserRejected, err)
	case strings.Contains(lower, "execution reverted"):
		return fmt.Errorf("%w: %v", types.ErrReverted, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "eof") {
		return fmt.Errorf("%w: %v", types.ErrNetwork, err)
	}
	return err
}
