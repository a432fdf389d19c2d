package chainmaker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"docnotary/blockchain/types"
	"docnotary/config"

	"chainmaker.org/chainmaker/pb-go/v2/common"
	sdk "chainmaker.org/chainmaker/sdk-go/v2"
	"chainmaker.org/chainmaker/sdk-go/v2/utils"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// sdkAPI is the subset of sdk.ChainClient used by the registry client
type sdkAPI interface {
	InvokeContract(contractName, method, txId string, kvs []*common.KeyValuePair, timeout int64, withSyncResult bool) (*common.TxResponse, error)
	QueryContract(contractName, method string, kvs []*common.KeyValuePair, timeout int64) (*common.TxResponse, error)
	GetTxByTxId(txId string) (*common.TransactionInfo, error)
	Stop() error
}

// docRecord is the JSON shape returned by the registry contract's docs method
type docRecord struct {
	Hash      string `json:"hash"`
	Submitter string `json:"submitter"`
	Timestamp uint64 `json:"timestamp"`
	Meta      string `json:"meta"`
}

// Client is the wrapper around the ChainMaker SDK client
type Client struct {
	sdkClient sdkAPI
	cfg       *config.BlockchainConfig
	cm        *ChainMakerConfig
	logger    *log.Logger
}

// NewChainMakerClient initializes the ChainMaker SDK client with the combined configuration
func NewChainMakerClient(cfg *config.BlockchainConfig, logger *log.Logger) (*Client, error) {
	logger.Println("Initializing ChainMaker SDK client using builder pattern...")

	// Extract ChainMaker-specific configuration
	chainmakerCfg, ok := cfg.ChainSpecific.(*ChainMakerConfig)
	if !ok {
		return nil, fmt.Errorf("invalid ChainMaker configuration type")
	}
	if err := chainmakerCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ChainMaker configuration: %w", err)
	}

	var clientOptions []sdk.ChainClientOption
	clientOptions = append(clientOptions, sdk.WithChainClientOrgId(chainmakerCfg.OrgID))
	clientOptions = append(clientOptions, sdk.WithChainClientChainId(chainmakerCfg.ChainID))
	clientOptions = append(clientOptions, sdk.WithUserKeyFilePath(chainmakerCfg.UserKeyPath))
	clientOptions = append(clientOptions, sdk.WithUserCrtFilePath(chainmakerCfg.UserCertPath))
	clientOptions = append(clientOptions, sdk.WithUserSignKeyFilePath(chainmakerCfg.UserSignKeyPath))
	clientOptions = append(clientOptions, sdk.WithUserSignCrtFilePath(chainmakerCfg.UserSignCertPath))

	for _, nodeCfg := range chainmakerCfg.Nodes {
		if nodeCfg.UseTLS && len(nodeCfg.CaPaths) == 0 {
			return nil, fmt.Errorf("node %s has TLS enabled but no CaPaths provided", nodeCfg.Address)
		}
		sdkNodeConfig := sdk.NewNodeConfig(
			sdk.WithNodeAddr(nodeCfg.Address),
			sdk.WithNodeConnCnt(nodeCfg.ConnCount),
			sdk.WithNodeUseTLS(nodeCfg.UseTLS),
			sdk.WithNodeCAPaths(nodeCfg.CaPaths),
			sdk.WithNodeTLSHostName(nodeCfg.TLSHostName),
		)
		clientOptions = append(clientOptions, sdk.AddChainClientNodeConfig(sdkNodeConfig))
	}

	// Apply common configuration (retry, timeout, etc.)
	if cfg.RetryLimit > 0 {
		clientOptions = append(clientOptions, sdk.WithRetryLimit(cfg.RetryLimit))
	}
	if cfg.RetryInterval > 0 {
		clientOptions = append(clientOptions, sdk.WithRetryInterval(cfg.RetryInterval))
	}

	client, err := sdk.NewChainClient(clientOptions...)
	if err != nil {
		logger.Printf("Failed to build ChainMaker SDK client: %v\n", err)
		return nil, err
	}

	err = client.EnableCertHash()
	if err != nil {
		logger.Printf("Warning: Failed to enable cert hash: %v\n", err)
	}

	logger.Println("ChainMaker SDK client initialized successfully.")

	return newClient(client, cfg, chainmakerCfg, logger), nil
}

func newClient(api sdkAPI, cfg *config.BlockchainConfig, cm *ChainMakerConfig, logger *log.Logger) *Client {
	return &Client{sdkClient: api, cfg: cfg, cm: cm, logger: logger}
}

// NewChainMakerClientFromFile initializes the ChainMaker SDK client directly from a configuration file path
func NewChainMakerClientFromFile(configPath string, logger *log.Logger) (*Client, error) {
	chainmakerCfg, err := LoadChainMakerConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ChainMaker config from file '%s': %w", configPath, err)
	}

	// Create a wrapper blockchain config
	blockchainCfg := &config.BlockchainConfig{
		BlockchainType: "chainmaker",
		ChainSpecific:  chainmakerCfg,
		// Use defaults for common settings
		RetryLimit:         20,
		RetryInterval:      500,
		TimeoutSeconds:     15,
		PollIntervalMillis: 2000,
	}

	return NewChainMakerClient(blockchainCfg, logger)
}

// ChainID returns the configured ChainMaker chain id
func (c *Client) ChainID() string {
	return c.cm.ChainID
}

// Account returns the submitting organisation.
// ChainMaker signs with the configured user certificate, so the org id stands in for an address.
func (c *Client) Account() string {
	return c.cm.OrgID
}

// ContractAddress returns the registry contract name
func (c *Client) ContractAddress() string {
	return c.cm.ContractName
}

// Close stops the SDK client
func (c *Client) Close() error {
	c.logger.Println("Closing ChainMaker SDK client...")
	if err := c.sdkClient.Stop(); err != nil {
		c.logger.Printf("Error stopping ChainMaker SDK client: %v", err)
		return fmt.Errorf("failed to stop ChainMaker SDK client: %w", err)
	}
	return nil
}

// Notarize invokes the registry's notarize method without waiting for the block.
// ChainMaker has no fee market; the envelope is only logged.
func (c *Client) Notarize(ctx context.Context, hash ethcommon.Hash, meta string, fee types.FeeEnvelope) (types.TxHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.TxHandle{}, err
	}
	kvs := []*common.KeyValuePair{
		{Key: c.cm.ParamKeyHash, Value: []byte(hash.Hex())},
		{Key: c.cm.ParamKeyMeta, Value: []byte(meta)},
	}
	txID := utils.GetTimestampTxId()
	c.logger.Printf("Invoking %s.%s for %s (tx %s, gas limit hint %d)",
		c.cm.ContractName, c.cm.NotarizeMethodName, hash.Hex(), txID, fee.GasLimit)

	resp, err := c.sdkClient.InvokeContract(c.cm.ContractName, c.cm.NotarizeMethodName, txID, kvs, c.timeout(), false)
	if err != nil {
		return types.TxHandle{}, fmt.Errorf("%w: SDK invoke failed: %v", types.ErrNetwork, err)
	}
	if resp.Code != common.TxStatusCode_SUCCESS {
		return types.TxHandle{}, classifyMessage(resp.Message, resp.Code)
	}
	if resp.TxId != "" {
		txID = resp.TxId
	}
	return types.TxHandle{TxHash: txID}, nil
}

// Exists queries the registry's exists method
func (c *Client) Exists(ctx context.Context, hash ethcommon.Hash) (bool, error) {
	result, err := c.query(ctx, c.cm.ExistsMethodName, hash)
	if err != nil {
		return false, err
	}
	exists, err := strconv.ParseBool(strings.TrimSpace(string(result)))
	if err != nil {
		return false, fmt.Errorf("unexpected exists result %q: %w", string(result), err)
	}
	return exists, nil
}

// Document queries the registry's docs method
func (c *Client) Document(ctx context.Context, hash ethcommon.Hash) (*types.DocumentRecord, error) {
	result, err := c.query(ctx, c.cm.DocsMethodName, hash)
	if err != nil {
		return nil, err
	}
	record := &types.DocumentRecord{Hash: hash}
	if len(result) == 0 {
		return record, nil
	}
	var doc docRecord
	if err := json.Unmarshal(result, &doc); err != nil {
		c.logger.Printf("Failed to unmarshal docs result for %s. Raw result: %s", hash.Hex(), string(result))
		return nil, fmt.Errorf("failed to unmarshal docs result: %w", err)
	}
	record.Submitter = doc.Submitter
	record.Timestamp = doc.Timestamp
	record.Meta = doc.Meta
	return record, nil
}

// WaitReceipt polls the node until the transaction is in a block or ctx is done
func (c *Client) WaitReceipt(ctx context.Context, handle types.TxHandle) (*types.Receipt, error) {
	if handle.TxHash == "" {
		return nil, fmt.Errorf("transaction id cannot be empty")
	}
	ticker := time.NewTicker(time.Duration(c.cfg.PollIntervalMillis) * time.Millisecond)
	defer ticker.Stop()

	for {
		txInfo, err := c.sdkClient.GetTxByTxId(handle.TxHash)
		if err == nil && txInfo != nil && txInfo.Transaction != nil && txInfo.Transaction.Result != nil {
			return receiptFrom(handle.TxHash, txInfo), nil
		}
		if err != nil {
			c.logger.Printf("Transaction %s not yet available: %v", handle.TxHash, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) query(ctx context.Context, method string, hash ethcommon.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kvs := []*common.KeyValuePair{{Key: c.cm.ParamKeyHash, Value: []byte(hash.Hex())}}
	resp, err := c.sdkClient.QueryContract(c.cm.ContractName, method, kvs, c.timeout())
	if err != nil {
		return nil, fmt.Errorf("%w: SDK query failed: %v", types.ErrNetwork, err)
	}
	if resp.Code != common.TxStatusCode_SUCCESS {
		return nil, fmt.Errorf("contract query failed: %s (code: %d)", resp.Message, resp.Code)
	}
	if resp.ContractResult == nil {
		return nil, nil
	}
	return resp.ContractResult.Result, nil
}

func (c *Client) timeout() int64 {
	if c.cfg.TimeoutSeconds <= 0 {
		return -1
	}
	return int64(c.cfg.TimeoutSeconds)
}

func receiptFrom(txID string, txInfo *common.TransactionInfo) *types.Receipt {
	result := txInfo.Transaction.Result
	receipt := &types.Receipt{
		TxHash:      txID,
		BlockNumber: txInfo.BlockHeight,
		Success:     result.Code == common.TxStatusCode_SUCCESS,
		Reason:      result.Message,
	}
	if cr := result.ContractResult; cr != nil {
		receipt.GasUsed = cr.GasUsed
		if cr.Code != 0 {
			receipt.Success = false
			receipt.Reason = cr.Message
		}
	}
	return receipt
}

func classifyMessage(message string, code common.TxStatusCode) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "balance not enough"), strings.Contains(lower, "insufficient"):
		return fmt.Errorf("%w: %s", types.ErrInsufficientFunds, message)
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "connection"):
		return fmt.Errorf("%w: %s", types.ErrNetwork, message)
	default:
		return fmt.Errorf("contract execution failed: %s (code: %d)", message, code)
	}
}
