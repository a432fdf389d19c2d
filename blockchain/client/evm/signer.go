package evm

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/external"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs registry writes for one account
type Signer interface {
	Address() common.Address
	SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// keySigner signs with a private key held in process memory
type keySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner builds a signer from a hex-encoded secp256k1 key
func NewKeySigner(hexKey string) (Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &keySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *keySigner) Address() common.Address {
	return s.address
}

func (s *keySigner) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), s.key)
}

// clefSigner delegates to an external signer, where a person may approve or decline each write
type clefSigner struct {
	ext     *external.ExternalSigner
	account accounts.Account
}

// NewClefSigner connects to an external signer and selects the account to use
func NewClefSigner(endpoint, account string) (Signer, error) {
	ext, err := external.NewExternalSigner(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to external signer: %w", err)
	}
	accts := ext.Accounts()
	if len(accts) == 0 {
		return nil, fmt.Errorf("external signer at %s exposes no accounts", endpoint)
	}
	selected := accts[0]
	if account != "" {
		found := false
		for _, a := range accts {
			if strings.EqualFold(a.Address.Hex(), account) {
				selected, found = a, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("account %s not available from external signer", account)
		}
	}
	return &clefSigner{ext: ext, account: selected}, nil
}

func (s *clefSigner) Address() common.Address {
	return s.account.Address
}

func (s *clefSigner) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	return s.ext.SignTx(s.account, tx, chainID)
}

// newSigner builds the configured signer; nil when signing is disabled
func newSigner(cfg SignerConfig) (Signer, error) {
	switch cfg.Type {
	case SignerKey:
		return NewKeySigner(cfg.PrivateKey)
	case SignerClef:
		return NewClefSigner(cfg.ClefEndpoint, cfg.Account)
	case SignerNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported signer type: %s", cfg.Type)
	}
}
