package platform

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignerFn signs a transaction on behalf of from.
type SignerFn func(from common.Address, tx *types.Transaction) (*types.Transaction, error)

// Wallet is the account source and signer the client binds on Connect.
type Wallet interface {
	// RequestAccounts asks for account access. The first account is used.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// SignerFn returns a signer for the given chain.
	SignerFn(chainID *big.Int) (SignerFn, error)
}

var errWrongSigner = errors.New("platform: signer does not control sender")

// KeyWallet signs with an in-memory private key.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeyWallet wraps a private key.
func NewKeyWallet(key *ecdsa.PrivateKey) (*KeyWallet, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: private key required", ErrWalletUnavailable)
	}
	return &KeyWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// NewKeyWalletFromHex parses a hex private key with or without 0x prefix.
func NewKeyWalletFromHex(raw string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %w", ErrWalletUnavailable, err)
	}
	return NewKeyWallet(key)
}

func (w *KeyWallet) RequestAccounts(context.Context) ([]common.Address, error) {
	if w == nil || w.key == nil {
		return nil, ErrWalletUnavailable
	}
	return []common.Address{w.address}, nil
}

func (w *KeyWallet) SignerFn(chainID *big.Int) (SignerFn, error) {
	if w == nil || w.key == nil {
		return nil, ErrWalletUnavailable
	}
	signer := types.LatestSignerForChainID(chainID)
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if from != w.address {
			return nil, errWrongSigner
		}
		return types.SignTx(tx, signer, w.key)
	}, nil
}

// PassphraseFunc supplies the keystore passphrase when the account is
// unlocked.
type PassphraseFunc func(ctx context.Context) (string, error)

// KeystoreWallet unlocks one account of an encrypted keystore directory.
type KeystoreWallet struct {
	ks         *keystore.KeyStore
	want       common.Address
	passphrase PassphraseFunc

	mu      sync.Mutex
	account accounts.Account
	ready   bool
}

// OpenKeystore opens dir with the standard scrypt parameters.
func OpenKeystore(dir string) *keystore.KeyStore {
	return keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
}

// NewKeystoreWallet selects want from ks, or the first account when want is
// the zero address.
func NewKeystoreWallet(ks *keystore.KeyStore, want common.Address, passphrase PassphraseFunc) *KeystoreWallet {
	return &KeystoreWallet{ks: ks, want: want, passphrase: passphrase}
}

func (w *KeystoreWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if w == nil || w.ks == nil {
		return nil, ErrWalletUnavailable
	}
	account, err := w.pick()
	if err != nil {
		return nil, err
	}
	if w.passphrase == nil {
		return nil, fmt.Errorf("%w: no passphrase source", ErrWalletUnavailable)
	}
	pass, err := w.passphrase(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserRejected, err)
	}
	if err := w.ks.Unlock(account, pass); err != nil {
		if errors.Is(err, keystore.ErrDecrypt) {
			return nil, fmt.Errorf("%w: %w", ErrUserRejected, err)
		}
		return nil, fmt.Errorf("%w: unlock %s: %w", ErrWalletUnavailable, account.Address.Hex(), err)
	}
	w.mu.Lock()
	w.account = account
	w.ready = true
	w.mu.Unlock()
	return []common.Address{account.Address}, nil
}

func (w *KeystoreWallet) SignerFn(chainID *big.Int) (SignerFn, error) {
	if w == nil || w.ks == nil {
		return nil, ErrWalletUnavailable
	}
	w.mu.Lock()
	account, ready := w.account, w.ready
	w.mu.Unlock()
	if !ready {
		return nil, fmt.Errorf("%w: account locked", ErrWalletUnavailable)
	}
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if from != account.Address {
			return nil, errWrongSigner
		}
		return w.ks.SignTx(account, tx, chainID)
	}, nil
}

// Lock drops the unlocked key from memory.
func (w *KeystoreWallet) Lock() error {
	if w == nil || w.ks == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.ready {
		return nil
	}
	w.ready = false
	return w.ks.Lock(w.account.Address)
}

func (w *KeystoreWallet) pick() (accounts.Account, error) {
	list := w.ks.Accounts()
	if len(list) == 0 {
		return accounts.Account{}, fmt.Errorf("%w: keystore has no accounts", ErrWalletUnavailable)
	}
	if (w.want == common.Address{}) {
		return list[0], nil
	}
	for _, account := range list {
		if account.Address == w.want {
			return account, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("%w: account %s not in keystore", ErrWalletUnavailable, w.want.Hex())
}

// FuncWallet adapts callback functions to the Wallet interface.
type FuncWallet struct {
	AccountsFunc func(ctx context.Context) ([]common.Address, error)
	SignerFunc   func(chainID *big.Int) (SignerFn, error)
}

// RequestAccounts delegates to the configured callback.
func (w FuncWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if w.AccountsFunc == nil {
		return nil, ErrWalletUnavailable
	}
	return w.AccountsFunc(ctx)
}

// SignerFn delegates to the configured callback.
func (w FuncWallet) SignerFn(chainID *big.Int) (SignerFn, error) {
	if w.SignerFunc == nil {
		return nil, ErrWalletUnavailable
	}
	return w.SignerFunc(chainID)
}
