package domain

import (
	"bytes"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
)

type WalletType int

const (
	// WalletTypeHD derives sub-accounts by index from one master secret
	WalletTypeHD WalletType = iota
	// WalletTypeImported holds exactly one account backed by a raw key
	WalletTypeImported
)

// Wallet groups one or more accounts around a single encrypted secret: the
// mnemonic for HD wallets, the raw private key for imported ones. The secret
// only ever exists in encrypted form inside this structure.
type Wallet struct {
	ID              string `badgerhold:"key"`
	Type            WalletType
	EncryptedSecret string
	PasswordHash    []byte
	AccountCount    int
	CreatedAt       time.Time
}

// NewWallet returns a Wallet wrapping the provided already-encrypted secret.
func NewWallet(
	walletType WalletType, encryptedSecret, password string,
) *Wallet {
	return &Wallet{
		ID:              uuid.NewString(),
		Type:            walletType,
		EncryptedSecret: encryptedSecret,
		PasswordHash:    btcutil.Hash160([]byte(password)),
		CreatedAt:       time.Now(),
	}
}

// IsValidPassword checks the provided password against the stored hash.
// This is a fast-fail convenience only, decryption remains the authority.
func (w *Wallet) IsValidPassword(password string) bool {
	return bytes.Equal(w.PasswordHash, btcutil.Hash160([]byte(password)))
}
