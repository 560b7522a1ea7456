package domain

import "context"

// WalletRepository is the persistence boundary for wallets.
type WalletRepository interface {
	GetWallet(ctx context.Context, id string) (*Wallet, error)
	GetAllWallets(ctx context.Context) ([]Wallet, error)
	AddWallet(ctx context.Context, wallet *Wallet) error
	UpdateWallet(ctx context.Context, wallet *Wallet) error
	DeleteWallet(ctx context.Context, id string) error
	// ReplaceAll persists the given set of re-encrypted wallets in a single
	// transaction. Either all records are written or none, so a password
	// change can never leave mixed old and new records behind.
	ReplaceAll(ctx context.Context, wallets []Wallet) error
}
