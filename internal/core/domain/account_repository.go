package domain

import "context"

// AccountRepository is the persistence boundary for accounts.
type AccountRepository interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByAddress(ctx context.Context, address string) (*Account, error)
	GetAccountsForWallet(ctx context.Context, walletID string) ([]Account, error)
	GetAllAccounts(ctx context.Context) ([]Account, error)
	AddAccount(ctx context.Context, account *Account) error
	UpdateAccountName(ctx context.Context, id, name string) error
	DeleteAccount(ctx context.Context, id string) error
}
