package ports

import "github.com/dappward/walletd/internal/core/domain"

// RepoManager gives access to all the repositories of the storage layer.
type RepoManager interface {
	AccountRepository() domain.AccountRepository
	WalletRepository() domain.WalletRepository
	AuthorizationRepository() domain.AuthorizationRepository
	NetworkRepository() domain.NetworkRepository
	TransactionRepository() domain.TransactionRepository
	SettingsRepository() domain.SettingsRepository
	Close()
}
