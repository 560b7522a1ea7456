package inmemory

import (
	"sync"

	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
)

type repoManager struct {
	accountRepository       domain.AccountRepository
	walletRepository        domain.WalletRepository
	authorizationRepository domain.AuthorizationRepository
	networkRepository       domain.NetworkRepository
	transactionRepository   domain.TransactionRepository
	settingsRepository      domain.SettingsRepository
}

// NewRepoManager returns a volatile implementation of the storage layer,
// mainly useful for tests. maxTxs bounds the retained transaction history
// per the oldest-first eviction policy.
func NewRepoManager(maxTxs int) ports.RepoManager {
	return &repoManager{
		accountRepository:       newAccountRepository(),
		walletRepository:        newWalletRepository(),
		authorizationRepository: newAuthorizationRepository(),
		networkRepository:       newNetworkRepository(),
		transactionRepository:   newTransactionRepository(maxTxs),
		settingsRepository:      newSettingsRepository(),
	}
}

func (m *repoManager) AccountRepository() domain.AccountRepository {
	return m.accountRepository
}

func (m *repoManager) WalletRepository() domain.WalletRepository {
	return m.walletRepository
}

func (m *repoManager) AuthorizationRepository() domain.AuthorizationRepository {
	return m.authorizationRepository
}

func (m *repoManager) NetworkRepository() domain.NetworkRepository {
	return m.networkRepository
}

func (m *repoManager) TransactionRepository() domain.TransactionRepository {
	return m.transactionRepository
}

func (m *repoManager) SettingsRepository() domain.SettingsRepository {
	return m.settingsRepository
}

func (m *repoManager) Close() {}

type locker struct {
	lock *sync.RWMutex
}

func newLocker() locker {
	return locker{lock: &sync.RWMutex{}}
}
