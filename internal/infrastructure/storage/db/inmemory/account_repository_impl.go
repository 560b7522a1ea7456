package inmemory

import (
	"context"

	"github.com/dappward/walletd/internal/core/domain"
)

type accountRepositoryImpl struct {
	locker
	accounts map[string]domain.Account
}

func newAccountRepository() domain.AccountRepository {
	return &accountRepositoryImpl{
		locker:   newLocker(),
		accounts: make(map[string]domain.Account),
	}
}

func (r *accountRepositoryImpl) GetAccount(
	_ context.Context, id string,
) (*domain.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

func (r *accountRepositoryImpl) GetAccountByAddress(
	_ context.Context, address string,
) (*domain.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, account := range r.accounts {
		if account.Address == address {
			account := account
			return &account, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *accountRepositoryImpl) GetAccountsForWallet(
	_ context.Context, walletID string,
) ([]domain.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	accounts := make([]domain.Account, 0)
	for _, account := range r.accounts {
		if account.WalletID == walletID {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (r *accountRepositoryImpl) GetAllAccounts(
	_ context.Context,
) ([]domain.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	accounts := make([]domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (r *accountRepositoryImpl) AddAccount(
	_ context.Context, account *domain.Account,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.accounts[account.ID] = *account
	return nil
}

func (r *accountRepositoryImpl) UpdateAccountName(
	_ context.Context, id, name string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.Name = name
	r.accounts[id] = account
	return nil
}

func (r *accountRepositoryImpl) DeleteAccount(
	_ context.Context, id string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}
