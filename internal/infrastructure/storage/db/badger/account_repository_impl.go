package dbbadger

import (
	"context"
	"errors"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/dappward/walletd/internal/core/domain"
)

type accountRepositoryImpl struct {
	store *badgerhold.Store
}

func newAccountRepository(store *badgerhold.Store) domain.AccountRepository {
	return accountRepositoryImpl{store}
}

func (r accountRepositoryImpl) GetAccount(
	_ context.Context, id string,
) (*domain.Account, error) {
	var account domain.Account
	if err := r.store.Get(id, &account); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r accountRepositoryImpl) GetAccountByAddress(
	_ context.Context, address string,
) (*domain.Account, error) {
	var accounts []domain.Account
	if err := r.store.Find(
		&accounts, badgerhold.Where("Address").Eq(address),
	); err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return &accounts[0], nil
}

func (r accountRepositoryImpl) GetAccountsForWallet(
	_ context.Context, walletID string,
) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := r.store.Find(
		&accounts, badgerhold.Where("WalletID").Eq(walletID),
	); err != nil {
		return nil, err
	}
	sortAccounts(accounts)
	return accounts, nil
}

func (r accountRepositoryImpl) GetAllAccounts(
	_ context.Context,
) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := r.store.Find(&accounts, nil); err != nil {
		return nil, err
	}
	sortAccounts(accounts)
	return accounts, nil
}

func (r accountRepositoryImpl) AddAccount(
	_ context.Context, account *domain.Account,
) error {
	return r.store.Insert(account.ID, *account)
}

func (r accountRepositoryImpl) UpdateAccountName(
	ctx context.Context, id, name string,
) error {
	account, err := r.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	account.Name = name
	return r.store.Update(id, *account)
}

func (r accountRepositoryImpl) DeleteAccount(
	_ context.Context, id string,
) error {
	if err := r.store.Delete(id, domain.Account{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrAccountNotFound
		}
		return err
	}
	return nil
}

func sortAccounts(accounts []domain.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
}
