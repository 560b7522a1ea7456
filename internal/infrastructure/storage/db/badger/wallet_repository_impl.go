package dbbadger

import (
	"context"
	"errors"

	"github.com/timshannon/badgerhold/v4"

	"github.com/dappward/walletd/internal/core/domain"
)

type walletRepositoryImpl struct {
	store *badgerhold.Store
}

func newWalletRepository(store *badgerhold.Store) domain.WalletRepository {
	return walletRepositoryImpl{store}
}

func (r walletRepositoryImpl) GetWallet(
	_ context.Context, id string,
) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := r.store.Get(id, &wallet); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r walletRepositoryImpl) GetAllWallets(
	_ context.Context,
) ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	if err := r.store.Find(&wallets, nil); err != nil {
		return nil, err
	}
	return wallets, nil
}

func (r walletRepositoryImpl) AddWallet(
	_ context.Context, wallet *domain.Wallet,
) error {
	return r.store.Insert(wallet.ID, *wallet)
}

func (r walletRepositoryImpl) UpdateWallet(
	_ context.Context, wallet *domain.Wallet,
) error {
	if err := r.store.Update(wallet.ID, *wallet); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrWalletNotFound
		}
		return err
	}
	return nil
}

func (r walletRepositoryImpl) DeleteWallet(
	_ context.Context, id string,
) error {
	if err := r.store.Delete(id, domain.Wallet{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrWalletNotFound
		}
		return err
	}
	return nil
}

// ReplaceAll upserts the whole set in one badger transaction so a password
// change commits atomically.
func (r walletRepositoryImpl) ReplaceAll(
	_ context.Context, wallets []domain.Wallet,
) error {
	tx := r.store.Badger().NewTransaction(true)
	defer tx.Discard()

	for _, wallet := range wallets {
		if err := r.store.TxUpsert(tx, wallet.ID, wallet); err != nil {
			return err
		}
	}
	return tx.Commit()
}
