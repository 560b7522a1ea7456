package inmemory

import (
	"context"

	"github.com/dappward/walletd/internal/core/domain"
)

type walletRepositoryImpl struct {
	locker
	wallets map[string]domain.Wallet
}

func newWalletRepository() domain.WalletRepository {
	return &walletRepositoryImpl{
		locker:  newLocker(),
		wallets: make(map[string]domain.Wallet),
	}
}

func (r *walletRepositoryImpl) GetWallet(
	_ context.Context, id string,
) (*domain.Wallet, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	wallet, ok := r.wallets[id]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return &wallet, nil
}

func (r *walletRepositoryImpl) GetAllWallets(
	_ context.Context,
) ([]domain.Wallet, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	wallets := make([]domain.Wallet, 0, len(r.wallets))
	for _, wallet := range r.wallets {
		wallets = append(wallets, wallet)
	}
	return wallets, nil
}

func (r *walletRepositoryImpl) AddWallet(
	_ context.Context, wallet *domain.Wallet,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.wallets[wallet.ID] = *wallet
	return nil
}

func (r *walletRepositoryImpl) UpdateWallet(
	_ context.Context, wallet *domain.Wallet,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.wallets[wallet.ID]; !ok {
		return domain.ErrWalletNotFound
	}
	r.wallets[wallet.ID] = *wallet
	return nil
}

func (r *walletRepositoryImpl) DeleteWallet(
	_ context.Context, id string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.wallets[id]; !ok {
		return domain.ErrWalletNotFound
	}
	delete(r.wallets, id)
	return nil
}

func (r *walletRepositoryImpl) ReplaceAll(
	_ context.Context, wallets []domain.Wallet,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, wallet := range wallets {
		r.wallets[wallet.ID] = wallet
	}
	return nil
}
