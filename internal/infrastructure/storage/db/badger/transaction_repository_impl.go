package dbbadger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/dappward/walletd/internal/core/domain"
)

type transactionRepositoryImpl struct {
	store  *badgerhold.Store
	maxTxs int
}

func newTransactionRepository(
	store *badgerhold.Store, maxTxs int,
) domain.TransactionRepository {
	return transactionRepositoryImpl{store, maxTxs}
}

func (r transactionRepositoryImpl) GetTransactionsByAddress(
	_ context.Context, address string,
) ([]domain.TransactionRecord, error) {
	var txs []domain.TransactionRecord
	if err := r.store.Find(
		&txs,
		badgerhold.Where("From").Eq(address).Or(
			badgerhold.Where("To").Eq(address),
		),
	); err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
	return txs, nil
}

func (r transactionRepositoryImpl) AddTransaction(
	_ context.Context, tx *domain.TransactionRecord,
) error {
	if err := r.store.Upsert(tx.Hash, *tx); err != nil {
		return err
	}
	return r.evict()
}

func (r transactionRepositoryImpl) UpdateTransaction(
	_ context.Context, hash string, status domain.TxStatus,
) error {
	var tx domain.TransactionRecord
	if err := r.store.Get(hash, &tx); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrTransactionNotFound
		}
		return err
	}
	tx.Status = status
	tx.UpdatedAt = time.Now()
	return r.store.Update(hash, tx)
}

// evict drops the oldest records past the retention cap.
func (r transactionRepositoryImpl) evict() error {
	if r.maxTxs <= 0 {
		return nil
	}

	var all []domain.TransactionRecord
	if err := r.store.Find(&all, nil); err != nil {
		return err
	}
	if len(all) <= r.maxTxs {
		return nil
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	for _, tx := range all[:len(all)-r.maxTxs] {
		if err := r.store.Delete(tx.Hash, domain.TransactionRecord{}); err != nil {
			return err
		}
	}
	return nil
}
