package inmemory

import (
	"context"
	"sort"
	"time"

	"github.com/dappward/walletd/internal/core/domain"
)

type transactionRepositoryImpl struct {
	locker
	txs    map[string]domain.TransactionRecord
	maxTxs int
}

func newTransactionRepository(maxTxs int) domain.TransactionRepository {
	return &transactionRepositoryImpl{
		locker: newLocker(),
		txs:    make(map[string]domain.TransactionRecord),
		maxTxs: maxTxs,
	}
}

func (r *transactionRepositoryImpl) GetTransactionsByAddress(
	_ context.Context, address string,
) ([]domain.TransactionRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	txs := make([]domain.TransactionRecord, 0)
	for _, tx := range r.txs {
		if tx.From == address || tx.To == address {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
	return txs, nil
}

func (r *transactionRepositoryImpl) AddTransaction(
	_ context.Context, tx *domain.TransactionRecord,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.txs[tx.Hash] = *tx

	if r.maxTxs > 0 && len(r.txs) > r.maxTxs {
		all := make([]domain.TransactionRecord, 0, len(r.txs))
		for _, t := range r.txs {
			all = append(all, t)
		}
		sort.Slice(all, func(i, j int) bool {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		})
		for _, t := range all[:len(all)-r.maxTxs] {
			delete(r.txs, t.Hash)
		}
	}
	return nil
}

func (r *transactionRepositoryImpl) UpdateTransaction(
	_ context.Context, hash string, status domain.TxStatus,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	tx, ok := r.txs[hash]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	tx.Status = status
	tx.UpdatedAt = time.Now()
	r.txs[hash] = tx
	return nil
}
