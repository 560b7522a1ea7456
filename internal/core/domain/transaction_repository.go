package domain

import "context"

// TransactionRepository is the persistence boundary for the per-address
// transaction history. Implementations enforce a maximum retained count with
// oldest-first eviction.
type TransactionRepository interface {
	GetTransactionsByAddress(ctx context.Context, address string) ([]TransactionRecord, error)
	AddTransaction(ctx context.Context, tx *TransactionRecord) error
	UpdateTransaction(ctx context.Context, hash string, status TxStatus) error
}
