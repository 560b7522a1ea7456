package domain

import "time"

type TxStatus int

const (
	TxStatusPending TxStatus = iota
	TxStatusConfirmed
	TxStatusFailed
)

// TransactionRecord is one entry of the per-address transaction history,
// keyed by hash.
type TransactionRecord struct {
	Hash      string `badgerhold:"key"`
	From      string
	To        string
	Value     string
	ChainID   string
	Status    TxStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTransactionRecord returns a pending history entry for the given hash.
func NewTransactionRecord(
	hash, from, to, value, chainID string,
) *TransactionRecord {
	now := time.Now()
	return &TransactionRecord{
		Hash:      hash,
		From:      from,
		To:        to,
		Value:     value,
		ChainID:   chainID,
		Status:    TxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
