package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountType int

const (
	// AccountTypeMain is the first account derived from an HD wallet
	AccountTypeMain AccountType = iota
	// AccountTypeSub is any further account derived from an HD wallet
	AccountTypeSub
	// AccountTypeImported is an account backed by a raw imported key
	AccountTypeImported
)

// Account is a reference to a signing identity. It is owned by the storage
// layer and referenced by id everywhere else. Immutable except for Name.
type Account struct {
	ID              string `badgerhold:"key"`
	WalletID        string
	Name            string
	Address         string
	Type            AccountType
	DerivationIndex uint32
	ParentID        string
	CreatedAt       time.Time
}

// NewAccount returns a new Account bound to the given wallet.
func NewAccount(
	walletID, name, address string, accountType AccountType,
	derivationIndex uint32, parentID string,
) *Account {
	return &Account{
		ID:              uuid.NewString(),
		WalletID:        walletID,
		Name:            name,
		Address:         address,
		Type:            accountType,
		DerivationIndex: derivationIndex,
		ParentID:        parentID,
		CreatedAt:       time.Now(),
	}
}

// IsImported returns whether the account is backed by a raw imported key
// rather than derived from its wallet's mnemonic.
func (a *Account) IsImported() bool {
	return a.Type == AccountTypeImported
}
