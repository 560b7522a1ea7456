package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
)

type repoManager struct {
	store *badgerhold.Store

	accountRepository       domain.AccountRepository
	walletRepository        domain.WalletRepository
	authorizationRepository domain.AuthorizationRepository
	networkRepository       domain.NetworkRepository
	transactionRepository   domain.TransactionRepository
	settingsRepository      domain.SettingsRepository
}

// NewRepoManager opens (or creates if not exists) the badger store on disk
// under the given data dir and returns the persistent implementation of the
// storage layer. maxTxs bounds the retained transaction history.
func NewRepoManager(
	baseDbDir string, logger badger.Logger, maxTxs int,
) (ports.RepoManager, error) {
	store, err := createDb(baseDbDir+"/wallet", logger)
	if err != nil {
		return nil, fmt.Errorf("opening wallet db: %w", err)
	}

	return &repoManager{
		store:                   store,
		accountRepository:       newAccountRepository(store),
		walletRepository:        newWalletRepository(store),
		authorizationRepository: newAuthorizationRepository(store),
		networkRepository:       newNetworkRepository(store),
		transactionRepository:   newTransactionRepository(store, maxTxs),
		settingsRepository:      newSettingsRepository(store),
	}, nil
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

func (m *repoManager) Close() {
	//nolint:errcheck
	m.store.Close()
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	var buff bytes.Buffer
	de := json.NewDecoder(&buff)

	_, err := buff.Write(data)
	if err != nil {
		return err
	}

	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (db *badgerhold.Store, err error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	db, err = badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})

	return
}
