package dbbadger

import (
	"context"
	"errors"

	"github.com/timshannon/badgerhold/v4"

	"github.com/dappward/walletd/internal/core/domain"
)

type networkRepositoryImpl struct {
	store *badgerhold.Store
}

func newNetworkRepository(store *badgerhold.Store) domain.NetworkRepository {
	return networkRepositoryImpl{store}
}

func (r networkRepositoryImpl) GetNetwork(
	_ context.Context, chainID string,
) (*domain.Network, error) {
	var network domain.Network
	if err := r.store.Get(chainID, &network); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrUnrecognizedChain
		}
		return nil, err
	}
	return &network, nil
}

func (r networkRepositoryImpl) GetAllNetworks(
	_ context.Context,
) ([]domain.Network, error) {
	var networks []domain.Network
	if err := r.store.Find(&networks, nil); err != nil {
		return nil, err
	}
	return networks, nil
}

func (r networkRepositoryImpl) SaveNetwork(
	_ context.Context, network *domain.Network,
) error {
	return r.store.Upsert(network.ChainID, *network)
}

func (r networkRepositoryImpl) DeleteNetwork(
	_ context.Context, chainID string,
) error {
	if err := r.store.Delete(chainID, domain.Network{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrUnrecognizedChain
		}
		return err
	}
	return nil
}
