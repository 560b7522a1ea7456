package inmemory

import (
	"context"

	"github.com/dappward/walletd/internal/core/domain"
)

type networkRepositoryImpl struct {
	locker
	networks map[string]domain.Network
}

func newNetworkRepository() domain.NetworkRepository {
	return &networkRepositoryImpl{
		locker:   newLocker(),
		networks: make(map[string]domain.Network),
	}
}

func (r *networkRepositoryImpl) GetNetwork(
	_ context.Context, chainID string,
) (*domain.Network, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	network, ok := r.networks[chainID]
	if !ok {
		return nil, domain.ErrUnrecognizedChain
	}
	return &network, nil
}

func (r *networkRepositoryImpl) GetAllNetworks(
	_ context.Context,
) ([]domain.Network, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	networks := make([]domain.Network, 0, len(r.networks))
	for _, network := range r.networks {
		networks = append(networks, network)
	}
	return networks, nil
}

func (r *networkRepositoryImpl) SaveNetwork(
	_ context.Context, network *domain.Network,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.networks[network.ChainID] = *network
	return nil
}

func (r *networkRepositoryImpl) DeleteNetwork(
	_ context.Context, chainID string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.networks[chainID]; !ok {
		return domain.ErrUnrecognizedChain
	}
	delete(r.networks, chainID)
	return nil
}
