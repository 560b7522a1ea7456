package domain

import "context"

// NetworkRepository is the persistence boundary for known networks.
type NetworkRepository interface {
	GetNetwork(ctx context.Context, chainID string) (*Network, error)
	GetAllNetworks(ctx context.Context) ([]Network, error)
	SaveNetwork(ctx context.Context, network *Network) error
	DeleteNetwork(ctx context.Context, chainID string) error
}
