package domain

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Network describes a chain the wallet can point at.
type Network struct {
	ChainID string `badgerhold:"key"`
	Name    string
	RPCURL  string
}

// NewNetwork returns a Network with a normalized chain id.
func NewNetwork(chainID, name, rpcURL string) (*Network, error) {
	normalized, err := NormalizeChainID(chainID)
	if err != nil {
		return nil, err
	}
	return &Network{ChainID: normalized, Name: name, RPCURL: rpcURL}, nil
}

// NormalizeChainID turns a chain id into its canonical lowercase hex form
// without leading zeros, eg. "0x1".
func NormalizeChainID(chainID string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(chainID))
	if !strings.HasPrefix(s, "0x") {
		return "", ErrInvalidChainID
	}
	n, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return "", ErrInvalidChainID
	}
	return fmt.Sprintf("0x%x", n), nil
}

// ChainState is the process-wide chain context every RPC dispatch reads.
// Writes happen through network-switch operations only.
type ChainState struct {
	lock           *sync.RWMutex
	currentChainID string
	currentRPCURL  string
}

// NewChainState returns a ChainState pointing at the given network.
func NewChainState(network *Network) *ChainState {
	return &ChainState{
		lock:           &sync.RWMutex{},
		currentChainID: network.ChainID,
		currentRPCURL:  network.RPCURL,
	}
}

// ChainID returns the current normalized chain id.
func (s *ChainState) ChainID() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.currentChainID
}

// RPCURL returns the current node endpoint.
func (s *ChainState) RPCURL() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.currentRPCURL
}

// Switch points the state at the given network. Callers broadcast the
// chain-changed event only after this returns.
func (s *ChainState) Switch(network *Network) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.currentChainID = network.ChainID
	s.currentRPCURL = network.RPCURL
}
