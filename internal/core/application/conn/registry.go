package conn

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dappward/walletd/internal/core/application/keyring"
	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/pkg/provider"
)

type entry struct {
	channel ports.Channel
	origin  string
}

// Registry tracks the live transport channel of every connected tab and
// delivers asynchronous events to them.
type Registry struct {
	lock     *sync.RWMutex
	channels map[int]entry

	authRepo      domain.AuthorizationRepository
	session       *keyring.Session
	chainState    *domain.ChainState
	tabs          ports.TabGateway
	sweepInterval time.Duration
}

func NewRegistry(
	authRepo domain.AuthorizationRepository, session *keyring.Session,
	chainState *domain.ChainState, tabs ports.TabGateway,
	sweepInterval time.Duration,
) (*Registry, error) {
	if authRepo == nil {
		return nil, fmt.Errorf("missing authorization repository")
	}
	if session == nil {
		return nil, fmt.Errorf("missing keyring session")
	}
	if chainState == nil {
		return nil, fmt.Errorf("missing chain state")
	}

	return &Registry{
		lock:          &sync.RWMutex{},
		channels:      make(map[int]entry),
		authRepo:      authRepo,
		session:       session,
		chainState:    chainState,
		tabs:          tabs,
		sweepInterval: sweepInterval,
	}, nil
}

// Register tracks the channel for the given tab. If the origin already holds
// a valid authorization the page is told its connection state right away: a
// connect event when the wallet is unlocked, an empty accounts-changed event
// when it is locked, so a page never believes a stale authorization means
// live accounts.
func (r *Registry) Register(
	ctx context.Context, tabID int, origin string, channel ports.Channel,
) {
	r.lock.Lock()
	r.channels[tabID] = entry{channel: channel, origin: origin}
	r.lock.Unlock()

	auth, err := r.authRepo.GetAuthorization(ctx, origin)
	if err != nil {
		log.WithError(err).WithField("origin", origin).Warn(
			"could not read authorization on channel registration",
		)
		return
	}
	if auth == nil {
		return
	}

	if r.session.IsUnlocked() {
		r.sendTo(channel, provider.EventConnect, map[string]interface{}{
			"chainId":  r.chainState.ChainID(),
			"accounts": []string{auth.Address},
		})
		return
	}
	r.sendTo(channel, provider.EventAccountsChanged, []string{})
}

// Unregister drops the channel of the given tab.
func (r *Registry) Unregister(tabID int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.channels, tabID)
}

// Broadcast delivers the event to every live channel.
func (r *Registry) Broadcast(event string, data interface{}) {
	r.lock.RLock()
	channels := make([]ports.Channel, 0, len(r.channels))
	for _, e := range r.channels {
		channels = append(channels, e.channel)
	}
	r.lock.RUnlock()

	eg := &errgroup.Group{}
	for i := range channels {
		channel := channels[i]
		eg.Go(func() error { return channel.NotifyEvent(event, data) })
	}
	if err := eg.Wait(); err != nil {
		log.WithError(err).Warn("could not deliver event to all channels")
	}
}

// BroadcastToOrigin delivers the event to the live channels of one origin
// only.
func (r *Registry) BroadcastToOrigin(origin, event string, data interface{}) {
	r.lock.RLock()
	channels := make([]ports.Channel, 0)
	for _, e := range r.channels {
		if e.origin == origin {
			channels = append(channels, e.channel)
		}
	}
	r.lock.RUnlock()

	eg := &errgroup.Group{}
	for i := range channels {
		channel := channels[i]
		eg.Go(func() error { return channel.NotifyEvent(event, data) })
	}
	if err := eg.Wait(); err != nil {
		log.WithError(err).WithField("origin", origin).Warn(
			"could not deliver event to all channels",
		)
	}
}

// Len returns the number of live channels.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.channels)
}

// StartSweeper periodically removes entries whose underlying tab no longer
// exists. Blocks until the context is done.
func (r *Registry) StartSweeper(ctx context.Context) {
	if r.tabs == nil {
		return
	}
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Registry) sweep(ctx context.Context) {
	r.lock.RLock()
	tabIDs := make([]int, 0, len(r.channels))
	for tabID := range r.channels {
		tabIDs = append(tabIDs, tabID)
	}
	r.lock.RUnlock()

	for _, tabID := range tabIDs {
		exists, err := r.tabs.Exists(ctx, tabID)
		if err != nil {
			log.WithError(err).WithField("tab", tabID).Warn(
				"could not check tab existence",
			)
			continue
		}
		if !exists {
			log.WithField("tab", tabID).Debug("sweeping dead tab channel")
			r.Unregister(tabID)
		}
	}
}

func (r *Registry) sendTo(
	channel ports.Channel, event string, data interface{},
) {
	if err := channel.NotifyEvent(event, data); err != nil {
		log.WithError(err).Warn("could not deliver event to channel")
	}
}
