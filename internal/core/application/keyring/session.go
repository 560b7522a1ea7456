package keyring

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dappward/walletd/internal/core/application/vault"
	"github.com/dappward/walletd/internal/core/domain"
)

// Session is the in-memory map of unlocked accounts to signing handles and
// the sole authority on whether the wallet is unlocked. It owns the idle
// auto-lock timer: any authenticated read of a handle extends the session,
// the timeout is idle-only, never absolute.
type Session struct {
	lock     *sync.Mutex
	handles  map[string]*vault.SigningHandle
	timer    *time.Timer
	timeout  time.Duration
	pwdCache *PasswordCache

	unlocked   bool
	unlockedCh chan struct{}
	onLocked   func()
}

// NewSession returns a locked session with the given idle timeout.
func NewSession(timeout time.Duration, pwdCache *PasswordCache) *Session {
	return &Session{
		lock:       &sync.Mutex{},
		handles:    make(map[string]*vault.SigningHandle),
		timeout:    timeout,
		pwdCache:   pwdCache,
		unlockedCh: make(chan struct{}),
	}
}

// SetOnLocked registers the hook invoked after every transition to the
// locked state. Used to broadcast the empty accounts-changed event once the
// keyring is fully cleared.
func (s *Session) SetOnLocked(fn func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.onLocked = fn
}

// Unlock places the handle into the keyring, starts the auto-lock timer,
// caches the password and releases every waiter blocked on WaitUnlock.
func (s *Session) Unlock(handle *vault.SigningHandle, password string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.handles[handle.AccountID()] = handle
	s.unlocked = true
	s.resetTimer()
	s.pwdCache.Cache(password)

	select {
	case <-s.unlockedCh:
	default:
		close(s.unlockedCh)
	}
}

// AddHandle adds a further account to an already-unlocked keyring, eg. on
// switch-account with a cached or supplied password.
func (s *Session) AddHandle(handle *vault.SigningHandle) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.unlocked {
		return domain.ErrWalletLocked
	}
	s.handles[handle.AccountID()] = handle
	s.resetTimer()
	return nil
}

// Handle returns the signing handle of the given account. A successful read
// is authenticated activity: it resets the auto-lock timer and refreshes the
// password cache. An account absent from the keyring yields ErrWalletLocked,
// distinct from the account not existing at all.
func (s *Session) Handle(accountID string) (*vault.SigningHandle, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.unlocked {
		return nil, domain.ErrWalletLocked
	}
	handle, ok := s.handles[accountID]
	if !ok {
		return nil, domain.ErrWalletLocked
	}

	s.resetTimer()
	s.pwdCache.Refresh()
	return handle, nil
}

// IsUnlocked returns whether the wallet is unlocked. Does not count as
// authenticated activity.
func (s *Session) IsUnlocked() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.unlocked
}

// UnlockedAddresses lists the addresses currently held in the keyring.
// Does not count as authenticated activity.
func (s *Session) UnlockedAddresses() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	addresses := make([]string, 0, len(s.handles))
	for _, h := range s.handles {
		addresses = append(addresses, h.Address().Hex())
	}
	return addresses
}

// Lock clears the keyring, the password cache and the timer, then invokes
// the locked hook. The hook runs after the state is fully committed so any
// listener re-querying the session sees it locked.
func (s *Session) Lock() {
	s.lock.Lock()

	for _, h := range s.handles {
		h.Zero()
	}
	s.handles = make(map[string]*vault.SigningHandle)
	s.unlocked = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pwdCache.Clear()
	s.unlockedCh = make(chan struct{})
	onLocked := s.onLocked

	s.lock.Unlock()

	if onLocked != nil {
		onLocked()
	}
}

// ResetAutolock extends the session as a side effect of authenticated
// activity happening outside of handle reads, eg. an approved connect.
func (s *Session) ResetAutolock() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.unlocked {
		return
	}
	s.resetTimer()
	s.pwdCache.Refresh()
}

// CachedPassword returns the cached password if still within its TTL.
func (s *Session) CachedPassword() string {
	return s.pwdCache.Get()
}

// WaitUnlock blocks until the wallet is unlocked or the context is done.
// Multiple waiters are all released by a single unlock event.
func (s *Session) WaitUnlock(ctx context.Context) error {
	s.lock.Lock()
	if s.unlocked {
		s.lock.Unlock()
		return nil
	}
	ch := s.unlockedCh
	s.lock.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) resetTimer() {
	if s.timer != nil {
		s.timer.Reset(s.timeout)
		return
	}
	s.timer = time.AfterFunc(s.timeout, func() {
		log.Debug("auto-lock timeout expired, locking wallet")
		s.Lock()
	})
}
