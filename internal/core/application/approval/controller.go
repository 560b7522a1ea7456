package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dappward/walletd/internal/core/application/keyring"
	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
)

const (
	defaultWindowWidth  = 360
	defaultWindowHeight = 620
	defaultWindowLeft   = 100
	defaultWindowTop    = 100

	// UI signal telling an already-open surface to show the unlock view.
	SignalShowUnlock = "SHOW_UNLOCK"
)

type decision struct {
	approved bool
	result   json.RawMessage
}

// Controller opens modal approval windows and resolves exactly one of four
// outcomes per request: explicit approval, explicit rejection, window closed
// by the user, or timeout. All listeners are torn down once any one fires.
type Controller struct {
	lock          *sync.Mutex
	opener        ports.WindowOpener
	registry      *Registry
	session       *keyring.Session
	notifier      ports.UINotifier
	timeout       time.Duration
	unlockTimeout time.Duration

	decisions map[string]chan decision
	lastGeom  *ports.WindowGeometry

	unlockWindowID int
	unlockClosed   <-chan struct{}
	unlockWaiters  int
}

func NewController(
	opener ports.WindowOpener, registry *Registry, session *keyring.Session,
	timeout, unlockTimeout time.Duration,
) (*Controller, error) {
	if opener == nil {
		return nil, fmt.Errorf("missing window opener")
	}
	if registry == nil {
		return nil, fmt.Errorf("missing pending request registry")
	}
	if session == nil {
		return nil, fmt.Errorf("missing keyring session")
	}

	return &Controller{
		lock:          &sync.Mutex{},
		opener:        opener,
		registry:      registry,
		session:       session,
		timeout:       timeout,
		unlockTimeout: unlockTimeout,
		decisions:     make(map[string]chan decision),
	}, nil
}

// SetUINotifier wires the signal channel towards the extension UI. Optional.
func (c *Controller) SetUINotifier(notifier ports.UINotifier) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.notifier = notifier
}

// PromptForApproval opens the approval window for the given pending request
// and blocks until one of the four outcomes fires. The pending request is
// removed from the registry on resolution, whatever the outcome.
func (c *Controller) PromptForApproval(
	ctx context.Context, request *domain.PendingRequest,
) (json.RawMessage, error) {
	defer c.registry.Remove(request.ID)

	decCh := make(chan decision, 1)
	c.lock.Lock()
	c.decisions[request.ID] = decCh
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		delete(c.decisions, request.ID)
		c.lock.Unlock()
	}()

	windowURL := fmt.Sprintf(
		"popup.html?requestId=%s&type=%s",
		url.QueryEscape(request.ID), request.Type,
	)
	windowID, err := c.opener.Open(ctx, windowURL, c.geometry())
	if err != nil {
		log.WithError(err).Error("could not open approval window")
		return nil, domain.ErrWindowNotOpened
	}
	request.WindowID = windowID

	closedCh := c.opener.WaitClosed(windowID)
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case dec := <-decCh:
		if !dec.approved {
			return nil, domain.ErrUserRejected
		}
		return dec.result, nil
	case <-closedCh:
		return nil, domain.ErrUserRejected
	case <-timer.C:
		if err := c.opener.Close(windowID); err != nil {
			log.WithError(err).Warn("could not close timed out approval window")
		}
		return nil, domain.ErrRequestTimeout
	case <-ctx.Done():
		if err := c.opener.Close(windowID); err != nil {
			log.WithError(err).Warn("could not close approval window")
		}
		return nil, ctx.Err()
	}
}

// Resolve delivers the user decision for the given request id. A decision
// arriving after the request already resolved (eg. past its timeout) is
// ignored and reported as ErrRequestNotFound.
func (c *Controller) Resolve(
	requestID string, approved bool, result json.RawMessage,
) error {
	c.lock.Lock()
	decCh, ok := c.decisions[requestID]
	c.lock.Unlock()
	if !ok {
		log.WithField("request", requestID).Debug(
			"ignoring decision for unknown or already resolved request",
		)
		return domain.ErrRequestNotFound
	}

	select {
	case decCh <- decision{approved: approved, result: result}:
	default:
	}
	return nil
}

// FocusExisting brings the window of an already-pending request to the
// front instead of opening a duplicate.
func (c *Controller) FocusExisting(request *domain.PendingRequest) {
	if request.WindowID == 0 {
		return
	}
	if err := c.opener.Focus(request.WindowID); err != nil {
		log.WithError(err).Warn("could not focus existing approval window")
	}
}

// RequestUnlock shows the unlock surface and blocks until the wallet is
// unlocked, the surface is closed, or the timeout fires. If an unlock
// surface is already open the existing one is focused and signalled instead
// of opening a second window; any number of logical waiters resolve from
// the single unlock event.
func (c *Controller) RequestUnlock(ctx context.Context) error {
	c.lock.Lock()
	if c.unlockWindowID == 0 {
		windowID, err := c.opener.Open(ctx, "popup.html?view=unlock", c.geometryLocked())
		if err != nil {
			c.lock.Unlock()
			log.WithError(err).Error("could not open unlock window")
			return domain.ErrWindowNotOpened
		}
		c.unlockWindowID = windowID
		c.unlockClosed = c.opener.WaitClosed(windowID)
	} else {
		if err := c.opener.Focus(c.unlockWindowID); err != nil {
			log.WithError(err).Warn("could not focus unlock window")
		}
		if c.notifier != nil {
			c.notifier.NotifyUI(SignalShowUnlock, nil)
		}
	}
	closedCh := c.unlockClosed
	c.unlockWaiters++
	c.lock.Unlock()

	defer func() {
		c.lock.Lock()
		c.unlockWaiters--
		if c.unlockWaiters == 0 {
			if c.unlockWindowID != 0 {
				// best-effort, the user may have closed it already
				if err := c.opener.Close(c.unlockWindowID); err != nil {
					log.WithError(err).Debug("could not close unlock window")
				}
			}
			c.unlockWindowID = 0
			c.unlockClosed = nil
		}
		c.lock.Unlock()
	}()

	unlockCtx, cancel := context.WithTimeout(ctx, c.unlockTimeout)
	defer cancel()

	unlockedCh := make(chan error, 1)
	go func() { unlockedCh <- c.session.WaitUnlock(unlockCtx) }()

	select {
	case err := <-unlockedCh:
		if err != nil {
			if unlockCtx.Err() != nil && ctx.Err() == nil {
				return domain.ErrRequestTimeout
			}
			return err
		}
		return nil
	case <-closedCh:
		return domain.ErrUserRejected
	}
}

// geometry reuses the last known on-screen position when available, clamped
// to the visible screen bounds, and falls back to the default placement.
func (c *Controller) geometry() ports.WindowGeometry {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.geometryLocked()
}

// geometryLocked requires c.lock to be held by the caller.
func (c *Controller) geometryLocked() ports.WindowGeometry {
	geom := ports.WindowGeometry{
		Width:  defaultWindowWidth,
		Height: defaultWindowHeight,
		Left:   defaultWindowLeft,
		Top:    defaultWindowTop,
	}
	if c.lastGeom != nil {
		geom.Left = c.lastGeom.Left
		geom.Top = c.lastGeom.Top
	}
	if bounds, ok := c.opener.ScreenBounds(); ok {
		geom.Left = clamp(geom.Left, 0, bounds.Width-geom.Width)
		geom.Top = clamp(geom.Top, 0, bounds.Height-geom.Height)
	}
	c.lastGeom = &geom
	return geom
}

func clamp(v, min, max int) int {
	if max < min {
		max = min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
