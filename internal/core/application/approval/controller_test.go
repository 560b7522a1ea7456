package approval_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dappward/walletd/internal/core/application/approval"
	"github.com/dappward/walletd/internal/core/application/keyring"
	"github.com/dappward/walletd/internal/core/application/vault"
	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"

	"github.com/ethereum/go-ethereum/crypto"
)

type fakeOpener struct {
	lock       sync.Mutex
	nextID     int
	openCount  int
	focusCount int
	failOpen   bool
	closed     map[int]chan struct{}
	geoms      []ports.WindowGeometry
	bounds     *ports.ScreenBounds
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{closed: make(map[int]chan struct{})}
}

func (o *fakeOpener) Open(
	_ context.Context, _ string, geom ports.WindowGeometry,
) (int, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.failOpen {
		return 0, errors.New("host refused to create window")
	}
	o.nextID++
	o.openCount++
	o.closed[o.nextID] = make(chan struct{})
	o.geoms = append(o.geoms, geom)
	return o.nextID, nil
}

func (o *fakeOpener) Focus(int) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.focusCount++
	return nil
}

func (o *fakeOpener) Close(windowID int) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	ch, ok := o.closed[windowID]
	if !ok {
		return errors.New("no such window")
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
	delete(o.closed, windowID)
	return nil
}

func (o *fakeOpener) WaitClosed(windowID int) <-chan struct{} {
	o.lock.Lock()
	defer o.lock.Unlock()
	ch, ok := o.closed[windowID]
	if !ok {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return ch
}

func (o *fakeOpener) ScreenBounds() (ports.ScreenBounds, bool) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.bounds == nil {
		return ports.ScreenBounds{}, false
	}
	return *o.bounds, true
}

func (o *fakeOpener) simulateUserClose(windowID int) {
	o.Close(windowID)
}

func (o *fakeOpener) opened() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.openCount
}

func newTestController(
	t *testing.T, opener ports.WindowOpener, timeout time.Duration,
) (*approval.Controller, *approval.Registry, *keyring.Session) {
	t.Helper()
	registry := approval.NewRegistry()
	session := keyring.NewSession(time.Minute, keyring.NewPasswordCache(time.Minute))
	ctrl, err := approval.NewController(opener, registry, session, timeout, timeout)
	require.NoError(t, err)
	return ctrl, registry, session
}

func newConnectRequest(origin string, tabID int) *domain.PendingRequest {
	return domain.NewPendingRequest(domain.RequestTypeConnect, origin, tabID, nil)
}

func TestPromptApproved(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	ctrl, registry, _ := newTestController(t, opener, time.Second)

	req := newConnectRequest("https://dapp.example", 1)
	registry.Add(req)

	resCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := ctrl.PromptForApproval(context.Background(), req)
		resCh <- res
		errCh <- err
	}()

	require.Eventually(t, func() bool { return opener.opened() == 1 },
		time.Second, 10*time.Millisecond)
	require.NoError(t, ctrl.Resolve(req.ID, true, json.RawMessage(`"ok"`)))

	assert.JSONEq(t, `"ok"`, string(<-resCh))
	assert.NoError(t, <-errCh)
	assert.Zero(t, registry.Len())
}

func TestPromptRejected(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	ctrl, registry, _ := newTestController(t, opener, time.Second)

	req := newConnectRequest("https://dapp.example", 1)
	registry.Add(req)

	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.PromptForApproval(context.Background(), req)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return opener.opened() == 1 },
		time.Second, 10*time.Millisecond)
	require.NoError(t, ctrl.Resolve(req.ID, false, nil))

	assert.Equal(t, domain.ErrUserRejected, <-errCh)
}

func TestPromptWindowClosedByUser(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	ctrl, registry, _ := newTestController(t, opener, time.Second)

	req := newConnectRequest("https://dapp.example", 1)
	registry.Add(req)

	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.PromptForApproval(context.Background(), req)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return opener.opened() == 1 },
		time.Second, 10*time.Millisecond)
	opener.simulateUserClose(req.WindowID)

	assert.Equal(t, domain.ErrUserRejected, <-errCh)
}

func TestPromptTimeout(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	ctrl, registry, _ := newTestController(t, opener, 50*time.Millisecond)

	req := newConnectRequest("https://dapp.example", 1)
	registry.Add(req)

	_, err := ctrl.PromptForApproval(context.Background(), req)
	assert.Equal(t, domain.ErrRequestTimeout, err)
	assert.Zero(t, registry.Len())

	// a decision arriving after the timeout already fired is ignored
	err = ctrl.Resolve(req.ID, true, nil)
	assert.Equal(t, domain.ErrRequestNotFound, err)
}

func TestPromptOpenFailure(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	opener.failOpen = true
	ctrl, registry, _ := newTestController(t, opener, time.Second)

	req := newConnectRequest("https://dapp.example", 1)
	registry.Add(req)

	_, err := ctrl.PromptForApproval(context.Background(), req)
	assert.Equal(t, domain.ErrWindowNotOpened, err)
	assert.Zero(t, registry.Len())
}

func TestGeometryClampedToScreenBounds(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	opener.bounds = &ports.ScreenBounds{Width: 400, Height: 500}
	ctrl, registry, _ := newTestController(t, opener, 50*time.Millisecond)

	req := newConnectRequest("https://dapp.example", 1)
	registry.Add(req)
	_, _ = ctrl.PromptForApproval(context.Background(), req)

	require.Len(t, opener.geoms, 1)
	geom := opener.geoms[0]
	assert.LessOrEqual(t, geom.Left+geom.Width, 400)
	assert.LessOrEqual(t, geom.Top+geom.Height, 500)
	assert.GreaterOrEqual(t, geom.Left, 0)
	assert.GreaterOrEqual(t, geom.Top, 0)
}

func TestRequestUnlockSharedWindow(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	ctrl, _, session := newTestController(t, opener, time.Second)

	const waiters = 3
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ctrl.RequestUnlock(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return opener.opened() == 1 },
		time.Second, 10*time.Millisecond)

	prv, err := crypto.GenerateKey()
	require.NoError(t, err)
	session.Unlock(vault.NewSigningHandle(
		"acc-1", crypto.PubkeyToAddress(prv.PublicKey), prv,
	), "passphrase")
	wg.Wait()

	// one window served all waiters
	assert.Equal(t, 1, opener.opened())
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestRequestUnlockDoesNotBlockApprovals(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	opener.bounds = &ports.ScreenBounds{Width: 1920, Height: 1080}
	ctrl, registry, _ := newTestController(t, opener, time.Second)

	unlockErr := make(chan error, 1)
	go func() { unlockErr <- ctrl.RequestUnlock(context.Background()) }()

	require.Eventually(t, func() bool { return opener.opened() == 1 },
		time.Second, 10*time.Millisecond)

	// approvals keep flowing while the unlock surface is up
	req := newConnectRequest("https://dapp.example", 1)
	registry.Add(req)
	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.PromptForApproval(context.Background(), req)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return opener.opened() == 2 },
		time.Second, 10*time.Millisecond)
	require.NoError(t, ctrl.Resolve(req.ID, false, nil))
	assert.Equal(t, domain.ErrUserRejected, <-errCh)

	opener.simulateUserClose(1)
	assert.Equal(t, domain.ErrUserRejected, <-unlockErr)
}

func TestRequestUnlockWindowClosed(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	ctrl, _, _ := newTestController(t, opener, time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.RequestUnlock(context.Background()) }()

	require.Eventually(t, func() bool { return opener.opened() == 1 },
		time.Second, 10*time.Millisecond)
	opener.simulateUserClose(1)

	assert.Equal(t, domain.ErrUserRejected, <-errCh)
}

func TestRequestUnlockTimeout(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	ctrl, _, _ := newTestController(t, opener, 50*time.Millisecond)

	err := ctrl.RequestUnlock(context.Background())
	assert.Equal(t, domain.ErrRequestTimeout, err)
}

func TestRegistryFindAndDuplicate(t *testing.T) {
	t.Parallel()

	registry := approval.NewRegistry()
	req := newConnectRequest("https://dapp.example", 1)
	registry.Add(req)

	found := registry.Find(domain.RequestTypeConnect, "https://dapp.example", 1)
	require.NotNil(t, found)
	assert.Equal(t, req.ID, found.ID)

	assert.Nil(t, registry.Find(domain.RequestTypeSign, "https://dapp.example", 1))
	assert.Nil(t, registry.Find(domain.RequestTypeConnect, "https://other.example", 1))
	assert.Nil(t, registry.Find(domain.RequestTypeConnect, "https://dapp.example", 2))

	registry.Remove(req.ID)
	assert.Nil(t, registry.Find(domain.RequestTypeConnect, "https://dapp.example", 1))
}

func TestConnectSingleFlight(t *testing.T) {
	t.Parallel()

	registry := approval.NewRegistry()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	var callsLock sync.Mutex

	fn := func() (interface{}, error) {
		callsLock.Lock()
		calls++
		callsLock.Unlock()
		close(started)
		<-release
		return "0xabc", nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = registry.DoConnect("https://dapp.example", 1, fn)
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = registry.DoConnect(
			"https://dapp.example", 1,
			func() (interface{}, error) { return "second execution", nil },
		)
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// both callers observed the identical eventual result
	assert.Equal(t, "0xabc", results[0])
	assert.Equal(t, "0xabc", results[1])
	assert.EqualValues(t, 1, calls)
}
