package router_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/dappward/walletd/internal/core/application/approval"
	"github.com/dappward/walletd/internal/core/application/conn"
	"github.com/dappward/walletd/internal/core/application/keyring"
	"github.com/dappward/walletd/internal/core/application/router"
	"github.com/dappward/walletd/internal/core/application/vault"
	"github.com/dappward/walletd/internal/core/application/wallet"
	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/internal/infrastructure/storage/db/inmemory"
	"github.com/dappward/walletd/pkg/provider"
)

const (
	testOrigin   = "https://app.example"
	testPassword = "correct horse battery"
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon about"
	testVectorAddress = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

// autoOpener resolves every approval window according to the configured
// decision as soon as it opens, mimicking an instant user.
type autoOpener struct {
	lock     sync.Mutex
	approver *approval.Controller
	approve  bool
	delay    time.Duration
	opens    int
	focuses  int
}

func (o *autoOpener) Open(
	_ context.Context, rawURL string, _ ports.WindowGeometry,
) (int, error) {
	o.lock.Lock()
	o.opens++
	id := o.opens
	delay := o.delay
	o.lock.Unlock()
	if delay == 0 {
		delay = 10 * time.Millisecond
	}

	u, _ := url.Parse(rawURL)
	if requestID := u.Query().Get("requestId"); requestID != "" {
		go func() {
			time.Sleep(delay)
			//nolint:errcheck
			o.approver.Resolve(requestID, o.approve, nil)
		}()
	}
	return id, nil
}

func (o *autoOpener) Focus(int) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.focuses++
	return nil
}
func (o *autoOpener) Close(int) error { return nil }
func (o *autoOpener) WaitClosed(int) <-chan struct{} {
	return make(chan struct{})
}
func (o *autoOpener) ScreenBounds() (ports.ScreenBounds, bool) {
	return ports.ScreenBounds{}, false
}

func (o *autoOpener) openCount() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.opens
}

func (o *autoOpener) focusCount() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.focuses
}

// fakeForwarder answers node queries from a canned table.
type fakeForwarder struct {
	lock  sync.Mutex
	calls []string
}

func (f *fakeForwarder) Call(
	_ context.Context, method string, _ json.RawMessage,
) (json.RawMessage, error) {
	f.lock.Lock()
	f.calls = append(f.calls, method)
	f.lock.Unlock()

	switch method {
	case "eth_getTransactionCount":
		return json.Marshal("0x5")
	case "eth_estimateGas":
		return json.Marshal("0x5208")
	case "eth_gasPrice":
		return json.Marshal("0x3b9aca00")
	case "eth_sendRawTransaction":
		return json.Marshal(
			"0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
		)
	case "eth_blockNumber":
		return json.Marshal("0x10")
	default:
		return nil, fmt.Errorf("unexpected forwarded method %s", method)
	}
}

type fakeTabs struct {
	activeTab int
}

func (f *fakeTabs) IsActive(_ context.Context, tabID int) (bool, error) {
	return tabID == f.activeTab, nil
}
func (f *fakeTabs) Exists(_ context.Context, _ int) (bool, error) {
	return true, nil
}

type fakeChannel struct {
	lock   sync.Mutex
	events []provider.Event
}

func (c *fakeChannel) NotifyEvent(event string, data interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.events = append(c.events, provider.NewEvent(event, data))
	return nil
}
func (c *fakeChannel) Close() error { return nil }

func (c *fakeChannel) received() []provider.Event {
	c.lock.Lock()
	defer c.lock.Unlock()
	out := make([]provider.Event, len(c.events))
	copy(out, c.events)
	return out
}

type fixture struct {
	router      *router.Router
	walletSvc   *wallet.Service
	session     *keyring.Session
	repoManager ports.RepoManager
	opener      *autoOpener
	forwarder   *fakeForwarder
	connections *conn.Registry
	chainState  *domain.ChainState
	account     *domain.Account
}

func newFixture(t *testing.T, approve bool) *fixture {
	t.Helper()
	ctx := context.Background()

	repoManager := inmemory.NewRepoManager(100)
	session := keyring.NewSession(time.Hour, keyring.NewPasswordCache(time.Minute))
	registry := approval.NewRegistry()

	opener := &autoOpener{approve: approve}
	approver, err := approval.NewController(
		opener, registry, session, time.Second, time.Second,
	)
	require.NoError(t, err)
	opener.approver = approver

	mainnet, err := domain.NewNetwork("0x1", "Ethereum", "https://rpc.example")
	require.NoError(t, err)
	require.NoError(
		t, repoManager.NetworkRepository().SaveNetwork(ctx, mainnet),
	)
	chainState := domain.NewChainState(mainnet)

	tabs := &fakeTabs{activeTab: 1}
	connections, err := conn.NewRegistry(
		repoManager.AuthorizationRepository(), session, chainState, tabs,
		time.Minute,
	)
	require.NoError(t, err)

	forwarder := &fakeForwarder{}
	r, err := router.NewRouter(router.RouterOpts{
		RepoManager: repoManager,
		Session:     session,
		Registry:    registry,
		Approver:    approver,
		Connections: connections,
		Forwarder:   forwarder,
		Tabs:        tabs,
		ChainState:  chainState,
	})
	require.NoError(t, err)

	vaultSvc, err := vault.NewService(repoManager)
	require.NoError(t, err)
	walletSvc, err := wallet.NewService(repoManager, vaultSvc, session, connections)
	require.NoError(t, err)

	account, err := walletSvc.RestoreWallet(
		ctx, strings.Fields(testMnemonic), testPassword, "",
	)
	require.NoError(t, err)

	return &fixture{
		router:      r,
		walletSvc:   walletSvc,
		session:     session,
		repoManager: repoManager,
		opener:      opener,
		forwarder:   forwarder,
		connections: connections,
		chainState:  chainState,
		account:     account,
	}
}

func call(
	t *testing.T, f *fixture, tabID int, method string, params interface{},
) provider.Response {
	t.Helper()

	var rawParams json.RawMessage
	if params != nil {
		buf, err := json.Marshal(params)
		require.NoError(t, err)
		rawParams = buf
	}
	return f.router.Handle(context.Background(), testOrigin, tabID,
		provider.Request{
			Metadata: provider.RequestMetadata{ID: "req-1"},
			Payload:  provider.RequestPayload{Method: method, Params: rawParams},
		},
	)
}

func resultAccounts(t *testing.T, resp provider.Response) []string {
	t.Helper()
	require.Nil(t, resp.Error)
	var accounts []string
	require.NoError(t, json.Unmarshal(resp.Result, &accounts))
	return accounts
}

func TestOpenMethods(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	resp := call(t, f, 1, "eth_chainId", nil)
	require.Nil(t, resp.Error)
	require.JSONEq(t, `"0x1"`, string(resp.Result))

	resp = call(t, f, 1, "net_version", nil)
	require.Nil(t, resp.Error)
	require.JSONEq(t, `"1"`, string(resp.Result))

	// never a prompt, never an error for an unauthorized origin
	require.Empty(t, resultAccounts(t, call(t, f, 1, "eth_accounts", nil)))
	require.Zero(t, f.opener.openCount())
}

func TestUnsupportedMethod(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	resp := call(t, f, 1, "wallet_watchAsset", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, provider.CodeUnsupportedMethod, resp.Error.Code)
}

func TestConnectFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	accounts := resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))
	require.Equal(t, []string{testVectorAddress}, accounts)
	require.Equal(t, 1, f.opener.openCount())

	auth, err := f.repoManager.AuthorizationRepository().GetAuthorization(
		context.Background(), testOrigin,
	)
	require.NoError(t, err)
	require.NotNil(t, auth)
	require.Equal(t, testVectorAddress, auth.Address)

	// a second request from an authorized origin resolves with no prompt
	accounts = resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))
	require.Equal(t, []string{testVectorAddress}, accounts)
	require.Equal(t, 1, f.opener.openCount())
}

func TestConnectRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	resp := call(t, f, 1, "eth_requestAccounts", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, provider.CodeUserRejected, resp.Error.Code)

	// no authorization must survive a rejection
	require.Empty(t, resultAccounts(t, call(t, f, 1, "eth_accounts", nil)))
}

func TestConnectSingleFlight(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	var wg sync.WaitGroup
	results := make([][]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := call(t, f, 1, "eth_requestAccounts", nil)
			if resp.Error == nil {
				var accounts []string
				//nolint:errcheck
				json.Unmarshal(resp.Result, &accounts)
				results[i] = accounts
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, f.opener.openCount())
	for i := 0; i < 2; i++ {
		require.Equal(t, []string{testVectorAddress}, results[i])
	}
}

func TestConnectDuplicateJoinsOpenWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.opener.delay = 300 * time.Millisecond

	first := make(chan []string, 1)
	go func() {
		first <- resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))
	}()
	require.Eventually(t, func() bool { return f.opener.openCount() == 1 },
		time.Second, 10*time.Millisecond)

	// a page re-requesting accounts while the window is up shares the
	// first caller's eventual result, it does not fail
	accounts := resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))
	require.Equal(t, []string{testVectorAddress}, accounts)
	require.Equal(t, []string{testVectorAddress}, <-first)

	require.Equal(t, 1, f.opener.openCount())
	require.GreaterOrEqual(t, f.opener.focusCount(), 1)
}

func TestAccountsAcrossLockCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	ctx := context.Background()

	resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))
	require.Equal(
		t, []string{testVectorAddress},
		resultAccounts(t, call(t, f, 1, "eth_accounts", nil)),
	)

	f.walletSvc.Lock(ctx)
	require.Empty(t, resultAccounts(t, call(t, f, 1, "eth_accounts", nil)))

	require.NoError(t, f.walletSvc.Unlock(ctx, f.account.ID, testPassword))
	require.Equal(
		t, []string{testVectorAddress},
		resultAccounts(t, call(t, f, 1, "eth_accounts", nil)),
	)
}

func TestRevokePermissions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	ctx := context.Background()

	resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))

	channel := &fakeChannel{}
	f.connections.Register(ctx, 1, testOrigin, channel)

	resp := call(t, f, 1, "wallet_revokePermissions", nil)
	require.Nil(t, resp.Error)

	require.Empty(t, resultAccounts(t, call(t, f, 1, "eth_accounts", nil)))

	var sawEmptyAccounts bool
	for _, ev := range channel.received() {
		if ev.Event == provider.EventAccountsChanged {
			sawEmptyAccounts = true
			require.Empty(t, ev.Data)
		}
	}
	require.True(t, sawEmptyAccounts)

	// signing without an authorization is refused outright
	resp = call(t, f, 1, "personal_sign",
		[]string{"0x68656c6c6f", testVectorAddress})
	require.NotNil(t, resp.Error)
	require.Equal(t, provider.CodeUnauthorized, resp.Error.Code)
}

func TestBackgroundTabCannotPromptUnlock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.walletSvc.Lock(context.Background())

	resp := call(t, f, 7, "eth_requestAccounts", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, provider.CodeUserRejected, resp.Error.Code)
	require.Zero(t, f.opener.openCount())
}

func TestPersonalSign(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))

	message := []byte("hello")
	resp := call(t, f, 1, "personal_sign",
		[]string{hexutil.Encode(message), testVectorAddress})
	require.Nil(t, resp.Error)

	var sigHex string
	require.NoError(t, json.Unmarshal(resp.Result, &sigHex))
	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	// recover the signer to prove the signature binds to the account
	prefixed := fmt.Sprintf(
		"\x19Ethereum Signed Message:\n%d%s", len(message), message,
	)
	hash := crypto.Keccak256([]byte(prefixed))
	sig[64] -= 27
	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	require.Equal(t, testVectorAddress, crypto.PubkeyToAddress(*pub).Hex())
}

func TestPersonalSignAddressMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))

	resp := call(t, f, 1, "personal_sign", []string{
		"0x68656c6c6f", "0x000000000000000000000000000000000000dead",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, provider.CodeUnauthorized, resp.Error.Code)
}

func TestSendTransaction(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	ctx := context.Background()
	resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))

	resp := call(t, f, 1, "eth_sendTransaction", []map[string]string{{
		"from":  testVectorAddress,
		"to":    "0x000000000000000000000000000000000000dead",
		"value": "0xde0b6b3a7640000",
	}})
	require.Nil(t, resp.Error)

	var hash string
	require.NoError(t, json.Unmarshal(resp.Result, &hash))
	require.Equal(
		t,
		"0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
		hash,
	)
	require.Contains(t, f.forwarder.calls, "eth_sendRawTransaction")

	history, err := f.repoManager.TransactionRepository().
		GetTransactionsByAddress(ctx, testVectorAddress)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, hash, history[0].Hash)
	require.Equal(t, domain.TxStatusPending, history[0].Status)
	require.Equal(t, "0x1", history[0].ChainID)
}

func TestSendTransactionRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	ctx := context.Background()

	// authorize out of band so only the transaction prompt is exercised
	require.NoError(t, f.repoManager.AuthorizationRepository().SaveAuthorization(
		ctx, domain.NewOriginAuthorization(testOrigin, f.account.Address),
	))

	resp := call(t, f, 1, "eth_sendTransaction", []map[string]string{{
		"from": testVectorAddress,
		"to":   "0x000000000000000000000000000000000000dead",
	}})
	require.NotNil(t, resp.Error)
	require.Equal(t, provider.CodeUserRejected, resp.Error.Code)

	// nothing must have been forwarded or recorded
	require.NotContains(t, f.forwarder.calls, "eth_sendRawTransaction")
	history, err := f.repoManager.TransactionRepository().
		GetTransactionsByAddress(ctx, testVectorAddress)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSwitchChain(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	ctx := context.Background()
	resultAccounts(t, call(t, f, 1, "eth_requestAccounts", nil))

	channel := &fakeChannel{}
	f.connections.Register(ctx, 1, testOrigin, channel)

	resp := call(t, f, 1, "wallet_switchEthereumChain",
		[]map[string]string{{"chainId": "0x89"}})
	require.NotNil(t, resp.Error)
	require.Equal(t, provider.CodeUnrecognizedChain, resp.Error.Code)
	require.Equal(t, "0x1", f.chainState.ChainID())

	polygon, err := domain.NewNetwork("0x89", "Polygon", "https://polygon.example")
	require.NoError(t, err)
	require.NoError(t, f.repoManager.NetworkRepository().SaveNetwork(ctx, polygon))

	resp = call(t, f, 1, "wallet_switchEthereumChain",
		[]map[string]string{{"chainId": "0x89"}})
	require.Nil(t, resp.Error)
	require.Equal(t, "0x89", f.chainState.ChainID())

	var sawChainChanged bool
	for _, ev := range channel.received() {
		if ev.Event == provider.EventChainChanged {
			sawChainChanged = true
			require.Equal(t, "0x89", ev.Data)
		}
	}
	require.True(t, sawChainChanged)

	resp = call(t, f, 1, "eth_chainId", nil)
	require.JSONEq(t, `"0x89"`, string(resp.Result))
}

func TestPassthrough(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	resp := call(t, f, 1, "eth_blockNumber", nil)
	require.Nil(t, resp.Error)
	require.JSONEq(t, `"0x10"`, string(resp.Result))

	// raw signing escape hatches never pass through
	resp = call(t, f, 1, "eth_sign", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, provider.CodeUnsupportedMethod, resp.Error.Code)
}
