package router

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/dappward/walletd/internal/core/application/approval"
	"github.com/dappward/walletd/internal/core/application/conn"
	"github.com/dappward/walletd/internal/core/application/keyring"
	"github.com/dappward/walletd/internal/core/application/vault"
	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/pkg/provider"
)

// Router is the single entry point for DApp-originated RPC calls. Every
// request passes the same gates in the same order: rate limit, method
// classification, unlock gate, authorization gate, then either local
// handling, a user-consent flow, or passthrough to the network endpoint.
type Router struct {
	repoManager ports.RepoManager
	session     *keyring.Session
	registry    *approval.Registry
	approver    *approval.Controller
	connections *conn.Registry
	forwarder   ports.RPCForwarder
	tabs        ports.TabGateway
	chainState  *domain.ChainState
	limiter     ratelimit.Limiter
}

type RouterOpts struct {
	RepoManager ports.RepoManager
	Session     *keyring.Session
	Registry    *approval.Registry
	Approver    *approval.Controller
	Connections *conn.Registry
	Forwarder   ports.RPCForwarder
	Tabs        ports.TabGateway
	ChainState  *domain.ChainState
	// RequestsPerSecond bounds the per-process inbound request rate.
	RequestsPerSecond int
}

func (o RouterOpts) validate() error {
	if o.RepoManager == nil {
		return fmt.Errorf("missing repo manager")
	}
	if o.Session == nil {
		return fmt.Errorf("missing keyring session")
	}
	if o.Registry == nil {
		return fmt.Errorf("missing pending request registry")
	}
	if o.Approver == nil {
		return fmt.Errorf("missing approval controller")
	}
	if o.Forwarder == nil {
		return fmt.Errorf("missing rpc forwarder")
	}
	if o.Tabs == nil {
		return fmt.Errorf("missing tab gateway")
	}
	if o.ChainState == nil {
		return fmt.Errorf("missing chain state")
	}
	return nil
}

func NewRouter(opts RouterOpts) (*Router, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 100
	}

	return &Router{
		repoManager: opts.RepoManager,
		session:     opts.Session,
		registry:    opts.Registry,
		approver:    opts.Approver,
		connections: opts.Connections,
		forwarder:   opts.Forwarder,
		tabs:        opts.Tabs,
		chainState:  opts.ChainState,
		limiter:     ratelimit.New(rps),
	}, nil
}

// Handle dispatches one request from the given origin and tab and always
// returns a well-formed response carrying either a result or an RPC error.
func (r *Router) Handle(
	ctx context.Context, origin string, tabID int, request provider.Request,
) provider.Response {
	r.limiter.Take()

	result, err := r.dispatch(ctx, origin, tabID, request.Payload)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"origin": origin,
			"method": request.Payload.Method,
		}).Debug("request failed")
		return provider.Response{
			RequestID: request.Metadata.ID,
			Error:     ToRPCError(err),
		}
	}

	raw, mErr := json.Marshal(result)
	if mErr != nil {
		return provider.Response{
			RequestID: request.Metadata.ID,
			Error: provider.NewRPCError(
				provider.CodeInternalError, "could not encode result",
			),
		}
	}
	return provider.Response{RequestID: request.Metadata.ID, Result: raw}
}

func (r *Router) dispatch(
	ctx context.Context, origin string, tabID int,
	payload provider.RequestPayload,
) (interface{}, error) {
	switch payload.Method {
	case "eth_chainId":
		return r.chainState.ChainID(), nil
	case "net_version":
		return netVersion(r.chainState.ChainID())
	case "eth_accounts":
		return r.accounts(ctx, origin)
	case "wallet_getPermissions":
		return r.getPermissions(ctx, origin)
	case "wallet_revokePermissions":
		return r.revokePermissions(ctx, origin)
	case "eth_requestAccounts", "wallet_requestPermissions":
		return r.requestAccounts(ctx, origin, tabID, payload.Method)
	case "eth_sendTransaction":
		return r.sendTransaction(ctx, origin, tabID, payload.Params)
	case "personal_sign":
		return r.personalSign(ctx, origin, tabID, payload.Params)
	case "eth_signTypedData_v4":
		return r.signTypedData(ctx, origin, tabID, payload.Params)
	case "wallet_switchEthereumChain":
		return r.switchChain(ctx, origin, payload.Params)
	}

	if isPassthroughMethod(payload.Method) {
		return r.forward(ctx, payload.Method, payload.Params)
	}
	return nil, provider.NewRPCError(
		provider.CodeUnsupportedMethod,
		fmt.Sprintf("method %s is not supported", payload.Method),
	)
}

// isPassthroughMethod reports whether the method is a read-only node query
// the wallet forwards verbatim. Anything signing-adjacent never matches.
func isPassthroughMethod(method string) bool {
	switch method {
	case "eth_sign", "eth_signTransaction", "eth_sendRawTransaction":
		return false
	}
	return strings.HasPrefix(method, "eth_") ||
		strings.HasPrefix(method, "net_") ||
		strings.HasPrefix(method, "web3_")
}

// accounts implements eth_accounts: the authorized address when the origin
// holds an authorization and the keyring is unlocked, the empty list
// otherwise. Never an error, never a prompt.
func (r *Router) accounts(
	ctx context.Context, origin string,
) ([]string, error) {
	auth, err := r.repoManager.AuthorizationRepository().GetAuthorization(
		ctx, origin,
	)
	if err != nil {
		return nil, err
	}
	if auth == nil || !r.session.IsUnlocked() {
		return []string{}, nil
	}
	r.session.ResetAutolock()
	return []string{auth.Address}, nil
}

type permission struct {
	ParentCapability string   `json:"parentCapability"`
	Caveats          []caveat `json:"caveats"`
}

type caveat struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

func (r *Router) getPermissions(
	ctx context.Context, origin string,
) ([]permission, error) {
	auth, err := r.repoManager.AuthorizationRepository().GetAuthorization(
		ctx, origin,
	)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return []permission{}, nil
	}
	return []permission{{
		ParentCapability: "eth_accounts",
		Caveats: []caveat{{
			Type: "restrictReturnedAccounts", Value: []string{auth.Address},
		}},
	}}, nil
}

// revokePermissions deletes the origin's stored authorization and tells its
// connected pages their accounts are gone. Revoking an origin that was never
// authorized is a no-op.
func (r *Router) revokePermissions(
	ctx context.Context, origin string,
) (interface{}, error) {
	if err := r.repoManager.AuthorizationRepository().DeleteAuthorization(
		ctx, origin,
	); err != nil {
		return nil, err
	}
	if r.connections != nil {
		r.connections.BroadcastToOrigin(
			origin, provider.EventAccountsChanged, []string{},
		)
	}
	log.WithField("origin", origin).Info("revoked origin authorization")
	return nil, nil
}

// requestAccounts implements the connect flow. An already-authorized origin
// only passes the unlock gate; a new one additionally needs explicit user
// consent through the approval window. Identical concurrent requests share
// one window and one result.
func (r *Router) requestAccounts(
	ctx context.Context, origin string, tabID int, method string,
) (interface{}, error) {
	auth, err := r.repoManager.AuthorizationRepository().GetAuthorization(
		ctx, origin,
	)
	if err != nil {
		return nil, err
	}
	if auth != nil {
		if err := r.ensureUnlocked(ctx, tabID); err != nil {
			return nil, err
		}
		r.session.ResetAutolock()
		if method == "wallet_requestPermissions" {
			return r.getPermissions(ctx, origin)
		}
		return []string{auth.Address}, nil
	}

	// Pages commonly re-request accounts while the approval window is
	// already open. Connect duplicates join the in-flight flow and share
	// its eventual result; the window is only brought to the front.
	if pending := r.registry.Find(
		domain.RequestTypeConnect, origin, tabID,
	); pending != nil {
		r.approver.FocusExisting(pending)
	}

	res, err := r.registry.DoConnect(origin, tabID, func() (interface{}, error) {
		return r.runConnectFlow(ctx, origin, tabID)
	})
	if err != nil {
		return nil, err
	}
	if method == "wallet_requestPermissions" {
		return r.getPermissions(ctx, origin)
	}
	return res, nil
}

func (r *Router) runConnectFlow(
	ctx context.Context, origin string, tabID int,
) (interface{}, error) {
	// The unlock gate always comes first: an origin must not learn whether
	// it is authorized while the wallet is locked.
	if err := r.ensureUnlocked(ctx, tabID); err != nil {
		return nil, err
	}

	account, err := r.activeAccount(ctx)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]string{"address": account.Address})
	request := domain.NewPendingRequest(
		domain.RequestTypeConnect, origin, tabID, payload,
	)
	r.registry.Add(request)

	if _, err := r.approver.PromptForApproval(ctx, request); err != nil {
		return nil, err
	}

	if err := r.repoManager.AuthorizationRepository().SaveAuthorization(
		ctx, domain.NewOriginAuthorization(origin, account.Address),
	); err != nil {
		return nil, err
	}
	r.session.ResetAutolock()

	if r.connections != nil {
		r.connections.BroadcastToOrigin(
			origin, provider.EventConnect, map[string]interface{}{
				"chainId":  r.chainState.ChainID(),
				"accounts": []string{account.Address},
			},
		)
	}
	log.WithFields(log.Fields{
		"origin": origin, "address": account.Address,
	}).Info("origin authorized")

	return []string{account.Address}, nil
}

// sendTransaction runs the transaction consent flow: prompt, fill missing
// gas fields from the node, sign locally, forward the raw transaction, and
// record the pending entry in the history.
func (r *Router) sendTransaction(
	ctx context.Context, origin string, tabID int, params json.RawMessage,
) (interface{}, error) {
	var args []txArgs
	if err := json.Unmarshal(params, &args); err != nil || len(args) < 1 {
		return nil, domain.ErrInvalidParams
	}
	tx := args[0]

	handle, auth, err := r.gateSigning(
		ctx, origin, tabID, domain.RequestTypeTransaction, params,
	)
	if err != nil {
		return nil, err
	}

	if tx.From != nil &&
		!strings.EqualFold(tx.From.Hex(), handle.Address().Hex()) {
		return nil, domain.ErrUnauthorized
	}

	signed, err := r.buildAndSign(ctx, handle, tx)
	if err != nil {
		return nil, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	rawParams, _ := json.Marshal([]string{hexutil.Encode(raw)})
	result, err := r.forward(ctx, "eth_sendRawTransaction", rawParams)
	if err != nil {
		return nil, err
	}

	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		hash = signed.Hash().Hex()
	}

	to := ""
	if signed.To() != nil {
		to = signed.To().Hex()
	}
	record := domain.NewTransactionRecord(
		hash, auth.Address, to, signed.Value().String(), r.chainState.ChainID(),
	)
	if err := r.repoManager.TransactionRepository().AddTransaction(
		ctx, record,
	); err != nil {
		log.WithError(err).Warn("could not record sent transaction")
	}

	log.WithFields(log.Fields{
		"origin": origin, "hash": hash,
	}).Info("transaction sent")
	return hash, nil
}

// personalSign implements personal_sign over params [data, address].
func (r *Router) personalSign(
	ctx context.Context, origin string, tabID int, params json.RawMessage,
) (interface{}, error) {
	var raw []string
	if err := json.Unmarshal(params, &raw); err != nil || len(raw) < 2 {
		return nil, domain.ErrInvalidParams
	}
	message, err := hexutil.Decode(raw[0])
	if err != nil {
		message = []byte(raw[0])
	}

	handle, _, err := r.gateSigning(
		ctx, origin, tabID, domain.RequestTypeSign, params,
	)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(raw[1], handle.Address().Hex()) {
		return nil, domain.ErrUnauthorized
	}

	sig, err := handle.SignPersonalMessage(message)
	if err != nil {
		return nil, err
	}
	return hexutil.Encode(sig), nil
}

// signTypedData implements eth_signTypedData_v4 over params
// [address, typedData]. The typed data arrives either as a JSON object or
// as its string encoding.
func (r *Router) signTypedData(
	ctx context.Context, origin string, tabID int, params json.RawMessage,
) (interface{}, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil || len(raw) < 2 {
		return nil, domain.ErrInvalidParams
	}
	var address string
	if err := json.Unmarshal(raw[0], &address); err != nil {
		return nil, domain.ErrInvalidParams
	}

	typedDataJSON := raw[1]
	var asString string
	if err := json.Unmarshal(raw[1], &asString); err == nil {
		typedDataJSON = json.RawMessage(asString)
	}
	var typedData apitypes.TypedData
	if err := json.Unmarshal(typedDataJSON, &typedData); err != nil {
		return nil, domain.ErrInvalidParams
	}

	handle, _, err := r.gateSigning(
		ctx, origin, tabID, domain.RequestTypeSignTypedData, params,
	)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(address, handle.Address().Hex()) {
		return nil, domain.ErrUnauthorized
	}

	sig, err := handle.SignTypedData(typedData)
	if err != nil {
		return nil, err
	}
	return hexutil.Encode(sig), nil
}

// switchChain implements wallet_switchEthereumChain for authorized origins.
// Unknown chains are refused and the switch is broadcast only after the
// chain state committed, so pages never observe the event before the
// wallet answers eth_chainId with the new value.
func (r *Router) switchChain(
	ctx context.Context, origin string, params json.RawMessage,
) (interface{}, error) {
	var args []struct {
		ChainID string `json:"chainId"`
	}
	if err := json.Unmarshal(params, &args); err != nil || len(args) < 1 {
		return nil, domain.ErrInvalidParams
	}
	chainID, err := domain.NormalizeChainID(args[0].ChainID)
	if err != nil {
		return nil, err
	}

	if _, err := r.ensureAuthorized(ctx, origin); err != nil {
		return nil, err
	}

	if r.chainState.ChainID() == chainID {
		return nil, nil
	}

	network, err := r.repoManager.NetworkRepository().GetNetwork(ctx, chainID)
	if err != nil {
		return nil, err
	}

	r.chainState.Switch(network)
	if r.connections != nil {
		r.connections.Broadcast(provider.EventChainChanged, chainID)
	}
	log.WithField("chainId", chainID).Info("switched network")
	return nil, nil
}

// gateSigning runs the shared preamble of every signing flow: unlock gate,
// authorization gate, duplicate-request check, then the approval window.
// It returns the handle that will sign together with the authorization.
func (r *Router) gateSigning(
	ctx context.Context, origin string, tabID int,
	requestType domain.RequestType, payload json.RawMessage,
) (*vault.SigningHandle, *domain.OriginAuthorization, error) {
	if err := r.ensureUnlocked(ctx, tabID); err != nil {
		return nil, nil, err
	}
	auth, err := r.ensureAuthorized(ctx, origin)
	if err != nil {
		return nil, nil, err
	}

	if pending := r.registry.Find(requestType, origin, tabID); pending != nil {
		r.approver.FocusExisting(pending)
		return nil, nil, domain.ErrAlreadyPending
	}

	account, err := r.repoManager.AccountRepository().GetAccountByAddress(
		ctx, auth.Address,
	)
	if err != nil {
		return nil, nil, err
	}
	handle, err := r.session.Handle(account.ID)
	if err != nil {
		return nil, nil, err
	}

	request := domain.NewPendingRequest(requestType, origin, tabID, payload)
	r.registry.Add(request)
	if _, err := r.approver.PromptForApproval(ctx, request); err != nil {
		return nil, nil, err
	}
	return handle, auth, nil
}

// ensureUnlocked passes when the keyring is unlocked. Otherwise it refuses
// on behalf of background tabs and shows the unlock surface to foreground
// ones, blocking until the unlock resolves one way or the other.
func (r *Router) ensureUnlocked(ctx context.Context, tabID int) error {
	if r.session.IsUnlocked() {
		return nil
	}

	active, err := r.tabs.IsActive(ctx, tabID)
	if err != nil {
		return err
	}
	if !active {
		// a page the user is not looking at must not pop a password prompt
		return domain.ErrUserRejected
	}
	return r.approver.RequestUnlock(ctx)
}

func (r *Router) ensureAuthorized(
	ctx context.Context, origin string,
) (*domain.OriginAuthorization, error) {
	auth, err := r.repoManager.AuthorizationRepository().GetAuthorization(
		ctx, origin,
	)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, domain.ErrUnauthorized
	}
	return auth, nil
}

// activeAccount resolves the account new authorizations bind to: the user's
// default when set, the first known account otherwise.
func (r *Router) activeAccount(ctx context.Context) (*domain.Account, error) {
	settings, err := r.repoManager.SettingsRepository().GetSettings(ctx)
	if err == nil && settings.DefaultAccountID != "" {
		if account, err := r.repoManager.AccountRepository().GetAccount(
			ctx, settings.DefaultAccountID,
		); err == nil {
			return account, nil
		}
	}
	accounts, err := r.repoManager.AccountRepository().GetAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return &accounts[0], nil
}

func (r *Router) forward(
	ctx context.Context, method string, params json.RawMessage,
) (json.RawMessage, error) {
	return r.forwarder.Call(ctx, method, params)
}

func netVersion(chainID string) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(chainID, "0x"), 16)
	if !ok {
		return "", domain.ErrInvalidChainID
	}
	return n.String(), nil
}

type txArgs struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                *hexutil.Uint64 `json:"nonce"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
}

func (a txArgs) data() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

// buildAndSign completes the transaction with node-provided defaults for
// nonce, gas limit and fee fields, then signs it for the current chain.
func (r *Router) buildAndSign(
	ctx context.Context, handle *vault.SigningHandle, args txArgs,
) (*types.Transaction, error) {
	chainID, ok := new(big.Int).SetString(
		strings.TrimPrefix(r.chainState.ChainID(), "0x"), 16,
	)
	if !ok {
		return nil, domain.ErrInvalidChainID
	}

	nonce, err := r.resolveNonce(ctx, handle.Address(), args.Nonce)
	if err != nil {
		return nil, err
	}
	gas, err := r.resolveGas(ctx, args)
	if err != nil {
		return nil, err
	}

	value := new(big.Int)
	if args.Value != nil {
		value = (*big.Int)(args.Value)
	}

	var tx *types.Transaction
	if args.MaxFeePerGas != nil {
		tip := new(big.Int)
		if args.MaxPriorityFeePerGas != nil {
			tip = (*big.Int)(args.MaxPriorityFeePerGas)
		}
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: (*big.Int)(args.MaxFeePerGas),
			Gas:       gas,
			To:        args.To,
			Value:     value,
			Data:      args.data(),
		})
	} else {
		gasPrice, err := r.resolveGasPrice(ctx, args.GasPrice)
		if err != nil {
			return nil, err
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       args.To,
			Value:    value,
			Data:     args.data(),
		})
	}

	return handle.SignTransaction(tx, chainID)
}

func (r *Router) resolveNonce(
	ctx context.Context, from common.Address, nonce *hexutil.Uint64,
) (uint64, error) {
	if nonce != nil {
		return uint64(*nonce), nil
	}
	params, _ := json.Marshal([]string{from.Hex(), "pending"})
	result, err := r.forward(ctx, "eth_getTransactionCount", params)
	if err != nil {
		return 0, err
	}
	return parseHexUint64(result)
}

func (r *Router) resolveGas(
	ctx context.Context, args txArgs,
) (uint64, error) {
	if args.Gas != nil {
		return uint64(*args.Gas), nil
	}
	params, _ := json.Marshal([]interface{}{args})
	result, err := r.forward(ctx, "eth_estimateGas", params)
	if err != nil {
		return 0, err
	}
	return parseHexUint64(result)
}

func (r *Router) resolveGasPrice(
	ctx context.Context, gasPrice *hexutil.Big,
) (*big.Int, error) {
	if gasPrice != nil {
		return (*big.Int)(gasPrice), nil
	}
	result, err := r.forward(ctx, "eth_gasPrice", nil)
	if err != nil {
		return nil, err
	}
	var hex string
	if err := json.Unmarshal(result, &hex); err != nil {
		return nil, domain.ErrInvalidParams
	}
	return hexutil.DecodeBig(hex)
}

func parseHexUint64(result json.RawMessage) (uint64, error) {
	var hex string
	if err := json.Unmarshal(result, &hex); err != nil {
		return 0, domain.ErrInvalidParams
	}
	return hexutil.DecodeUint64(hex)
}
