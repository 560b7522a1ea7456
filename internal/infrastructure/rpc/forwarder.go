package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/pkg/circuitbreaker"
	"github.com/dappward/walletd/pkg/provider"
)

const defaultCallTimeout = 15 * time.Second

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage    `json:"result"`
	Error  *provider.RPCError `json:"error"`
}

// forwarder is a ports.RPCForwarder over plain HTTP JSON-RPC. The endpoint
// follows the current chain state, so a network switch redirects every
// subsequent call. Transport failures trip a circuit breaker and surface as
// domain.ErrNetworkFailure; JSON-RPC error objects pass through untouched.
type forwarder struct {
	chainState *domain.ChainState
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	nextID     atomic.Uint64
}

type ForwarderOpts struct {
	ChainState  *domain.ChainState
	CallTimeout time.Duration
}

func (o ForwarderOpts) validate() error {
	if o.ChainState == nil {
		return fmt.Errorf("missing chain state")
	}
	return nil
}

func NewForwarder(opts ForwarderOpts) (ports.RPCForwarder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &forwarder{
		chainState: opts.ChainState,
		client:     &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.NewCircuitBreaker("rpc-forwarder"),
	}, nil
}

func (f *forwarder) Call(
	ctx context.Context, method string, params json.RawMessage,
) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      f.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	// only transport-level failures feed the breaker, a JSON-RPC error
	// object is a healthy endpoint saying no
	res, err := f.breaker.Execute(func() (interface{}, error) {
		return f.post(ctx, body)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
	}

	rpcRes := res.(rpcResponse)
	if rpcRes.Error != nil {
		return nil, rpcRes.Error
	}
	return rpcRes.Result, nil
}

func (f *forwarder) post(
	ctx context.Context, body []byte,
) (rpcResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, f.chainState.RPCURL(), bytes.NewReader(body),
	)
	if err != nil {
		return rpcResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpRes, err := f.client.Do(req)
	if err != nil {
		return rpcResponse{}, err
	}
	defer httpRes.Body.Close()

	if httpRes.StatusCode != http.StatusOK {
		return rpcResponse{}, fmt.Errorf(
			"endpoint returned status %d", httpRes.StatusCode,
		)
	}

	buf, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return rpcResponse{}, err
	}

	var res rpcResponse
	if err := json.Unmarshal(buf, &res); err != nil {
		return rpcResponse{}, fmt.Errorf("malformed endpoint response: %v", err)
	}
	return res, nil
}
