package ports

import (
	"context"
	"encoding/json"
)

// RPCForwarder passes a JSON-RPC call through to the configured network
// endpoint. Transport failures surface as domain.ErrNetworkFailure wrapped
// errors, protocol failures as *provider.RPCError.
type RPCForwarder interface {
	Call(
		ctx context.Context, method string, params json.RawMessage,
	) (json.RawMessage, error)
}
