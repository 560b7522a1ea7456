package provider

import "encoding/json"

// Request is the message shape of a DApp-originated RPC call arriving over a
// persistent transport channel.
type Request struct {
	Metadata RequestMetadata `json:"metadata"`
	Payload  RequestPayload  `json:"payload"`
}

type RequestMetadata struct {
	ID string `json:"id"`
}

type RequestPayload struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers a Request; exactly one of Result and Error is set.
type Response struct {
	RequestID string          `json:"requestId"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *RPCError       `json:"error,omitempty"`
}

// Event is an out-of-band notification pushed to a channel.
type Event struct {
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Event names pushed to connected DApps.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
)

// NewEvent returns an Event carrying the given payload.
func NewEvent(event string, data interface{}) Event {
	return Event{Type: "event", Event: event, Data: data}
}
