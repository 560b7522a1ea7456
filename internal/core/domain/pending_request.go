package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RequestType int

const (
	// RequestTypeConnect asks the user to authorize an origin
	RequestTypeConnect RequestType = iota
	// RequestTypeTransaction asks the user to approve a transaction
	RequestTypeTransaction
	// RequestTypeSign asks the user to approve a personal message signature
	RequestTypeSign
	// RequestTypeSignTypedData asks the user to approve an EIP-712 signature
	RequestTypeSignTypedData
)

func (t RequestType) String() string {
	switch t {
	case RequestTypeConnect:
		return "connect"
	case RequestTypeTransaction:
		return "transaction"
	case RequestTypeSign:
		return "sign"
	case RequestTypeSignTypedData:
		return "signTypedData"
	default:
		return "unknown"
	}
}

// PendingRequest tracks one in-flight user-facing request. At most one
// outstanding request exists per (type, origin, tab).
type PendingRequest struct {
	ID        string
	Type      RequestType
	Origin    string
	TabID     int
	WindowID  int
	Payload   json.RawMessage
	CreatedAt time.Time
}

// NewPendingRequest returns a PendingRequest with a fresh random id.
func NewPendingRequest(
	requestType RequestType, origin string, tabID int, payload json.RawMessage,
) *PendingRequest {
	return &PendingRequest{
		ID:        uuid.NewString(),
		Type:      requestType,
		Origin:    origin,
		TabID:     tabID,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
