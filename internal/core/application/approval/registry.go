package approval

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dappward/walletd/internal/core/domain"
)

// Registry tracks in-flight user-facing requests keyed by request id. It is
// consulted before any new consent-requiring request is created: a matching
// pending request for the same (type, origin, tab) means the caller must not
// open a second prompt.
type Registry struct {
	lock     *sync.RWMutex
	requests map[string]*domain.PendingRequest

	// connect requests arriving while an identical one is in flight share
	// the same underlying result instead of opening a second window, since
	// DApps commonly fire them redundantly on page load.
	connectFlights singleflight.Group
}

// NewRegistry returns an empty pending-request registry.
func NewRegistry() *Registry {
	return &Registry{
		lock:     &sync.RWMutex{},
		requests: make(map[string]*domain.PendingRequest),
	}
}

// Add tracks the given request.
func (r *Registry) Add(request *domain.PendingRequest) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.requests[request.ID] = request
}

// Remove drops the request with the given id, no-op if absent.
func (r *Registry) Remove(requestID string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.requests, requestID)
}

// Get returns the request with the given id, or nil.
func (r *Registry) Get(requestID string) *domain.PendingRequest {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.requests[requestID]
}

// Find returns the pending request matching (type, origin, tab), or nil.
func (r *Registry) Find(
	requestType domain.RequestType, origin string, tabID int,
) *domain.PendingRequest {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, req := range r.requests {
		if req.Type == requestType && req.Origin == origin && req.TabID == tabID {
			return req
		}
	}
	return nil
}

// Len returns the number of tracked requests.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.requests)
}

// DoConnect runs fn under single-flight semantics for the given origin and
// tab: concurrent callers for the same key all observe the result of the one
// execution in flight.
func (r *Registry) DoConnect(
	origin string, tabID int, fn func() (interface{}, error),
) (interface{}, error) {
	key := fmt.Sprintf("%s|%d", origin, tabID)
	res, err, _ := r.connectFlights.Do(key, fn)
	return res, err
}
