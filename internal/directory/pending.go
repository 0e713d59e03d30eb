package directory

import (
	"sync"

	"github.com/google/uuid"
)

// RequestType names the kind of pending request, used for dedup and for
// list-pending-requests(iter, type) (spec §4.J).
type RequestType string

const (
	RequestExplore  RequestType = "explore"
	RequestSubscribe RequestType = "subscribe"
	RequestAddNode  RequestType = "add-node"
	RequestRemove   RequestType = "remove-node"
	RequestSetACL   RequestType = "set-acl"
)

// PendingRequest is a first-class handle on an in-flight directory
// operation (spec §4.J: "Pending requests are first-class objects so that
// callers can watch their completion and the directory can deduplicate
// concurrent issues of the same operation"). Done is closed exactly once,
// after which Result and Err are safe to read without the registry lock.
type PendingRequest struct {
	ID     string // opaque correlation handle, echoed back to clients watching this request
	Type   RequestType
	Node   NodeID
	Done   chan struct{}
	Result interface{}
	Err    error
}

func newPending(typ RequestType, node NodeID) *PendingRequest {
	return &PendingRequest{ID: uuid.NewString(), Type: typ, Node: node, Done: make(chan struct{})}
}

func (p *PendingRequest) finish(result interface{}, err error) {
	p.Result, p.Err = result, err
	close(p.Done)
}

// PendingRegistry tracks in-flight requests keyed by (type, node) so a
// second caller asking for the same operation is handed the existing
// handle instead of issuing a duplicate.
type PendingRegistry struct {
	mu       sync.Mutex
	inFlight map[RequestType]map[NodeID]*PendingRequest
}

func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{inFlight: make(map[RequestType]map[NodeID]*PendingRequest)}
}

// Start returns an existing pending request for (typ, node) if one is
// still in flight, or registers and returns a fresh one. existed reports
// which happened.
func (r *PendingRegistry) Start(typ RequestType, node NodeID) (p *PendingRequest, existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byNode, ok := r.inFlight[typ]
	if !ok {
		byNode = make(map[NodeID]*PendingRequest)
		r.inFlight[typ] = byNode
	}
	if existing, ok := byNode[node]; ok {
		return existing, true
	}
	p = newPending(typ, node)
	byNode[node] = p
	return p, false
}

// Finish completes p and removes it from the registry.
func (r *PendingRegistry) Finish(p *PendingRequest, result interface{}, err error) {
	r.mu.Lock()
	if byNode, ok := r.inFlight[p.Type]; ok {
		delete(byNode, p.Node)
	}
	r.mu.Unlock()
	p.finish(result, err)
}

// Cancel completes p with a caller-supplied cancellation error (spec §5,
// Cancellation: best-effort; here the request is always still trackable
// since we never remove a request from the registry until it finishes).
func (r *PendingRegistry) Cancel(p *PendingRequest, err error) {
	r.Finish(p, nil, err)
}

// List returns the pending request of typ for node itself, if any, for
// list-pending-requests(iter, type) (spec §4.J). Requests on descendant
// nodes are not included.
func (r *PendingRegistry) List(typ RequestType, node NodeID) []*PendingRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	byNode := r.inFlight[typ]
	if byNode == nil {
		return nil
	}
	if p, ok := byNode[node]; ok {
		return []*PendingRequest{p}
	}
	return nil
}
