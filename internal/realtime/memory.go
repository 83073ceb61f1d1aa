// README: In-process Gateway used by tests and single-node local runs.
package realtime

import (
	"context"
	"sync"

	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
)

// Hub is a Gateway backed by process memory. Publishing a record notifies
// every live subscriber synchronously, which makes thin two-client scenarios
// deterministic in tests.
type Hub struct {
	mu        sync.Mutex
	requests  map[string]RequestSnapshot
	locations map[string]LocationSample
	rooms     map[string]map[string]bool

	reqSubs  map[string]map[int]func(RequestSnapshot)
	locSubs  map[string]map[int]func(LocationSample)
	connSubs map[int]func(bool)

	nextSub   int
	connected bool
	connKnown bool
}

func NewHub() *Hub {
	return &Hub{
		requests:  make(map[string]RequestSnapshot),
		locations: make(map[string]LocationSample),
		rooms:     make(map[string]map[string]bool),
		reqSubs:   make(map[string]map[int]func(RequestSnapshot)),
		locSubs:   make(map[string]map[int]func(LocationSample)),
		connSubs:  make(map[int]func(bool)),
	}
}

func (h *Hub) ConnectionStatus(fn func(bool)) UnsubscribeFunc {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.connSubs[id] = fn
	known, state := h.connKnown, h.connected
	h.mu.Unlock()

	// indeterminate until the transport reported once
	if known {
		fn(state)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.connSubs, id)
			h.mu.Unlock()
		})
	}
}

// SetConnected simulates the transport connectivity signal.
func (h *Hub) SetConnected(connected bool) {
	h.mu.Lock()
	h.connected = connected
	h.connKnown = true
	fns := make([]func(bool), 0, len(h.connSubs))
	for _, fn := range h.connSubs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(connected)
	}
}

func (h *Hub) SubscribeRequest(id string, fn func(RequestSnapshot)) UnsubscribeFunc {
	h.mu.Lock()
	if h.reqSubs[id] == nil {
		h.reqSubs[id] = make(map[int]func(RequestSnapshot))
	}
	subID := h.nextSub
	h.nextSub++
	h.reqSubs[id][subID] = fn
	snap, ok := h.requests[id]
	h.mu.Unlock()

	if ok {
		fn(snap)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.reqSubs[id], subID)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) SubscribeLocation(providerID string, fn func(LocationSample)) UnsubscribeFunc {
	h.mu.Lock()
	if h.locSubs[providerID] == nil {
		h.locSubs[providerID] = make(map[int]func(LocationSample))
	}
	subID := h.nextSub
	h.nextSub++
	h.locSubs[providerID][subID] = fn
	sample, ok := h.locations[providerID]
	h.mu.Unlock()

	if ok {
		fn(sample)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.locSubs[providerID], subID)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) PatchRequest(_ context.Context, id string, fields map[string]any) error {
	h.mu.Lock()
	snap := h.requests[id]
	snap.ID = id
	applyPatch(&snap, fields)
	h.requests[id] = snap
	fns := h.requestSubscribers(id)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
	return nil
}

func (h *Hub) Presence(_ context.Context, roomID, userID string, join bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	if join {
		h.rooms[roomID][userID] = true
	} else {
		delete(h.rooms[roomID], userID)
	}
	return nil
}

// Members lists current room membership.
func (h *Hub) Members(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for u := range h.rooms[roomID] {
		out = append(out, u)
	}
	return out
}

// PublishRequest pushes a full authoritative record; implements the request
// module's Mirror contract.
func (h *Hub) PublishRequest(_ context.Context, r *request.ServiceRequest) error {
	snap := SnapshotFromRequest(r)
	h.mu.Lock()
	h.requests[snap.ID] = snap
	fns := h.requestSubscribers(snap.ID)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
	return nil
}

// PublishLocationSample pushes a provider position to subscribers.
func (h *Hub) PublishLocationSample(sample LocationSample) {
	h.mu.Lock()
	h.locations[sample.ProviderID] = sample
	fns := make([]func(LocationSample), 0)
	for _, fn := range h.locSubs[sample.ProviderID] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(sample)
	}
}

func (h *Hub) requestSubscribers(id string) []func(RequestSnapshot) {
	fns := make([]func(RequestSnapshot), 0, len(h.reqSubs[id]))
	for _, fn := range h.reqSubs[id] {
		fns = append(fns, fn)
	}
	return fns
}

func applyPatch(snap *RequestSnapshot, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "status":
			if s, ok := v.(string); ok {
				snap.Status = s
			}
		case "provider_id":
			if s, ok := v.(string); ok {
				snap.ProviderID = s
			}
		case "updated_at":
			switch t := v.(type) {
			case int64:
				snap.UpdatedAt = t
			case int:
				snap.UpdatedAt = int64(t)
			case float64:
				snap.UpdatedAt = int64(t)
			}
		case "status_version":
			switch n := v.(type) {
			case int:
				snap.StatusVersion = n
			case float64:
				snap.StatusVersion = int(n)
			}
		}
	}
}
