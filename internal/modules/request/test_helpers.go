// README: In-memory Repository fake shared by request service tests.
package request

import (
	"context"
	"sync"
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

// memRepository implements Repository with the same conditional-write
// semantics as the Postgres store, guarded by a mutex so race tests exercise
// the single-winner property for real.
type memRepository struct {
	mu       sync.Mutex
	requests map[types.ID]*ServiceRequest
	events   []*Event
}

func newMemRepository() *memRepository {
	return &memRepository{requests: make(map[types.ID]*ServiceRequest)}
}

// NewMemRepository exposes the fake for tests in other packages.
func NewMemRepository() Repository {
	return newMemRepository()
}

func (m *memRepository) Create(_ context.Context, r *ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *memRepository) Get(_ context.Context, id types.ID) (*ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepository) ListByStatus(_ context.Context, status Status) ([]*ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ServiceRequest
	for _, r := range m.requests {
		if r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepository) ListSearchingOlderThan(_ context.Context, cutoff time.Time) ([]*ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ServiceRequest
	for _, r := range m.requests {
		if r.Status == StatusSearching && r.CreatedAt.Before(cutoff) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepository) HasActiveByRequester(_ context.Context, requesterID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.RequesterID == requesterID && !IsTerminal(r.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepository) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, providerID *types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	now := time.Now().UTC()
	r.Status = to
	r.StatusVersion++
	r.UpdatedAt = now
	if providerID != nil {
		p := *providerID
		if r.ProviderID == nil {
			r.ProviderID = &p
		}
	}
	switch to {
	case StatusAccepted:
		r.AcceptedAt = &now
	case StatusArrived:
		r.ArrivedAt = &now
	case StatusInProgress:
		r.StartedAt = &now
	case StatusCompleted:
		r.CompletedAt = &now
	case StatusCancelled, StatusTimeout:
		r.CancelledAt = &now
	}
	return true, nil
}

func (m *memRepository) SetPendingOffer(_ context.Context, id types.ID, version int, providerID types.ID, price types.Money) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != StatusSearching || r.StatusVersion != version {
		return false, nil
	}
	r.Status = StatusOffered
	r.StatusVersion++
	r.UpdatedAt = time.Now().UTC()
	p := providerID
	r.OfferProviderID = &p
	pr := price
	r.OfferPrice = &pr
	return true, nil
}

func (m *memRepository) ClearPendingOffer(_ context.Context, id types.ID, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != StatusOffered || r.StatusVersion != version {
		return false, nil
	}
	r.Status = StatusSearching
	r.StatusVersion++
	r.UpdatedAt = time.Now().UTC()
	r.OfferProviderID = nil
	r.OfferPrice = nil
	return true, nil
}

func (m *memRepository) BindAcceptedOffer(_ context.Context, id types.ID, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != StatusOffered || r.StatusVersion != version || r.OfferProviderID == nil {
		return false, nil
	}
	now := time.Now().UTC()
	r.Status = StatusAccepted
	r.StatusVersion++
	r.UpdatedAt = now
	r.AcceptedAt = &now
	r.ProviderID = r.OfferProviderID
	r.Price = *r.OfferPrice
	r.OfferProviderID = nil
	r.OfferPrice = nil
	return true, nil
}

func (m *memRepository) SetRating(_ context.Context, id types.ID, rating int, comment *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != StatusCompleted || r.Rating != nil {
		return false, nil
	}
	r.Rating = &rating
	r.RatingComment = comment
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *memRepository) SetCancelReason(_ context.Context, id types.ID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.requests[id]; ok {
		r.CancelReason = &reason
	}
	return nil
}

func (m *memRepository) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

// backdate rewinds a request's creation time so sweeper tests can age it.
func (m *memRepository) backdate(id types.ID, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.requests[id]; ok {
		r.CreatedAt = r.CreatedAt.Add(-d)
	}
}
