// README: In-memory fakes for controller tests (no network, no store).
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/realtime"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

// fakeAPI emulates the authoritative REST surface. Writes land in an
// in-memory map and, like the real server, are mirrored to the hub so
// subscribed controllers see them as realtime snapshots.
type fakeAPI struct {
	mu       sync.Mutex
	hub      *realtime.Hub
	requests map[types.ID]*request.ServiceRequest

	published []types.Point // PublishLocation calls, in order

	// when set, AcceptRequest blocks until the channel closes
	acceptGate chan struct{}
}

func newFakeAPI(hub *realtime.Hub) *fakeAPI {
	return &fakeAPI{hub: hub, requests: make(map[types.ID]*request.ServiceRequest)}
}

func (f *fakeAPI) mirror(r *request.ServiceRequest) {
	if f.hub != nil {
		cp := *r
		_ = f.hub.PublishRequest(context.Background(), &cp)
	}
}

func (f *fakeAPI) get(id types.ID) (*request.ServiceRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, newError(KindValidation, "not found", nil)
	}
	return r, nil
}

func (f *fakeAPI) CreateRequest(_ context.Context, in CreateRequestInput) (*request.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	r := &request.ServiceRequest{
		ID:          types.ID(uuid.NewString()),
		RequesterID: types.ID(in.RequesterID),
		Category:    in.Category,
		Description: in.Description,
		Origin:      in.Origin,
		Price:       in.Price,
		Status:      request.StatusSearching,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.requests[r.ID] = r
	f.mirror(r)
	cp := *r
	return &cp, nil
}

func (f *fakeAPI) GetRequest(_ context.Context, id types.ID) (*request.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.get(id)
	if err != nil {
		return nil, err
	}
	cp := *r
	return &cp, nil
}

func (f *fakeAPI) CancelRequest(_ context.Context, id types.ID, reason string) (*request.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if !request.CanTransition(r.Status, request.StatusCancelled) {
		return nil, newError(KindConflict, "already terminal", nil)
	}
	r.Status = request.StatusCancelled
	r.CancelReason = &reason
	r.StatusVersion++
	r.UpdatedAt = time.Now().UTC()
	f.mirror(r)
	cp := *r
	return &cp, nil
}

func (f *fakeAPI) UpdateStatus(_ context.Context, id types.ID, status request.Status) (*request.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if !request.CanTransition(r.Status, status) {
		return nil, newError(KindConflict, fmt.Sprintf("cannot move %s to %s", r.Status, status), nil)
	}
	r.Status = status
	r.StatusVersion++
	r.UpdatedAt = time.Now().UTC()
	f.mirror(r)
	cp := *r
	return &cp, nil
}

func (f *fakeAPI) AcceptRequest(_ context.Context, id types.ID, providerID types.ID, price types.Money) (*request.ServiceRequest, error) {
	f.mu.Lock()
	gate := f.acceptGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if !request.CanTransition(r.Status, request.StatusAccepted) || r.ProviderID != nil {
		return nil, newError(KindConflict, "request no longer available", nil)
	}
	r.Status = request.StatusAccepted
	r.ProviderID = &providerID
	r.Price = price
	r.StatusVersion++
	r.UpdatedAt = time.Now().UTC()
	f.mirror(r)
	cp := *r
	return &cp, nil
}

func (f *fakeAPI) PlaceOffer(_ context.Context, id types.ID, providerID types.ID, price types.Money) (*request.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if !request.CanTransition(r.Status, request.StatusOffered) {
		return nil, newError(KindConflict, "request not open for offers", nil)
	}
	r.Status = request.StatusOffered
	r.OfferProviderID = &providerID
	r.OfferPrice = &price
	r.StatusVersion++
	r.UpdatedAt = time.Now().UTC()
	f.mirror(r)
	cp := *r
	return &cp, nil
}

func (f *fakeAPI) AcceptOffer(_ context.Context, id types.ID) (*request.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if r.Status != request.StatusOffered || r.OfferProviderID == nil {
		return nil, newError(KindConflict, "no pending offer", nil)
	}
	r.Status = request.StatusAccepted
	r.ProviderID = r.OfferProviderID
	r.Price = *r.OfferPrice
	r.OfferProviderID = nil
	r.OfferPrice = nil
	r.StatusVersion++
	r.UpdatedAt = time.Now().UTC()
	f.mirror(r)
	cp := *r
	return &cp, nil
}

func (f *fakeAPI) DeclineOffer(_ context.Context, id types.ID) (*request.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if r.Status != request.StatusOffered {
		return nil, newError(KindConflict, "no pending offer", nil)
	}
	r.Status = request.StatusSearching
	r.OfferProviderID = nil
	r.OfferPrice = nil
	r.StatusVersion++
	r.UpdatedAt = time.Now().UTC()
	f.mirror(r)
	cp := *r
	return &cp, nil
}

func (f *fakeAPI) DeclineRequest(_ context.Context, id types.ID, providerID types.ID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.get(id)
	return err
}

func (f *fakeAPI) RateRequest(_ context.Context, id types.ID, rating int, comment string) (*request.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if r.Status != request.StatusCompleted {
		return nil, newError(KindConflict, "not completed", nil)
	}
	if r.Rating != nil {
		return nil, newError(KindConflict, "already rated", nil)
	}
	r.Rating = &rating
	r.RatingComment = &comment
	r.UpdatedAt = time.Now().UTC()
	cp := *r
	return &cp, nil
}

func (f *fakeAPI) PublishLocation(_ context.Context, providerID types.ID, p types.Point, heading *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, p)
	if f.hub != nil {
		f.hub.PublishLocationSample(realtime.LocationSample{
			ProviderID: string(providerID),
			Lat:        p.Lat,
			Lng:        p.Lng,
			Heading:    heading,
			Timestamp:  time.Now().UnixMilli(),
		})
	}
	return nil
}

func (f *fakeAPI) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// mutate edits a stored record directly without mirroring to the hub,
// simulating a write the realtime feed never delivered.
func (f *fakeAPI) mutate(id types.ID, fn func(*request.ServiceRequest)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.requests[id]; ok {
		fn(r)
		r.UpdatedAt = time.Now().UTC()
	}
}

// fixedPosition is a PositionSource that always reports one coordinate.
type fixedPosition struct {
	p types.Point
}

func (s fixedPosition) Position() (types.Point, *float64, error) {
	return s.p, nil, nil
}
