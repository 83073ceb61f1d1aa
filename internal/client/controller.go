// README: Matching controller owns the lifecycle state machine on the client.
//
// Two producers feed one reducer: realtime snapshots pushed through the
// gateway, and authoritative records fetched over REST (command results and
// the reconciliation poll). Whichever arrives first wins; the other is a
// no-op comparison on updated_at. All command entry points validate the
// transition locally before touching the network and are wrapped by the
// in-flight guard so a duplicate tap never issues a duplicate call.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/guard"
	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/realtime"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

// Role decides which transition commands this controller may issue.
type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
)

const (
	DefaultSearchTimeout = 120 * time.Second
	DefaultPollInterval  = 30 * time.Second
)

// RequestAPI is the slice of the REST client the controller needs.
type RequestAPI interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (*request.ServiceRequest, error)
	GetRequest(ctx context.Context, id types.ID) (*request.ServiceRequest, error)
	CancelRequest(ctx context.Context, id types.ID, reason string) (*request.ServiceRequest, error)
	UpdateStatus(ctx context.Context, id types.ID, status request.Status) (*request.ServiceRequest, error)
	AcceptRequest(ctx context.Context, id types.ID, providerID types.ID, price types.Money) (*request.ServiceRequest, error)
	PlaceOffer(ctx context.Context, id types.ID, providerID types.ID, price types.Money) (*request.ServiceRequest, error)
	AcceptOffer(ctx context.Context, id types.ID) (*request.ServiceRequest, error)
	DeclineOffer(ctx context.Context, id types.ID) (*request.ServiceRequest, error)
	DeclineRequest(ctx context.Context, id types.ID, providerID types.ID, reason string) error
	RateRequest(ctx context.Context, id types.ID, rating int, comment string) (*request.ServiceRequest, error)
	PublishLocation(ctx context.Context, providerID types.ID, p types.Point, heading *float64) error
}

// PositionSource reports the device's current coordinate for the
// provider-side location relay.
type PositionSource interface {
	Position() (types.Point, *float64, error)
}

type ControllerOptions struct {
	API     RequestAPI
	Gateway realtime.Gateway
	Guard   *guard.Guard
	Log     logging.Logger

	ActorID types.ID
	Role    Role

	// Position is required for providers, ignored for requesters.
	Position PositionSource

	SearchTimeout   time.Duration
	PollInterval    time.Duration
	PublishInterval time.Duration
}

type Controller struct {
	api      RequestAPI
	gateway  realtime.Gateway
	guard    *guard.Guard
	log      logging.Logger
	actorID  types.ID
	role     Role
	position PositionSource

	searchTimeout   time.Duration
	pollInterval    time.Duration
	publishInterval time.Duration

	mu          sync.Mutex
	current     *request.ServiceRequest
	connected   *bool
	lastSample  *realtime.LocationSample
	onChange    func(*request.ServiceRequest)
	unsubReq    realtime.UnsubscribeFunc
	unsubLoc    realtime.UnsubscribeFunc
	unsubConn   realtime.UnsubscribeFunc
	searchTimer *time.Timer
	pollStop    chan struct{}
	relayStop   chan struct{}
	closed      bool
}

func NewController(opts ControllerOptions) *Controller {
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultSearchTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = 5 * time.Second
	}
	if opts.Guard == nil {
		opts.Guard = guard.New(guard.DefaultTimeout, nil)
	}
	c := &Controller{
		api:             opts.API,
		gateway:         opts.Gateway,
		guard:           opts.Guard,
		log:             opts.Log,
		actorID:         opts.ActorID,
		role:            opts.Role,
		position:        opts.Position,
		searchTimeout:   opts.SearchTimeout,
		pollInterval:    opts.PollInterval,
		publishInterval: opts.PublishInterval,
	}
	c.unsubConn = c.gateway.ConnectionStatus(c.onConnection)
	return c
}

// OnChange registers the single observer notified after every reduced
// snapshot. Terminal snapshots are delivered before local state clears.
func (c *Controller) OnChange(fn func(*request.ServiceRequest)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Current returns a copy of the tracked request, or nil when idle.
func (c *Controller) Current() *request.ServiceRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// ProviderLocation returns the latest relayed provider sample, if any.
func (c *Controller) ProviderLocation() *realtime.LocationSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSample == nil {
		return nil
	}
	cp := *c.lastSample
	return &cp
}

// Close tears down subscriptions, timers and the relay. The controller
// must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	unsubConn := c.unsubConn
	c.unsubConn = nil
	c.teardownLocked()
	c.current = nil
	c.mu.Unlock()
	if unsubConn != nil {
		unsubConn()
	}
}

// Create issues the initial request, subscribes to it and arms the
// search timeout. Requester only.
func (c *Controller) Create(ctx context.Context, in CreateRequestInput) (*request.ServiceRequest, error) {
	if c.role != RoleRequester {
		return nil, newError(KindValidation, "only the requester may create", nil)
	}
	if cur := c.Current(); cur != nil && !request.IsTerminal(cur.Status) {
		return nil, newError(KindInvalidTransition, "another request is already active", nil)
	}
	release, err := c.acquire("create_request")
	if err != nil {
		return nil, err
	}
	defer release()

	in.RequesterID = string(c.actorID)
	r, err := c.api.CreateRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	c.track(r)
	return c.Current(), nil
}

// Attach resumes tracking an existing request, e.g. after app restart
// or when a provider accepts work found through the feed.
func (c *Controller) Attach(ctx context.Context, id types.ID) (*request.ServiceRequest, error) {
	r, err := c.api.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.IsTerminal(r.Status) {
		return r, nil
	}
	c.track(r)
	return c.Current(), nil
}

// Accept claims a searching or offered request for this provider. On
// conflict the authoritative record is re-fetched so local state
// resynchronizes before the error is surfaced.
func (c *Controller) Accept(ctx context.Context, id types.ID, price types.Money) (*request.ServiceRequest, error) {
	if c.role != RoleProvider {
		return nil, newError(KindValidation, "only a provider may accept", nil)
	}
	release, err := c.acquire(fmt.Sprintf("accept_%s", id))
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := c.api.AcceptRequest(ctx, id, c.actorID, price)
	if err != nil {
		if IsConflict(err) {
			if latest, gerr := c.api.GetRequest(ctx, id); gerr == nil {
				c.reduce(latest)
			}
		}
		return nil, err
	}
	c.track(r)
	return c.Current(), nil
}

// Offer places a bid on a searching request and starts tracking it so
// the provider hears the requester's answer.
func (c *Controller) Offer(ctx context.Context, id types.ID, price types.Money) (*request.ServiceRequest, error) {
	if c.role != RoleProvider {
		return nil, newError(KindValidation, "only a provider may offer", nil)
	}
	release, err := c.acquire(fmt.Sprintf("offer_%s", id))
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := c.api.PlaceOffer(ctx, id, c.actorID, price)
	if err != nil {
		return nil, err
	}
	c.track(r)
	return c.Current(), nil
}

// AcceptOffer confirms the pending bid on the tracked request.
func (c *Controller) AcceptOffer(ctx context.Context) (*request.ServiceRequest, error) {
	if c.role != RoleRequester {
		return nil, newError(KindValidation, "only the requester may accept an offer", nil)
	}
	cur := c.Current()
	if cur == nil {
		return nil, newError(KindInvalidTransition, "no active request", nil)
	}
	if cur.Status != request.StatusOffered {
		return nil, newError(KindInvalidTransition,
			fmt.Sprintf("no pending offer on %s (state %s)", cur.ID, cur.Status), nil)
	}
	release, err := c.acquire(fmt.Sprintf("accept_offer_%s", cur.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := c.api.AcceptOffer(ctx, cur.ID)
	if err != nil {
		return nil, err
	}
	c.reduce(r)
	return r, nil
}

// DeclineOffer clears the pending bid; the request resumes searching.
func (c *Controller) DeclineOffer(ctx context.Context) (*request.ServiceRequest, error) {
	if c.role != RoleRequester {
		return nil, newError(KindValidation, "only the requester may decline an offer", nil)
	}
	cur := c.Current()
	if cur == nil {
		return nil, newError(KindInvalidTransition, "no active request", nil)
	}
	if cur.Status != request.StatusOffered {
		return nil, newError(KindInvalidTransition,
			fmt.Sprintf("no pending offer on %s (state %s)", cur.ID, cur.Status), nil)
	}
	release, err := c.acquire(fmt.Sprintf("decline_offer_%s", cur.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := c.api.DeclineOffer(ctx, cur.ID)
	if err != nil {
		return nil, err
	}
	c.reduce(r)
	return r, nil
}

// Decline releases an offered request back to the pool for others.
func (c *Controller) Decline(ctx context.Context, id types.ID, reason string) error {
	if c.role != RoleProvider {
		return newError(KindValidation, "only a provider may decline", nil)
	}
	release, err := c.acquire(fmt.Sprintf("decline_%s", id))
	if err != nil {
		return err
	}
	defer release()
	return c.api.DeclineRequest(ctx, id, c.actorID, reason)
}

func (c *Controller) MarkArrived(ctx context.Context) (*request.ServiceRequest, error) {
	return c.advance(ctx, request.StatusArrived)
}

func (c *Controller) StartService(ctx context.Context) (*request.ServiceRequest, error) {
	return c.advance(ctx, request.StatusInProgress)
}

func (c *Controller) FinishService(ctx context.Context) (*request.ServiceRequest, error) {
	return c.advance(ctx, request.StatusCompleted)
}

func (c *Controller) advance(ctx context.Context, target request.Status) (*request.ServiceRequest, error) {
	if c.role != RoleProvider {
		return nil, newError(KindValidation, "only the provider may advance the service", nil)
	}
	cur := c.Current()
	if cur == nil {
		return nil, newError(KindInvalidTransition, "no active request", nil)
	}
	if !request.CanTransition(cur.Status, target) {
		return nil, newError(KindInvalidTransition,
			fmt.Sprintf("cannot move %s from %s to %s", cur.ID, cur.Status, target), nil)
	}
	release, err := c.acquire(fmt.Sprintf("status_%s_%s", cur.ID, target))
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := c.api.UpdateStatus(ctx, cur.ID, target)
	if err != nil {
		return nil, err
	}
	c.reduce(r)
	return r, nil
}

// Cancel is the universal escape; allowed from any non-terminal state.
func (c *Controller) Cancel(ctx context.Context, reason string) (*request.ServiceRequest, error) {
	cur := c.Current()
	if cur == nil {
		return nil, newError(KindInvalidTransition, "no active request", nil)
	}
	if !request.CanTransition(cur.Status, request.StatusCancelled) {
		return nil, newError(KindInvalidTransition,
			fmt.Sprintf("cannot cancel %s in state %s", cur.ID, cur.Status), nil)
	}
	release, err := c.acquire(fmt.Sprintf("cancel_%s", cur.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := c.api.CancelRequest(ctx, cur.ID, reason)
	if err != nil {
		return nil, err
	}
	c.reduce(r)
	return r, nil
}

// Rate attaches the completion rating. Requester only, completed only.
func (c *Controller) Rate(ctx context.Context, id types.ID, rating int, comment string) (*request.ServiceRequest, error) {
	if c.role != RoleRequester {
		return nil, newError(KindValidation, "only the requester may rate", nil)
	}
	if rating < 1 || rating > 5 {
		return nil, newError(KindValidation, "rating must be between 1 and 5", nil)
	}
	release, err := c.acquire(fmt.Sprintf("rate_%s", id))
	if err != nil {
		return nil, err
	}
	defer release()
	return c.api.RateRequest(ctx, id, rating, comment)
}

// acquire wraps the in-flight guard and returns the matching release.
func (c *Controller) acquire(op string) (func(), error) {
	if !c.guard.Start(op) {
		return nil, newError(KindOperationInFlight, op, nil)
	}
	return func() { c.guard.End(op) }, nil
}

// track adopts a request as the controller's single tracked record:
// reduce it, open the realtime subscription and arm the search timer.
// The subscription is opened outside the controller lock because the
// gateway delivers the current record synchronously into onSnapshot.
func (c *Controller) track(r *request.ServiceRequest) {
	c.reduce(r)

	c.mu.Lock()
	if c.closed || c.current == nil {
		c.mu.Unlock()
		return
	}
	id := string(c.current.ID)
	prev := c.unsubReq
	c.unsubReq = nil
	c.mu.Unlock()
	if prev != nil {
		prev()
	}

	unsub := c.gateway.SubscribeRequest(id, c.onSnapshot)

	c.mu.Lock()
	if c.closed || c.current == nil || string(c.current.ID) != id {
		c.mu.Unlock()
		unsub()
		return
	}
	c.unsubReq = unsub
	if c.current.Status == request.StatusSearching && c.searchTimer == nil {
		c.searchTimer = time.AfterFunc(c.searchTimeout, c.onSearchTimeout)
	}
	c.mu.Unlock()
}

// reduce is the single-writer merge point for both producers. Older
// snapshots (by updated_at) are dropped; terminal snapshots tear down
// and release the local reference after notifying the observer.
func (c *Controller) reduce(r *request.ServiceRequest) {
	if r == nil {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.current != nil && c.current.ID == r.ID && r.UpdatedAt.Before(c.current.UpdatedAt) {
		c.mu.Unlock()
		return
	}
	if c.current != nil && c.current.ID != r.ID && !request.IsTerminal(c.current.Status) {
		// snapshots for an unrelated request are ignored
		c.mu.Unlock()
		return
	}
	cp := *r
	c.current = &cp
	subLoc := c.syncGatesLocked()
	notify := c.onChange
	if request.IsTerminal(cp.Status) {
		c.teardownLocked()
		c.current = nil
	}
	c.mu.Unlock()

	if subLoc != "" {
		c.subscribeLocation(subLoc)
	}
	if notify != nil {
		snap := cp
		notify(&snap)
	}
}

func (c *Controller) onSnapshot(s realtime.RequestSnapshot) {
	c.reduce(requestFromSnapshot(s))
}

func (c *Controller) onSearchTimeout() {
	c.mu.Lock()
	if c.closed || c.current == nil || c.current.Status != request.StatusSearching {
		c.mu.Unlock()
		return
	}
	cp := *c.current
	c.mu.Unlock()

	if c.log != nil {
		c.log.Infow("search timed out", "request_id", cp.ID)
	}
	cp.Status = request.StatusTimeout
	cp.UpdatedAt = time.Now().UTC()
	// the server-side sweeper stamps the authoritative record; locally we
	// only converge early so the UI returns to idle without waiting
	c.reduce(&cp)
}

// onConnection reacts to transport connectivity. Disconnection starts
// the reconciliation poll; reconnection fires one immediate poll and
// stops the loop.
func (c *Controller) onConnection(connected bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	v := connected
	c.connected = &v
	if connected {
		c.stopPollLocked()
		hasRequest := c.current != nil
		c.mu.Unlock()
		if hasRequest {
			c.pollOnce()
		}
		return
	}
	c.startPollLocked()
	c.mu.Unlock()
}

func (c *Controller) startPollLocked() {
	if c.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	c.pollStop = stop
	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.pollOnce()
			}
		}
	}()
}

func (c *Controller) stopPollLocked() {
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

func (c *Controller) pollOnce() {
	c.mu.Lock()
	if c.closed || c.current == nil {
		c.mu.Unlock()
		return
	}
	id := c.current.ID
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r, err := c.api.GetRequest(ctx, id)
	if err != nil {
		if c.log != nil {
			c.log.Warnw("reconciliation poll failed", "request_id", id, "err", err)
		}
		return
	}
	c.reduce(r)
}

// syncGatesLocked starts or stops the location relay based on the
// current lifecycle state. It returns the provider id to subscribe to
// when the requester side needs a location stream; the subscription
// itself happens outside the lock.
func (c *Controller) syncGatesLocked() (subLoc string) {
	gated := c.current != nil && request.LocationGated(c.current.Status)
	if !gated {
		c.stopRelayLocked()
		if c.unsubLoc != nil {
			c.unsubLoc()
			c.unsubLoc = nil
		}
		c.lastSample = nil
		return ""
	}
	switch c.role {
	case RoleRequester:
		if c.unsubLoc == nil && c.current.ProviderID != nil {
			return string(*c.current.ProviderID)
		}
	case RoleProvider:
		c.startRelayLocked()
	}
	return ""
}

func (c *Controller) subscribeLocation(providerID string) {
	unsub := c.gateway.SubscribeLocation(providerID, c.onLocation)
	c.mu.Lock()
	if c.closed || c.unsubLoc != nil || c.current == nil || !request.LocationGated(c.current.Status) {
		c.mu.Unlock()
		unsub()
		return
	}
	c.unsubLoc = unsub
	c.mu.Unlock()
}

func (c *Controller) onLocation(s realtime.LocationSample) {
	c.mu.Lock()
	cp := s
	c.lastSample = &cp
	c.mu.Unlock()
}

func (c *Controller) startRelayLocked() {
	if c.relayStop != nil || c.position == nil {
		return
	}
	stop := make(chan struct{})
	c.relayStop = stop
	go func() {
		ticker := time.NewTicker(c.publishInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.publishPosition()
			}
		}
	}()
}

func (c *Controller) stopRelayLocked() {
	if c.relayStop != nil {
		close(c.relayStop)
		c.relayStop = nil
	}
}

func (c *Controller) publishPosition() {
	p, heading, err := c.position.Position()
	if err != nil {
		if c.log != nil {
			c.log.Debugw("position unavailable", "err", err)
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.api.PublishLocation(ctx, c.actorID, p, heading); err != nil && c.log != nil {
		c.log.Warnw("location publish failed", "provider_id", c.actorID, "err", err)
	}
}

// teardownLocked releases everything tied to the tracked request.
func (c *Controller) teardownLocked() {
	if c.unsubReq != nil {
		c.unsubReq()
		c.unsubReq = nil
	}
	if c.unsubLoc != nil {
		c.unsubLoc()
		c.unsubLoc = nil
	}
	if c.searchTimer != nil {
		c.searchTimer.Stop()
		c.searchTimer = nil
	}
	c.stopPollLocked()
	c.stopRelayLocked()
	c.lastSample = nil
}

func requestFromSnapshot(s realtime.RequestSnapshot) *request.ServiceRequest {
	r := &request.ServiceRequest{
		ID:            types.ID(s.ID),
		RequesterID:   types.ID(s.RequesterID),
		Category:      s.Category,
		Description:   s.Description,
		Origin:        types.Point{Lat: s.Lat, Lng: s.Lng},
		Price:         types.Money{Amount: s.PriceAmount, Currency: s.PriceCurrency},
		Status:        request.Status(s.Status),
		StatusVersion: s.StatusVersion,
		Rating:        s.Rating,
		CreatedAt:     time.UnixMilli(s.CreatedAt).UTC(),
		UpdatedAt:     time.UnixMilli(s.UpdatedAt).UTC(),
	}
	if s.ProviderID != "" {
		id := types.ID(s.ProviderID)
		r.ProviderID = &id
	}
	if s.OfferProviderID != "" {
		id := types.ID(s.OfferProviderID)
		r.OfferProviderID = &id
		r.OfferPrice = &types.Money{Amount: s.OfferAmount, Currency: s.PriceCurrency}
	}
	return r
}
