// README: Request service implements lifecycle transitions and persistence.
package request

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

var (
	ErrInvalidState  = errors.New("invalid state transition")
	ErrNotFound      = errors.New("request not found")
	ErrConflict      = errors.New("request state conflict")
	ErrActiveRequest = errors.New("requester has active request")
	ErrAlreadyRated  = errors.New("request already rated")
	ErrBadRequest    = errors.New("bad request")
)

// Repository is the persistence surface for service requests. The Postgres
// Store implements it; tests substitute an in-memory fake.
type Repository interface {
	Create(ctx context.Context, r *ServiceRequest) error
	Get(ctx context.Context, id types.ID) (*ServiceRequest, error)
	ListByStatus(ctx context.Context, status Status) ([]*ServiceRequest, error)
	ListSearchingOlderThan(ctx context.Context, cutoff time.Time) ([]*ServiceRequest, error)
	HasActiveByRequester(ctx context.Context, requesterID types.ID) (bool, error)
	// UpdateStatus performs the conditional write every transition rides on:
	// it succeeds only when (id, from, version) still match the stored row.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, providerID *types.ID) (bool, error)
	SetPendingOffer(ctx context.Context, id types.ID, version int, providerID types.ID, price types.Money) (bool, error)
	ClearPendingOffer(ctx context.Context, id types.ID, version int) (bool, error)
	BindAcceptedOffer(ctx context.Context, id types.ID, version int) (bool, error)
	SetRating(ctx context.Context, id types.ID, rating int, comment *string) (bool, error)
	SetCancelReason(ctx context.Context, id types.ID, reason string) error
	AppendEvent(ctx context.Context, e *Event) error
}

// Mirror pushes the latest record into the realtime store so subscribed
// clients see the change without polling. Failures are logged, never fatal:
// the REST path stays the source of truth.
type Mirror interface {
	PublishRequest(ctx context.Context, r *ServiceRequest) error
}

// Notifier fans a freshly created request out to candidate providers.
type Notifier interface {
	RequestCreated(ctx context.Context, r *ServiceRequest)
}

type Service struct {
	repo          Repository
	mirror        Mirror
	notifier      Notifier
	log           logging.Logger
	searchTimeout time.Duration
	sweepInterval time.Duration
}

type Options struct {
	Mirror        Mirror
	Notifier      Notifier
	SearchTimeout time.Duration
	SweepInterval time.Duration
}

func NewService(repo Repository, log logging.Logger, opts Options) *Service {
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 120 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 10 * time.Second
	}
	return &Service{
		repo:          repo,
		mirror:        opts.Mirror,
		notifier:      opts.Notifier,
		log:           log,
		searchTimeout: opts.SearchTimeout,
		sweepInterval: opts.SweepInterval,
	}
}

type CreateCommand struct {
	RequesterID types.ID
	Category    string
	Description string
	Origin      types.Point
	Price       types.Money
}

type OfferCommand struct {
	RequestID  types.ID
	ProviderID types.ID
	Price      types.Money
}

type AcceptOfferCommand struct {
	RequestID types.ID
}

type DeclineOfferCommand struct {
	RequestID types.ID
}

type AcceptCommand struct {
	RequestID  types.ID
	ProviderID types.ID
}

type RejectCommand struct {
	RequestID  types.ID
	ProviderID types.ID
	Reason     string
}

type ArriveCommand struct {
	RequestID types.ID
}

type StartCommand struct {
	RequestID types.ID
}

type FinishCommand struct {
	RequestID types.ID
}

type RateCommand struct {
	RequestID types.ID
	Rating    int
	Comment   *string
}

type CancelCommand struct {
	RequestID types.ID
	ActorType string
	Reason    string
}

// Create persists a new request in "searching". The id is server-assigned;
// clients correlate the response by their own token, not by guessing ids.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*ServiceRequest, error) {
	if cmd.RequesterID == "" || cmd.Category == "" {
		return nil, ErrBadRequest
	}
	active, err := s.repo.HasActiveByRequester(ctx, cmd.RequesterID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveRequest
	}

	now := time.Now().UTC()
	price := cmd.Price
	if price.Currency == "" {
		price.Currency = types.DefaultCurrency
	}
	r := &ServiceRequest{
		ID:          types.ID(uuid.NewString()),
		RequesterID: cmd.RequesterID,
		Category:    cmd.Category,
		Description: cmd.Description,
		Origin:      cmd.Origin,
		Price:       price,
		Status:      StatusSearching,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, r.ID, StatusNone, StatusSearching, "requester", &cmd.RequesterID)
	s.publish(ctx, r.ID)
	if s.notifier != nil {
		s.notifier.RequestCreated(ctx, r)
	}
	return r, nil
}

// Offer records a provider's bid: searching → offered with the bid parked in
// the pending-offer fields. The bid binds nothing until the requester accepts.
func (s *Service) Offer(ctx context.Context, cmd OfferCommand) error {
	if cmd.ProviderID == "" {
		return ErrBadRequest
	}
	r, err := s.repo.Get(ctx, cmd.RequestID)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, StatusOffered) {
		return ErrInvalidState
	}
	price := cmd.Price
	if price.Currency == "" {
		price.Currency = r.Price.Currency
	}
	ok, err := s.repo.SetPendingOffer(ctx, r.ID, r.StatusVersion, cmd.ProviderID, price)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordEvent(ctx, r.ID, r.Status, StatusOffered, "provider", &cmd.ProviderID)
	s.publish(ctx, r.ID)
	return nil
}

// AcceptOffer is the requester accepting the pending bid: offered → accepted,
// provider id bound, price fixed for the rest of the request's life.
func (s *Service) AcceptOffer(ctx context.Context, cmd AcceptOfferCommand) error {
	r, err := s.repo.Get(ctx, cmd.RequestID)
	if err != nil {
		return err
	}
	if r.Status != StatusOffered || r.OfferProviderID == nil {
		return ErrInvalidState
	}
	ok, err := s.repo.BindAcceptedOffer(ctx, r.ID, r.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordEvent(ctx, r.ID, StatusOffered, StatusAccepted, "requester", &r.RequesterID)
	s.publish(ctx, r.ID)
	return nil
}

// DeclineOffer clears the pending bid and returns the request to searching.
func (s *Service) DeclineOffer(ctx context.Context, cmd DeclineOfferCommand) error {
	r, err := s.repo.Get(ctx, cmd.RequestID)
	if err != nil {
		return err
	}
	if r.Status != StatusOffered {
		return ErrInvalidState
	}
	ok, err := s.repo.ClearPendingOffer(ctx, r.ID, r.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordEvent(ctx, r.ID, StatusOffered, StatusSearching, "requester", &r.RequesterID)
	s.publish(ctx, r.ID)
	return nil
}

// Accept is the provider taking the request directly at its posted price.
// The conditional write makes this the single-winner path: when two providers
// race, exactly one UpdateStatus matches and the loser gets ErrConflict.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	if cmd.ProviderID == "" {
		return ErrBadRequest
	}
	r, err := s.repo.Get(ctx, cmd.RequestID)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, StatusAccepted) {
		return ErrInvalidState
	}
	ok, err := s.repo.UpdateStatus(ctx, r.ID, r.Status, StatusAccepted, r.StatusVersion, &cmd.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordEvent(ctx, r.ID, r.Status, StatusAccepted, "provider", &cmd.ProviderID)
	s.publish(ctx, r.ID)
	return nil
}

// Reject records that a provider passed on the request. The request itself
// stays searching for everyone else.
func (s *Service) Reject(ctx context.Context, cmd RejectCommand) error {
	if cmd.ProviderID == "" {
		return ErrBadRequest
	}
	r, err := s.repo.Get(ctx, cmd.RequestID)
	if err != nil {
		return err
	}
	if IsTerminal(r.Status) {
		return ErrInvalidState
	}
	s.recordEvent(ctx, r.ID, r.Status, r.Status, "provider", &cmd.ProviderID)
	return nil
}

func (s *Service) Arrive(ctx context.Context, cmd ArriveCommand) error {
	return s.advance(ctx, cmd.RequestID, StatusArrived, "provider")
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) error {
	return s.advance(ctx, cmd.RequestID, StatusInProgress, "provider")
}

func (s *Service) Finish(ctx context.Context, cmd FinishCommand) error {
	return s.advance(ctx, cmd.RequestID, StatusCompleted, "provider")
}

// Rate attaches rating metadata to a completed request. It is the only write
// permitted after a terminal state and it never changes the status.
func (s *Service) Rate(ctx context.Context, cmd RateCommand) error {
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return ErrBadRequest
	}
	r, err := s.repo.Get(ctx, cmd.RequestID)
	if err != nil {
		return err
	}
	if r.Status != StatusCompleted {
		return ErrInvalidState
	}
	if r.Rating != nil {
		return ErrAlreadyRated
	}
	ok, err := s.repo.SetRating(ctx, r.ID, cmd.Rating, cmd.Comment)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRated
	}
	s.recordEvent(ctx, r.ID, StatusCompleted, StatusCompleted, "requester", &r.RequesterID)
	s.publish(ctx, r.ID)
	return nil
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	r, err := s.repo.Get(ctx, cmd.RequestID)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return ErrInvalidState
	}
	ok, err := s.repo.UpdateStatus(ctx, r.ID, r.Status, StatusCancelled, r.StatusVersion, r.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if cmd.Reason != "" {
		_ = s.repo.SetCancelReason(ctx, r.ID, cmd.Reason)
	}
	actorID := r.ProviderID
	if cmd.ActorType == "requester" {
		actorID = &r.RequesterID
	}
	s.recordEvent(ctx, r.ID, r.Status, StatusCancelled, cmd.ActorType, actorID)
	s.publish(ctx, r.ID)
	return nil
}

// Timeout moves an unanswered request to the timeout terminal state.
func (s *Service) Timeout(ctx context.Context, id types.ID) error {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, StatusTimeout) {
		return ErrInvalidState
	}
	ok, err := s.repo.UpdateStatus(ctx, r.ID, r.Status, StatusTimeout, r.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordEvent(ctx, r.ID, r.Status, StatusTimeout, "system", nil)
	s.publish(ctx, r.ID)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*ServiceRequest, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByStatus(ctx context.Context, status Status) ([]*ServiceRequest, error) {
	return s.repo.ListByStatus(ctx, status)
}

// RunTimeoutSweeper expires requests stuck in searching past the configured
// window. A request answered between the list and the transition loses the
// race and is skipped via the usual conflict path.
func (s *Service) RunTimeoutSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.searchTimeout)
			stale, err := s.repo.ListSearchingOlderThan(ctx, cutoff)
			if err != nil {
				s.log.Errorw("timeout sweep failed", "error", err)
				continue
			}
			for _, r := range stale {
				if err := s.Timeout(ctx, r.ID); err != nil && !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidState) {
					s.log.Errorw("timeout transition failed", "request_id", r.ID, "error", err)
				}
			}
		}
	}
}

func (s *Service) advance(ctx context.Context, id types.ID, to Status, actorType string) error {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.repo.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion, r.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordEvent(ctx, r.ID, r.Status, to, actorType, r.ProviderID)
	s.publish(ctx, r.ID)
	return nil
}

func (s *Service) recordEvent(ctx context.Context, id types.ID, from, to Status, actorType string, actorID *types.ID) {
	err := s.repo.AppendEvent(ctx, &Event{
		RequestID:  id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.log.Errorw("append event failed", "request_id", id, "to", to, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, id types.ID) {
	if s.mirror == nil {
		return
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		s.log.Errorw("mirror read-back failed", "request_id", id, "error", err)
		return
	}
	if err := s.mirror.PublishRequest(ctx, r); err != nil {
		s.log.Errorw("mirror publish failed", "request_id", id, "error", err)
	}
}
