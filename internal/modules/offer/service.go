// README: Offer service records bids and settles them when the request moves on.
package offer

import (
	"context"
	"errors"
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

var ErrBadRequest = errors.New("bad offer")

// Repository is the persistence surface; the Redis Store implements it.
type Repository interface {
	Put(ctx context.Context, o Offer) error
	Get(ctx context.Context, providerID, requestID types.ID) (*Offer, error)
	SetStatus(ctx context.Context, providerID, requestID types.ID, status Status) error
	ListByRequest(ctx context.Context, requestID types.ID) ([]Offer, error)
}

type Service struct {
	repo Repository
	log  logging.Logger
}

func NewService(repo Repository, log logging.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Place(ctx context.Context, providerID, requestID types.ID, price types.Money) error {
	if providerID == "" || requestID == "" {
		return ErrBadRequest
	}
	return s.repo.Put(ctx, Offer{
		ProviderID: providerID,
		RequestID:  requestID,
		Price:      price,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	})
}

// Settle marks the winner accepted and every other live bid rejected.
// losers' records are left to age out if the rewrite fails; the request
// record stays authoritative either way.
func (s *Service) Settle(ctx context.Context, requestID types.ID, winner types.ID) {
	offers, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		s.log.Warnw("listing offers for settlement failed", "request_id", requestID, "error", err)
		return
	}
	for _, o := range offers {
		status := StatusRejected
		if o.ProviderID == winner {
			status = StatusAccepted
		}
		if err := s.repo.SetStatus(ctx, o.ProviderID, requestID, status); err != nil {
			s.log.Warnw("offer settlement write failed", "provider_id", o.ProviderID, "request_id", requestID, "error", err)
		}
	}
}

func (s *Service) Reject(ctx context.Context, providerID, requestID types.ID) error {
	return s.repo.SetStatus(ctx, providerID, requestID, StatusRejected)
}

func (s *Service) ListByRequest(ctx context.Context, requestID types.ID) ([]Offer, error) {
	return s.repo.ListByRequest(ctx, requestID)
}
