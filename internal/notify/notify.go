// README: Fans new requests out to nearby providers over FCM.
package notify

import (
	"context"

	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/location"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/provider"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

// Sender delivers one push message; the Firebase messaging client
// implements it in production.
type Sender interface {
	NotifyProviderNewRequest(ctx context.Context, deviceToken string, info location.RequestInfo) error
}

// ProviderDirectory resolves provider profiles for device tokens.
type ProviderDirectory interface {
	Get(ctx context.Context, id types.ID) (*provider.Provider, error)
}

// NearbyFinder lists providers with a live position around a point.
type NearbyFinder interface {
	Nearby(ctx context.Context, origin types.Point, radiusKm float64) ([]location.NearbyProvider, error)
}

// Service implements the request module's Notifier contract. Delivery is
// best effort: a failed push never fails the create.
type Service struct {
	location  NearbyFinder
	providers ProviderDirectory
	sender    Sender
	radiusKm  float64
	log       logging.Logger
}

func NewService(loc NearbyFinder, providers ProviderDirectory, sender Sender, radiusKm float64, log logging.Logger) *Service {
	return &Service{
		location:  loc,
		providers: providers,
		sender:    sender,
		radiusKm:  radiusKm,
		log:       log,
	}
}

// RequestCreated pushes the new request to every provider with a live
// location inside the radius and a registered device token.
func (s *Service) RequestCreated(ctx context.Context, r *request.ServiceRequest) {
	nearby, err := s.location.Nearby(ctx, r.Origin, s.radiusKm)
	if err != nil {
		s.log.Warnw("nearby lookup failed", "request_id", r.ID, "err", err)
		return
	}
	info := location.RequestInfo{
		RequestID:   r.ID,
		Category:    r.Category,
		Description: r.Description,
		Origin:      r.Origin,
		Price:       r.Price,
	}
	notified := 0
	for _, candidate := range nearby {
		p, err := s.providers.Get(ctx, candidate.ProviderID)
		if err != nil || p.DeviceToken == "" {
			continue
		}
		if err := s.sender.NotifyProviderNewRequest(ctx, p.DeviceToken, info); err != nil {
			s.log.Warnw("push delivery failed", "provider_id", p.ID, "err", err)
			continue
		}
		notified++
	}
	s.log.Infow("request fan-out", "request_id", r.ID, "candidates", len(nearby), "notified", notified)
}
