// README: Location service; high-frequency publishes, staleness-aware reads.
package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

var ErrBadUpdate = errors.New("bad location update")

// Repository is the persistence surface; the Redis/Postgres Store implements it.
type Repository interface {
	SetSample(ctx context.Context, sample Sample) error
	GetSample(ctx context.Context, providerID types.ID) (*Sample, error)
	RemoveProvider(ctx context.Context, providerID types.ID) error
	NearbyProviders(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
	AppendSnapshot(ctx context.Context, snap Snapshot) error
}

// Mirror pushes samples into the realtime store for subscribed requesters.
type Mirror interface {
	PublishLocation(ctx context.Context, sample Sample) error
}

// NearbyProvider is a provider position with computed distance from the
// queried origin.
type NearbyProvider struct {
	ProviderID types.ID
	Position   types.Point
	Distance   float64 // km
}

type Service struct {
	repo       Repository
	mirror     Mirror
	log        logging.Logger
	staleAfter time.Duration

	// every snapshotEvery-th publish per provider is flushed to Postgres
	mu     sync.Mutex
	counts map[types.ID]int
}

const snapshotEvery = 12

func NewService(repo Repository, mirror Mirror, log logging.Logger, staleAfter time.Duration) *Service {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Service{
		repo:       repo,
		mirror:     mirror,
		log:        log,
		staleAfter: staleAfter,
		counts:     make(map[types.ID]int),
	}
}

type Update struct {
	ProviderID types.ID
	Position   types.Point
	Heading    *float64
}

// Publish overwrites the provider's live sample and mirrors it to the
// realtime store. Durable snapshots are sampled, not written per publish.
func (s *Service) Publish(ctx context.Context, u Update) error {
	if u.ProviderID == "" {
		return ErrBadUpdate
	}
	if u.Position.Lat < -90 || u.Position.Lat > 90 || u.Position.Lng < -180 || u.Position.Lng > 180 {
		return ErrBadUpdate
	}
	sample := Sample{
		ProviderID: u.ProviderID,
		Position:   u.Position,
		Heading:    u.Heading,
		RecordedAt: time.Now().UTC(),
	}
	if err := s.repo.SetSample(ctx, sample); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.PublishLocation(ctx, sample); err != nil {
			s.log.Warnw("realtime location mirror failed", "provider_id", u.ProviderID, "error", err)
		}
	}
	if s.shouldSnapshot(u.ProviderID) {
		snap := Snapshot{
			ProviderID: sample.ProviderID,
			Position:   sample.Position,
			Heading:    sample.Heading,
			RecordedAt: sample.RecordedAt,
		}
		if err := s.repo.AppendSnapshot(ctx, snap); err != nil {
			s.log.Warnw("snapshot append failed", "provider_id", u.ProviderID, "error", err)
		}
	}
	return nil
}

// Latest returns the provider's sample only while it is inside the staleness
// window; an old position is withheld rather than shown as live.
func (s *Service) Latest(ctx context.Context, providerID types.ID) (*Sample, error) {
	sample, err := s.repo.GetSample(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if sample == nil || sample.StaleAt(time.Now().UTC(), s.staleAfter) {
		return nil, nil
	}
	return sample, nil
}

// Deactivate removes the provider from the live index, e.g. when a request
// concludes or the provider goes offline.
func (s *Service) Deactivate(ctx context.Context, providerID types.ID) error {
	return s.repo.RemoveProvider(ctx, providerID)
}

// Nearby lists live providers within radiusKm of the origin, closest first.
// Stale entries still present in the GEO index are filtered out.
func (s *Service) Nearby(ctx context.Context, origin types.Point, radiusKm float64) ([]NearbyProvider, error) {
	ids, err := s.repo.NearbyProviders(ctx, origin, radiusKm)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var out []NearbyProvider
	for _, id := range ids {
		sample, err := s.repo.GetSample(ctx, id)
		if err != nil {
			return nil, err
		}
		if sample == nil || sample.StaleAt(now, s.staleAfter) {
			continue
		}
		out = append(out, NearbyProvider{
			ProviderID: id,
			Position:   sample.Position,
			Distance:   haversineKm(origin.Lat, origin.Lng, sample.Position.Lat, sample.Position.Lng),
		})
	}
	sortByDistance(out, func(p NearbyProvider) float64 { return p.Distance })
	return out, nil
}

func (s *Service) shouldSnapshot(id types.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[id]++
	return s.counts[id]%snapshotEvery == 1
}
