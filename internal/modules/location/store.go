// README: Location store; Redis GEO index + latest-sample keys, Postgres snapshots.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

const (
	providerGeoKey  = "locations:providers"
	sampleKeyPrefix = "locations:sample:%s"
	// sample keys expire shortly after the staleness window so absent
	// providers disappear from reads entirely.
	sampleTTL = 2 * time.Minute
)

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

// SetSample overwrites the provider's latest sample and refreshes the GEO
// index in one pipeline.
func (s *Store) SetSample(ctx context.Context, sample Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, providerGeoKey, &redis.GeoLocation{
		Name:      string(sample.ProviderID),
		Longitude: sample.Position.Lng,
		Latitude:  sample.Position.Lat,
	})
	pipe.Set(ctx, sampleKey(sample.ProviderID), data, sampleTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// GetSample returns the provider's latest sample, or nil when none is live.
func (s *Store) GetSample(ctx context.Context, providerID types.ID) (*Sample, error) {
	val, err := s.redis.Get(ctx, sampleKey(providerID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sample Sample
	if err := json.Unmarshal([]byte(val), &sample); err != nil {
		return nil, err
	}
	return &sample, nil
}

func (s *Store) RemoveProvider(ctx context.Context, providerID types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.ZRem(ctx, providerGeoKey, string(providerID))
	pipe.Del(ctx, sampleKey(providerID))
	_, err := pipe.Exec(ctx)
	return err
}

// NearbyProviders returns provider ids within radiusKm, closest first.
func (s *Store) NearbyProviders(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, providerGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO location_snapshots (provider_id, lat, lng, heading, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(snap.ProviderID),
		snap.Position.Lat, snap.Position.Lng,
		snap.Heading,
		snap.RecordedAt,
	)
	return err
}

func sampleKey(providerID types.ID) string {
	return fmt.Sprintf(sampleKeyPrefix, string(providerID))
}
