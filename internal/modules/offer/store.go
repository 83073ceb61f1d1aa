// README: Offer store backed by Redis (provider-namespaced keys + per-request index).
package offer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

const (
	offerKeyPrefix   = "offers:%s:%s"
	requestKeyPrefix = "offers:request:%s"
	// Offers resolve well within an hour; the TTL just stops abandoned bids
	// from accumulating.
	keyTTL = time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) Put(ctx context.Context, o Offer) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, offerKey(o.ProviderID, o.RequestID), data, keyTTL)
	idx := requestIndexKey(o.RequestID)
	pipe.SAdd(ctx, idx, string(o.ProviderID))
	pipe.Expire(ctx, idx, keyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) Get(ctx context.Context, providerID, requestID types.ID) (*Offer, error) {
	val, err := s.redis.Get(ctx, offerKey(providerID, requestID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var o Offer
	if err := json.Unmarshal([]byte(val), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// SetStatus rewrites the stored offer with the new status, keeping the TTL.
func (s *Store) SetStatus(ctx context.Context, providerID, requestID types.ID, status Status) error {
	o, err := s.Get(ctx, providerID, requestID)
	if err != nil {
		return err
	}
	if o == nil {
		return nil
	}
	o.Status = status
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, offerKey(providerID, requestID), data, keyTTL).Err()
}

// ListByRequest returns every live offer recorded against a request.
func (s *Store) ListByRequest(ctx context.Context, requestID types.ID) ([]Offer, error) {
	providers, err := s.redis.SMembers(ctx, requestIndexKey(requestID)).Result()
	if err != nil {
		return nil, err
	}
	var out []Offer
	for _, p := range providers {
		o, err := s.Get(ctx, types.ID(p), requestID)
		if err != nil {
			return nil, err
		}
		if o != nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

func offerKey(providerID, requestID types.ID) string {
	return fmt.Sprintf(offerKeyPrefix, string(providerID), string(requestID))
}

func requestIndexKey(requestID types.ID) string {
	return fmt.Sprintf(requestKeyPrefix, string(requestID))
}
