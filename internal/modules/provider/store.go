// README: Provider store backed by PostgreSQL.
package provider

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

var ErrNotFound = errors.New("provider not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Provider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, category, phone, rating, rating_count, device_token, created_at
		FROM providers WHERE id = $1`, string(id),
	)
	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Phone, &p.Rating, &p.RatingCount, &p.DeviceToken, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetDeviceToken(ctx context.Context, id types.ID, token string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE providers SET device_token = $1 WHERE id = $2`, token, string(id))
	return err
}

// ApplyRating folds a new rating into the running average.
func (s *Store) ApplyRating(ctx context.Context, id types.ID, rating int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE providers
		SET rating = (rating * rating_count + $1) / (rating_count + 1),
			rating_count = rating_count + 1
		WHERE id = $2`, rating, string(id))
	return err
}
