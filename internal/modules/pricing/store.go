// README: Rate card store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRateNotFound = errors.New("rate not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetRate(ctx context.Context, category string) (Rate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT category, base_amount, per_km, per_hour, currency
		FROM category_rates WHERE category = $1`, category,
	)
	var r Rate
	err := row.Scan(&r.Category, &r.BaseAmount, &r.PerKm, &r.PerHour, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrRateNotFound
	}
	if err != nil {
		return Rate{}, err
	}
	return r, nil
}
