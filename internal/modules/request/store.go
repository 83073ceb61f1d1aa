// README: Request store backed by PostgreSQL with optimistic status locking.
package request

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const requestColumns = `
	id, requester_id, category, description, lat, lng,
	price_amount, price_currency, status, status_version,
	provider_id, provider_lat, provider_lng,
	offer_provider_id, offer_price_amount, offer_price_currency,
	rating, rating_comment, cancel_reason,
	created_at, updated_at, accepted_at, arrived_at, started_at, completed_at, cancelled_at`

func (s *Store) Create(ctx context.Context, r *ServiceRequest) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO service_requests (
			id, requester_id, category, description, lat, lng,
			price_amount, price_currency, status, status_version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(r.ID),
		string(r.RequesterID),
		r.Category,
		r.Description,
		r.Origin.Lat, r.Origin.Lng,
		r.Price.Amount, r.Price.Currency,
		string(r.Status),
		r.StatusVersion,
		r.CreatedAt,
		r.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*ServiceRequest, error) {
	row := s.db.QueryRow(ctx, `SELECT`+requestColumns+` FROM service_requests WHERE id = $1`, string(id))
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*ServiceRequest, error) {
	rows, err := s.db.Query(ctx, `SELECT`+requestColumns+`
		FROM service_requests WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListSearchingOlderThan(ctx context.Context, cutoff time.Time) ([]*ServiceRequest, error) {
	rows, err := s.db.Query(ctx, `SELECT`+requestColumns+`
		FROM service_requests WHERE status = 'searching' AND created_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) HasActiveByRequester(ctx context.Context, requesterID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM service_requests
			WHERE requester_id = $1
			  AND status IN ('searching','offered','accepted','arrived','in_progress')
		)`, string(requesterID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateStatus is the conditional write behind every lifecycle transition.
// The WHERE clause pins (status, status_version), so of N racing writers at
// most one row matches; the rest see RowsAffected 0 and report a conflict.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, providerID *types.ID) (bool, error) {
	var p *string
	if providerID != nil {
		v := string(*providerID)
		p = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE service_requests
		SET status = $1,
			status_version = status_version + 1,
			updated_at = NOW(),
			provider_id = COALESCE($2, provider_id),
			accepted_at = CASE WHEN $1 = 'accepted' THEN NOW() ELSE accepted_at END,
			arrived_at = CASE WHEN $1 = 'arrived' THEN NOW() ELSE arrived_at END,
			started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
			cancelled_at = CASE WHEN $1 IN ('cancelled','timeout') THEN NOW() ELSE cancelled_at END
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), p, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetPendingOffer(ctx context.Context, id types.ID, version int, providerID types.ID, price types.Money) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE service_requests
		SET status = 'offered',
			status_version = status_version + 1,
			updated_at = NOW(),
			offer_provider_id = $1,
			offer_price_amount = $2,
			offer_price_currency = $3
		WHERE id = $4 AND status = 'searching' AND status_version = $5`,
		string(providerID), price.Amount, price.Currency, string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ClearPendingOffer(ctx context.Context, id types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE service_requests
		SET status = 'searching',
			status_version = status_version + 1,
			updated_at = NOW(),
			offer_provider_id = NULL,
			offer_price_amount = NULL,
			offer_price_currency = NULL
		WHERE id = $1 AND status = 'offered' AND status_version = $2`,
		string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// BindAcceptedOffer promotes the parked bid in one statement: provider bound,
// price overwritten by the bid, pending fields cleared.
func (s *Store) BindAcceptedOffer(ctx context.Context, id types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE service_requests
		SET status = 'accepted',
			status_version = status_version + 1,
			updated_at = NOW(),
			accepted_at = NOW(),
			provider_id = offer_provider_id,
			price_amount = offer_price_amount,
			price_currency = offer_price_currency,
			offer_provider_id = NULL,
			offer_price_amount = NULL,
			offer_price_currency = NULL
		WHERE id = $1 AND status = 'offered' AND status_version = $2
		  AND offer_provider_id IS NOT NULL`,
		string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetRating(ctx context.Context, id types.ID, rating int, comment *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE service_requests
		SET rating = $1, rating_comment = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'completed' AND rating IS NULL`,
		rating, comment, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetCancelReason(ctx context.Context, id types.ID, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE service_requests SET cancel_reason = $1 WHERE id = $2`,
		reason, string(id),
	)
	return err
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO request_state_events (
			request_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RequestID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*ServiceRequest, error) {
	var r ServiceRequest
	var providerID, offerProviderID, offerCurrency sql.NullString
	var providerLat, providerLng sql.NullFloat64
	var offerAmount sql.NullInt64
	var rating sql.NullInt32
	var ratingComment, cancelReason sql.NullString
	var acceptedAt, arrivedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.RequesterID, &r.Category, &r.Description, &r.Origin.Lat, &r.Origin.Lng,
		&r.Price.Amount, &r.Price.Currency, &r.Status, &r.StatusVersion,
		&providerID, &providerLat, &providerLng,
		&offerProviderID, &offerAmount, &offerCurrency,
		&rating, &ratingComment, &cancelReason,
		&r.CreatedAt, &r.UpdatedAt, &acceptedAt, &arrivedAt, &startedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if providerID.Valid {
		p := types.ID(providerID.String)
		r.ProviderID = &p
	}
	if providerLat.Valid && providerLng.Valid {
		r.ProviderPos = &types.Point{Lat: providerLat.Float64, Lng: providerLng.Float64}
	}
	if offerProviderID.Valid {
		p := types.ID(offerProviderID.String)
		r.OfferProviderID = &p
	}
	if offerAmount.Valid {
		m := types.Money{Amount: offerAmount.Int64, Currency: offerCurrency.String}
		if m.Currency == "" {
			m.Currency = types.DefaultCurrency
		}
		r.OfferPrice = &m
	}
	if rating.Valid {
		v := int(rating.Int32)
		r.Rating = &v
	}
	if ratingComment.Valid {
		r.RatingComment = &ratingComment.String
	}
	if cancelReason.Valid {
		r.CancelReason = &cancelReason.String
	}
	r.AcceptedAt = toTimePtr(acceptedAt)
	r.ArrivedAt = toTimePtr(arrivedAt)
	r.StartedAt = toTimePtr(startedAt)
	r.CompletedAt = toTimePtr(completedAt)
	r.CancelledAt = toTimePtr(cancelledAt)
	if r.Price.Currency == "" {
		r.Price.Currency = types.DefaultCurrency
	}
	return &r, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
