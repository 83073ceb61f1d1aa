// Package realtime is the synchronization layer between the authoritative
// store and the two clients of a request. It hides the push transport behind
// a stable contract: connectivity signal, per-record subscriptions,
// field-level patches, and room presence.
//
// Notifications are full-record snapshots, never diffs. Ordering holds within
// one subscription only; a location update and a status update may arrive out
// of program order relative to each other.
package realtime

import (
	"context"

	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
)

// UnsubscribeFunc disposes a subscription. Safe to call more than once; every
// call after the first is a no-op.
type UnsubscribeFunc func()

// RequestSnapshot is the typed form of a requests/{id} record on the wire.
// Timestamps are unix milliseconds.
type RequestSnapshot struct {
	ID              string `json:"id" validate:"required"`
	RequesterID     string `json:"requester_id" validate:"required"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	PriceAmount     int64  `json:"price_amount"`
	PriceCurrency   string `json:"price_currency"`
	Status          string `json:"status" validate:"required"`
	StatusVersion   int    `json:"status_version"`
	ProviderID      string `json:"provider_id,omitempty"`
	OfferProviderID string `json:"offer_provider_id,omitempty"`
	OfferAmount     int64  `json:"offer_amount,omitempty"`
	Rating          *int   `json:"rating,omitempty"`
	CreatedAt       int64  `json:"created_at" validate:"required"`
	UpdatedAt       int64  `json:"updated_at" validate:"required"`
}

// LocationSample is the typed form of a providerLocations/{providerId} record.
type LocationSample struct {
	ProviderID string   `json:"provider_id" validate:"required"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Heading    *float64 `json:"heading,omitempty"`
	Timestamp  int64    `json:"timestamp" validate:"required"`
}

// OfferRecord is the typed form of an offers/{providerId}/{requestId} record.
type OfferRecord struct {
	ProviderID string `json:"provider_id" validate:"required"`
	RequestID  string `json:"request_id" validate:"required"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status" validate:"required"`
	CreatedAt  int64  `json:"created_at"`
}

// Gateway is the transport-independent synchronization contract.
//
// Subscribe methods deliver the current record immediately when present and
// again on every mutation. A gateway holds at most one live subscription per
// key per caller: re-subscribing to the same key disposes the previous
// subscription first.
type Gateway interface {
	// ConnectionStatus reports transport connectivity. No value is delivered
	// until the transport produces its first sample.
	ConnectionStatus(fn func(connected bool)) UnsubscribeFunc

	SubscribeRequest(id string, fn func(RequestSnapshot)) UnsubscribeFunc
	SubscribeLocation(providerID string, fn func(LocationSample)) UnsubscribeFunc

	// PatchRequest applies a partial update. Concurrent patches from two
	// actors resolve last-write-wins per field, not per record.
	PatchRequest(ctx context.Context, id string, fields map[string]any) error

	// Presence records room membership for coarse scoping and leave-cleanup.
	Presence(ctx context.Context, roomID, userID string, join bool) error
}

// SnapshotFromRequest converts the authoritative record into its wire form.
func SnapshotFromRequest(r *request.ServiceRequest) RequestSnapshot {
	snap := RequestSnapshot{
		ID:            string(r.ID),
		RequesterID:   string(r.RequesterID),
		Category:      r.Category,
		Description:   r.Description,
		Lat:           r.Origin.Lat,
		Lng:           r.Origin.Lng,
		PriceAmount:   r.Price.Amount,
		PriceCurrency: r.Price.Currency,
		Status:        string(r.Status),
		StatusVersion: r.StatusVersion,
		Rating:        r.Rating,
		CreatedAt:     r.CreatedAt.UnixMilli(),
		UpdatedAt:     r.UpdatedAt.UnixMilli(),
	}
	if r.ProviderID != nil {
		snap.ProviderID = string(*r.ProviderID)
	}
	if r.OfferProviderID != nil {
		snap.OfferProviderID = string(*r.OfferProviderID)
	}
	if r.OfferPrice != nil {
		snap.OfferAmount = r.OfferPrice.Amount
	}
	return snap
}
