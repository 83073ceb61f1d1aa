// README: ServiceRequest aggregate and lifecycle status definitions.
package request

import (
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusSearching  Status = "searching"
	StatusOffered    Status = "offered"
	StatusAccepted   Status = "accepted"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusTimeout    Status = "timeout"
)

// ServiceRequest is the shared mutable record both clients converge on.
// Provider and price stay unset while searching; the pending offer fields hold
// a provider's bid until the requester accepts or declines it.
type ServiceRequest struct {
	ID            types.ID
	RequesterID   types.ID
	Category      string
	Description   string
	Origin        types.Point
	Price         types.Money
	Status        Status
	StatusVersion int

	ProviderID  *types.ID
	ProviderPos *types.Point

	OfferProviderID *types.ID
	OfferPrice      *types.Money

	Rating        *int
	RatingComment *string
	CancelReason  *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	AcceptedAt  *time.Time
	ArrivedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// Event is one row of the append-only transition audit trail.
type Event struct {
	ID         int64
	RequestID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the request lifecycle graph as code.
// decline-offer is the only backward edge (offered returns to searching);
// cancelled is reachable from every non-terminal state and timeout only from
// searching.
var AllowedTransitions = map[Status][]Status{
	StatusSearching:  {StatusOffered, StatusAccepted, StatusCancelled, StatusTimeout},
	StatusOffered:    {StatusAccepted, StatusSearching, StatusCancelled},
	StatusAccepted:   {StatusArrived, StatusCancelled},
	StatusArrived:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// LocationGated reports whether the status keeps the location stream relay
// active.
func LocationGated(s Status) bool {
	switch s {
	case StatusAccepted, StatusArrived, StatusInProgress:
		return true
	}
	return false
}
