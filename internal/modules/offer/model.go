// README: Offer record; one provider's bid against one request.
package offer

import (
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Offer is keyed by (provider id, request id) and lives under the provider's
// namespace. It is ephemeral bookkeeping: once the parent request leaves the
// searching/offered phase the record is superseded and ages out via TTL.
type Offer struct {
	ProviderID types.ID    `json:"provider_id"`
	RequestID  types.ID    `json:"request_id"`
	Price      types.Money `json:"price"`
	Status     Status      `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}
