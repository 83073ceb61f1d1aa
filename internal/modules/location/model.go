// README: Location sample model and staleness rules.
package location

import (
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

// DefaultStaleAfter is the window beyond which a sample must not be shown as
// a live position.
const DefaultStaleAfter = 30 * time.Second

// Sample is a provider's latest position. Each publish overwrites the
// previous one; no history is kept in the hot path.
type Sample struct {
	ProviderID types.ID    `json:"provider_id"`
	Position   types.Point `json:"position"`
	Heading    *float64    `json:"heading,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// StaleAt reports whether the sample is too old to display as live at the
// given instant.
func (s Sample) StaleAt(now time.Time, window time.Duration) bool {
	if window <= 0 {
		window = DefaultStaleAfter
	}
	return now.Sub(s.RecordedAt) > window
}

// Snapshot is the durable form of a sample, appended for replay/audit.
type Snapshot struct {
	ID         int64
	ProviderID types.ID
	Position   types.Point
	Heading    *float64
	RecordedAt time.Time
}
