// README: Rate card and quote structures for price suggestions.
package pricing

import (
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

// Rate is the per-category rate card. Amounts are centavos.
type Rate struct {
	Category   string `json:"category"`
	BaseAmount int64  `json:"base_amount"`
	PerKm      int64  `json:"per_km"`
	PerHour    int64  `json:"per_hour"`
	Currency   string `json:"currency"`
}

type QuoteInput struct {
	Category       string
	DistanceKm     float64
	EstimatedHours float64
	RequestTime    time.Time
}

type Quote struct {
	Total     types.Money      `json:"total"`
	Breakdown map[string]int64 `json:"breakdown"`
}
