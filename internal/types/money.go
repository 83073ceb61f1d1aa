// README: Common money value object used across modules.
package types

// Money is an integer amount in the currency's minor unit (centavos for BRL).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// DefaultCurrency is applied when a store row predates currency tracking.
const DefaultCurrency = "BRL"
