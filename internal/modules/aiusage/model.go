// README: Monthly quota for AI category suggestions.
package aiusage

import "errors"

// ErrInsufficientTokens is returned when a user exhausted the monthly
// suggestion allowance.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// DefaultTokens is the number of suggestions granted per month.
const DefaultTokens = 50
