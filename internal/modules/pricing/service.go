// README: Price suggestion service; rate card lookup plus quote formula.
package pricing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

const (
	// The call-out fee covers the first includedKm of travel.
	includedKm = 2.0

	nightSurchargePct   = 25
	weekendSurchargePct = 10
)

// defaultRates back the DB rate card so a missing row never blocks a quote.
var defaultRates = map[string]Rate{
	"Eletricista": {Category: "Eletricista", BaseAmount: 8000, PerKm: 200, PerHour: 6000, Currency: types.DefaultCurrency},
	"Encanador":   {Category: "Encanador", BaseAmount: 7500, PerKm: 200, PerHour: 5500, Currency: types.DefaultCurrency},
	"Diarista":    {Category: "Diarista", BaseAmount: 3000, PerKm: 150, PerHour: 3000, Currency: types.DefaultCurrency},
	"Outros":      {Category: "Outros", BaseAmount: 5000, PerKm: 200, PerHour: 4000, Currency: types.DefaultCurrency},
}

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Suggest returns a starting price for the given job. The quote is advisory:
// requesters list whatever they want and providers can counter-offer.
func (s *Service) Suggest(ctx context.Context, in QuoteInput) (Quote, error) {
	rate, err := s.rateFor(ctx, in.Category)
	if err != nil {
		return Quote{}, err
	}
	return computeQuote(rate, in), nil
}

func (s *Service) rateFor(ctx context.Context, category string) (Rate, error) {
	if s.store != nil {
		rate, err := s.store.GetRate(ctx, category)
		if err == nil {
			return rate, nil
		}
		if !errors.Is(err, ErrRateNotFound) {
			return Rate{}, err
		}
	}
	if rate, ok := defaultRates[category]; ok {
		return rate, nil
	}
	return defaultRates["Outros"], nil
}

// computeQuote applies the rate card:
//   - the base amount is always charged and includes includedKm of travel
//   - extra travel is charged per started km
//   - labor is charged per started half hour
//   - night work (22:00-06:00) adds nightSurchargePct, weekends add
//     weekendSurchargePct; both apply to the subtotal and stack
func computeQuote(rate Rate, in QuoteInput) Quote {
	breakdown := map[string]int64{"base": rate.BaseAmount}

	if extra := in.DistanceKm - includedKm; extra > 0 {
		breakdown["distance"] = int64(math.Ceil(extra)) * rate.PerKm
	}
	if in.EstimatedHours > 0 {
		halfHours := int64(math.Ceil(in.EstimatedHours * 2))
		breakdown["labor"] = halfHours * rate.PerHour / 2
	}

	subtotal := int64(0)
	for _, v := range breakdown {
		subtotal += v
	}

	pct := 0
	if h := in.RequestTime.Hour(); h >= 22 || h < 6 {
		pct += nightSurchargePct
	}
	if wd := in.RequestTime.Weekday(); wd == time.Saturday || wd == time.Sunday {
		pct += weekendSurchargePct
	}
	total := subtotal
	if pct > 0 {
		surcharge := int64(math.Round(float64(subtotal) * float64(pct) / 100))
		breakdown["surcharge"] = surcharge
		total += surcharge
	}

	currency := rate.Currency
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return Quote{
		Total:     types.Money{Amount: total, Currency: currency},
		Breakdown: breakdown,
	}
}
