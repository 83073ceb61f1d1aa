// README: Quote formula tests; rate card defaults, no DB required.
package pricing

import (
	"context"
	"testing"
	"time"
)

func TestSuggest(t *testing.T) {
	// Tuesday, 2026-03-10.
	baseTime := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	nightTime := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	dawnTime := time.Date(2026, 3, 10, 5, 30, 0, 0, time.UTC)
	// Saturday, 2026-03-14.
	weekendTime := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	weekendNight := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   QuoteInput
		want int64
	}{
		{
			name: "base only within included travel",
			in:   QuoteInput{Category: "Eletricista", DistanceKm: 1.5, RequestTime: baseTime},
			want: 8000,
		},
		{
			name: "extra travel per started km",
			// 4.3 - 2.0 = 2.3km excess, charged as 3 * 200.
			in:   QuoteInput{Category: "Eletricista", DistanceKm: 4.3, RequestTime: baseTime},
			want: 8600,
		},
		{
			name: "labor per started half hour",
			// 1.25h is 3 half hours at 3000 each.
			in:   QuoteInput{Category: "Eletricista", EstimatedHours: 1.25, RequestTime: baseTime},
			want: 17000,
		},
		{
			name: "night surcharge",
			in:   QuoteInput{Category: "Eletricista", RequestTime: nightTime},
			want: 10000,
		},
		{
			name: "early morning counts as night",
			in:   QuoteInput{Category: "Eletricista", RequestTime: dawnTime},
			want: 10000,
		},
		{
			name: "weekend surcharge",
			in:   QuoteInput{Category: "Eletricista", RequestTime: weekendTime},
			want: 8800,
		},
		{
			name: "night and weekend stack",
			// Subtotal: 8000 base + 600 travel + 6000 labor = 14600.
			// Surcharge 35% = 5110.
			in:   QuoteInput{Category: "Eletricista", DistanceKm: 4.3, EstimatedHours: 1.0, RequestTime: weekendNight},
			want: 19710,
		},
		{
			name: "unknown category falls back to Outros",
			in:   QuoteInput{Category: "Marceneiro", RequestTime: baseTime},
			want: 5000,
		},
	}

	s := NewService(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Suggest(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Suggest() error = %v", err)
			}
			if got.Total.Amount != tt.want {
				t.Errorf("Suggest() = %d, want %d (breakdown %v)", got.Total.Amount, tt.want, got.Breakdown)
			}
			if got.Total.Currency != "BRL" {
				t.Errorf("currency = %q, want BRL", got.Total.Currency)
			}
		})
	}
}
