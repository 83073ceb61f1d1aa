package location

import (
	"math"
	"testing"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Praça da Sé to Paulista, São Paulo. Roughly 3 km.
	d := haversineKm(-23.5505, -46.6333, -23.5614, -46.6559)
	if d < 2 || d > 4 {
		t.Fatalf("distance = %f km, want ~3", d)
	}
}

func TestHaversineZero(t *testing.T) {
	d := haversineKm(-23.55, -46.63, -23.55, -46.63)
	if math.Abs(d) > 1e-9 {
		t.Fatalf("same point distance = %f, want 0", d)
	}
}

func TestSortByDistance(t *testing.T) {
	items := []NearbyProvider{
		{ProviderID: "c", Distance: 3},
		{ProviderID: "a", Distance: 1},
		{ProviderID: "b", Distance: 2},
	}
	sortByDistance(items, func(p NearbyProvider) float64 { return p.Distance })
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if string(items[i].ProviderID) != w {
			t.Fatalf("position %d = %s, want %s", i, items[i].ProviderID, w)
		}
	}
}
