// README: Address geocoding via the Google Maps API.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

type GeocodingService struct {
	client *maps.Client
}

func NewGeocodingService(apiKey string) (*GeocodingService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GeocodingService{client: client}, nil
}

// Geocode resolves a free-text address to a coordinate. The first (most
// relevant) result wins.
func (s *GeocodingService) Geocode(ctx context.Context, address string) (types.Point, error) {
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  "br",
	})
	if err != nil {
		return types.Point{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("geocode %q: no results", address)
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
