// README: Common identifier and coordinate value objects used across modules.
package types

// ID is an opaque entity identifier (request, requester, provider).
type ID string

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point carries no coordinate at all.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}
