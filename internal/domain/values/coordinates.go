package values

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances
const EarthRadiusKm = 6371.0

// Coordinates represents a validated WGS84 latitude/longitude pair
type Coordinates struct {
	latitude  float64
	longitude float64
}

// NewCoordinates creates a Coordinates value object with range validation
func NewCoordinates(latitude, longitude float64) (Coordinates, error) {
	if err := validateCoordinates(latitude, longitude); err != nil {
		return Coordinates{}, err
	}
	return Coordinates{latitude: latitude, longitude: longitude}, nil
}

// MustNewCoordinates creates Coordinates and panics on error (for constants/tests)
func MustNewCoordinates(latitude, longitude float64) Coordinates {
	c, err := NewCoordinates(latitude, longitude)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Coordinates) Latitude() float64  { return c.latitude }
func (c Coordinates) Longitude() float64 { return c.longitude }

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.latitude, c.longitude)
}

// DistanceTo returns the great-circle distance to other in kilometres
func (c Coordinates) DistanceTo(other Coordinates) float64 {
	return haversine(c.latitude, c.longitude, other.latitude, other.longitude)
}

func validateCoordinates(latitude, longitude float64) error {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", latitude)
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", longitude)
	}
	return nil
}

func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	// rounding can push a a hair above 1 for antipodal points
	a = math.Min(1, a)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
