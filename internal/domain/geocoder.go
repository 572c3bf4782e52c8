package domain

import "context"

// Address holds the fields of a reverse-geocoding answer that the place-name
// fallback chain consults. Any of them may be empty.
type Address struct {
	City        string
	Town        string
	Village     string
	DisplayName string
}

// Geocoder turns coordinates into address details.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)
}

// LatLng is a WGS-84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PickedLocation is a map selection with its resolved display name.
type PickedLocation struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}
