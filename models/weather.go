package models

import "fmt"

// Coordinates is a resolved geographic position
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// String formats the coordinates as "lat,lon"
func (c Coordinates) String() string {
	return fmt.Sprintf("%g,%g", c.Latitude, c.Longitude)
}
