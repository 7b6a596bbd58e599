package datasource

import (
	"context"

	"weather-forecast/models"
)

// Geocoder resolves a free-text place name to coordinates
type Geocoder interface {
	// Resolve returns the coordinates of the first match for city
	Resolve(ctx context.Context, city string) (models.Coordinates, error)

	// Name returns the geocoder's name
	Name() string
}

// ForecastSource fetches normalized forecast entries for a position
type ForecastSource interface {
	// Fetch returns the forecast entries for coords in upstream chronological order
	Fetch(ctx context.Context, coords models.Coordinates, mode models.ForecastMode) ([]models.WeatherEntry, error)

	// Name returns the source's name
	Name() string
}
