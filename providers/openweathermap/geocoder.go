package openweathermap

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"weather-forecast/datasource"
	"weather-forecast/models"

	"github.com/goccy/go-json"
)

// Geocoder resolves city names with the OpenWeatherMap direct geocoding API
type Geocoder struct {
	client   *client
	endpoint string
}

// Ensure Geocoder implements datasource.Geocoder
var _ datasource.Geocoder = (*Geocoder)(nil)

// NewGeocoder creates a new OpenWeatherMap geocoder
func NewGeocoder(opts Options) *Geocoder {
	opts = opts.withDefaults()
	return &Geocoder{
		client: &client{
			apiKey:     opts.APIKey,
			httpClient: opts.HTTPClient,
			logger:     opts.Logger,
		},
		endpoint: opts.GeocodeURL,
	}
}

// Name returns the geocoder name
func (g *Geocoder) Name() string {
	return "OpenWeatherMap Geocoding"
}

// geoMatch is one element of the geocoding response array
type geoMatch struct {
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Country string   `json:"country"`
	State   string   `json:"state"`
}

// Resolve returns the coordinates of the first match for city
func (g *Geocoder) Resolve(ctx context.Context, city string) (models.Coordinates, error) {
	if city == "" {
		return models.Coordinates{}, datasource.ErrEmptyCity
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("limit", "1")

	body, err := g.client.get(ctx, datasource.StageGeocode, g.endpoint, params)
	if err != nil {
		return models.Coordinates{}, err
	}

	var matches []geoMatch
	if err := json.Unmarshal(body, &matches); err != nil {
		return models.Coordinates{}, datasource.Transport(datasource.StageGeocode, fmt.Errorf("failed to parse response: %w", err))
	}

	if len(matches) == 0 {
		return models.Coordinates{}, datasource.NotFound(datasource.StageGeocode, fmt.Errorf("no geographic data found for city: %s", city))
	}

	first := matches[0]
	if first.Lat == nil || first.Lon == nil {
		return models.Coordinates{}, datasource.Malformed(datasource.StageGeocode, errors.New("match is missing lat or lon"))
	}

	g.client.logger.Debug("Resolved city",
		"city", city,
		"match", first.Name,
		"country", first.Country,
		"lat", *first.Lat,
		"lon", *first.Lon)

	return models.Coordinates{Latitude: *first.Lat, Longitude: *first.Lon}, nil
}
