package datasource

import (
	"context"
	"fmt"

	"weather-forecast/models"

	"golang.org/x/time/rate"
)

// NewLimiter creates a limiter for one API key.
// rps is the maximum requests per second allowed (can be fractional for less than 1 request per second);
// zero disables limiting. burst is the maximum burst size allowed.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// RateLimitedGeocoder wraps a Geocoder with rate limiting
type RateLimitedGeocoder struct {
	geocoder Geocoder
	limiter  *rate.Limiter
	name     string
}

// NewRateLimitedGeocoder creates a new rate limited geocoder.
// The limiter may be shared with other decorators of the same API key.
func NewRateLimitedGeocoder(geocoder Geocoder, limiter *rate.Limiter) *RateLimitedGeocoder {
	return &RateLimitedGeocoder{
		geocoder: geocoder,
		limiter:  limiter,
		name:     fmt.Sprintf("%s [Rate Limited]", geocoder.Name()),
	}
}

// Resolve resolves a city, respecting rate limits
func (r *RateLimitedGeocoder) Resolve(ctx context.Context, city string) (models.Coordinates, error) {
	// Wait for rate limiter permission or context cancellation
	if err := r.limiter.Wait(ctx); err != nil {
		return models.Coordinates{}, Transport(StageGeocode, fmt.Errorf("rate limit wait canceled: %w", err))
	}

	// Forward to the underlying geocoder
	return r.geocoder.Resolve(ctx, city)
}

// Name returns the geocoder name
func (r *RateLimitedGeocoder) Name() string {
	return r.name
}

// RateLimitedForecastSource wraps a ForecastSource with rate limiting
type RateLimitedForecastSource struct {
	source  ForecastSource
	limiter *rate.Limiter
	name    string
}

// NewRateLimitedForecastSource creates a new rate limited forecast source
func NewRateLimitedForecastSource(source ForecastSource, limiter *rate.Limiter) *RateLimitedForecastSource {
	return &RateLimitedForecastSource{
		source:  source,
		limiter: limiter,
		name:    fmt.Sprintf("%s [Rate Limited]", source.Name()),
	}
}

// Fetch fetches forecast entries, respecting rate limits
func (r *RateLimitedForecastSource) Fetch(ctx context.Context, coords models.Coordinates, mode models.ForecastMode) ([]models.WeatherEntry, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, Transport(StageForecast, fmt.Errorf("rate limit wait canceled: %w", err))
	}
	return r.source.Fetch(ctx, coords, mode)
}

// Name returns the source name
func (r *RateLimitedForecastSource) Name() string {
	return r.name
}

// Verify that our rate limited types implement the required interfaces
var (
	_ Geocoder       = (*RateLimitedGeocoder)(nil)
	_ ForecastSource = (*RateLimitedForecastSource)(nil)
)
