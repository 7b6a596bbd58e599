// Package openweathermap implements the geocoding and forecast stages against
// the OpenWeatherMap Geocoding and One Call APIs.
package openweathermap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"weather-forecast/datasource"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// maximum number of response bytes quoted in an error
const errorBodyLimit = 256

// Options configures the OpenWeatherMap stages
type Options struct {
	APIKey      string
	GeocodeURL  string
	ForecastURL string
	IconBaseURL string
	Timeout     time.Duration

	// Zone used for entry labels, nil means time.Local
	Location *time.Location

	// HTTPClient overrides the client built from Timeout
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OptionsFromConfig builds Options from the application configuration
func OptionsFromConfig(config *datasource.Config, logger *slog.Logger) (Options, error) {
	loc, err := config.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		APIKey:      config.OpenWeatherMap.APIKey,
		GeocodeURL:  config.OpenWeatherMap.GeocodeURL,
		ForecastURL: config.OpenWeatherMap.ForecastURL,
		IconBaseURL: config.OpenWeatherMap.IconBaseURL,
		Timeout:     time.Duration(config.HTTPTimeout),
		Location:    loc,
		Logger:      logger,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.GeocodeURL == "" {
		o.GeocodeURL = datasource.DefaultGeocodeURL
	}
	if o.ForecastURL == "" {
		o.ForecastURL = datasource.DefaultForecastURL
	}
	if o.IconBaseURL == "" {
		o.IconBaseURL = datasource.DefaultIconBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// client performs authenticated GET requests against one API key
type client struct {
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// get issues a single request and returns the body of a 200 response.
// Every failure is reported as a transport error of stage.
func (c *client) get(ctx context.Context, stage, endpoint string, params url.Values) ([]byte, error) {
	params.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, datasource.Transport(stage, fmt.Errorf("failed to create request: %w", err))
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	// appid stays out of the logs
	c.logger.Debug("OpenWeatherMap request", "stage", stage, "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, datasource.Transport(stage, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, datasource.Transport(stage, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > errorBodyLimit {
			body = body[:errorBodyLimit]
		}
		return nil, datasource.Transport(stage, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	return body, nil
}
