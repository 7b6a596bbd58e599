package openweathermap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"weather-forecast/datasource"
	"weather-forecast/models"

	"github.com/goccy/go-json"
)

// Blocks excluded from the One Call response for each mode
const (
	excludeForHourly = "daily,minutely,current,alerts"
	excludeForDaily  = "hourly,minutely,current,alerts"
)

// ForecastFetcher provides normalized forecasts from the One Call API
type ForecastFetcher struct {
	client   *client
	endpoint string
	iconBase string
	location *time.Location
}

// Ensure ForecastFetcher implements ForecastSource
var _ datasource.ForecastSource = (*ForecastFetcher)(nil)

// NewForecastFetcher creates a new One Call forecast fetcher
func NewForecastFetcher(opts Options) *ForecastFetcher {
	opts = opts.withDefaults()
	return &ForecastFetcher{
		client: &client{
			apiKey:     opts.APIKey,
			httpClient: opts.HTTPClient,
			logger:     opts.Logger,
		},
		endpoint: opts.ForecastURL,
		iconBase: opts.IconBaseURL,
		location: opts.Location,
	}
}

// Name returns the provider name
func (f *ForecastFetcher) Name() string {
	return "OpenWeatherMap One Call"
}

// condition is one weather descriptor of a record
type condition struct {
	Main *string `json:"main"`
	Icon *string `json:"icon"`
}

type hourlyRecord struct {
	Dt      *int64      `json:"dt"`
	Temp    *float64    `json:"temp"`
	Weather []condition `json:"weather"`
}

type dailyTemp struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type dailyRecord struct {
	Dt      *int64      `json:"dt"`
	Temp    *dailyTemp  `json:"temp"`
	Weather []condition `json:"weather"`
}

// oneCallResponse represents the API response structure.
// Pointers distinguish an absent block from an empty one.
type oneCallResponse struct {
	Lat      float64         `json:"lat"`
	Lon      float64         `json:"lon"`
	Timezone string          `json:"timezone"`
	Hourly   *[]hourlyRecord `json:"hourly"`
	Daily    *[]dailyRecord  `json:"daily"`
}

// Fetch retrieves the forecast for coords and reduces it to entries.
// A single malformed record fails the whole batch.
func (f *ForecastFetcher) Fetch(ctx context.Context, coords models.Coordinates, mode models.ForecastMode) ([]models.WeatherEntry, error) {
	var exclude string
	switch mode {
	case models.Hourly:
		exclude = excludeForHourly
	case models.Daily:
		exclude = excludeForDaily
	default:
		return nil, fmt.Errorf("%w: %v", datasource.ErrInvalidMode, mode)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	params.Set("exclude", exclude)
	params.Set("units", "imperial")

	body, err := f.client.get(ctx, datasource.StageForecast, f.endpoint, params)
	if err != nil {
		return nil, err
	}

	var response oneCallResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, datasource.Transport(datasource.StageForecast, fmt.Errorf("failed to parse response: %w", err))
	}

	if mode == models.Daily {
		return f.parseDaily(response.Daily)
	}
	return f.parseHourly(response.Hourly)
}

func (f *ForecastFetcher) parseHourly(records *[]hourlyRecord) ([]models.WeatherEntry, error) {
	if records == nil {
		return nil, malformed("response has no hourly block")
	}

	n := min(len(*records), models.MaxHourlyEntries)
	entries := make([]models.WeatherEntry, 0, n)
	for i, record := range (*records)[:n] {
		if record.Dt == nil {
			return nil, malformed("hourly[%d]: missing dt", i)
		}
		if record.Temp == nil {
			return nil, malformed("hourly[%d]: missing temp", i)
		}
		cond, err := firstCondition(record.Weather)
		if err != nil {
			return nil, malformed("hourly[%d]: %v", i, err)
		}

		entries = append(entries, models.WeatherEntry{
			Label:            FormatHourlyLabel(*record.Dt, f.location),
			Condition:        *cond.Main,
			IconRef:          IconRef(f.iconBase, *cond.Icon),
			TemperatureLabel: FormatTemperature(*record.Temp),
		})
	}
	return entries, nil
}

func (f *ForecastFetcher) parseDaily(records *[]dailyRecord) ([]models.WeatherEntry, error) {
	if records == nil {
		return nil, malformed("response has no daily block")
	}

	n := min(len(*records), models.MaxDailyEntries)
	entries := make([]models.WeatherEntry, 0, n)
	for i, record := range (*records)[:n] {
		if record.Dt == nil {
			return nil, malformed("daily[%d]: missing dt", i)
		}
		if record.Temp == nil || record.Temp.Min == nil || record.Temp.Max == nil {
			return nil, malformed("daily[%d]: missing temp.min or temp.max", i)
		}
		cond, err := firstCondition(record.Weather)
		if err != nil {
			return nil, malformed("daily[%d]: %v", i, err)
		}

		entries = append(entries, models.WeatherEntry{
			Label:            FormatDailyLabel(*record.Dt, f.location),
			Condition:        *cond.Main,
			IconRef:          IconRef(f.iconBase, *cond.Icon),
			TemperatureLabel: FormatTemperatureRange(*record.Temp.Min, *record.Temp.Max),
		})
	}
	return entries, nil
}

func firstCondition(weather []condition) (condition, error) {
	if len(weather) == 0 {
		return condition{}, errors.New("missing weather")
	}
	cond := weather[0]
	if cond.Main == nil || cond.Icon == nil {
		return condition{}, errors.New("weather[0] is missing main or icon")
	}
	return cond, nil
}

func malformed(format string, args ...any) error {
	return datasource.Malformed(datasource.StageForecast, fmt.Errorf(format, args...))
}
