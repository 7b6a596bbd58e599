package openweathermap_test

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"weather-forecast/datasource"
	"weather-forecast/models"
	"weather-forecast/providers/openweathermap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCoords        = models.Coordinates{Latitude: 51.5073219, Longitude: -0.1276474}
	twelveHourPattern = regexp.MustCompile(`^\d{2}:\d{2} (AM|PM)$`)
)

func fetch(t *testing.T, mode models.ForecastMode, payload any) ([]models.WeatherEntry, error) {
	t.Helper()
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, payload)
	})
	return openweathermap.NewForecastFetcher(testOptions(srv)).Fetch(context.Background(), testCoords, mode)
}

func TestForecastFetcher_Request(t *testing.T) {
	tests := []struct {
		name    string
		mode    models.ForecastMode
		exclude string
		payload map[string]any
	}{
		{"hourly", models.Hourly, "daily,minutely,current,alerts", map[string]any{"hourly": hourlyRecords(1)}},
		{"daily", models.Daily, "hourly,minutely,current,alerts", map[string]any{"daily": dailyRecords(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int
			srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				requests++
				assert.Equal(t, "/data/3.0/onecall", r.URL.Path)
				q := r.URL.Query()
				assert.Equal(t, "51.5073219", q.Get("lat"))
				assert.Equal(t, "-0.1276474", q.Get("lon"))
				assert.Equal(t, tt.exclude, q.Get("exclude"))
				assert.Equal(t, "imperial", q.Get("units"))
				assert.Equal(t, testAPIKey, q.Get("appid"))
				writeJSON(t, w, tt.payload)
			})

			_, err := openweathermap.NewForecastFetcher(testOptions(srv)).Fetch(context.Background(), testCoords, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, 1, requests)
		})
	}
}

func TestForecastFetcher_Hourly(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		payload := map[string]any{
			"lat": 51.5, "lon": -0.13, "timezone": "Europe/London",
			"hourly": []map[string]any{{
				"dt":      1700000000,
				"temp":    73.2,
				"weather": []map[string]any{{"main": "Clouds", "icon": "04d"}},
			}},
		}

		entries, err := fetch(t, models.Hourly, payload)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		entry := entries[0]
		assert.Equal(t, "73.2 °F", entry.TemperatureLabel)
		assert.Equal(t, "Clouds", entry.Condition)
		assert.True(t, strings.HasSuffix(entry.IconRef, "04d@2x.png"), entry.IconRef)
		assert.Equal(t, testIconBase+"/04d@2x.png", entry.IconRef)
		assert.Regexp(t, twelveHourPattern, entry.Label)
		assert.Equal(t, "10:13 PM", entry.Label)
	})
	t.Run("truncated to 48", func(t *testing.T) {
		entries, err := fetch(t, models.Hourly, map[string]any{"hourly": hourlyRecords(60)})
		require.NoError(t, err)
		assert.Len(t, entries, models.MaxHourlyEntries)
	})
	t.Run("fewer records than the limit", func(t *testing.T) {
		entries, err := fetch(t, models.Hourly, map[string]any{"hourly": hourlyRecords(5)})
		require.NoError(t, err)
		require.Len(t, entries, 5)
		for i, e := range entries {
			assert.Regexp(t, twelveHourPattern, e.Label, "entry %d", i)
		}
		// upstream order is preserved
		assert.Equal(t, "10:13 PM", entries[0].Label)
		assert.Equal(t, "11:13 PM", entries[1].Label)
		assert.Equal(t, "12:13 AM", entries[2].Label)
	})
	t.Run("empty block", func(t *testing.T) {
		entries, err := fetch(t, models.Hourly, map[string]any{"hourly": []any{}})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
	t.Run("missing block", func(t *testing.T) {
		_, err := fetch(t, models.Hourly, map[string]any{"daily": dailyRecords(2)})
		require.ErrorIs(t, err, datasource.ErrMalformedData)
	})
	t.Run("one record without weather fails the batch", func(t *testing.T) {
		records := hourlyRecords(10)
		delete(records[4], "weather")

		entries, err := fetch(t, models.Hourly, map[string]any{"hourly": records})
		require.ErrorIs(t, err, datasource.ErrMalformedData)
		assert.Nil(t, entries)
	})
	t.Run("empty weather array", func(t *testing.T) {
		records := hourlyRecords(3)
		records[1]["weather"] = []any{}

		_, err := fetch(t, models.Hourly, map[string]any{"hourly": records})
		require.ErrorIs(t, err, datasource.ErrMalformedData)
	})
	t.Run("missing temp", func(t *testing.T) {
		records := hourlyRecords(3)
		delete(records[2], "temp")

		_, err := fetch(t, models.Hourly, map[string]any{"hourly": records})
		require.ErrorIs(t, err, datasource.ErrMalformedData)
	})
	t.Run("missing dt", func(t *testing.T) {
		records := hourlyRecords(3)
		delete(records[0], "dt")

		_, err := fetch(t, models.Hourly, map[string]any{"hourly": records})
		require.ErrorIs(t, err, datasource.ErrMalformedData)
	})
	t.Run("records past the limit are not inspected", func(t *testing.T) {
		records := hourlyRecords(50)
		delete(records[49], "weather")

		entries, err := fetch(t, models.Hourly, map[string]any{"hourly": records})
		require.NoError(t, err)
		assert.Len(t, entries, models.MaxHourlyEntries)
	})
}

func TestForecastFetcher_Daily(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		entries, err := fetch(t, models.Daily, map[string]any{"daily": dailyRecords(1)})
		require.NoError(t, err)
		require.Len(t, entries, 1)

		assert.Equal(t, models.WeatherEntry{
			Label:            "Tue, Nov 14",
			Condition:        "Rain",
			IconRef:          testIconBase + "/10d@2x.png",
			TemperatureLabel: "55.0 - 68.3 °F",
		}, entries[0])
	})
	t.Run("truncated to 7", func(t *testing.T) {
		entries, err := fetch(t, models.Daily, map[string]any{"daily": dailyRecords(8)})
		require.NoError(t, err)
		require.Len(t, entries, models.MaxDailyEntries)
		assert.Equal(t, "Tue, Nov 14", entries[0].Label)
		assert.Equal(t, "Mon, Nov 20", entries[6].Label)
	})
	t.Run("missing temp.max", func(t *testing.T) {
		records := dailyRecords(3)
		delete(records[1]["temp"].(map[string]any), "max")

		_, err := fetch(t, models.Daily, map[string]any{"daily": records})
		require.ErrorIs(t, err, datasource.ErrMalformedData)
	})
	t.Run("scalar temp instead of range", func(t *testing.T) {
		records := dailyRecords(2)
		records[0]["temp"] = 61.0

		_, err := fetch(t, models.Daily, map[string]any{"daily": records})
		require.Error(t, err)
		assert.NotNil(t, datasource.Kind(err))
	})
	t.Run("one record without weather fails the batch", func(t *testing.T) {
		records := dailyRecords(7)
		delete(records[6], "weather")

		_, err := fetch(t, models.Daily, map[string]any{"daily": records})
		require.ErrorIs(t, err, datasource.ErrMalformedData)
	})
}

func TestForecastFetcher_TransportErrors(t *testing.T) {
	t.Run("non-success status", func(t *testing.T) {
		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := openweathermap.NewForecastFetcher(testOptions(srv)).Fetch(context.Background(), testCoords, models.Hourly)
		require.ErrorIs(t, err, datasource.ErrTransport)
	})
	t.Run("undecodable body", func(t *testing.T) {
		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"hourly": [`))
		})
		_, err := openweathermap.NewForecastFetcher(testOptions(srv)).Fetch(context.Background(), testCoords, models.Hourly)
		require.ErrorIs(t, err, datasource.ErrTransport)
		assert.NotErrorIs(t, err, datasource.ErrMalformedData)
	})
	t.Run("invalid mode makes no request", func(t *testing.T) {
		var calls int
		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) { calls++ })
		_, err := openweathermap.NewForecastFetcher(testOptions(srv)).Fetch(context.Background(), testCoords, models.ForecastMode(9))
		require.ErrorIs(t, err, datasource.ErrInvalidMode)
		assert.Zero(t, calls)
	})
}
