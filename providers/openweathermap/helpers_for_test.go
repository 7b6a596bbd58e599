package openweathermap_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"weather-forecast/providers/openweathermap"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey   = "test-key"
	testIconBase = "https://icons.example.com/img/wn"
)

// newUpstream starts a fake OpenWeatherMap server serving handler on every path
func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testOptions(srv *httptest.Server) openweathermap.Options {
	return openweathermap.Options{
		APIKey:      testAPIKey,
		GeocodeURL:  srv.URL + "/geo/1.0/direct",
		ForecastURL: srv.URL + "/data/3.0/onecall",
		IconBaseURL: testIconBase,
		Timeout:     2 * time.Second,
		Location:    time.UTC,
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func hourlyRecords(n int) []map[string]any {
	records := make([]map[string]any, n)
	for i := range records {
		records[i] = map[string]any{
			"dt":   1700000000 + int64(i)*3600,
			"temp": 60.0 + float64(i)/10,
			"weather": []map[string]any{
				{"id": 803, "main": "Clouds", "description": "broken clouds", "icon": "04d"},
			},
		}
	}
	return records
}

func dailyRecords(n int) []map[string]any {
	records := make([]map[string]any, n)
	for i := range records {
		records[i] = map[string]any{
			"dt": 1700000000 + int64(i)*86400,
			"temp": map[string]any{
				"day": 61.0, "min": 55.0, "max": 68.3, "night": 50.2,
			},
			"weather": []map[string]any{
				{"id": 500, "main": "Rain", "description": "light rain", "icon": "10d"},
			},
		}
	}
	return records
}
