package api_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"weather-forecast/api"
	"weather-forecast/datasource"
	"weather-forecast/models"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubQuerier answers every query on its own goroutine, like the pipeline's dispatcher
type stubQuerier struct {
	entries []models.WeatherEntry
	err     error

	mu    sync.Mutex
	calls []string
	modes []models.ForecastMode
}

func (s *stubQuerier) QueryWeather(city string, mode models.ForecastMode, onResult func([]models.WeatherEntry), onError func(error)) string {
	s.mu.Lock()
	s.calls = append(s.calls, city)
	s.modes = append(s.modes, mode)
	s.mu.Unlock()

	go func() {
		if s.err != nil {
			onError(s.err)
			return
		}
		onResult(s.entries)
	}()
	return "query-1"
}

func newTestServer(t *testing.T, q api.ForecastQuerier) *httptest.Server {
	t.Helper()
	return newLoggedTestServer(t, q, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newLoggedTestServer(t *testing.T, q api.ForecastQuerier, logger *slog.Logger) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(api.NewServer(q, 0, logger).Router())
	t.Cleanup(ts.Close)
	return ts
}

// syncBuffer collects log output written from handler goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func get(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp
}

func TestServer_GetForecast(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		q := &stubQuerier{entries: []models.WeatherEntry{
			{Label: "Tue, Nov 14", Condition: "Rain", IconRef: "https://openweathermap.org/img/wn/10d@2x.png", TemperatureLabel: "55.0 - 68.3 °F"},
		}}
		ts := newTestServer(t, q)

		var body api.ForecastResponse
		resp := get(t, ts.URL+"/api/v1/forecast/New%20York?mode=daily", &body)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, "query-1", body.QueryID)
		assert.Equal(t, "New York", body.City)
		assert.Equal(t, models.Daily, body.Mode)
		assert.Equal(t, q.entries, body.Entries)
		assert.Equal(t, []string{"New York"}, q.calls)
	})
	t.Run("mode defaults to hourly", func(t *testing.T) {
		q := &stubQuerier{}
		ts := newTestServer(t, q)

		resp := get(t, ts.URL+"/api/v1/forecast/London", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []models.ForecastMode{models.Hourly}, q.modes)
	})
	t.Run("invalid mode", func(t *testing.T) {
		q := &stubQuerier{}
		ts := newTestServer(t, q)

		var body api.ErrorResponse
		resp := get(t, ts.URL+"/api/v1/forecast/London?mode=weekly", &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, datasource.UserMessage(datasource.ErrInvalidMode), body.Error)
		assert.Empty(t, q.calls)
	})
	t.Run("blank city", func(t *testing.T) {
		q := &stubQuerier{}
		ts := newTestServer(t, q)

		resp := get(t, ts.URL+"/api/v1/forecast/%20%20", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, q.calls)
	})

	errorCases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", datasource.NotFound(datasource.StageGeocode, nil), http.StatusNotFound},
		{"transport", datasource.Transport(datasource.StageForecast, nil), http.StatusBadGateway},
		{"malformed", datasource.Malformed(datasource.StageForecast, nil), http.StatusBadGateway},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubQuerier{err: tt.err})

			var body api.ErrorResponse
			resp := get(t, ts.URL+"/api/v1/forecast/London", &body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, datasource.UserMessage(tt.err), body.Error)
			assert.Equal(t, "query-1", body.QueryID)
		})
	}
}

func TestServer_HealthCheck(t *testing.T) {
	ts := newTestServer(t, &stubQuerier{})

	var body map[string]string
	resp := get(t, ts.URL+"/api/v1/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_UnmatchedRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"empty city", http.MethodGet, "/api/v1/forecast/", http.StatusNotFound},
		{"unknown path", http.MethodGet, "/api/v2/forecast/London", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/api/v1/health", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &syncBuffer{}
			q := &stubQuerier{}
			ts := newLoggedTestServer(t, q, slog.New(slog.NewJSONHandler(logs, nil)))

			req, err := http.NewRequest(tt.method, ts.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			var body api.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body.Error)
			assert.Empty(t, q.calls)

			// the access log line is written after the response
			require.Eventually(t, func() bool {
				return strings.Contains(logs.String(), `"path":"`+tt.path+`"`)
			}, time.Second, 10*time.Millisecond)

			var line struct {
				RequestID string `json:"request_id"`
				Status    int    `json:"status"`
			}
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(logs.String())), &line))
			assert.NotEmpty(t, line.RequestID)
			assert.Equal(t, tt.status, line.Status)
		})
	}
}
