package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"weather-forecast/datasource"
	"weather-forecast/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// ForecastQuerier submits asynchronous forecast queries
type ForecastQuerier interface {
	QueryWeather(city string, mode models.ForecastMode, onResult func([]models.WeatherEntry), onError func(error)) string
}

// ForecastResponse is the body of a successful forecast request
type ForecastResponse struct {
	QueryID string                `json:"queryId"`
	City    string                `json:"city"`
	Mode    models.ForecastMode   `json:"mode"`
	Entries []models.WeatherEntry `json:"entries"`
}

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	QueryID string `json:"queryId,omitempty"`
}

// Server represents the API server
type Server struct {
	querier ForecastQuerier
	logger  *slog.Logger
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(querier ForecastQuerier, port int, logger *slog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		querier: querier,
		logger:  logger,
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/forecast/{city}", s.handleGetForecast).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealthCheck).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	// mux only runs router.Use middleware for matched routes, so the chain
	// wraps the whole router
	s.handler = chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		loggingMiddleware(logger),
	).Handler(router)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router returns the HTTP handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.handler
}

// Start begins the API server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the API server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type outcome struct {
	entries []models.WeatherEntry
	err     error
}

// handleGetForecast handles GET /api/v1/forecast/{city}?mode=hourly|daily
func (s *Server) handleGetForecast(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(mux.Vars(r)["city"])
	if city == "" {
		sendError(w, http.StatusBadRequest, datasource.ErrEmptyCity, "")
		return
	}

	modeParam := r.URL.Query().Get("mode")
	if modeParam == "" {
		modeParam = models.Hourly.String()
	}
	mode, err := models.ParseForecastMode(modeParam)
	if err != nil {
		sendError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", datasource.ErrInvalidMode, err), "")
		return
	}

	// buffered so a late callback never blocks the pipeline's dispatcher
	done := make(chan outcome, 1)
	queryID := s.querier.QueryWeather(city, mode,
		func(entries []models.WeatherEntry) { done <- outcome{entries: entries} },
		func(err error) { done <- outcome{err: err} },
	)

	select {
	case out := <-done:
		if out.err != nil {
			sendError(w, statusFor(out.err), out.err, queryID)
			return
		}
		sendJSON(w, http.StatusOK, ForecastResponse{
			QueryID: queryID,
			City:    city,
			Mode:    mode,
			Entries: out.entries,
		})
	case <-r.Context().Done():
		s.logger.Info("Client went away before the query completed", "query_id", queryID, "city", city)
	}
}

// handleHealthCheck handles health check requests
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found", Message: r.URL.Path})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed", Message: r.Method})
}

// statusFor maps a query error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, datasource.ErrEmptyCity), errors.Is(err, datasource.ErrInvalidMode):
		return http.StatusBadRequest
	case errors.Is(err, datasource.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, err error, queryID string) {
	sendJSON(w, status, ErrorResponse{
		Error:   datasource.UserMessage(err),
		Message: err.Error(),
		QueryID: queryID,
	})
}
