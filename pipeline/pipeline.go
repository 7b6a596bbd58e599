// Package pipeline chains geocoding and forecast retrieval and runs queries on
// a bounded worker pool.
//
// Each query resolves the city, then fetches the forecast for the resulting
// coordinates. Stage work runs on one of a fixed number of workers; results are
// handed to a single dispatcher goroutine that invokes the caller's callbacks
// one at a time. Workers never wait for the dispatcher, so callbacks may submit
// further queries or close the pipeline. Submitted queries cannot be cancelled.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"weather-forecast/datasource"
	"weather-forecast/events"
	"weather-forecast/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPipelineClosed is reported to queries submitted after Close
var ErrPipelineClosed = errors.New("pipeline is closed")

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Options configures a Pipeline
type Options struct {
	// Number of queries processed concurrently
	Workers int
	// Pending queries accepted before QueryWeather blocks
	QueueSize int
	// Publisher receives one event per completed query, nil disables events
	Publisher events.Publisher
	Logger    *slog.Logger
}

// job is one submitted query
type job struct {
	id       string
	city     string
	mode     models.ForecastMode
	onResult func([]models.WeatherEntry)
	onError  func(error)
}

// Pipeline runs forecast queries
type Pipeline struct {
	geocoder  datasource.Geocoder
	forecasts datasource.ForecastSource
	publisher events.Publisher
	logger    *slog.Logger
	tracer    trace.Tracer

	jobs chan job
	quit chan struct{}

	// mu guards closed and registration of senders
	mu      sync.RWMutex
	closed  bool
	senders sync.WaitGroup

	// results waiting for the dispatcher, unbounded
	deliveryMu sync.Mutex
	ready      *sync.Cond
	pending    []func()
	draining   bool

	// held while a callback runs; callbackOwner is the goroutine running it
	callbackMu    sync.Mutex
	callbackOwner atomic.Uint64

	workers    sync.WaitGroup
	dispatcher sync.WaitGroup
	closeOnce  sync.Once
}

// New creates a pipeline and starts its workers and dispatcher
func New(geocoder datasource.Geocoder, forecasts datasource.ForecastSource, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Pipeline{
		geocoder:  geocoder,
		forecasts: forecasts,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		tracer:    otel.Tracer("weather-forecast/pipeline"),
		jobs:      make(chan job, opts.QueueSize),
		quit:      make(chan struct{}),
	}
	p.ready = sync.NewCond(&p.deliveryMu)

	for i := 0; i < opts.Workers; i++ {
		p.workers.Add(1)
		go p.work()
	}

	p.dispatcher.Add(1)
	go p.dispatch()

	return p
}

// QueryWeather submits a query and returns its id. Exactly one of onResult or
// onError is called, once. It blocks only while the queue is full, and may be
// called from a callback.
//
// Callbacks of accepted queries run on the dispatcher goroutine. A query
// submitted after Close fails with ErrPipelineClosed on a goroutine of its own;
// that callback still never overlaps any other callback of the pipeline.
func (p *Pipeline) QueryWeather(city string, mode models.ForecastMode, onResult func([]models.WeatherEntry), onError func(error)) string {
	j := job{
		id:       uuid.NewString(),
		city:     city,
		mode:     mode,
		onResult: onResult,
		onError:  onError,
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.reject(j)
		return j.id
	}
	p.senders.Add(1)
	p.mu.RUnlock()
	defer p.senders.Done()

	select {
	case p.jobs <- j:
	case <-p.quit:
		p.reject(j)
	}
	return j.id
}

// reject fails a query that arrived after Close
func (p *Pipeline) reject(j job) {
	p.logger.Warn("Query rejected, pipeline closed", "query_id", j.id, "city", j.city)
	go p.runCallback(func() { j.fail(ErrPipelineClosed) })
}

// Forecast runs both stages inline on the calling goroutine. It does not go
// through the worker pool, so calls are not bounded by Options.Workers.
func (p *Pipeline) Forecast(ctx context.Context, city string, mode models.ForecastMode) ([]models.WeatherEntry, error) {
	if strings.TrimSpace(city) == "" {
		return nil, datasource.ErrEmptyCity
	}
	if mode != models.Hourly && mode != models.Daily {
		return nil, datasource.ErrInvalidMode
	}

	ctx, span := p.tracer.Start(ctx, "forecast-query", trace.WithAttributes(
		attribute.String("city", city),
		attribute.String("mode", mode.String()),
	))
	defer span.End()

	coords, err := p.resolve(ctx, city)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	entries, err := p.fetch(ctx, coords, mode)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries, nil
}

func (p *Pipeline) resolve(ctx context.Context, city string) (models.Coordinates, error) {
	ctx, span := p.tracer.Start(ctx, "geocode", trace.WithAttributes(
		attribute.String("geocoder", p.geocoder.Name()),
	))
	defer span.End()

	coords, err := p.geocoder.Resolve(ctx, city)
	if err != nil {
		err = datasource.Classify(datasource.StageGeocode, err)
		recordError(span, err)
		return models.Coordinates{}, err
	}
	return coords, nil
}

func (p *Pipeline) fetch(ctx context.Context, coords models.Coordinates, mode models.ForecastMode) ([]models.WeatherEntry, error) {
	ctx, span := p.tracer.Start(ctx, "forecast", trace.WithAttributes(
		attribute.String("source", p.forecasts.Name()),
		attribute.Float64("lat", coords.Latitude),
		attribute.Float64("lon", coords.Longitude),
	))
	defer span.End()

	entries, err := p.forecasts.Fetch(ctx, coords, mode)
	if err != nil {
		err = datasource.Classify(datasource.StageForecast, err)
		recordError(span, err)
		return nil, err
	}
	return entries, nil
}

// Close stops accepting queries, lets queued queries finish, delivers their
// results and returns once every callback has run.
//
// Called from inside a callback, Close returns once the workers have stopped.
// The remaining results are delivered after that callback returns.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.quit)
		p.mu.Unlock()

		// senders blocked on a full queue give up on quit
		p.senders.Wait()
		close(p.jobs)
		p.workers.Wait()

		p.deliveryMu.Lock()
		p.draining = true
		p.deliveryMu.Unlock()
		p.ready.Broadcast()
	})

	if p.callbackOwner.Load() != goroutineID() {
		p.dispatcher.Wait()
	}
}

// work processes queries until the job queue is closed
func (p *Pipeline) work() {
	defer p.workers.Done()

	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Pipeline) run(j job) {
	start := time.Now()
	logger := p.logger.With("query_id", j.id, "city", j.city, "mode", j.mode.String())

	// no cancellation: stage work runs to completion or failure
	entries, err := p.Forecast(context.Background(), j.city, j.mode)
	duration := time.Since(start)

	if err != nil {
		logger.Warn("Query failed", "error", err, "duration_ms", duration.Milliseconds())
	} else {
		logger.Info("Query completed", "entries", len(entries), "duration_ms", duration.Milliseconds())
	}

	p.publish(logger, j, len(entries), err, duration)

	p.enqueue(func() {
		if err != nil {
			j.fail(err)
			return
		}
		j.succeed(entries)
	})
}

// enqueue hands a delivery to the dispatcher without waiting
func (p *Pipeline) enqueue(deliver func()) {
	p.deliveryMu.Lock()
	p.pending = append(p.pending, deliver)
	p.deliveryMu.Unlock()
	p.ready.Signal()
}

func (p *Pipeline) publish(logger *slog.Logger, j job, entries int, err error, duration time.Duration) {
	event := events.QueryEvent{
		QueryID:     j.id,
		City:        j.city,
		Mode:        j.mode.String(),
		Status:      Status(err),
		Entries:     entries,
		DurationMS:  duration.Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	}

	if err := p.publisher.Publish(context.Background(), event); err != nil {
		logger.Error("Failed to publish query event", "error", err)
	}
}

// dispatch runs result callbacks in arrival order until Close has drained
// every worker and nothing is pending
func (p *Pipeline) dispatch() {
	defer p.dispatcher.Done()

	for {
		p.deliveryMu.Lock()
		for len(p.pending) == 0 && !p.draining {
			p.ready.Wait()
		}
		if len(p.pending) == 0 {
			p.deliveryMu.Unlock()
			return
		}
		deliver := p.pending[0]
		p.pending[0] = nil
		p.pending = p.pending[1:]
		p.deliveryMu.Unlock()

		p.runCallback(deliver)
	}
}

// runCallback runs fn exclusively of every other callback
func (p *Pipeline) runCallback(fn func()) {
	p.callbackMu.Lock()
	defer p.callbackMu.Unlock()

	p.callbackOwner.Store(goroutineID())
	defer p.callbackOwner.Store(0)

	fn()
}

func (j job) succeed(entries []models.WeatherEntry) {
	if j.onResult != nil {
		j.onResult(entries)
	}
}

func (j job) fail(err error) {
	if j.onError != nil {
		j.onError(err)
	}
}

// Status maps a query error to an event status
func Status(err error) string {
	switch {
	case err == nil:
		return events.StatusOK
	case errors.Is(err, datasource.ErrNotFound):
		return events.StatusNotFound
	case errors.Is(err, datasource.ErrMalformedData):
		return events.StatusMalformedData
	case errors.Is(err, datasource.ErrEmptyCity), errors.Is(err, datasource.ErrInvalidMode):
		return events.StatusInvalidRequest
	default:
		return events.StatusTransportError
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
