package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"weather-forecast/api"
	"weather-forecast/datasource"
	"weather-forecast/events"
	"weather-forecast/pipeline"
	"weather-forecast/providers/openweathermap"
	"weather-forecast/tracing"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	// Parse command line arguments
	configFile := flag.String("config", "config.json", "Path to optional configuration file")
	port := flag.Int("port", 0, "Port to run the server on (overrides config)")
	flag.Parse()

	config, err := datasource.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		config.HTTPPort = *port
	}

	logger := setupLogger(config.LogLevel)
	if err := config.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("Configuration loaded",
		"port", config.HTTPPort,
		"workers", config.Workers,
		"http_timeout", time.Duration(config.HTTPTimeout),
		"rate_limit_rps", config.OpenWeatherMap.RateLimitRPS)

	shutdownTracing, err := tracing.Setup("weather-forecast", config.ZipkinURL)
	if err != nil {
		logger.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}

	opts, err := openweathermap.OptionsFromConfig(config, logger)
	if err != nil {
		logger.Error("Invalid provider options", "error", err)
		os.Exit(1)
	}

	// Geocoding and One Call share one API key, so they share one limiter
	limiter := datasource.NewLimiter(config.OpenWeatherMap.RateLimitRPS, config.OpenWeatherMap.RateLimitBurst)
	geocoder := datasource.NewRateLimitedGeocoder(openweathermap.NewGeocoder(opts), limiter)
	forecasts := datasource.NewRateLimitedForecastSource(openweathermap.NewForecastFetcher(opts), limiter)

	var publisher events.Publisher = events.NopPublisher{}
	if len(config.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(config.Kafka.Brokers, config.Kafka.Topic, logger)
		if err != nil {
			logger.Error("Failed to connect to Kafka", "brokers", config.Kafka.Brokers, "error", err)
			os.Exit(1)
		}
		publisher = kafka
		logger.Info("Publishing query events", "topic", config.Kafka.Topic)
	}

	p := pipeline.New(geocoder, forecasts, pipeline.Options{
		Workers:   config.Workers,
		QueueSize: config.QueueSize,
		Publisher: publisher,
		Logger:    logger,
	})

	server := api.NewServer(p, config.HTTPPort, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped", "error", err)
	}

	// in-flight queries run to completion before their dependencies go away
	p.Close()
	if err := publisher.Close(); err != nil {
		logger.Error("Failed to close event publisher", "error", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error("Failed to flush traces", "error", err)
	}

	logger.Info("Shutdown complete")
}

func setupLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)

	// JSON output in production
	if os.Getenv("ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}
