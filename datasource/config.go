package datasource

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Default OpenWeatherMap endpoints
const (
	DefaultGeocodeURL  = "https://api.openweathermap.org/geo/1.0/direct"
	DefaultForecastURL = "https://api.openweathermap.org/data/3.0/onecall"
	DefaultIconBaseURL = "https://openweathermap.org/img/wn"
)

// Duration is a time.Duration read from JSON as a string such as "10s"
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config represents the application configuration
type Config struct {
	OpenWeatherMap struct {
		APIKey         string  `json:"apiKey"`
		GeocodeURL     string  `json:"geocodeURL"`
		ForecastURL    string  `json:"forecastURL"`
		IconBaseURL    string  `json:"iconBaseURL"`
		RateLimitRPS   float64 `json:"rateLimitRPS"`
		RateLimitBurst int     `json:"rateLimitBurst"`
	} `json:"openWeatherMap"`

	// Transport timeout applied to each upstream request
	HTTPTimeout Duration `json:"httpTimeout"`

	// Number of queries processed concurrently
	Workers int `json:"workers"`

	// Pending queries accepted before QueryWeather blocks
	QueueSize int `json:"queueSize"`

	// IANA zone used for entry labels, empty means the local zone
	TimeZone string `json:"timeZone"`

	HTTPPort int `json:"httpPort"`

	Kafka struct {
		Brokers []string `json:"brokers"`
		Topic   string   `json:"topic"`
	} `json:"kafka"`

	ZipkinURL string `json:"zipkinURL"`
	LogLevel  string `json:"logLevel"`
}

// DefaultConfig creates a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.OpenWeatherMap.GeocodeURL = DefaultGeocodeURL
	config.OpenWeatherMap.ForecastURL = DefaultForecastURL
	config.OpenWeatherMap.IconBaseURL = DefaultIconBaseURL
	// OpenWeatherMap free tier allows 60 calls/minute
	config.OpenWeatherMap.RateLimitRPS = 1.0
	config.OpenWeatherMap.RateLimitBurst = 5
	config.HTTPTimeout = Duration(10 * time.Second)
	config.Workers = 4
	config.QueueSize = 256
	config.HTTPPort = 8080
	config.Kafka.Topic = "weather_queries"
	config.LogLevel = "info"
	return config
}

// LoadConfig loads configuration from an optional JSON file and then applies
// environment overrides. A missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		file, err := os.Open(filename)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to open config: %w", err)
		default:
			defer file.Close()
			if err := json.NewDecoder(file).Decode(config); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", filename, err)
			}
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	owm := &c.OpenWeatherMap
	owm.APIKey = getEnv("OPENWEATHERMAP_API_KEY", owm.APIKey)
	owm.GeocodeURL = getEnv("GEOCODE_URL", owm.GeocodeURL)
	owm.ForecastURL = getEnv("FORECAST_URL", owm.ForecastURL)
	owm.IconBaseURL = getEnv("ICON_BASE_URL", owm.IconBaseURL)
	c.TimeZone = getEnv("TIME_ZONE", c.TimeZone)
	c.Kafka.Brokers = getEnvSlice("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.ZipkinURL = getEnv("ZIPKIN_URL", c.ZipkinURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var err error
	if owm.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", owm.RateLimitRPS); err != nil {
		return err
	}
	if owm.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", owm.RateLimitBurst); err != nil {
		return err
	}
	if c.Workers, err = getEnvInt("WORKERS", c.Workers); err != nil {
		return err
	}
	if c.QueueSize, err = getEnvInt("QUEUE_SIZE", c.QueueSize); err != nil {
		return err
	}
	if c.HTTPPort, err = getEnvInt("HTTP_PORT", c.HTTPPort); err != nil {
		return err
	}
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if err := c.HTTPTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", v, err)
		}
	}
	return nil
}

// Validate checks that the configuration can drive the pipeline
func (c *Config) Validate() error {
	var errs []error
	if c.OpenWeatherMap.APIKey == "" {
		errs = append(errs, errors.New("OpenWeatherMap API key is required"))
	}
	if c.OpenWeatherMap.GeocodeURL == "" || c.OpenWeatherMap.ForecastURL == "" {
		errs = append(errs, errors.New("geocode and forecast endpoints are required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue size must not be negative, got %d", c.QueueSize))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if c.OpenWeatherMap.RateLimitRPS < 0 || c.OpenWeatherMap.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limit settings must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location returns the zone used for entry labels
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return intVal, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return floatVal, nil
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
