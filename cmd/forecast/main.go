package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"weather-forecast/api"
	"weather-forecast/models"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	defaultServer := os.Getenv("FORECAST_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	server := flag.String("server", defaultServer, "Base URL of the forecast API")
	city := flag.String("city", "", "City to look up")
	modeFlag := flag.String("mode", "hourly", "Forecast mode: hourly or daily")
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")
	flag.Parse()

	if strings.TrimSpace(*city) == "" {
		fmt.Fprintln(os.Stderr, "Please enter a city name (-city)")
		os.Exit(2)
	}
	mode, err := models.ParseForecastMode(*modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	client := &http.Client{Timeout: *timeout}
	forecast, err := fetchForecast(client, *server, *city, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Forecast (%s) for %s\n\n", mode, forecast.City)
	printEntries(os.Stdout, forecast.Entries)
}

func fetchForecast(client *http.Client, server, city string, mode models.ForecastMode) (*api.ForecastResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v1/forecast/%s?mode=%s",
		strings.TrimRight(server, "/"), url.PathEscape(city), mode)

	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to reach forecast server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, errors.New(errResp.Error)
		}
		return nil, fmt.Errorf("server error (status %d)", resp.StatusCode)
	}

	var forecast api.ForecastResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &forecast, nil
}

func printEntries(w io.Writer, entries []models.WeatherEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Label, e.Condition, e.TemperatureLabel, e.IconRef)
	}
	tw.Flush()
}
