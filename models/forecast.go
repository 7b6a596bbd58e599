package models

import (
	"fmt"
	"strings"
)

// ForecastMode selects the forecast shape requested from the upstream source
type ForecastMode int

const (
	// Hourly requests the short-range forecast, up to 48 hourly entries
	Hourly ForecastMode = iota
	// Daily requests the multi-day forecast, up to 7 daily entries
	Daily
)

// Maximum number of entries produced per mode
const (
	MaxHourlyEntries = 48
	MaxDailyEntries  = 7
)

// String returns the lowercase name of the mode
func (m ForecastMode) String() string {
	switch m {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	default:
		return fmt.Sprintf("ForecastMode(%d)", int(m))
	}
}

// MaxEntries returns the truncation limit for the mode
func (m ForecastMode) MaxEntries() int {
	if m == Daily {
		return MaxDailyEntries
	}
	return MaxHourlyEntries
}

// ParseForecastMode parses "hourly" or "daily" (case-insensitive)
func ParseForecastMode(s string) (ForecastMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hourly":
		return Hourly, nil
	case "daily":
		return Daily, nil
	default:
		return 0, fmt.Errorf("unknown forecast mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (m ForecastMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *ForecastMode) UnmarshalText(text []byte) error {
	mode, err := ParseForecastMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// WeatherEntry is a single display-ready forecast point
type WeatherEntry struct {
	Label            string `json:"label"`            // formatted time (hourly) or date (daily)
	Condition        string `json:"condition"`        // short weather category, e.g. "Rain"
	IconRef          string `json:"iconRef"`          // icon URL, never fetched here
	TemperatureLabel string `json:"temperatureLabel"` // e.g. "73.2 °F" or "55.0 - 68.3 °F"
}
