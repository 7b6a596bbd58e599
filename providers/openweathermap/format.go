package openweathermap

import (
	"fmt"
	"strings"
	"time"
)

// Label layouts: "10:13 PM" for hourly entries, "Tue, Nov 14" for daily entries
const (
	hourlyLabelLayout = "03:04 PM"
	dailyLabelLayout  = "Mon, Jan 2"
)

// FormatHourlyLabel formats a Unix timestamp as a 12-hour clock time in loc
func FormatHourlyLabel(unix int64, loc *time.Location) string {
	return time.Unix(unix, 0).In(loc).Format(hourlyLabelLayout)
}

// FormatDailyLabel formats a Unix timestamp as an abbreviated weekday and date in loc
func FormatDailyLabel(unix int64, loc *time.Location) string {
	return time.Unix(unix, 0).In(loc).Format(dailyLabelLayout)
}

// FormatTemperature formats a Fahrenheit value with one decimal
func FormatTemperature(temp float64) string {
	return fmt.Sprintf("%.1f °F", temp)
}

// FormatTemperatureRange formats a Fahrenheit min-max range with one decimal each side
func FormatTemperatureRange(min, max float64) string {
	return fmt.Sprintf("%.1f - %.1f °F", min, max)
}

// IconRef builds the icon URL for an icon code
func IconRef(base, code string) string {
	return strings.TrimRight(base, "/") + "/" + code + "@2x.png"
}
