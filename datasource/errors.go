package datasource

import (
	"errors"
	"fmt"
)

// Error kinds every stage failure is reduced to
var (
	// ErrNotFound is returned when the geocoder has no match for the city
	ErrNotFound = errors.New("location not found")
	// ErrTransport covers network failures, non-success statuses and undecodable bodies
	ErrTransport = errors.New("transport error")
	// ErrMalformedData is returned when a decoded response lacks a required field
	ErrMalformedData = errors.New("malformed data")
)

// Caller errors, rejected before any stage runs
var (
	ErrEmptyCity   = errors.New("city name must not be empty")
	ErrInvalidMode = errors.New("invalid forecast mode")
)

// Stage names used in QueryError and logs
const (
	StageGeocode  = "geocode"
	StageForecast = "forecast"
)

// QueryError is a classified failure raised by one pipeline stage
type QueryError struct {
	Kind  error  // one of ErrNotFound, ErrTransport, ErrMalformedData
	Stage string // StageGeocode or StageForecast
	Err   error  // underlying cause, may be nil
}

func (e *QueryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *QueryError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound builds a QueryError of kind ErrNotFound
func NotFound(stage string, err error) *QueryError {
	return &QueryError{Kind: ErrNotFound, Stage: stage, Err: err}
}

// Transport builds a QueryError of kind ErrTransport
func Transport(stage string, err error) *QueryError {
	return &QueryError{Kind: ErrTransport, Stage: stage, Err: err}
}

// Malformed builds a QueryError of kind ErrMalformedData
func Malformed(stage string, err error) *QueryError {
	return &QueryError{Kind: ErrMalformedData, Stage: stage, Err: err}
}

// Kind returns the error kind carried by err, or nil when err is unclassified
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrMalformedData, ErrTransport} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Classify returns err unchanged if it already carries a kind, caller errors included.
// Anything else is reported as a transport failure of stage.
func Classify(stage string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil || errors.Is(err, ErrEmptyCity) || errors.Is(err, ErrInvalidMode) {
		return err
	}
	return Transport(stage, err)
}

// UserMessage returns a short message suitable for showing to an end user
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCity):
		return "Please enter a city name."
	case errors.Is(err, ErrInvalidMode):
		return "Forecast mode must be hourly or daily."
	case errors.Is(err, ErrNotFound):
		return "City not found. Check the spelling and try again."
	case errors.Is(err, ErrMalformedData):
		return "The weather service returned an unexpected response format."
	default:
		return "Network or server problem. Please try again."
	}
}
