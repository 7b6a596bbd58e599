// Package events publishes one event per completed forecast query.
// Events describe the outcome of a query; forecast entries themselves are never published.
package events

import (
	"context"
	"time"
)

// Query outcome statuses
const (
	StatusOK             = "ok"
	StatusNotFound       = "not_found"
	StatusTransportError = "transport_error"
	StatusMalformedData  = "malformed_data"
	StatusInvalidRequest = "invalid_request"
)

// QueryEvent describes a completed query
type QueryEvent struct {
	QueryID     string    `json:"queryId"`
	City        string    `json:"city"`
	Mode        string    `json:"mode"`
	Status      string    `json:"status"`
	Entries     int       `json:"entries"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"durationMs"`
	CompletedAt time.Time `json:"completedAt"`
}

// Publisher delivers query events to an external sink
type Publisher interface {
	Publish(ctx context.Context, event QueryEvent) error
	Close() error
}

// NopPublisher discards every event
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, QueryEvent) error { return nil }

// Close does nothing
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
