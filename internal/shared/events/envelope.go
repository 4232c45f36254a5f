package events

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrUnsupportedEventVersion marks an envelope whose schema version has no
// registered mapper. Version 0 never had a migration path, so processing
// must abort instead of guessing.
var ErrUnsupportedEventVersion = errors.New("unsupported event type version")

// Envelope is the canonical event shape used across Reefwatch. Envelopes are
// immutable facts: once appended to the event log they are never mutated.
// Ordering is only meaningful within a single aggregate ID.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventTypeVersion int             `json:"event_type_version"`
	AggregateType    string          `json:"aggregate_type"`
	AggregateID      string          `json:"aggregate_id"`
	AggregateVersion int64           `json:"aggregate_version"`
	Data             json.RawMessage `json:"data"`
	User             string          `json:"user"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Validate rejects envelopes that can never be processed. EventTypeVersion
// starts at 1; version 0 is explicitly invalid and fails fast at append time.
func (e Envelope) Validate() error {
	if e.EventType == "" {
		return errors.New("envelope event type is required")
	}
	if e.AggregateType == "" {
		return errors.New("envelope aggregate type is required")
	}
	if e.AggregateID == "" {
		return errors.New("envelope aggregate id is required")
	}
	if e.EventTypeVersion < 1 {
		return ErrUnsupportedEventVersion
	}
	return nil
}

// DedupeKey identifies one delivery for process-local duplicate suppression.
func (e Envelope) DedupeKey() string {
	return e.AggregateID + "-" + e.Timestamp.UTC().Format(time.RFC3339Nano)
}
