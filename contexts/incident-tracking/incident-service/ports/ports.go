package ports

import (
	"context"
	"time"

	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	"reefwatch/internal/shared/events"
)

type IncidentFilter struct {
	Name           string
	OrganizationID string
	Active         *bool
}

type Pagination struct {
	Page  int
	Count int
	// QueryTotalCount requests the total result size; the count query only
	// runs when asked for, never on every page.
	QueryTotalCount bool
}

type Sort struct {
	Field string
	Desc  bool
}

// IncidentRepository is the CRUD surface over the document store for the
// incident aggregate. Create is first-writer-wins for a given identifier.
type IncidentRepository interface {
	Create(ctx context.Context, incident entities.Incident) error
	Exists(ctx context.Context, incidentID string) (bool, error)
	Update(ctx context.Context, incidentID string, patch entities.IncidentPatch, actor string, now time.Time) (entities.Incident, error)
	Replace(ctx context.Context, incident entities.Incident, actor string, now time.Time) (entities.Incident, error)
	Delete(ctx context.Context, incidentIDs []string) (bool, error)
	FindByID(ctx context.Context, incidentID string, organizationID string) (entities.Incident, error)
	Find(ctx context.Context, filter IncidentFilter, page Pagination, sort Sort) ([]entities.Incident, error)
	Count(ctx context.Context, filter IncidentFilter) (int64, error)
}

// RecoveryRepository is the replay-side write surface. ApplyRecovered only
// applies when aggregateVersion is at or above the stored version, so an
// out-of-sequence replay never overwrites a later envelope with an earlier
// one. DeleteRecovered is idempotent: deleting an absent id is not an error.
type RecoveryRepository interface {
	ApplyRecovered(ctx context.Context, incident entities.Incident, aggregateVersion int64) error
	DeleteRecovered(ctx context.Context, incidentID string) error
}

type EventAppender interface {
	Append(ctx context.Context, env events.Envelope) (events.Envelope, error)
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		aggregateType string,
		eventType string,
		group string,
		handler func(context.Context, events.Envelope) error,
		opts SubscribeOptions,
	) error
}

type SubscribeOptions struct {
	ReplayOnly bool
}

// IncidentSummary is the subset of fields published to the external
// notification channel.
type IncidentSummary struct {
	IncidentID string `json:"incident_id"`
	Name       string `json:"name"`
	Country    string `json:"country"`
	Location   string `json:"location"`
	Date       string `json:"date"`
	Year       string `json:"year"`
	Activity   string `json:"activity"`
	Injury     string `json:"injury"`
	Fatal      string `json:"fatal"`
	Species    string `json:"species"`
}

// ProcessedNotifier publishes a best-effort message describing a processed
// incident. Implementations soft-fail: a publish error is logged and an
// empty message ID returned, never an error, because the channel is
// advisory, not authoritative.
type ProcessedNotifier interface {
	PublishProcessed(ctx context.Context, summary IncidentSummary) (string, error)
}

// ViewNotifier signals, best effort, that the materialized view changed.
type ViewNotifier interface {
	NotifyChanged(ctx context.Context, summary IncidentSummary) error
}

type DeadLetter struct {
	DeadLetterID string
	Envelope     events.Envelope
	Reason       string
	Attempts     int
	FailedAt     time.Time
}

// DeadLetterStore durably retains envelopes that exhausted their retries so
// a reported event is never lost silently.
type DeadLetterStore interface {
	AppendDeadLetter(ctx context.Context, letter DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}

// FeedRecord is one external record from the open-data incident feed.
type FeedRecord struct {
	Date         string `json:"date"`
	Year         string `json:"year"`
	Type         string `json:"type"`
	Country      string `json:"country"`
	Area         string `json:"area"`
	Location     string `json:"location"`
	Activity     string `json:"activity"`
	Injury       string `json:"injury"`
	Fatal        string `json:"fatal_y_n"`
	Species      string `json:"species"`
	Investigator string `json:"investigator_or_source"`
	CaseNumber   string `json:"case_number"`
}

// FeedFetcher pulls up to limit external records. Implementations apply a
// request timeout and return an empty slice on failure rather than
// propagating; callers treat empty as "no data available".
type FeedFetcher interface {
	Fetch(ctx context.Context, limit int, where string) ([]FeedRecord, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
