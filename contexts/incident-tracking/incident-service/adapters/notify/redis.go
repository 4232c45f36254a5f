package notifyadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"reefwatch/contexts/incident-tracking/incident-service/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	processedChannel = "incidents.processed"
	viewChannel      = "incidents.view-changed"

	sourceService = "incident-service"
)

// Publisher pushes advisory notifications onto Redis pub/sub channels.
// Publishing is best effort on both channels: a broken notifier never
// fails the write path that triggered it.
type Publisher struct {
	client *redis.Client
	clock  ports.Clock
	logger *slog.Logger
}

func NewPublisher(client *redis.Client, clock ports.Clock, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		clock:  clock,
		logger: logger,
	}
}

type notification struct {
	EventType string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
}

func (p *Publisher) PublishProcessed(ctx context.Context, summary ports.IncidentSummary) (string, error) {
	messageID := uuid.NewString()
	now := p.now()
	payload := notification{
		EventType: "incident.processed",
		Timestamp: now.Format(time.RFC3339),
		Source:    sourceService,
		Data:      summaryData(summary, now),
	}
	if err := p.publish(ctx, processedChannel, payload); err != nil {
		p.logger.Warn("processed notification dropped",
			"event", "notify_publish_failed",
			"module", "incident-tracking/incident-service",
			"layer", "adapter",
			"channel", processedChannel,
			"incident_id", summary.IncidentID,
			"error", err.Error(),
		)
		return "", nil
	}
	return messageID, nil
}

func (p *Publisher) NotifyChanged(ctx context.Context, summary ports.IncidentSummary) error {
	now := p.now()
	payload := notification{
		EventType: "incident.view_changed",
		Timestamp: now.Format(time.RFC3339),
		Source:    sourceService,
		Data:      summaryData(summary, now),
	}
	if err := p.publish(ctx, viewChannel, payload); err != nil {
		p.logger.Warn("view change notification dropped",
			"event", "notify_publish_failed",
			"module", "incident-tracking/incident-service",
			"layer", "adapter",
			"channel", viewChannel,
			"incident_id", summary.IncidentID,
			"error", err.Error(),
		)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, channel string, payload notification) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channel, body).Err()
}

func (p *Publisher) now() time.Time {
	if p.clock != nil {
		return p.clock.Now()
	}
	return time.Now().UTC()
}

func summaryData(summary ports.IncidentSummary, processedAt time.Time) map[string]any {
	return map[string]any{
		"incident_id":  summary.IncidentID,
		"name":         summary.Name,
		"country":      summary.Country,
		"location":     summary.Location,
		"date":         summary.Date,
		"year":         summary.Year,
		"activity":     summary.Activity,
		"injury":       summary.Injury,
		"fatal":        summary.Fatal,
		"species":      summary.Species,
		"processed_at": processedAt.Format(time.RFC3339),
	}
}
