package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	application "reefwatch/contexts/incident-tracking/incident-service/application"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
	"reefwatch/internal/shared/dedupe"
	"reefwatch/internal/shared/events"

	"github.com/google/uuid"
)

const (
	defaultConsumerGroup = "incident-reported-fanout-cg"
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
)

// ReportedConsumer fans each IncidentReported envelope out to two
// independent sinks: the durable store and the external notification
// channel. Delivery from the log is at-least-once, so the consumer is
// idempotent: a process-local dedupe cache suppresses redundant work, and
// the persist step's create-if-absent check is the actual correctness
// guard across restarts and instances.
type ReportedConsumer struct {
	Subscriber    ports.EventSubscriber
	Incidents     ports.IncidentRepository
	Notifier      ports.ProcessedNotifier
	DeadLetters   ports.DeadLetterStore
	Dedupe        *dedupe.Cache
	Metrics       *ConsumerMetrics
	ConsumerGroup string
	RetryAttempts int
	RetryDelay    time.Duration
	Logger        *slog.Logger

	inflight sync.WaitGroup
}

func (c *ReportedConsumer) Start(ctx context.Context) error {
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultConsumerGroup
	}
	return c.Subscriber.Subscribe(
		ctx,
		application.AggregateTypeIncident,
		application.EventTypeIncidentReported,
		group,
		c.HandleReported,
		ports.SubscribeOptions{ReplayOnly: false},
	)
}

// Drain waits for in-flight envelope handling (including retries) to
// settle, up to the grace period. Returns false on timeout.
func (c *ReportedConsumer) Drain(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}

func (c *ReportedConsumer) HandleReported(ctx context.Context, env events.Envelope) error {
	c.inflight.Add(1)
	defer c.inflight.Done()

	logger := application.ResolveLogger(c.Logger)
	key := env.DedupeKey()

	if c.Dedupe != nil && c.Dedupe.Contains(key) {
		c.Metrics.IncDedupeHit()
		c.Metrics.IncProcessed("duplicate")
		logger.Debug("reported envelope already processed",
			"event", "incident_reported_duplicate",
			"module", "incident-tracking/incident-service",
			"layer", "worker",
			"event_id", env.EventID,
			"dedupe_key", key,
		)
		return nil
	}

	// An undecodable payload is not transient: retrying cannot fix it, so
	// it goes straight to the dead-letter store instead of being dropped.
	var payload application.IncidentPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		c.parkDeadLetter(ctx, env, 1, fmt.Errorf("decode reported payload: %w", err), logger)
		return nil
	}
	payload.IncidentID = env.AggregateID

	attempts := c.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		started := time.Now()
		// Each attempt re-runs persist+notify end to end; the persist
		// existence check keeps the retried attempt idempotent.
		err := c.fanOut(ctx, env, payload, logger)
		c.Metrics.ObserveFanOut(time.Since(started))
		if err == nil {
			// Only mark the key once both sinks have settled.
			if c.Dedupe != nil {
				c.Dedupe.Add(key)
			}
			c.Metrics.IncProcessed("applied")
			logger.Info("reported incident processed",
				"event", "incident_reported_processed",
				"module", "incident-tracking/incident-service",
				"layer", "worker",
				"event_id", env.EventID,
				"incident_id", env.AggregateID,
				"attempt", attempt,
			)
			return nil
		}
		lastErr = err
		logger.Error("reported incident fan-out failed",
			"event", "incident_reported_attempt_failed",
			"module", "incident-tracking/incident-service",
			"layer", "worker",
			"event_id", env.EventID,
			"incident_id", env.AggregateID,
			"attempt", attempt,
			"error", err.Error(),
		)
		if attempt == attempts {
			break
		}
		c.Metrics.IncRetry()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	c.parkDeadLetter(ctx, env, attempts, lastErr, logger)
	return nil
}

// fanOut runs persist and notify as a fork/join rendezvous: two independent
// operations joined before completion. A failure in one does not cancel the
// other, and notify soft-fails so only the persist leg can fail the join.
func (c *ReportedConsumer) fanOut(
	ctx context.Context,
	env events.Envelope,
	payload application.IncidentPayload,
	logger *slog.Logger,
) error {
	var group errgroup.Group

	group.Go(func() error {
		return c.persist(ctx, env, payload, logger)
	})
	group.Go(func() error {
		messageID, err := c.Notifier.PublishProcessed(ctx, payload.Summary())
		if err != nil {
			// The notification channel is advisory: log and move on.
			logger.Warn("processed notification failed",
				"event", "incident_reported_notify_failed",
				"module", "incident-tracking/incident-service",
				"layer", "worker",
				"incident_id", env.AggregateID,
				"error", err.Error(),
			)
			return nil
		}
		logger.Debug("processed notification published",
			"event", "incident_reported_notified",
			"module", "incident-tracking/incident-service",
			"layer", "worker",
			"incident_id", env.AggregateID,
			"message_id", messageID,
		)
		return nil
	})

	return group.Wait()
}

// persist creates the record unless it already exists. The existence check
// is the cross-process idempotency guard: a redelivered or retried envelope
// for a stored aggregate is already applied.
func (c *ReportedConsumer) persist(
	ctx context.Context,
	env events.Envelope,
	payload application.IncidentPayload,
	logger *slog.Logger,
) error {
	exists, err := c.Incidents.Exists(ctx, env.AggregateID)
	if err != nil {
		return err
	}
	if exists {
		logger.Debug("incident already persisted",
			"event", "incident_reported_skip_existing",
			"module", "incident-tracking/incident-service",
			"layer", "worker",
			"incident_id", env.AggregateID,
		)
		return nil
	}

	incident := payload.ToIncident()
	incident.CreatedBy = env.User
	incident.CreatedAt = env.Timestamp.UTC()
	incident.UpdatedBy = env.User
	incident.UpdatedAt = env.Timestamp.UTC()
	return c.Incidents.Create(ctx, incident)
}

func (c *ReportedConsumer) parkDeadLetter(
	ctx context.Context,
	env events.Envelope,
	attempts int,
	cause error,
	logger *slog.Logger,
) {
	c.Metrics.IncDeadLettered()
	c.Metrics.IncProcessed("dead_lettered")

	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	letter := ports.DeadLetter{
		DeadLetterID: uuid.NewString(),
		Envelope:     env,
		Reason:       reason,
		Attempts:     attempts,
		FailedAt:     time.Now().UTC(),
	}
	if err := c.DeadLetters.AppendDeadLetter(ctx, letter); err != nil {
		// Both the fan-out and the dead-letter write failed; logging is
		// all that is left.
		logger.Error("dead-letter append failed",
			"event", "incident_dead_letter_failed",
			"module", "incident-tracking/incident-service",
			"layer", "worker",
			"event_id", env.EventID,
			"incident_id", env.AggregateID,
			"reason", reason,
			"error", err.Error(),
		)
		return
	}
	logger.Error("reported incident dead-lettered",
		"event", "incident_dead_lettered",
		"module", "incident-tracking/incident-service",
		"layer", "worker",
		"event_id", env.EventID,
		"incident_id", env.AggregateID,
		"attempts", attempts,
		"reason", reason,
	)
}
