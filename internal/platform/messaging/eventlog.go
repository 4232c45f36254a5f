package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"reefwatch/internal/shared/events"

	"github.com/google/uuid"
)

// Handler processes one delivered envelope. Returning an error does not
// trigger redelivery; consumers own their retry policy.
type Handler func(context.Context, events.Envelope) error

// SubscribeOptions controls which traffic a subscription receives.
// ReplayOnly subscriptions are skipped on live appends and only see
// envelopes during a Replay pass; live subscriptions see the inverse.
type SubscribeOptions struct {
	ReplayOnly bool
}

type subscription struct {
	aggregateType string
	eventType     string
	group         string
	handler       Handler
	ch            chan events.Envelope
	replayOnly    bool

	// pending counts envelopes accepted into the buffer and not yet fully
	// handled, so Drain sees queued work, not just executing handlers.
	pending atomic.Int64
}

// EventLog is the append-only event log adapter. Delivery to live
// subscribers is at-least-once with no ordering guarantee across aggregate
// IDs. Current implementation is in-process while runtime wiring is
// finalized for external brokers; history is retained so a replay pass can
// rebuild materialized state from the start of the log.
type EventLog struct {
	mu       sync.Mutex
	history  []events.Envelope
	versions map[string]int64
	subs     []*subscription
	logger   *slog.Logger
}

func NewEventLog(logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{
		versions: make(map[string]int64),
		logger:   logger,
	}
}

// Append validates the envelope, assigns its identity and per-aggregate
// version, stores it durably in the log and fans it out to live
// subscriptions. The returned envelope carries the assigned fields.
func (l *EventLog) Append(ctx context.Context, env events.Envelope) (events.Envelope, error) {
	if env.EventID == "" {
		env.EventID = uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	if err := env.Validate(); err != nil {
		return events.Envelope{}, fmt.Errorf("append envelope: %w", err)
	}

	l.mu.Lock()
	l.versions[env.AggregateID]++
	env.AggregateVersion = l.versions[env.AggregateID]
	l.history = append(l.history, env)
	subs := append([]*subscription(nil), l.subs...)
	l.mu.Unlock()

	for _, sub := range subs {
		if sub.replayOnly || !sub.matches(env) {
			continue
		}
		sub.pending.Add(1)
		select {
		case <-ctx.Done():
			sub.pending.Add(-1)
			return env, ctx.Err()
		case sub.ch <- env:
		default:
			sub.pending.Add(-1)
			l.logger.Warn("dropping envelope for slow subscriber",
				"event", "eventlog_deliver_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"group", sub.group,
				"event_id", env.EventID,
				"event_type", env.EventType,
			)
		}
	}

	l.logger.Info("envelope appended",
		"event", "eventlog_append",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"event_id", env.EventID,
		"event_type", env.EventType,
		"aggregate_id", env.AggregateID,
		"aggregate_version", env.AggregateVersion,
	)
	return env, nil
}

// Subscribe registers a handler for envelopes of the given aggregate and
// event type. Live subscriptions are served from a goroutine until ctx is
// cancelled; replay-only subscriptions are invoked synchronously by Replay.
func (l *EventLog) Subscribe(
	ctx context.Context,
	aggregateType string,
	eventType string,
	group string,
	handler Handler,
	opts SubscribeOptions,
) error {
	sub := &subscription{
		aggregateType: aggregateType,
		eventType:     eventType,
		group:         group,
		handler:       handler,
		ch:            make(chan events.Envelope, 128),
		replayOnly:    opts.ReplayOnly,
	}

	l.mu.Lock()
	l.subs = append(l.subs, sub)
	l.mu.Unlock()

	if sub.replayOnly {
		return nil
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				l.flush(ctx, sub)
				l.removeSubscription(sub)
				return
			case env := <-sub.ch:
				l.deliver(ctx, sub, env)
			}
		}
	}()
	return nil
}

func (l *EventLog) deliver(ctx context.Context, sub *subscription, env events.Envelope) {
	defer sub.pending.Add(-1)
	if err := sub.handler(ctx, env); err != nil {
		l.logger.Error("subscriber handler failed",
			"event", "eventlog_consume_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"group", sub.group,
			"event_id", env.EventID,
			"event_type", env.EventType,
			"error", err.Error(),
		)
	}
}

// flush works through envelopes already accepted into the buffer when the
// subscription context ends. Cancellation must never discard queued work;
// handlers run against an uncancelled context so they can finish.
func (l *EventLog) flush(ctx context.Context, sub *subscription) {
	base := context.WithoutCancel(ctx)
	for {
		select {
		case env := <-sub.ch:
			l.deliver(base, sub, env)
		default:
			return
		}
	}
}

// Drain blocks until every live subscription has worked through its queued
// and executing envelopes, up to the grace period. Returns false when the
// grace expired with deliveries still pending.
func (l *EventLog) Drain(grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for {
		if l.pendingDeliveries() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (l *EventLog) pendingDeliveries() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, sub := range l.subs {
		total += sub.pending.Load()
	}
	return total
}

// Replay redelivers the full log history, from the start, to replay-only
// subscriptions in append order. A handler error aborts the pass so a
// broken migration is noticed instead of silently skipped.
func (l *EventLog) Replay(ctx context.Context) error {
	l.mu.Lock()
	history := append([]events.Envelope(nil), l.history...)
	subs := append([]*subscription(nil), l.subs...)
	l.mu.Unlock()

	replayed := 0
	for _, env := range history {
		for _, sub := range subs {
			if !sub.replayOnly || !sub.matches(env) {
				continue
			}
			if err := sub.handler(ctx, env); err != nil {
				return fmt.Errorf("replay %s (%s): %w", env.EventID, env.EventType, err)
			}
			replayed++
		}
	}

	l.logger.Info("replay pass completed",
		"event", "eventlog_replay_completed",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"history_size", len(history),
		"deliveries", replayed,
	)
	return nil
}

func (l *EventLog) removeSubscription(target *subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()

	filtered := make([]*subscription, 0, len(l.subs))
	for _, sub := range l.subs {
		if sub != target {
			filtered = append(filtered, sub)
		}
	}
	l.subs = filtered
}

func (s *subscription) matches(env events.Envelope) bool {
	if s.aggregateType != "" && s.aggregateType != env.AggregateType {
		return false
	}
	if s.eventType != "" && s.eventType != env.EventType {
		return false
	}
	return true
}
