package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reefwatch/internal/shared/events"
)

func testEnvelope(aggregateID string) events.Envelope {
	return events.Envelope{
		EventType:        "IncidentModified",
		EventTypeVersion: 1,
		AggregateType:    "Incident",
		AggregateID:      aggregateID,
		Data:             json.RawMessage(`{"name":"test"}`),
		User:             "tester",
	}
}

func TestAppendAssignsIdentityAndVersion(t *testing.T) {
	log := NewEventLog(nil)

	first, err := log.Append(context.Background(), testEnvelope("inc-1"))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if first.EventID == "" {
		t.Fatalf("append must assign an event id")
	}
	if first.Timestamp.IsZero() {
		t.Fatalf("append must assign a timestamp")
	}
	if first.AggregateVersion != 1 {
		t.Fatalf("first envelope for an aggregate gets version 1, got %d", first.AggregateVersion)
	}

	second, err := log.Append(context.Background(), testEnvelope("inc-1"))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if second.AggregateVersion != 2 {
		t.Fatalf("versions increment per aggregate, got %d", second.AggregateVersion)
	}

	other, err := log.Append(context.Background(), testEnvelope("inc-2"))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if other.AggregateVersion != 1 {
		t.Fatalf("versions are scoped per aggregate, got %d", other.AggregateVersion)
	}
}

func TestAppendRejectsInvalidEnvelopes(t *testing.T) {
	log := NewEventLog(nil)

	env := testEnvelope("inc-1")
	env.EventTypeVersion = 0
	if _, err := log.Append(context.Background(), env); !errors.Is(err, events.ErrUnsupportedEventVersion) {
		t.Fatalf("expected ErrUnsupportedEventVersion, got %v", err)
	}

	env = testEnvelope("")
	if _, err := log.Append(context.Background(), env); err == nil {
		t.Fatalf("envelope without aggregate id must be rejected")
	}
}

func TestLiveSubscriptionReceivesAppends(t *testing.T) {
	log := NewEventLog(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	err := log.Subscribe(ctx, "Incident", "IncidentModified", "test-cg",
		func(_ context.Context, env events.Envelope) error {
			received <- env
			return nil
		},
		SubscribeOptions{},
	)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	appended, err := log.Append(context.Background(), testEnvelope("inc-1"))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	select {
	case env := <-received:
		if env.EventID != appended.EventID {
			t.Fatalf("delivered %s, appended %s", env.EventID, appended.EventID)
		}
	case <-time.After(time.Second):
		t.Fatalf("live subscriber never received the envelope")
	}
}

func TestLiveSubscriptionFiltersByType(t *testing.T) {
	log := NewEventLog(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	err := log.Subscribe(ctx, "Incident", "IncidentReported", "test-cg",
		func(_ context.Context, env events.Envelope) error {
			mu.Lock()
			got = append(got, env.EventType)
			mu.Unlock()
			return nil
		},
		SubscribeOptions{},
	)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, err := log.Append(context.Background(), testEnvelope("inc-1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	reported := testEnvelope("inc-1")
	reported.EventType = "IncidentReported"
	if _, err := log.Append(context.Background(), reported); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "IncidentReported" {
		t.Fatalf("subscription must only see its event type, got %v", got)
	}
}

func TestReplayDeliversHistoryToReplayOnlySubscribers(t *testing.T) {
	log := NewEventLog(nil)

	for i := 0; i < 3; i++ {
		if _, err := log.Append(context.Background(), testEnvelope("inc-1")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	var liveSeen int
	err := log.Subscribe(context.Background(), "Incident", "IncidentModified", "live-cg",
		func(_ context.Context, _ events.Envelope) error {
			liveSeen++
			return nil
		},
		SubscribeOptions{},
	)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	var versions []int64
	err = log.Subscribe(context.Background(), "Incident", "IncidentModified", "replay-cg",
		func(_ context.Context, env events.Envelope) error {
			versions = append(versions, env.AggregateVersion)
			return nil
		},
		SubscribeOptions{ReplayOnly: true},
	)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := log.Replay(context.Background()); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if len(versions) != 3 {
		t.Fatalf("expected 3 replayed envelopes, got %d", len(versions))
	}
	for i, v := range versions {
		if v != int64(i+1) {
			t.Fatalf("replay must follow append order, got versions %v", versions)
		}
	}
	if liveSeen != 0 {
		t.Fatalf("replay must not hit live subscriptions, saw %d deliveries", liveSeen)
	}
}

func TestDrainWaitsForBufferedEnvelopes(t *testing.T) {
	log := NewEventLog(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled atomic.Int64
	err := log.Subscribe(ctx, "Incident", "IncidentModified", "slow-cg",
		func(_ context.Context, _ events.Envelope) error {
			time.Sleep(5 * time.Millisecond)
			handled.Add(1)
			return nil
		},
		SubscribeOptions{},
	)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := log.Append(context.Background(), testEnvelope("inc-1")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	if !log.Drain(2 * time.Second) {
		t.Fatalf("drain must wait out buffered envelopes")
	}
	if got := handled.Load(); got != 5 {
		t.Fatalf("drain returned with %d of 5 envelopes handled", got)
	}
}

func TestDrainReportsExpiredGrace(t *testing.T) {
	log := NewEventLog(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	err := log.Subscribe(ctx, "Incident", "IncidentModified", "stuck-cg",
		func(_ context.Context, _ events.Envelope) error {
			<-release
			return nil
		},
		SubscribeOptions{},
	)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, err := log.Append(context.Background(), testEnvelope("inc-1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if log.Drain(30 * time.Millisecond) {
		t.Fatalf("drain must report a blocked subscriber as incomplete")
	}
	close(release)
	if !log.Drain(time.Second) {
		t.Fatalf("drain must settle once the subscriber unblocks")
	}
}

func TestCancelledSubscriptionFlushesQueuedEnvelopes(t *testing.T) {
	log := NewEventLog(nil)
	ctx, cancel := context.WithCancel(context.Background())

	var handled atomic.Int64
	err := log.Subscribe(ctx, "Incident", "IncidentModified", "flush-cg",
		func(_ context.Context, _ events.Envelope) error {
			time.Sleep(2 * time.Millisecond)
			handled.Add(1)
			return nil
		},
		SubscribeOptions{},
	)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := log.Append(context.Background(), testEnvelope("inc-1")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	cancel()

	if !log.Drain(2 * time.Second) {
		t.Fatalf("drain must cover envelopes queued before cancellation")
	}
	if got := handled.Load(); got != 4 {
		t.Fatalf("cancellation discarded queued envelopes: handled %d of 4", got)
	}
}

func TestReplayAbortsOnHandlerError(t *testing.T) {
	log := NewEventLog(nil)

	for i := 0; i < 3; i++ {
		if _, err := log.Append(context.Background(), testEnvelope("inc-1")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	handled := 0
	boom := errors.New("projection broken")
	err := log.Subscribe(context.Background(), "Incident", "IncidentModified", "replay-cg",
		func(_ context.Context, env events.Envelope) error {
			handled++
			if env.AggregateVersion == 2 {
				return boom
			}
			return nil
		},
		SubscribeOptions{ReplayOnly: true},
	)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := log.Replay(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected replay to surface handler error, got %v", err)
	}
	if handled != 2 {
		t.Fatalf("replay must stop at the failing envelope, handled %d", handled)
	}
}
