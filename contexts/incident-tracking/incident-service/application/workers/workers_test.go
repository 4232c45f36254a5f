package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	application "reefwatch/contexts/incident-tracking/incident-service/application"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	domainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
	"reefwatch/internal/shared/dedupe"
	"reefwatch/internal/shared/events"
)

type consumerStore struct {
	incidents map[string]entities.Incident
	creates   int
	failFirst int // number of leading Create calls that fail
	calls     int
}

func newConsumerStore() *consumerStore {
	return &consumerStore{incidents: make(map[string]entities.Incident)}
}

func (s *consumerStore) Create(_ context.Context, incident entities.Incident) error {
	s.calls++
	if s.calls <= s.failFirst {
		return errors.New("store unavailable")
	}
	if _, ok := s.incidents[incident.IncidentID]; ok {
		return domainerrors.ErrIncidentExists
	}
	s.incidents[incident.IncidentID] = incident
	s.creates++
	return nil
}

func (s *consumerStore) Exists(_ context.Context, incidentID string) (bool, error) {
	_, ok := s.incidents[incidentID]
	return ok, nil
}

func (s *consumerStore) Update(_ context.Context, _ string, _ entities.IncidentPatch, _ string, _ time.Time) (entities.Incident, error) {
	return entities.Incident{}, domainerrors.ErrIncidentNotFound
}

func (s *consumerStore) Replace(_ context.Context, _ entities.Incident, _ string, _ time.Time) (entities.Incident, error) {
	return entities.Incident{}, domainerrors.ErrIncidentNotFound
}

func (s *consumerStore) Delete(_ context.Context, _ []string) (bool, error) { return false, nil }

func (s *consumerStore) FindByID(_ context.Context, incidentID string, _ string) (entities.Incident, error) {
	item, ok := s.incidents[incidentID]
	if !ok {
		return entities.Incident{}, domainerrors.ErrIncidentNotFound
	}
	return item, nil
}

func (s *consumerStore) Find(_ context.Context, _ ports.IncidentFilter, _ ports.Pagination, _ ports.Sort) ([]entities.Incident, error) {
	return nil, nil
}

func (s *consumerStore) Count(_ context.Context, _ ports.IncidentFilter) (int64, error) {
	return 0, nil
}

type stubNotifier struct {
	published int
	err       error
}

func (n *stubNotifier) PublishProcessed(_ context.Context, _ ports.IncidentSummary) (string, error) {
	n.published++
	if n.err != nil {
		return "", n.err
	}
	return "msg-1", nil
}

type stubDeadLetters struct {
	letters []ports.DeadLetter
}

func (d *stubDeadLetters) AppendDeadLetter(_ context.Context, letter ports.DeadLetter) error {
	d.letters = append(d.letters, letter)
	return nil
}

func (d *stubDeadLetters) ListDeadLetters(_ context.Context, _ int) ([]ports.DeadLetter, error) {
	return d.letters, nil
}

type recoveryStore struct {
	incidents map[string]entities.Incident
	versions  map[string]int64
}

func newRecoveryStore() *recoveryStore {
	return &recoveryStore{
		incidents: make(map[string]entities.Incident),
		versions:  make(map[string]int64),
	}
}

func (s *recoveryStore) ApplyRecovered(_ context.Context, incident entities.Incident, aggregateVersion int64) error {
	if stored, ok := s.versions[incident.IncidentID]; ok && aggregateVersion < stored {
		return nil
	}
	s.incidents[incident.IncidentID] = incident
	s.versions[incident.IncidentID] = aggregateVersion
	return nil
}

func (s *recoveryStore) DeleteRecovered(_ context.Context, incidentID string) error {
	delete(s.incidents, incidentID)
	delete(s.versions, incidentID)
	return nil
}

func reportedEnvelope(t *testing.T, incidentID string, payload application.IncidentPayload) events.Envelope {
	t.Helper()
	payload.ModType = ""
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return events.Envelope{
		EventID:          "evt-" + incidentID,
		EventType:        application.EventTypeIncidentReported,
		EventTypeVersion: application.IncidentEventSchemaVersion,
		AggregateType:    application.AggregateTypeIncident,
		AggregateID:      incidentID,
		AggregateVersion: 1,
		Data:             data,
		User:             "importer",
		Timestamp:        time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC),
	}
}

func modifiedEnvelope(t *testing.T, mod entities.ModType, incident entities.Incident, version int64) events.Envelope {
	t.Helper()
	data, err := json.Marshal(application.PayloadFromIncident(mod, incident))
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return events.Envelope{
		EventID:          "evt-mod",
		EventType:        application.EventTypeIncidentModified,
		EventTypeVersion: application.IncidentEventSchemaVersion,
		AggregateType:    application.AggregateTypeIncident,
		AggregateID:      incident.IncidentID,
		AggregateVersion: version,
		Data:             data,
		User:             "ranger-1",
		Timestamp:        time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC).Add(time.Duration(version) * time.Second),
	}
}

func newConsumer(store *consumerStore, notifier *stubNotifier, dead *stubDeadLetters) *ReportedConsumer {
	return &ReportedConsumer{
		Incidents:     store,
		Notifier:      notifier,
		DeadLetters:   dead,
		Dedupe:        dedupe.NewCache(100, 50),
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func TestConsumerPersistsAndNotifies(t *testing.T) {
	store := newConsumerStore()
	notifier := &stubNotifier{}
	consumer := newConsumer(store, notifier, &stubDeadLetters{})

	env := reportedEnvelope(t, "inc-1", application.IncidentPayload{Name: "sighting", Active: true})
	if err := consumer.HandleReported(context.Background(), env); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	saved, ok := store.incidents["inc-1"]
	if !ok {
		t.Fatalf("incident not persisted")
	}
	if saved.CreatedBy != "importer" || !saved.CreatedAt.Equal(env.Timestamp) {
		t.Fatalf("envelope metadata not applied: %+v", saved)
	}
	if notifier.published != 1 {
		t.Fatalf("expected one notification, got %d", notifier.published)
	}
}

func TestConsumerSkipsPersistWhenIncidentExists(t *testing.T) {
	store := newConsumerStore()
	store.incidents["inc-1"] = entities.Incident{IncidentID: "inc-1", Name: "already there"}
	notifier := &stubNotifier{}
	consumer := newConsumer(store, notifier, &stubDeadLetters{})

	env := reportedEnvelope(t, "inc-1", application.IncidentPayload{Name: "redelivered"})
	if err := consumer.HandleReported(context.Background(), env); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if store.creates != 0 {
		t.Fatalf("existing incident must not be rewritten")
	}
	if store.incidents["inc-1"].Name != "already there" {
		t.Fatalf("stored state was overwritten")
	}
	if notifier.published != 1 {
		t.Fatalf("notification still goes out for redeliveries, got %d", notifier.published)
	}
}

func TestConsumerNotifierFailureIsSoft(t *testing.T) {
	store := newConsumerStore()
	notifier := &stubNotifier{err: errors.New("redis down")}
	dead := &stubDeadLetters{}
	consumer := newConsumer(store, notifier, dead)

	env := reportedEnvelope(t, "inc-1", application.IncidentPayload{Name: "sighting"})
	if err := consumer.HandleReported(context.Background(), env); err != nil {
		t.Fatalf("notifier failure must not fail handling: %v", err)
	}
	if store.creates != 1 {
		t.Fatalf("persist leg must still run, creates=%d", store.creates)
	}
	if notifier.published != 1 {
		t.Fatalf("notify must not be retried on soft failure, got %d attempts", notifier.published)
	}
	if len(dead.letters) != 0 {
		t.Fatalf("soft notify failure must not dead-letter")
	}
}

func TestConsumerDedupeSuppressesRedelivery(t *testing.T) {
	store := newConsumerStore()
	notifier := &stubNotifier{}
	consumer := newConsumer(store, notifier, &stubDeadLetters{})

	env := reportedEnvelope(t, "inc-1", application.IncidentPayload{Name: "sighting"})
	for i := 0; i < 3; i++ {
		if err := consumer.HandleReported(context.Background(), env); err != nil {
			t.Fatalf("handle %d failed: %v", i, err)
		}
	}
	if store.creates != 1 {
		t.Fatalf("expected a single persisted incident, got %d", store.creates)
	}
	if notifier.published != 1 {
		t.Fatalf("duplicates must not republish, got %d", notifier.published)
	}
}

func TestConsumerDeadLettersAfterExhaustedRetries(t *testing.T) {
	store := newConsumerStore()
	store.failFirst = 10
	notifier := &stubNotifier{}
	dead := &stubDeadLetters{}
	consumer := newConsumer(store, notifier, dead)

	env := reportedEnvelope(t, "inc-1", application.IncidentPayload{Name: "sighting"})
	if err := consumer.HandleReported(context.Background(), env); err != nil {
		t.Fatalf("exhausted retries surface via dead-letter, not error: %v", err)
	}
	if len(dead.letters) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(dead.letters))
	}
	letter := dead.letters[0]
	if letter.Attempts != 3 || letter.Envelope.EventID != env.EventID {
		t.Fatalf("unexpected dead letter: %+v", letter)
	}
	if consumer.Dedupe.Contains(env.DedupeKey()) {
		t.Fatalf("failed envelopes must stay eligible for reprocessing")
	}
}

func TestConsumerDeadLettersUndecodablePayload(t *testing.T) {
	store := newConsumerStore()
	notifier := &stubNotifier{}
	dead := &stubDeadLetters{}
	consumer := newConsumer(store, notifier, dead)

	env := reportedEnvelope(t, "inc-1", application.IncidentPayload{Name: "sighting"})
	env.Data = json.RawMessage(`{"name": not-json`)

	if err := consumer.HandleReported(context.Background(), env); err != nil {
		t.Fatalf("undecodable payloads park, they do not error: %v", err)
	}
	if len(dead.letters) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(dead.letters))
	}
	if dead.letters[0].Envelope.EventID != env.EventID {
		t.Fatalf("dead letter must carry the original envelope")
	}
	if store.calls != 0 || notifier.published != 0 {
		t.Fatalf("no fan-out may run for an undecodable payload")
	}
}

func TestConsumerRetrySucceedsBeforeExhaustion(t *testing.T) {
	store := newConsumerStore()
	store.failFirst = 1
	notifier := &stubNotifier{}
	dead := &stubDeadLetters{}
	consumer := newConsumer(store, notifier, dead)

	env := reportedEnvelope(t, "inc-1", application.IncidentPayload{Name: "sighting"})
	if err := consumer.HandleReported(context.Background(), env); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if store.creates != 1 {
		t.Fatalf("retry should have persisted the incident")
	}
	if len(dead.letters) != 0 {
		t.Fatalf("recovered envelope must not dead-letter")
	}
	if !consumer.Dedupe.Contains(env.DedupeKey()) {
		t.Fatalf("successful envelope must be marked as processed")
	}
}

func TestProjectorReplayIsIdempotent(t *testing.T) {
	store := newRecoveryStore()
	projector := RecoveryProjector{Incidents: store}

	create := modifiedEnvelope(t, entities.ModTypeCreate, entities.Incident{IncidentID: "inc-1", Name: "v1"}, 1)
	update := modifiedEnvelope(t, entities.ModTypeUpdateMerge, entities.Incident{IncidentID: "inc-1", Name: "v2"}, 2)

	for pass := 0; pass < 2; pass++ {
		for _, env := range []events.Envelope{create, update} {
			if err := projector.HandleModified(context.Background(), env); err != nil {
				t.Fatalf("pass %d: handle failed: %v", pass, err)
			}
		}
	}

	if got := store.incidents["inc-1"].Name; got != "v2" {
		t.Fatalf("expected final state v2, got %q", got)
	}
	if len(store.incidents) != 1 {
		t.Fatalf("replaying twice must not duplicate state")
	}
}

func TestProjectorIgnoresOutOfOrderEnvelopes(t *testing.T) {
	store := newRecoveryStore()
	projector := RecoveryProjector{Incidents: store}

	newer := modifiedEnvelope(t, entities.ModTypeUpdateMerge, entities.Incident{IncidentID: "inc-1", Name: "newer"}, 5)
	older := modifiedEnvelope(t, entities.ModTypeUpdateMerge, entities.Incident{IncidentID: "inc-1", Name: "older"}, 2)

	if err := projector.HandleModified(context.Background(), newer); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if err := projector.HandleModified(context.Background(), older); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if got := store.incidents["inc-1"].Name; got != "newer" {
		t.Fatalf("older envelope overwrote newer state: %q", got)
	}
}

func TestProjectorDeleteLeavesNoState(t *testing.T) {
	store := newRecoveryStore()
	projector := RecoveryProjector{Incidents: store}

	create := modifiedEnvelope(t, entities.ModTypeCreate, entities.Incident{IncidentID: "inc-1", Name: "short lived"}, 1)
	del := modifiedEnvelope(t, entities.ModTypeDelete, entities.Incident{IncidentID: "inc-1"}, 2)

	if err := projector.HandleModified(context.Background(), create); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if err := projector.HandleModified(context.Background(), del); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if _, ok := store.incidents["inc-1"]; ok {
		t.Fatalf("deleted incident must leave no materialized state")
	}
}

func TestProjectorRejectsUnknownSchemaVersion(t *testing.T) {
	projector := RecoveryProjector{Incidents: newRecoveryStore()}

	env := modifiedEnvelope(t, entities.ModTypeCreate, entities.Incident{IncidentID: "inc-1", Name: "x"}, 1)
	env.EventTypeVersion = 0

	err := projector.HandleModified(context.Background(), env)
	if !errors.Is(err, events.ErrUnsupportedEventVersion) {
		t.Fatalf("expected ErrUnsupportedEventVersion, got %v", err)
	}
}
