package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	application "reefwatch/contexts/incident-tracking/incident-service/application"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
	"reefwatch/internal/shared/events"
)

const defaultProjectorGroup = "incident-recovery-projector-cg"

// payloadMapper transforms one schema version of IncidentModified data into
// the current payload shape. Every supported version has an explicit entry;
// an absent version is a fatal, explicit error, never an implicit hole.
// Version 0 predates the first migration and is intentionally unmapped.
type payloadMapper func(raw json.RawMessage) (application.IncidentPayload, error)

var payloadMappers = map[int]payloadMapper{
	1: func(raw json.RawMessage) (application.IncidentPayload, error) {
		var payload application.IncidentPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return application.IncidentPayload{}, fmt.Errorf("decode v1 payload: %w", err)
		}
		return payload, nil
	},
}

// RecoveryProjector rebuilds the materialized incident state from historical
// IncidentModified envelopes. It only runs during a replay/resync pass, never
// on live traffic; the event log is treated as the source of truth.
type RecoveryProjector struct {
	Subscriber ports.EventSubscriber
	Incidents  ports.RecoveryRepository
	Group      string
	Logger     *slog.Logger
}

func (p RecoveryProjector) Start(ctx context.Context) error {
	group := strings.TrimSpace(p.Group)
	if group == "" {
		group = defaultProjectorGroup
	}
	return p.Subscriber.Subscribe(
		ctx,
		application.AggregateTypeIncident,
		application.EventTypeIncidentModified,
		group,
		p.HandleModified,
		ports.SubscribeOptions{ReplayOnly: true},
	)
}

// HandleModified is stateless per envelope: select the versioned mapper,
// strip the mod_type discriminator, then delete or version-guard-upsert.
func (p RecoveryProjector) HandleModified(ctx context.Context, env events.Envelope) error {
	logger := application.ResolveLogger(p.Logger)

	mapper, ok := payloadMappers[env.EventTypeVersion]
	if !ok {
		return fmt.Errorf("event %s version %d: %w", env.EventID, env.EventTypeVersion, events.ErrUnsupportedEventVersion)
	}
	payload, err := mapper(env.Data)
	if err != nil {
		return err
	}
	modType := entities.ModType(payload.ModType)
	payload.ModType = ""

	if modType == entities.ModTypeDelete {
		if err := p.Incidents.DeleteRecovered(ctx, env.AggregateID); err != nil {
			return err
		}
	} else {
		incident := payload.ToIncident()
		incident.IncidentID = env.AggregateID
		if err := p.Incidents.ApplyRecovered(ctx, incident, env.AggregateVersion); err != nil {
			return err
		}
	}

	logger.Info("incident state recovered",
		"event", "incident_recovered",
		"module", "incident-tracking/incident-service",
		"layer", "worker",
		"incident_id", env.AggregateID,
		"mod_type", string(modType),
		"aggregate_version", env.AggregateVersion,
	)
	return nil
}
