package commands

import (
	"context"
	"log/slog"
	"strings"

	application "reefwatch/contexts/incident-tracking/incident-service/application"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	domainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
)

type UpdateIncidentCommand struct {
	IncidentID string
	Patch      entities.IncidentPatch
	// Merge applies a partial patch preserving unspecified fields; when
	// false the whole record is replaced except identifier and creation
	// provenance.
	Merge bool
	Actor string
}

type UpdateIncidentUseCase struct {
	Incidents ports.IncidentRepository
	Events    ports.EventAppender
	Views     ports.ViewNotifier
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc UpdateIncidentUseCase) Execute(ctx context.Context, cmd UpdateIncidentCommand) (entities.Incident, error) {
	logger := application.ResolveLogger(uc.Logger)
	incidentID := strings.TrimSpace(cmd.IncidentID)
	if incidentID == "" {
		return entities.Incident{}, domainerrors.ErrInvalidIncidentInput
	}
	now := uc.Clock.Now().UTC()

	var (
		updated entities.Incident
		err     error
		mod     entities.ModType
	)
	if cmd.Merge {
		mod = entities.ModTypeUpdateMerge
		updated, err = uc.Incidents.Update(ctx, incidentID, cmd.Patch, cmd.Actor, now)
	} else {
		mod = entities.ModTypeUpdateReplace
		replacement := entities.Incident{IncidentID: incidentID}.Merged(cmd.Patch)
		updated, err = uc.Incidents.Replace(ctx, replacement, cmd.Actor, now)
	}
	if err != nil {
		return entities.Incident{}, err
	}

	envelope, err := newIncidentModifiedEnvelope(mod, incidentID, cmd.Actor, updated, now)
	if err != nil {
		return entities.Incident{}, err
	}
	if _, err := uc.Events.Append(ctx, envelope); err != nil {
		return entities.Incident{}, err
	}
	notifyViewChanged(ctx, uc.Views, updated, logger)

	logger.Info("incident updated",
		"event", "incident_updated",
		"module", "incident-tracking/incident-service",
		"layer", "application",
		"incident_id", updated.IncidentID,
		"mod_type", string(mod),
	)
	return updated, nil
}
