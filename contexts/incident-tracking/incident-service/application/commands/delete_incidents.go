package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "reefwatch/contexts/incident-tracking/incident-service/application"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	domainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
)

type DeleteIncidentsCommand struct {
	IncidentIDs []string
	Actor       string
}

type DeleteIncidentsResult struct {
	Code    int
	Message string
}

type DeleteIncidentsUseCase struct {
	Incidents ports.IncidentRepository
	Events    ports.EventAppender
	Views     ports.ViewNotifier
	Clock     ports.Clock
	Logger    *slog.Logger
}

// Execute bulk-deletes and emits one DELETE envelope per requested id,
// whether or not the id existed in the store. The event log therefore
// records delete requests, not confirmed deletions; replaying a DELETE for
// an absent id is a no-op so this stays safe.
func (uc DeleteIncidentsUseCase) Execute(ctx context.Context, cmd DeleteIncidentsCommand) (DeleteIncidentsResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	ids := make([]string, 0, len(cmd.IncidentIDs))
	for _, id := range cmd.IncidentIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return DeleteIncidentsResult{}, domainerrors.ErrInvalidIncidentInput
	}
	now := uc.Clock.Now().UTC()

	ok, err := uc.Incidents.Delete(ctx, ids)
	if err != nil {
		return DeleteIncidentsResult{}, err
	}

	for _, id := range ids {
		envelope, err := newIncidentModifiedEnvelope(entities.ModTypeDelete, id, cmd.Actor, entities.Incident{IncidentID: id}, now)
		if err != nil {
			return DeleteIncidentsResult{}, err
		}
		if _, err := uc.Events.Append(ctx, envelope); err != nil {
			return DeleteIncidentsResult{}, err
		}
	}
	notifyViewChanged(ctx, uc.Views, entities.Incident{IncidentID: "deleted"}, logger)

	// A partial match still counts as success; only a request where nothing
	// matched is reported back as a bad request.
	result := DeleteIncidentsResult{Code: 200, Message: fmt.Sprintf("%d incident id(s) processed", len(ids))}
	if !ok {
		result = DeleteIncidentsResult{Code: 400, Message: "no incidents were found for deletion"}
	}

	logger.Info("incidents deleted",
		"event", "incidents_deleted",
		"module", "incident-tracking/incident-service",
		"layer", "application",
		"requested", len(ids),
		"any_deleted", ok,
	)
	return result, nil
}
