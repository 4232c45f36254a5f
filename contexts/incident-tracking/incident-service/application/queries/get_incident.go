package queries

import (
	"context"
	"log/slog"
	"strings"

	application "reefwatch/contexts/incident-tracking/incident-service/application"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	domainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
)

type GetIncidentQuery struct {
	IncidentID     string
	OrganizationID string
}

type GetIncidentUseCase struct {
	Incidents ports.IncidentRepository
	Logger    *slog.Logger
}

func (uc GetIncidentUseCase) Execute(ctx context.Context, query GetIncidentQuery) (entities.Incident, error) {
	logger := application.ResolveLogger(uc.Logger)
	incidentID := strings.TrimSpace(query.IncidentID)
	if incidentID == "" {
		return entities.Incident{}, domainerrors.ErrInvalidIncidentInput
	}
	item, err := uc.Incidents.FindByID(ctx, incidentID, strings.TrimSpace(query.OrganizationID))
	if err != nil {
		return entities.Incident{}, err
	}
	logger.Debug("incident fetched",
		"event", "incident_fetched",
		"module", "incident-tracking/incident-service",
		"layer", "application",
		"incident_id", item.IncidentID,
	)
	return item, nil
}
