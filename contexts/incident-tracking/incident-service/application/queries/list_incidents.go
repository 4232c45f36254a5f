package queries

import (
	"context"
	"log/slog"
	"strings"

	application "reefwatch/contexts/incident-tracking/incident-service/application"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
)

type ListIncidentsQuery struct {
	Filter ports.IncidentFilter
	Page   ports.Pagination
	Sort   ports.Sort
}

type ListIncidentsResult struct {
	Listing []entities.Incident
	// TotalCount is only populated when the query asked for it.
	TotalCount *int64
}

type ListIncidentsUseCase struct {
	Incidents ports.IncidentRepository
	Logger    *slog.Logger
}

func (uc ListIncidentsUseCase) Execute(ctx context.Context, query ListIncidentsQuery) (ListIncidentsResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	filter := ports.IncidentFilter{
		Name:           strings.TrimSpace(query.Filter.Name),
		OrganizationID: strings.TrimSpace(query.Filter.OrganizationID),
		Active:         query.Filter.Active,
	}

	listing, err := uc.Incidents.Find(ctx, filter, query.Page, query.Sort)
	if err != nil {
		return ListIncidentsResult{}, err
	}

	result := ListIncidentsResult{Listing: listing}
	if query.Page.QueryTotalCount {
		total, err := uc.Incidents.Count(ctx, filter)
		if err != nil {
			return ListIncidentsResult{}, err
		}
		result.TotalCount = &total
	}

	logger.Debug("incidents listed",
		"event", "incidents_listed",
		"module", "incident-tracking/incident-service",
		"layer", "application",
		"count", len(listing),
	)
	return result, nil
}
