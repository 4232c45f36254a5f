package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"reefwatch/contexts/incident-tracking/incident-service/application/commands"
	"reefwatch/contexts/incident-tracking/incident-service/application/queries"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
	httptransport "reefwatch/contexts/incident-tracking/incident-service/transport/http"
)

type Handler struct {
	CreateIncident  commands.CreateIncidentUseCase
	UpdateIncident  commands.UpdateIncidentUseCase
	DeleteIncidents commands.DeleteIncidentsUseCase
	ImportIncidents commands.ImportIncidentsUseCase
	GetIncident     queries.GetIncidentUseCase
	ListIncidents   queries.ListIncidentsUseCase
	DeadLetters     ports.DeadLetterStore
	Logger          *slog.Logger
}

func (h Handler) CreateIncidentHandler(
	ctx context.Context,
	actor string,
	req httptransport.CreateIncidentRequest,
) (httptransport.IncidentDTO, error) {
	incident, err := h.CreateIncident.Execute(ctx, commands.CreateIncidentCommand{
		Input: commands.IncidentInput{
			Name:           req.Name,
			Description:    req.Description,
			Active:         req.Active,
			OrganizationID: req.OrganizationID,
			Date:           req.Date,
			Year:           req.Year,
			Type:           req.Type,
			Country:        req.Country,
			Area:           req.Area,
			Location:       req.Location,
			Activity:       req.Activity,
			Injury:         req.Injury,
			Fatal:          req.Fatal,
			Species:        req.Species,
			Source:         req.Source,
			CaseNumber:     req.CaseNumber,
		},
		Actor: actor,
	})
	if err != nil {
		return httptransport.IncidentDTO{}, err
	}
	return incidentDTO(incident), nil
}

func (h Handler) UpdateIncidentHandler(
	ctx context.Context,
	actor string,
	incidentID string,
	merge bool,
	req httptransport.UpdateIncidentRequest,
) (httptransport.IncidentDTO, error) {
	incident, err := h.UpdateIncident.Execute(ctx, commands.UpdateIncidentCommand{
		IncidentID: incidentID,
		Patch: entities.IncidentPatch{
			Name:           req.Name,
			Description:    req.Description,
			Active:         req.Active,
			OrganizationID: req.OrganizationID,
			Date:           req.Date,
			Year:           req.Year,
			Type:           req.Type,
			Country:        req.Country,
			Area:           req.Area,
			Location:       req.Location,
			Activity:       req.Activity,
			Injury:         req.Injury,
			Fatal:          req.Fatal,
			Species:        req.Species,
			Source:         req.Source,
			CaseNumber:     req.CaseNumber,
		},
		Merge: merge,
		Actor: actor,
	})
	if err != nil {
		return httptransport.IncidentDTO{}, err
	}
	return incidentDTO(incident), nil
}

func (h Handler) DeleteIncidentsHandler(
	ctx context.Context,
	actor string,
	req httptransport.DeleteIncidentsRequest,
) (httptransport.DeleteIncidentsResponse, error) {
	result, err := h.DeleteIncidents.Execute(ctx, commands.DeleteIncidentsCommand{
		IncidentIDs: req.IncidentIDs,
		Actor:       actor,
	})
	if err != nil {
		return httptransport.DeleteIncidentsResponse{}, err
	}
	return httptransport.DeleteIncidentsResponse{
		Code:    result.Code,
		Message: result.Message,
	}, nil
}

func (h Handler) ImportIncidentsHandler(
	ctx context.Context,
	actor string,
	req httptransport.ImportIncidentsRequest,
) (httptransport.ImportIncidentsResponse, error) {
	result, err := h.ImportIncidents.Execute(ctx, commands.ImportIncidentsCommand{
		Limit:          req.Limit,
		Where:          req.Where,
		Actor:          actor,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		return httptransport.ImportIncidentsResponse{}, err
	}
	return httptransport.ImportIncidentsResponse{
		Imported: result.Imported,
		Message:  result.Message,
	}, nil
}

func (h Handler) GetIncidentHandler(
	ctx context.Context,
	incidentID string,
	organizationID string,
) (httptransport.IncidentDTO, error) {
	incident, err := h.GetIncident.Execute(ctx, queries.GetIncidentQuery{
		IncidentID:     incidentID,
		OrganizationID: organizationID,
	})
	if err != nil {
		return httptransport.IncidentDTO{}, err
	}
	return incidentDTO(incident), nil
}

func (h Handler) ListIncidentsHandler(
	ctx context.Context,
	query queries.ListIncidentsQuery,
) (httptransport.ListIncidentsResponse, error) {
	result, err := h.ListIncidents.Execute(ctx, query)
	if err != nil {
		return httptransport.ListIncidentsResponse{}, err
	}
	resp := httptransport.ListIncidentsResponse{
		Data:       make([]httptransport.IncidentDTO, 0, len(result.Listing)),
		TotalCount: result.TotalCount,
	}
	for _, incident := range result.Listing {
		resp.Data = append(resp.Data, incidentDTO(incident))
	}
	return resp, nil
}

func (h Handler) ListDeadLettersHandler(ctx context.Context, limit int) (httptransport.ListDeadLettersResponse, error) {
	letters, err := h.DeadLetters.ListDeadLetters(ctx, limit)
	if err != nil {
		return httptransport.ListDeadLettersResponse{}, err
	}
	resp := httptransport.ListDeadLettersResponse{
		Data: make([]httptransport.DeadLetterDTO, 0, len(letters)),
	}
	for _, letter := range letters {
		resp.Data = append(resp.Data, httptransport.DeadLetterDTO{
			DeadLetterID: letter.DeadLetterID,
			EventID:      letter.Envelope.EventID,
			EventType:    letter.Envelope.EventType,
			AggregateID:  letter.Envelope.AggregateID,
			Reason:       letter.Reason,
			Attempts:     letter.Attempts,
			FailedAt:     letter.FailedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func incidentDTO(incident entities.Incident) httptransport.IncidentDTO {
	dto := httptransport.IncidentDTO{
		IncidentID:     incident.IncidentID,
		Name:           incident.Name,
		Description:    incident.Description,
		Active:         incident.Active,
		OrganizationID: incident.OrganizationID,
		Date:           incident.Date,
		Year:           incident.Year,
		Type:           incident.Type,
		Country:        incident.Country,
		Area:           incident.Area,
		Location:       incident.Location,
		Activity:       incident.Activity,
		Injury:         incident.Injury,
		Fatal:          incident.Fatal,
		Species:        incident.Species,
		Source:         incident.Source,
		CaseNumber:     incident.CaseNumber,
		CreatedBy:      incident.CreatedBy,
		CreatedAt:      incident.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedBy:      incident.UpdatedBy,
	}
	if !incident.UpdatedAt.IsZero() {
		dto.UpdatedAt = incident.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
