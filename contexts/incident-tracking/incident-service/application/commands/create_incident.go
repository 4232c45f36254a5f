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

// IncidentInput carries the caller-supplied descriptive fields. Active
// defaults to false unless overridden.
type IncidentInput struct {
	Name           string
	Description    string
	Active         *bool
	OrganizationID string
	Date           string
	Year           string
	Type           string
	Country        string
	Area           string
	Location       string
	Activity       string
	Injury         string
	Fatal          string
	Species        string
	Source         string
	CaseNumber     string
}

type CreateIncidentCommand struct {
	Input IncidentInput
	Actor string
}

type CreateIncidentUseCase struct {
	Incidents   ports.IncidentRepository
	Events      ports.EventAppender
	Views       ports.ViewNotifier
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute assigns a fresh identifier, persists the record, emits a CREATE
// modification envelope and signals the materialized-view change. The store
// write and the event emission are not atomic; the recovery projector is the
// safety net when divergence between them is suspected.
func (uc CreateIncidentUseCase) Execute(ctx context.Context, cmd CreateIncidentCommand) (entities.Incident, error) {
	logger := application.ResolveLogger(uc.Logger)

	incidentID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.Incident{}, err
	}
	now := uc.Clock.Now().UTC()

	active := false
	if cmd.Input.Active != nil {
		active = *cmd.Input.Active
	}
	incident := entities.Incident{
		IncidentID:     incidentID,
		Name:           strings.TrimSpace(cmd.Input.Name),
		Description:    cmd.Input.Description,
		Active:         active,
		OrganizationID: strings.TrimSpace(cmd.Input.OrganizationID),
		Date:           cmd.Input.Date,
		Year:           cmd.Input.Year,
		Type:           cmd.Input.Type,
		Country:        cmd.Input.Country,
		Area:           cmd.Input.Area,
		Location:       cmd.Input.Location,
		Activity:       cmd.Input.Activity,
		Injury:         cmd.Input.Injury,
		Fatal:          cmd.Input.Fatal,
		Species:        cmd.Input.Species,
		Source:         cmd.Input.Source,
		CaseNumber:     cmd.Input.CaseNumber,
		CreatedBy:      cmd.Actor,
		CreatedAt:      now,
		UpdatedBy:      cmd.Actor,
		UpdatedAt:      now,
	}
	if !incident.ValidateBasics() {
		return entities.Incident{}, domainerrors.ErrInvalidIncidentInput
	}

	if err := uc.Incidents.Create(ctx, incident); err != nil {
		return entities.Incident{}, err
	}

	envelope, err := newIncidentModifiedEnvelope(entities.ModTypeCreate, incidentID, cmd.Actor, incident, now)
	if err != nil {
		return entities.Incident{}, err
	}
	if _, err := uc.Events.Append(ctx, envelope); err != nil {
		return entities.Incident{}, err
	}
	notifyViewChanged(ctx, uc.Views, incident, logger)

	logger.Info("incident created",
		"event", "incident_created",
		"module", "incident-tracking/incident-service",
		"layer", "application",
		"incident_id", incident.IncidentID,
		"organization_id", incident.OrganizationID,
	)
	return incident, nil
}

// notifyViewChanged is best effort: the materialized-view signal is advisory
// and must never fail the command.
func notifyViewChanged(ctx context.Context, views ports.ViewNotifier, incident entities.Incident, logger *slog.Logger) {
	if views == nil {
		return
	}
	summary := application.PayloadFromIncident("", incident).Summary()
	if err := views.NotifyChanged(ctx, summary); err != nil {
		logger.Warn("materialized view notification failed",
			"event", "incident_view_notify_failed",
			"module", "incident-tracking/incident-service",
			"layer", "application",
			"incident_id", incident.IncidentID,
			"error", err.Error(),
		)
	}
}
