package commands

import (
	"encoding/json"
	"time"

	application "reefwatch/contexts/incident-tracking/incident-service/application"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	"reefwatch/internal/shared/events"
)

func newIncidentModifiedEnvelope(
	mod entities.ModType,
	incidentID string,
	actor string,
	incident entities.Incident,
	at time.Time,
) (events.Envelope, error) {
	data, err := json.Marshal(application.PayloadFromIncident(mod, incident))
	if err != nil {
		return events.Envelope{}, err
	}
	return events.Envelope{
		EventType:        application.EventTypeIncidentModified,
		EventTypeVersion: application.IncidentEventSchemaVersion,
		AggregateType:    application.AggregateTypeIncident,
		AggregateID:      incidentID,
		Data:             data,
		User:             actor,
		Timestamp:        at.UTC(),
	}, nil
}

func newIncidentReportedEnvelope(
	incidentID string,
	actor string,
	payload application.IncidentPayload,
	at time.Time,
) (events.Envelope, error) {
	payload.ModType = ""
	data, err := json.Marshal(payload)
	if err != nil {
		return events.Envelope{}, err
	}
	return events.Envelope{
		EventType:        application.EventTypeIncidentReported,
		EventTypeVersion: application.IncidentEventSchemaVersion,
		AggregateType:    application.AggregateTypeIncident,
		AggregateID:      incidentID,
		Data:             data,
		User:             actor,
		Timestamp:        at.UTC(),
	}, nil
}
