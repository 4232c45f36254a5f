package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "reefwatch/contexts/incident-tracking/incident-service/application"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
)

const defaultImportLimit = 3

type ImportIncidentsCommand struct {
	Limit          int
	Where          string
	Actor          string
	OrganizationID string
}

type ImportIncidentsResult struct {
	Imported int
	Message  string
}

// ImportIncidentsUseCase pulls external records from the feed and emits one
// IncidentReported envelope per record. The store write happens downstream
// in the fan-out consumer, first-writer-wins per identifier.
type ImportIncidentsUseCase struct {
	Feed        ports.FeedFetcher
	Events      ports.EventAppender
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc ImportIncidentsUseCase) Execute(ctx context.Context, cmd ImportIncidentsCommand) (ImportIncidentsResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultImportLimit
	}

	records, err := uc.Feed.Fetch(ctx, limit, cmd.Where)
	if err != nil {
		return ImportIncidentsResult{}, err
	}
	if len(records) > limit {
		records = records[:limit]
	}

	organizationID := strings.TrimSpace(cmd.OrganizationID)
	if organizationID == "" {
		organizationID = "default-org"
	}
	now := uc.Clock.Now().UTC()

	imported := 0
	for _, record := range records {
		// Per-record failures are isolated: one bad record must not
		// abort the batch.
		incidentID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			logger.Error("import id assignment failed",
				"event", "incident_import_record_failed",
				"module", "incident-tracking/incident-service",
				"layer", "application",
				"error", err.Error(),
			)
			continue
		}

		payload := payloadFromFeedRecord(incidentID, organizationID, record)
		envelope, err := newIncidentReportedEnvelope(incidentID, cmd.Actor, payload, now)
		if err != nil {
			logger.Error("import envelope build failed",
				"event", "incident_import_record_failed",
				"module", "incident-tracking/incident-service",
				"layer", "application",
				"incident_id", incidentID,
				"error", err.Error(),
			)
			continue
		}
		if _, err := uc.Events.Append(ctx, envelope); err != nil {
			logger.Error("import envelope append failed",
				"event", "incident_import_record_failed",
				"module", "incident-tracking/incident-service",
				"layer", "application",
				"incident_id", incidentID,
				"error", err.Error(),
			)
			continue
		}
		imported++
	}

	logger.Info("incident import completed",
		"event", "incident_import_completed",
		"module", "incident-tracking/incident-service",
		"layer", "application",
		"fetched", len(records),
		"imported", imported,
	)
	return ImportIncidentsResult{
		Imported: imported,
		Message:  fmt.Sprintf("successfully imported %d incident(s)", imported),
	}, nil
}

func payloadFromFeedRecord(incidentID, organizationID string, record ports.FeedRecord) application.IncidentPayload {
	name := strings.TrimSpace(record.CaseNumber)
	if name == "" {
		name = strings.TrimSpace(record.Date)
	}
	if name == "" {
		name = "incident-" + incidentID
	}
	location := strings.TrimSpace(record.Location)
	if location == "" {
		location = "unknown location"
	}
	return application.IncidentPayload{
		IncidentID:     incidentID,
		Name:           name,
		Description:    fmt.Sprintf("incident reported in %s", location),
		Active:         true,
		OrganizationID: organizationID,
		Date:           record.Date,
		Year:           record.Year,
		Type:           record.Type,
		Country:        record.Country,
		Area:           record.Area,
		Location:       record.Location,
		Activity:       record.Activity,
		Injury:         record.Injury,
		Fatal:          record.Fatal,
		Species:        record.Species,
		Source:         record.Investigator,
		CaseNumber:     record.CaseNumber,
	}
}
