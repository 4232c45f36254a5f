package application

import (
	"time"

	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
)

const (
	AggregateTypeIncident      = "Incident"
	EventTypeIncidentModified  = "IncidentModified"
	EventTypeIncidentReported  = "IncidentReported"
	IncidentEventSchemaVersion = 1
)

// IncidentPayload is the wire shape carried in envelope data. Modification
// envelopes carry a mod_type discriminator; reported envelopes do not.
type IncidentPayload struct {
	ModType        string `json:"mod_type,omitempty"`
	IncidentID     string `json:"incident_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Active         bool   `json:"active"`
	OrganizationID string `json:"organization_id"`

	Date       string `json:"date,omitempty"`
	Year       string `json:"year,omitempty"`
	Type       string `json:"type,omitempty"`
	Country    string `json:"country,omitempty"`
	Area       string `json:"area,omitempty"`
	Location   string `json:"location,omitempty"`
	Activity   string `json:"activity,omitempty"`
	Injury     string `json:"injury,omitempty"`
	Fatal      string `json:"fatal,omitempty"`
	Species    string `json:"species,omitempty"`
	Source     string `json:"source,omitempty"`
	CaseNumber string `json:"case_number,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func PayloadFromIncident(mod entities.ModType, incident entities.Incident) IncidentPayload {
	return IncidentPayload{
		ModType:        string(mod),
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
		CreatedAt:      incident.CreatedAt,
		UpdatedBy:      incident.UpdatedBy,
		UpdatedAt:      incident.UpdatedAt,
	}
}

// ToIncident maps the payload back to the aggregate, dropping the mod_type
// discriminator.
func (p IncidentPayload) ToIncident() entities.Incident {
	return entities.Incident{
		IncidentID:     p.IncidentID,
		Name:           p.Name,
		Description:    p.Description,
		Active:         p.Active,
		OrganizationID: p.OrganizationID,
		Date:           p.Date,
		Year:           p.Year,
		Type:           p.Type,
		Country:        p.Country,
		Area:           p.Area,
		Location:       p.Location,
		Activity:       p.Activity,
		Injury:         p.Injury,
		Fatal:          p.Fatal,
		Species:        p.Species,
		Source:         p.Source,
		CaseNumber:     p.CaseNumber,
		CreatedBy:      p.CreatedBy,
		CreatedAt:      p.CreatedAt,
		UpdatedBy:      p.UpdatedBy,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (p IncidentPayload) Summary() ports.IncidentSummary {
	return ports.IncidentSummary{
		IncidentID: p.IncidentID,
		Name:       p.Name,
		Country:    p.Country,
		Location:   p.Location,
		Date:       p.Date,
		Year:       p.Year,
		Activity:   p.Activity,
		Injury:     p.Injury,
		Fatal:      p.Fatal,
		Species:    p.Species,
	}
}
