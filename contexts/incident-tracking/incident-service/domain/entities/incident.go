package entities

import (
	"strings"
	"time"
)

// ModType discriminates IncidentModified envelopes by the mutation that
// produced them.
type ModType string

const (
	ModTypeCreate        ModType = "CREATE"
	ModTypeUpdateMerge   ModType = "UPDATE_MERGE"
	ModTypeUpdateReplace ModType = "UPDATE_REPLACE"
	ModTypeDelete        ModType = "DELETE"
)

// Incident is the aggregate under event-sourced control: one reported
// marine wildlife incident. The identifier is assigned once by the writer
// at creation and never by the store. The store owns current state; every
// other component's view is a projection.
type Incident struct {
	IncidentID     string
	Name           string
	Description    string
	Active         bool
	OrganizationID string

	Date       string
	Year       string
	Type       string
	Country    string
	Area       string
	Location   string
	Activity   string
	Injury     string
	Fatal      string
	Species    string
	Source     string
	CaseNumber string

	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt time.Time
}

// IncidentPatch is a partial update; nil fields leave the stored value
// untouched.
type IncidentPatch struct {
	Name           *string
	Description    *string
	Active         *bool
	OrganizationID *string
	Date           *string
	Year           *string
	Type           *string
	Country        *string
	Area           *string
	Location       *string
	Activity       *string
	Injury         *string
	Fatal          *string
	Species        *string
	Source         *string
	CaseNumber     *string
}

func (i Incident) ValidateBasics() bool {
	return strings.TrimSpace(i.IncidentID) != "" && strings.TrimSpace(i.Name) != ""
}

// Merged returns the incident with the patch applied. Identifier and
// creation provenance are never patched.
func (i Incident) Merged(patch IncidentPatch) Incident {
	out := i
	if patch.Name != nil {
		out.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		out.Description = *patch.Description
	}
	if patch.Active != nil {
		out.Active = *patch.Active
	}
	if patch.OrganizationID != nil {
		out.OrganizationID = strings.TrimSpace(*patch.OrganizationID)
	}
	if patch.Date != nil {
		out.Date = *patch.Date
	}
	if patch.Year != nil {
		out.Year = *patch.Year
	}
	if patch.Type != nil {
		out.Type = *patch.Type
	}
	if patch.Country != nil {
		out.Country = *patch.Country
	}
	if patch.Area != nil {
		out.Area = *patch.Area
	}
	if patch.Activity != nil {
		out.Activity = *patch.Activity
	}
	if patch.Location != nil {
		out.Location = *patch.Location
	}
	if patch.Injury != nil {
		out.Injury = *patch.Injury
	}
	if patch.Fatal != nil {
		out.Fatal = *patch.Fatal
	}
	if patch.Species != nil {
		out.Species = *patch.Species
	}
	if patch.Source != nil {
		out.Source = *patch.Source
	}
	if patch.CaseNumber != nil {
		out.CaseNumber = *patch.CaseNumber
	}
	return out
}
