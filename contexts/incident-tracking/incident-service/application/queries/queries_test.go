package queries

import (
	"context"
	"errors"
	"testing"

	"reefwatch/contexts/incident-tracking/incident-service/adapters/memory"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	domainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
)

func seededStore() *memory.Store {
	return memory.NewStore([]entities.Incident{
		{IncidentID: "inc-1", Name: "Bull shark near pier", Active: true, OrganizationID: "org-1"},
		{IncidentID: "inc-2", Name: "Tiger shark offshore", Active: false, OrganizationID: "org-1"},
		{IncidentID: "inc-3", Name: "Reef shark lagoon", Active: true, OrganizationID: "org-2"},
	})
}

func TestGetIncidentScopesByOrganization(t *testing.T) {
	uc := GetIncidentUseCase{Incidents: seededStore()}

	item, err := uc.Execute(context.Background(), GetIncidentQuery{IncidentID: "inc-1", OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if item.Name != "Bull shark near pier" {
		t.Fatalf("got wrong incident: %+v", item)
	}

	_, err = uc.Execute(context.Background(), GetIncidentQuery{IncidentID: "inc-3", OrganizationID: "org-1"})
	if !errors.Is(err, domainerrors.ErrIncidentNotFound) {
		t.Fatalf("cross-organization reads must look absent, got %v", err)
	}
}

func TestGetIncidentRejectsBlankID(t *testing.T) {
	uc := GetIncidentUseCase{Incidents: seededStore()}
	_, err := uc.Execute(context.Background(), GetIncidentQuery{IncidentID: "   "})
	if !errors.Is(err, domainerrors.ErrInvalidIncidentInput) {
		t.Fatalf("expected ErrInvalidIncidentInput, got %v", err)
	}
}

func TestListIncidentsFiltersByActive(t *testing.T) {
	uc := ListIncidentsUseCase{Incidents: seededStore()}
	active := true

	result, err := uc.Execute(context.Background(), ListIncidentsQuery{
		Filter: ports.IncidentFilter{Active: &active},
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(result.Listing) != 2 {
		t.Fatalf("expected 2 active incidents, got %d", len(result.Listing))
	}
	if result.TotalCount != nil {
		t.Fatalf("total count must only be computed on request")
	}
}

func TestListIncidentsReportsTotalAcrossPages(t *testing.T) {
	uc := ListIncidentsUseCase{Incidents: seededStore()}

	result, err := uc.Execute(context.Background(), ListIncidentsQuery{
		Page: ports.Pagination{Page: 0, Count: 2, QueryTotalCount: true},
		Sort: ports.Sort{Field: "name"},
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(result.Listing) != 2 {
		t.Fatalf("expected a 2-item page, got %d", len(result.Listing))
	}
	if result.TotalCount == nil || *result.TotalCount != 3 {
		t.Fatalf("expected total of 3 regardless of page size, got %v", result.TotalCount)
	}
}
