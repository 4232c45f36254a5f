package memory

import (
	"context"
	"errors"
	"testing"

	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	domainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
)

func TestCreateRejectsDuplicateID(t *testing.T) {
	store := NewStore(nil)
	incident := entities.Incident{IncidentID: "inc-1", Name: "first"}

	if err := store.Create(context.Background(), incident); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	err := store.Create(context.Background(), entities.Incident{IncidentID: "inc-1", Name: "second"})
	if !errors.Is(err, domainerrors.ErrIncidentExists) {
		t.Fatalf("expected ErrIncidentExists, got %v", err)
	}

	kept, err := store.FindByID(context.Background(), "inc-1", "")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if kept.Name != "first" {
		t.Fatalf("first writer lost: %q", kept.Name)
	}
}

func TestDeleteReportsWhetherAnythingMatched(t *testing.T) {
	store := NewStore([]entities.Incident{{IncidentID: "inc-1", Name: "one"}})

	deleted, err := store.Delete(context.Background(), []string{"missing", "inc-1"})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !deleted {
		t.Fatalf("expected deletion of inc-1 to be reported")
	}

	deleted, err = store.Delete(context.Background(), []string{"inc-1"})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted {
		t.Fatalf("expected no-op delete to report false")
	}
}

func TestApplyRecoveredIgnoresStaleVersions(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	if err := store.ApplyRecovered(ctx, entities.Incident{IncidentID: "inc-1", Name: "v3"}, 3); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if err := store.ApplyRecovered(ctx, entities.Incident{IncidentID: "inc-1", Name: "v2"}, 2); err != nil {
		t.Fatalf("stale apply failed: %v", err)
	}

	item, err := store.FindByID(ctx, "inc-1", "")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if item.Name != "v3" {
		t.Fatalf("stale envelope overwrote newer state: %q", item.Name)
	}
}

func TestDeleteRecoveredIsIdempotent(t *testing.T) {
	store := NewStore(nil)
	if err := store.DeleteRecovered(context.Background(), "never-seen"); err != nil {
		t.Fatalf("deleting an absent incident must not fail: %v", err)
	}
}

func TestFindFiltersAndPaginates(t *testing.T) {
	active := true
	store := NewStore([]entities.Incident{
		{IncidentID: "a", Name: "reef alpha", OrganizationID: "org-1", Active: true},
		{IncidentID: "b", Name: "reef beta", OrganizationID: "org-1", Active: false},
		{IncidentID: "c", Name: "open water", OrganizationID: "org-2", Active: true},
	})

	items, err := store.Find(context.Background(), ports.IncidentFilter{Name: "reef", Active: &active}, ports.Pagination{}, ports.Sort{Field: "name"})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(items) != 1 || items[0].IncidentID != "a" {
		t.Fatalf("unexpected filter result: %+v", items)
	}

	page, err := store.Find(context.Background(), ports.IncidentFilter{}, ports.Pagination{Page: 1, Count: 2}, ports.Sort{Field: "name"})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected one item on the second page, got %d", len(page))
	}

	total, err := store.Count(context.Background(), ports.IncidentFilter{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 org-1 incidents, got %d", total)
	}
}
