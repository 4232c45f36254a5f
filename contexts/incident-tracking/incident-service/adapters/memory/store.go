package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	domainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"
	"reefwatch/contexts/incident-tracking/incident-service/ports"

	"github.com/google/uuid"
)

// Store is the in-memory adapter backing the incident repository, the
// recovery write surface, and the dead-letter store. Recovery keeps a
// per-aggregate version alongside the document so replay applies the same
// ordering guard as the relational adapter.
type Store struct {
	mu sync.RWMutex

	incidents map[string]entities.Incident
	versions  map[string]int64

	deadLetters []ports.DeadLetter
}

func NewStore(seed []entities.Incident) *Store {
	incidents := make(map[string]entities.Incident, len(seed))
	for _, item := range seed {
		incidents[item.IncidentID] = item
	}
	return &Store{
		incidents:   incidents,
		versions:    make(map[string]int64),
		deadLetters: make([]ports.DeadLetter, 0),
	}
}

func (s *Store) Create(_ context.Context, incident entities.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.incidents[incident.IncidentID]; exists {
		return domainerrors.ErrIncidentExists
	}
	s.incidents[incident.IncidentID] = incident
	return nil
}

func (s *Store) Exists(_ context.Context, incidentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.incidents[strings.TrimSpace(incidentID)]
	return exists, nil
}

func (s *Store) Update(_ context.Context, incidentID string, patch entities.IncidentPatch, actor string, now time.Time) (entities.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.incidents[strings.TrimSpace(incidentID)]
	if !exists {
		return entities.Incident{}, domainerrors.ErrIncidentNotFound
	}
	next := current.Merged(patch)
	next.UpdatedBy = actor
	next.UpdatedAt = now
	s.incidents[next.IncidentID] = next
	return next, nil
}

func (s *Store) Replace(_ context.Context, incident entities.Incident, actor string, now time.Time) (entities.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.incidents[incident.IncidentID]
	if !exists {
		return entities.Incident{}, domainerrors.ErrIncidentNotFound
	}
	incident.CreatedBy = current.CreatedBy
	incident.CreatedAt = current.CreatedAt
	incident.UpdatedBy = actor
	incident.UpdatedAt = now
	s.incidents[incident.IncidentID] = incident
	return incident, nil
}

func (s *Store) Delete(_ context.Context, incidentIDs []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	for _, id := range incidentIDs {
		id = strings.TrimSpace(id)
		if _, exists := s.incidents[id]; exists {
			delete(s.incidents, id)
			delete(s.versions, id)
			deleted = true
		}
	}
	return deleted, nil
}

func (s *Store) FindByID(_ context.Context, incidentID string, organizationID string) (entities.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.incidents[strings.TrimSpace(incidentID)]
	if !exists {
		return entities.Incident{}, domainerrors.ErrIncidentNotFound
	}
	if organizationID != "" && item.OrganizationID != organizationID {
		return entities.Incident{}, domainerrors.ErrIncidentNotFound
	}
	return item, nil
}

func (s *Store) Find(_ context.Context, filter ports.IncidentFilter, page ports.Pagination, sortBy ports.Sort) ([]entities.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.filtered(filter)
	sortIncidents(items, sortBy)

	if page.Count <= 0 {
		return items, nil
	}
	start := page.Page * page.Count
	if start >= len(items) {
		return []entities.Incident{}, nil
	}
	end := start + page.Count
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}

func (s *Store) Count(_ context.Context, filter ports.IncidentFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.filtered(filter))), nil
}

func (s *Store) filtered(filter ports.IncidentFilter) []entities.Incident {
	items := make([]entities.Incident, 0, len(s.incidents))
	for _, incident := range s.incidents {
		if name := strings.TrimSpace(filter.Name); name != "" && !strings.Contains(strings.ToLower(incident.Name), strings.ToLower(name)) {
			continue
		}
		if org := strings.TrimSpace(filter.OrganizationID); org != "" && incident.OrganizationID != org {
			continue
		}
		if filter.Active != nil && incident.Active != *filter.Active {
			continue
		}
		items = append(items, incident)
	}
	return items
}

func sortIncidents(items []entities.Incident, sortBy ports.Sort) {
	less := func(i, j entities.Incident) bool {
		switch sortBy.Field {
		case "name":
			return i.Name < j.Name
		case "date":
			return i.Date < j.Date
		default:
			return i.CreatedAt.Before(j.CreatedAt)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if sortBy.Desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func (s *Store) ApplyRecovered(_ context.Context, incident entities.Incident, aggregateVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, exists := s.versions[incident.IncidentID]; exists && aggregateVersion < stored {
		return nil
	}
	s.incidents[incident.IncidentID] = incident
	s.versions[incident.IncidentID] = aggregateVersion
	return nil
}

func (s *Store) DeleteRecovered(_ context.Context, incidentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.incidents, strings.TrimSpace(incidentID))
	delete(s.versions, strings.TrimSpace(incidentID))
	return nil
}

func (s *Store) AppendDeadLetter(_ context.Context, letter ports.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deadLetters = append(s.deadLetters, letter)
	return nil
}

func (s *Store) ListDeadLetters(_ context.Context, limit int) ([]ports.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]ports.DeadLetter, len(s.deadLetters))
	copy(items, s.deadLetters)
	sort.Slice(items, func(i, j int) bool {
		return items[i].FailedAt.After(items[j].FailedAt)
	})
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
