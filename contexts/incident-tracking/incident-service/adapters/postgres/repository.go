package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	domainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
	"reefwatch/internal/shared/events"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Create(ctx context.Context, incident entities.Incident) error {
	row := incidentModelFromEntity(incident)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrIncidentExists
		}
		return classifyStoreError(err)
	}
	return nil
}

func (r *Repository) Exists(ctx context.Context, incidentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&incidentModel{}).
		Where("incident_id = ?", strings.TrimSpace(incidentID)).
		Count(&count).
		Error
	if err != nil {
		return false, classifyStoreError(err)
	}
	return count > 0, nil
}

func (r *Repository) Update(ctx context.Context, incidentID string, patch entities.IncidentPatch, actor string, now time.Time) (entities.Incident, error) {
	var updated entities.Incident
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row incidentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("incident_id = ?", strings.TrimSpace(incidentID)).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrIncidentNotFound
			}
			return err
		}

		next := row.toEntity().Merged(patch)
		next.UpdatedBy = actor
		next.UpdatedAt = now
		if err := tx.Model(&incidentModel{}).
			Where("incident_id = ?", next.IncidentID).
			Updates(incidentUpdatesFromEntity(next)).
			Error; err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return entities.Incident{}, classifyStoreError(err)
	}
	return updated, nil
}

func (r *Repository) Replace(ctx context.Context, incident entities.Incident, actor string, now time.Time) (entities.Incident, error) {
	var replaced entities.Incident
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row incidentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("incident_id = ?", strings.TrimSpace(incident.IncidentID)).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrIncidentNotFound
			}
			return err
		}

		incident.CreatedBy = row.CreatedBy
		incident.CreatedAt = row.CreatedAt.UTC()
		incident.UpdatedBy = actor
		incident.UpdatedAt = now
		if err := tx.Model(&incidentModel{}).
			Where("incident_id = ?", row.IncidentID).
			Updates(incidentUpdatesFromEntity(incident)).
			Error; err != nil {
			return err
		}
		replaced = incident
		return nil
	})
	if err != nil {
		return entities.Incident{}, classifyStoreError(err)
	}
	return replaced, nil
}

func (r *Repository) Delete(ctx context.Context, incidentIDs []string) (bool, error) {
	ids := make([]string, 0, len(incidentIDs))
	for _, id := range incidentIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return false, nil
	}

	result := r.db.WithContext(ctx).
		Where("incident_id IN ?", ids).
		Delete(&incidentModel{})
	if result.Error != nil {
		return false, classifyStoreError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) FindByID(ctx context.Context, incidentID string, organizationID string) (entities.Incident, error) {
	tx := r.db.WithContext(ctx).
		Where("incident_id = ?", strings.TrimSpace(incidentID))
	if strings.TrimSpace(organizationID) != "" {
		tx = tx.Where("organization_id = ?", strings.TrimSpace(organizationID))
	}

	var row incidentModel
	if err := tx.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Incident{}, domainerrors.ErrIncidentNotFound
		}
		return entities.Incident{}, classifyStoreError(err)
	}
	return row.toEntity(), nil
}

func (r *Repository) Find(ctx context.Context, filter ports.IncidentFilter, page ports.Pagination, sortBy ports.Sort) ([]entities.Incident, error) {
	tx := r.filteredQuery(ctx, filter)

	order := "created_at"
	switch sortBy.Field {
	case "name":
		order = "name"
	case "date":
		order = "date"
	}
	if sortBy.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}
	tx = tx.Order(order)

	if page.Count > 0 {
		tx = tx.Offset(page.Page * page.Count).Limit(page.Count)
	}

	var rows []incidentModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, classifyStoreError(err)
	}

	items := make([]entities.Incident, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) Count(ctx context.Context, filter ports.IncidentFilter) (int64, error) {
	var count int64
	if err := r.filteredQuery(ctx, filter).Count(&count).Error; err != nil {
		return 0, classifyStoreError(err)
	}
	return count, nil
}

func (r *Repository) filteredQuery(ctx context.Context, filter ports.IncidentFilter) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&incidentModel{})
	if name := strings.TrimSpace(filter.Name); name != "" {
		tx = tx.Where("name ILIKE ?", "%"+name+"%")
	}
	if org := strings.TrimSpace(filter.OrganizationID); org != "" {
		tx = tx.Where("organization_id = ?", org)
	}
	if filter.Active != nil {
		tx = tx.Where("active = ?", *filter.Active)
	}
	return tx
}

// ApplyRecovered upserts the replayed state under a row lock, skipping the
// write when the stored aggregate_version is already newer. Replay passes
// may deliver envelopes out of sequence after a partial failure, so the
// guard, not the caller, owns ordering.
func (r *Repository) ApplyRecovered(ctx context.Context, incident entities.Incident, aggregateVersion int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current incidentModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("incident_id = ?", strings.TrimSpace(incident.IncidentID)).
			First(&current).
			Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := incidentModelFromEntity(incident)
			row.AggregateVersion = aggregateVersion
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "incident_id"}},
				DoNothing: true,
			}).Create(&row).Error
		case err != nil:
			return err
		}

		if aggregateVersion < current.AggregateVersion {
			return nil
		}
		updates := incidentUpdatesFromEntity(incident)
		updates["aggregate_version"] = aggregateVersion
		return tx.Model(&incidentModel{}).
			Where("incident_id = ?", current.IncidentID).
			Updates(updates).
			Error
	})
	return classifyStoreError(err)
}

func (r *Repository) DeleteRecovered(ctx context.Context, incidentID string) error {
	err := r.db.WithContext(ctx).
		Where("incident_id = ?", strings.TrimSpace(incidentID)).
		Delete(&incidentModel{}).
		Error
	return classifyStoreError(err)
}

func (r *Repository) AppendDeadLetter(ctx context.Context, letter ports.DeadLetter) error {
	payload, err := json.Marshal(letter.Envelope)
	if err != nil {
		return err
	}
	row := deadLetterModel{
		DeadLetterID: strings.TrimSpace(letter.DeadLetterID),
		EventID:      strings.TrimSpace(letter.Envelope.EventID),
		Envelope:     payload,
		Reason:       letter.Reason,
		Attempts:     letter.Attempts,
		FailedAt:     letter.FailedAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return classifyStoreError(createResult.Error)
	}
	return nil
}

func (r *Repository) ListDeadLetters(ctx context.Context, limit int) ([]ports.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []deadLetterModel
	if err := r.db.WithContext(ctx).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, classifyStoreError(err)
	}

	items := make([]ports.DeadLetter, 0, len(rows))
	for _, row := range rows {
		var envelope events.Envelope
		if err := json.Unmarshal(row.Envelope, &envelope); err != nil {
			r.logger.Warn("dead letter envelope is unreadable",
				"event", "dead_letter_decode_failed",
				"module", "incident-tracking/incident-service",
				"layer", "adapter",
				"dead_letter_id", row.DeadLetterID,
				"error", err.Error(),
			)
			continue
		}
		items = append(items, ports.DeadLetter{
			DeadLetterID: row.DeadLetterID,
			Envelope:     envelope,
			Reason:       row.Reason,
			Attempts:     row.Attempts,
			FailedAt:     row.FailedAt.UTC(),
		})
	}
	return items, nil
}

type incidentModel struct {
	IncidentID       string    `gorm:"column:incident_id;primaryKey"`
	Name             string    `gorm:"column:name"`
	Description      string    `gorm:"column:description"`
	Active           bool      `gorm:"column:active"`
	OrganizationID   string    `gorm:"column:organization_id"`
	Date             string    `gorm:"column:date"`
	Year             string    `gorm:"column:year"`
	Type             string    `gorm:"column:type"`
	Country          string    `gorm:"column:country"`
	Area             string    `gorm:"column:area"`
	Location         string    `gorm:"column:location"`
	Activity         string    `gorm:"column:activity"`
	Injury           string    `gorm:"column:injury"`
	Fatal            string    `gorm:"column:fatal"`
	Species          string    `gorm:"column:species"`
	Source           string    `gorm:"column:source"`
	CaseNumber       string    `gorm:"column:case_number"`
	AggregateVersion int64     `gorm:"column:aggregate_version"`
	CreatedBy        string    `gorm:"column:created_by"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedBy        string    `gorm:"column:updated_by"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (incidentModel) TableName() string {
	return "incidents"
}

func incidentModelFromEntity(item entities.Incident) incidentModel {
	return incidentModel{
		IncidentID:     strings.TrimSpace(item.IncidentID),
		Name:           strings.TrimSpace(item.Name),
		Description:    item.Description,
		Active:         item.Active,
		OrganizationID: strings.TrimSpace(item.OrganizationID),
		Date:           item.Date,
		Year:           item.Year,
		Type:           item.Type,
		Country:        item.Country,
		Area:           item.Area,
		Location:       item.Location,
		Activity:       item.Activity,
		Injury:         item.Injury,
		Fatal:          item.Fatal,
		Species:        item.Species,
		Source:         item.Source,
		CaseNumber:     item.CaseNumber,
		CreatedBy:      strings.TrimSpace(item.CreatedBy),
		CreatedAt:      item.CreatedAt.UTC(),
		UpdatedBy:      strings.TrimSpace(item.UpdatedBy),
		UpdatedAt:      item.UpdatedAt.UTC(),
	}
}

func incidentUpdatesFromEntity(item entities.Incident) map[string]any {
	row := incidentModelFromEntity(item)
	return map[string]any{
		"name":            row.Name,
		"description":     row.Description,
		"active":          row.Active,
		"organization_id": row.OrganizationID,
		"date":            row.Date,
		"year":            row.Year,
		"type":            row.Type,
		"country":         row.Country,
		"area":            row.Area,
		"location":        row.Location,
		"activity":        row.Activity,
		"injury":          row.Injury,
		"fatal":           row.Fatal,
		"species":         row.Species,
		"source":          row.Source,
		"case_number":     row.CaseNumber,
		"updated_by":      row.UpdatedBy,
		"updated_at":      row.UpdatedAt,
	}
}

func (m incidentModel) toEntity() entities.Incident {
	return entities.Incident{
		IncidentID:     m.IncidentID,
		Name:           m.Name,
		Description:    m.Description,
		Active:         m.Active,
		OrganizationID: m.OrganizationID,
		Date:           m.Date,
		Year:           m.Year,
		Type:           m.Type,
		Country:        m.Country,
		Area:           m.Area,
		Location:       m.Location,
		Activity:       m.Activity,
		Injury:         m.Injury,
		Fatal:          m.Fatal,
		Species:        m.Species,
		Source:         m.Source,
		CaseNumber:     m.CaseNumber,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedBy:      m.UpdatedBy,
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type deadLetterModel struct {
	DeadLetterID string    `gorm:"column:dead_letter_id;primaryKey"`
	EventID      string    `gorm:"column:event_id;uniqueIndex"`
	Envelope     []byte    `gorm:"column:envelope"`
	Reason       string    `gorm:"column:reason"`
	Attempts     int       `gorm:"column:attempts"`
	FailedAt     time.Time `gorm:"column:failed_at"`
}

func (deadLetterModel) TableName() string {
	return "incident_dead_letters"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// classifyStoreError maps driver timeouts onto the dedicated sentinel so
// callers can distinguish "store slow" from "store wrong" when reporting
// the failure upstream.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domainerrors.ErrIncidentNotFound) || errors.Is(err, domainerrors.ErrIncidentExists) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", domainerrors.ErrStoreTimeout, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %v", domainerrors.ErrStoreUnavailable, err)
	}
	return err
}
