package repository

import (
	"fmt"

	"gorm.io/gorm"

	"zerotrust-rag/internal/model"
)

// AuditRepository is append-only: events are created and listed, never
// updated or deleted.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(event *model.AuditEvent) error {
	if err := r.db.Create(event).Error; err != nil {
		return fmt.Errorf("append audit event failed: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByUsername(username string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var events []model.AuditEvent
	if err := r.db.Where("username = ?", username).Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list audit events failed: %w", err)
	}
	return events, nil
}
