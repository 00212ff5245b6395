// Package repo implements the persistence layer. This file provides
// repository helpers for the append-only delivery audit log. Audit rows are
// written after every delivery attempt; they are diagnostic history, not an
// idempotency source.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avendel/go-delivery-backend/internal/domain"
)

// RecordAudit inserts one audit row. ID and CreatedAt are assigned here.
func RecordAudit(ctx context.Context, db *gorm.DB, rec *domain.DeliveryAudit) error {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(rec).Error
}

// RecentAudits returns the newest limit rows, newest first.
func RecentAudits(ctx context.Context, db *gorm.DB, limit int) ([]domain.DeliveryAudit, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []domain.DeliveryAudit
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// AuditStats returns the total number of recorded attempts and how many of
// them delivered. Used by the health endpoint.
func AuditStats(ctx context.Context, db *gorm.DB) (total, delivered int64, err error) {
	if err = db.WithContext(ctx).Model(&domain.DeliveryAudit{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = db.WithContext(ctx).Model(&domain.DeliveryAudit{}).
		Where("outcome = ?", string(domain.StatusDelivered)).
		Count(&delivered).Error
	return total, delivered, err
}
