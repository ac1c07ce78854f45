// Package repository provides database access layer.
package repository

import (
	"context"

	"proxy-router-platform/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxEventsPerAccount bounds the per-account failover event ring.
const maxEventsPerAccount = 100

// FailoverEventRepository handles failover event data access. Events are
// append-only; inserts trim the per-account history to the ring bound.
type FailoverEventRepository struct {
	db *gorm.DB
}

// NewFailoverEventRepository creates a new failover event repository.
func NewFailoverEventRepository(db *gorm.DB) *FailoverEventRepository {
	return &FailoverEventRepository{db: db}
}

// Append inserts a new event and trims the account's ring.
func (r *FailoverEventRepository) Append(ctx context.Context, event *models.FailoverEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return err
	}
	return r.trim(ctx, event.AccountID)
}

// trim deletes events beyond the ring bound, oldest first.
func (r *FailoverEventRepository) trim(ctx context.Context, accountID uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FailoverEvent{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		return err
	}
	if count <= maxEventsPerAccount {
		return nil
	}

	var stale []models.FailoverEvent
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Limit(int(count - maxEventsPerAccount)).
		Find(&stale).Error; err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(stale))
	for i, e := range stale {
		ids[i] = e.ID
	}
	return r.db.WithContext(ctx).
		Unscoped().
		Delete(&models.FailoverEvent{}, "id IN ?", ids).Error
}

// GetByAccount retrieves recent events for an account, newest first.
func (r *FailoverEventRepository) GetByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]models.FailoverEvent, error) {
	var events []models.FailoverEvent
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GetRecent retrieves recent events across all accounts, newest first.
func (r *FailoverEventRepository) GetRecent(ctx context.Context, limit int) ([]models.FailoverEvent, error) {
	var events []models.FailoverEvent
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GetUnresolved retrieves unresolved failover events for an account.
func (r *FailoverEventRepository) GetUnresolved(ctx context.Context, accountID uuid.UUID) ([]models.FailoverEvent, error) {
	var events []models.FailoverEvent
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND resolved = ?", accountID, false).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Update updates an event.
func (r *FailoverEventRepository) Update(ctx context.Context, event *models.FailoverEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}
