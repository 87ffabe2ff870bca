package repository

import (
	"context"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"

	"gorm.io/gorm"
)

type syncStateRepository struct {
	db *gorm.DB
}

// NewSyncStateRepository creates a new instance of syncStateRepository
func NewSyncStateRepository(db *gorm.DB) SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) Load(ctx context.Context, key string, initial int64) (*domain.SyncState, error) {
	var state domain.SyncState
	err := r.db.WithContext(ctx).
		Where("name = ?", key).
		Attrs(domain.SyncState{Key: key, Value: initial, UpdatedAt: time.Now()}).
		FirstOrCreate(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *syncStateRepository) Advance(ctx context.Context, key string, expected, next int64) error {
	return advanceMark(r.db.WithContext(ctx), key, expected, next)
}

func advanceMark(db *gorm.DB, key string, expected, next int64) error {
	if next <= expected {
		return domain.ErrMarkConflict
	}
	res := db.Model(&domain.SyncState{}).
		Where("name = ? AND value = ?", key, expected).
		Updates(map[string]interface{}{
			"value":           next,
			"failed_order_id": 0,
			"failed_attempts": 0,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMarkConflict
	}
	return nil
}

func (r *syncStateRepository) RecordFailure(ctx context.Context, key string, orderID int64, at time.Time) (int, error) {
	var attempts int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var state domain.SyncState
		if err := tx.Where("name = ?", key).First(&state).Error; err != nil {
			return err
		}
		if state.FailedOrderID == orderID {
			attempts = state.FailedAttempts + 1
		} else {
			attempts = 1
		}
		return tx.Model(&domain.SyncState{}).Where("name = ?", key).
			Updates(map[string]interface{}{
				"failed_order_id": orderID,
				"failed_attempts": attempts,
				"updated_at":      at,
			}).Error
	})
	return attempts, err
}
