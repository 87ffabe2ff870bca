package repository

import (
	"context"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"

	"gorm.io/gorm"
)

type matchStore struct {
	db *gorm.DB
}

// NewMatchStore creates a new instance of matchStore
func NewMatchStore(db *gorm.DB) MatchStore {
	return &matchStore{db: db}
}

func (s *matchStore) CommitMatch(ctx context.Context, eventID string, result domain.MatchResult, key string, expected int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markFinished(tx, eventID, result); err != nil {
			return err
		}
		return advanceMark(tx, key, expected, result.OrderID)
	})
}
