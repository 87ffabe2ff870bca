package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new instance of eventRepository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) UpsertFromUpstream(ctx context.Context, userID, credentialID string, upstream domain.UpstreamEvent) (*domain.Event, UpsertOutcome, error) {
	var (
		event   domain.Event
		outcome UpsertOutcome
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("credential_id = ? AND external_event_id = ?", credentialID, upstream.ID).First(&event).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			now := time.Now()
			uid, cid, eid := userID, credentialID, upstream.ID
			event = domain.Event{
				ID:              uuid.New().String(),
				UserID:          &uid,
				CredentialID:    &cid,
				ExternalEventID: &eid,
				Status:          domain.EventStatusActive,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			event.ApplyUpstream(upstream)

			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&event)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				outcome = UpsertCreated
				return nil
			}
			// Lost a race with a concurrent insert; refresh that row instead
			if err := tx.Where("credential_id = ? AND external_event_id = ?", credentialID, upstream.ID).First(&event).Error; err != nil {
				return err
			}
		}

		if event.MatchesUpstream(upstream) {
			outcome = UpsertUnchanged
			return nil
		}

		event.ApplyUpstream(upstream)
		event.UpdatedAt = time.Now()
		columns := append(append([]string{}, domain.DescriptiveColumns...), "updated_at")
		if err := tx.Model(&event).Select(columns).Updates(&event).Error; err != nil {
			return err
		}
		outcome = UpsertUpdated
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &event, outcome, nil
}

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Status == "" {
		event.Status = domain.EventStatusActive
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
	event.StartTime = event.StartTime.UTC()
	event.EndTime = event.EndTime.UTC()
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) FindByID(ctx context.Context, id string) (*domain.Event, error) {
	var event domain.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) FindByStatus(ctx context.Context, status domain.EventStatus) ([]*domain.Event, error) {
	var events []*domain.Event
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("start_time ASC, id ASC").
		Find(&events).Error
	return events, err
}

func (r *eventRepository) FindByUserAndStatus(ctx context.Context, userID string, status domain.EventStatus) ([]*domain.Event, error) {
	var events []*domain.Event
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, status).
		Order("start_time ASC, id ASC").
		Find(&events).Error
	return events, err
}

func (r *eventRepository) SoftDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&domain.Event{}).
		Where("id = ? AND status = ?", id, domain.EventStatusActive).
		Updates(map[string]interface{}{
			"status":     domain.EventStatusDeleted,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) MarkFinished(ctx context.Context, id string, result domain.MatchResult) error {
	return markFinished(r.db.WithContext(ctx), id, result)
}

func markFinished(db *gorm.DB, id string, result domain.MatchResult) error {
	res := db.Model(&domain.Event{}).
		Where("id = ? AND status = ?", id, domain.EventStatusActive).
		Updates(map[string]interface{}{
			"status":           domain.EventStatusFinished,
			"order_id":         result.OrderID,
			"duration_seconds": result.DurationSeconds,
			"index_handle":     result.IndexHandle,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// detachEvents deletes the credential's active events and clears the
// credential reference on every event that pointed at it.
func detachEvents(tx *gorm.DB, credentialID string, now time.Time) error {
	if err := tx.Model(&domain.Event{}).
		Where("credential_id = ? AND status = ?", credentialID, domain.EventStatusActive).
		Updates(map[string]interface{}{
			"status":     domain.EventStatusDeleted,
			"updated_at": now,
		}).Error; err != nil {
		return err
	}
	// Finished events keep their transcript but lose the link
	return tx.Model(&domain.Event{}).
		Where("credential_id = ?", credentialID).
		Updates(map[string]interface{}{
			"credential_id": gorm.Expr("NULL"),
			"updated_at":    now,
		}).Error
}
