package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new instance of credentialRepository
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	now := time.Now()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	// Relinking an email keeps the row id so events stay attached
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "token_expiry", "token_uri", "client_id", "scopes", "updated_at",
		}),
	}).Create(cred).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUserAndEmail(ctx, cred.UserID, cred.Email)
}

func (r *credentialRepository) FindAll(ctx context.Context) ([]*domain.Credential, error) {
	var creds []*domain.Credential
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&creds).Error
	return creds, err
}

func (r *credentialRepository) FindByID(ctx context.Context, id string) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) FindByUserAndEmail(ctx context.Context, userID, email string) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.db.WithContext(ctx).Where("user_id = ? AND email = ?", userID, email).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) FindEmailsByUser(ctx context.Context, userID string) ([]string, error) {
	var emails []string
	err := r.db.WithContext(ctx).Model(&domain.Credential{}).
		Where("user_id = ?", userID).
		Order("email ASC").
		Pluck("email", &emails).Error
	return emails, err
}

func (r *credentialRepository) UpdateToken(ctx context.Context, id string, token *oauth2.Token) error {
	updates := map[string]interface{}{
		"access_token": token.AccessToken,
		"token_expiry": token.Expiry,
		"updated_at":   time.Now(),
	}
	if token.RefreshToken != "" {
		updates["refresh_token"] = token.RefreshToken
	}
	return r.db.WithContext(ctx).Model(&domain.Credential{}).Where("id = ?", id).Updates(updates).Error
}

func (r *credentialRepository) Disconnect(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := detachEvents(tx, id, time.Now()); err != nil {
			return err
		}
		return tx.Delete(&domain.Credential{}, "id = ?", id).Error
	})
}
