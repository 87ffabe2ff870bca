package repository

import (
	"context"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"

	"golang.org/x/oauth2"
)

// UpsertOutcome says what UpsertFromUpstream did to the row.
type UpsertOutcome string

const (
	UpsertCreated   UpsertOutcome = "created"
	UpsertUpdated   UpsertOutcome = "updated"
	UpsertUnchanged UpsertOutcome = "unchanged"
)

// CredentialRepository defines the interface for linked calendar accounts
type CredentialRepository interface {
	// Upsert stores the account keyed by (user, email) and returns the stored row
	Upsert(ctx context.Context, cred *domain.Credential) (*domain.Credential, error)

	FindAll(ctx context.Context) ([]*domain.Credential, error)
	FindByID(ctx context.Context, id string) (*domain.Credential, error)
	FindByUserAndEmail(ctx context.Context, userID, email string) (*domain.Credential, error)
	FindEmailsByUser(ctx context.Context, userID string) ([]string, error)

	// UpdateToken persists a refreshed token. An empty refresh token keeps the stored one.
	UpdateToken(ctx context.Context, id string, token *oauth2.Token) error

	// Disconnect deletes the credential's active events, clears the credential
	// reference on its finished ones and removes the credential, atomically.
	Disconnect(ctx context.Context, id string) error
}

// EventRepository defines the interface for calendar event data access
type EventRepository interface {
	// UpsertFromUpstream creates or refreshes the row identified by
	// (credentialID, upstream.ID). Only descriptive columns are written on update.
	UpsertFromUpstream(ctx context.Context, userID, credentialID string, upstream domain.UpstreamEvent) (*domain.Event, UpsertOutcome, error)

	Create(ctx context.Context, event *domain.Event) error
	FindByID(ctx context.Context, id string) (*domain.Event, error)

	// FindByStatus returns events ordered by start_time ascending
	FindByStatus(ctx context.Context, status domain.EventStatus) ([]*domain.Event, error)
	FindByUserAndStatus(ctx context.Context, userID string, status domain.EventStatus) ([]*domain.Event, error)

	// SoftDelete flips an active event to deleted. Returns domain.ErrNotFound otherwise.
	SoftDelete(ctx context.Context, id string) error

	// MarkFinished attaches a match result to an active event. Returns
	// domain.ErrNotFound when the event is no longer active.
	MarkFinished(ctx context.Context, id string, result domain.MatchResult) error
}

// SyncStateRepository defines the interface for the transcription high-water mark
type SyncStateRepository interface {
	// Load returns the state row, creating it with initial when absent
	Load(ctx context.Context, key string, initial int64) (*domain.SyncState, error)

	// Advance moves the value from expected to next. Returns domain.ErrMarkConflict
	// when the stored value is no longer expected or next does not exceed it.
	Advance(ctx context.Context, key string, expected, next int64) error

	// RecordFailure bumps the attempt counter for orderID and returns the new count
	RecordFailure(ctx context.Context, key string, orderID int64, at time.Time) (int, error)
}

// MatchStore commits one transcription pairing. The event update and the
// high-water mark advance happen in one transaction: either both land or
// neither does.
type MatchStore interface {
	// CommitMatch finishes the active event and moves the mark from expected
	// to result.OrderID. Returns domain.ErrNotFound when the event is no longer
	// active and domain.ErrMarkConflict when the mark moved.
	CommitMatch(ctx context.Context, eventID string, result domain.MatchResult, key string, expected int64) error
}
