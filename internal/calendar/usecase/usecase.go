package usecase

import (
	"context"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/dto"
)

// CalendarUsecase defines the interface for calendar business logic
type CalendarUsecase interface {
	// AuthURL returns the consent page URL for linking a calendar to userID
	AuthURL(userID string) (string, error)

	// HandleCallback completes the consent flow and stores the credential
	HandleCallback(ctx context.Context, state, code string) (*domain.Credential, error)

	ConnectedEmails(ctx context.Context, userID string) ([]string, error)

	// DisconnectEmail unlinks the account and deletes its active events
	DisconnectEmail(ctx context.Context, userID, email string) error

	// SyncAccount refreshes one linked account now, without dispatching bots
	SyncAccount(ctx context.Context, userID, email string) ([]*domain.Event, error)

	ListActive(ctx context.Context, userID string) ([]*domain.Event, error)
	ListFinished(ctx context.Context, userID string) ([]*domain.Event, error)

	// GetEvent retrieves an event by ID (with ownership check)
	GetEvent(ctx context.Context, userID, eventID string) (*domain.Event, error)

	// AddEvent stores a manual entry
	AddEvent(ctx context.Context, userID string, req *dto.AddEventRequest) (*domain.Event, error)

	// DeleteEvent soft deletes an active event owned by userID
	DeleteEvent(ctx context.Context, userID, eventID string) error

	// JoinMeeting sends the recording bot to an arbitrary meeting URL
	JoinMeeting(ctx context.Context, meetingURL string) error

	// FetchTranscription returns the transcript attached to a finished event
	FetchTranscription(ctx context.Context, userID, eventID string) (*dto.TranscriptResponse, error)
}

// AccountSyncer refreshes a single linked account.
type AccountSyncer interface {
	SyncAccount(ctx context.Context, cred *domain.Credential) ([]*domain.Event, error)
}
