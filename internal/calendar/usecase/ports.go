package usecase

import (
	"context"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
)

// CalendarProvider reads upcoming events of a linked account. Tokens the
// provider refreshes mid-call are handed to onTokenRefresh.
type CalendarProvider interface {
	ListUpcoming(ctx context.Context, cred *domain.Credential, now time.Time, onTokenRefresh domain.TokenUpdateFunc) ([]domain.UpstreamEvent, error)
}

// AccountLinker runs the consent flow that produces a credential.
type AccountLinker interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.LinkedAccount, error)
}

// BotDispatcher sends the recording agent into a meeting.
type BotDispatcher interface {
	JoinMeeting(ctx context.Context, meetingURL string) error
}

type TranscriptionHistory interface {
	ListHistory(ctx context.Context) ([]domain.TranscriptionJob, error)
}

type TranscriptSource interface {
	GetContent(ctx context.Context, orderID int64) (*domain.Transcript, error)
}

type AudioProber interface {
	DurationSeconds(ctx context.Context, url string) (int, error)
}

// VectorIndexer stores transcript lines and returns a handle to them. The
// handle depends only on orderID, so a retried order reuses its index.
type VectorIndexer interface {
	IndexTranscript(ctx context.Context, orderID int64, name string, lines []string) (string, error)
}

type Notifier interface {
	BotDispatched(event *domain.Event)
	TranscriptReady(event *domain.Event, result domain.MatchResult)
}

type nopNotifier struct{}

func (nopNotifier) BotDispatched(*domain.Event)                       {}
func (nopNotifier) TranscriptReady(*domain.Event, domain.MatchResult) {}
