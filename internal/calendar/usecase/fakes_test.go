package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"

	"golang.org/x/oauth2"
)

type fakeHistory struct {
	jobs []domain.TranscriptionJob
	err  error
}

func (f *fakeHistory) ListHistory(context.Context) ([]domain.TranscriptionJob, error) {
	return f.jobs, f.err
}

func jobs(ids ...int64) []domain.TranscriptionJob {
	out := make([]domain.TranscriptionJob, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.TranscriptionJob{OrderID: id})
	}
	return out
}

// fakeContent serves a one-line transcript per order id. Orders listed in
// failing fail that many times before succeeding; -1 fails forever.
type fakeContent struct {
	mu      sync.Mutex
	failing map[int64]int
	audio   string
	calls   []int64
}

func (f *fakeContent) GetContent(_ context.Context, orderID int64) (*domain.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orderID)

	if n, ok := f.failing[orderID]; ok && n != 0 {
		if n > 0 {
			f.failing[orderID] = n - 1
		}
		return nil, fmt.Errorf("order %d: %w", orderID, domain.ErrUpstreamUnavailable)
	}
	return &domain.Transcript{
		AudioURL: f.audio,
		Lines:    []domain.TranscriptLine{{Speaker: "Speaker 1", Text: fmt.Sprintf("order %d", orderID)}},
	}, nil
}

type fakeAudio struct {
	seconds int
	err     error
}

func (f *fakeAudio) DurationSeconds(context.Context, string) (int, error) {
	return f.seconds, f.err
}

type fakeIndexer struct {
	mu     sync.Mutex
	names  []string
	orders []int64
}

func (f *fakeIndexer) IndexTranscript(_ context.Context, orderID int64, name string, lines []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	f.orders = append(f.orders, orderID)
	return fmt.Sprintf("meeting-%d", orderID), nil
}

type recordingNotifier struct {
	mu         sync.Mutex
	dispatched []string
	ready      []*domain.Event
}

func (n *recordingNotifier) BotDispatched(event *domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatched = append(n.dispatched, event.ID)
}

func (n *recordingNotifier) TranscriptReady(event *domain.Event, _ domain.MatchResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = append(n.ready, event)
}

type fakeProvider struct {
	events  map[string][]domain.UpstreamEvent // by credential id
	failing map[string]error
	refresh map[string]string // credential id -> new access token
}

func (f *fakeProvider) ListUpcoming(_ context.Context, cred *domain.Credential, _ time.Time, onTokenRefresh domain.TokenUpdateFunc) ([]domain.UpstreamEvent, error) {
	if err := f.failing[cred.ID]; err != nil {
		return nil, err
	}
	if token, ok := f.refresh[cred.ID]; ok {
		if err := onTokenRefresh(&oauth2.Token{AccessToken: token, Expiry: time.Now().Add(time.Hour)}); err != nil {
			return nil, err
		}
	}
	return f.events[cred.ID], nil
}

type fakeBot struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (f *fakeBot) JoinMeeting(_ context.Context, meetingURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, meetingURL)
	return f.err
}

type countingMatcher struct {
	calls int
}

func (m *countingMatcher) Match(context.Context) (MatchReport, error) {
	m.calls++
	return MatchReport{}, nil
}
