package usecase

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/repository"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reconcileNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type reconcilerFixture struct {
	creds    repository.CredentialRepository
	events   repository.EventRepository
	provider *fakeProvider
	bot      *fakeBot
	matcher  *countingMatcher
	notifier *recordingNotifier
	r        *Reconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	db := testutil.NewDB(t, &domain.Credential{}, &domain.Event{})
	f := &reconcilerFixture{
		creds:  repository.NewCredentialRepository(db),
		events: repository.NewEventRepository(db),
		provider: &fakeProvider{
			events:  map[string][]domain.UpstreamEvent{},
			failing: map[string]error{},
			refresh: map[string]string{},
		},
		bot:      &fakeBot{},
		matcher:  &countingMatcher{},
		notifier: &recordingNotifier{},
	}
	f.r = NewReconciler(ReconcilerDeps{
		Credentials: f.creds,
		Events:      f.events,
		Provider:    f.provider,
		Bot:         f.bot,
		Matcher:     f.matcher,
		Notifier:    f.notifier,
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return reconcileNow },
	}, ReconcilerConfig{DispatchWindow: 5 * time.Minute, CallTimeout: time.Second, Concurrency: 2})
	return f
}

func (f *reconcilerFixture) link(t *testing.T, userID, email string) *domain.Credential {
	t.Helper()
	cred, err := f.creds.Upsert(context.Background(), &domain.Credential{
		UserID:      userID,
		Email:       email,
		AccessToken: "stale",
	})
	require.NoError(t, err)
	return cred
}

func upstream(id string, start time.Time, link string) domain.UpstreamEvent {
	return domain.UpstreamEvent{
		ID:       id,
		Summary:  "Meeting " + id,
		Start:    start,
		End:      start.Add(30 * time.Minute),
		JoinLink: link,
	}
}

func TestReconcileDispatchesOnlyInsideWindow(t *testing.T) {
	f := newReconcilerFixture(t)
	cred := f.link(t, "user-1", "alice@example.com")
	f.provider.events[cred.ID] = []domain.UpstreamEvent{
		upstream("soon", reconcileNow.Add(4*time.Minute+59*time.Second), "https://meet.example.com/soon"),
		upstream("started", reconcileNow.Add(-4*time.Minute-59*time.Second), "https://meet.example.com/started"),
		upstream("edge", reconcileNow.Add(5*time.Minute), "https://meet.example.com/edge"),
		upstream("later", reconcileNow.Add(5*time.Minute+time.Second), "https://meet.example.com/later"),
		upstream("past", reconcileNow.Add(-5*time.Minute-time.Second), "https://meet.example.com/past"),
		upstream("nolink", reconcileNow.Add(time.Minute), ""),
	}

	report, err := f.r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Created)
	assert.Equal(t, 3, report.Dispatched)

	urls := append([]string{}, f.bot.urls...)
	sort.Strings(urls)
	assert.Equal(t, []string{
		"https://meet.example.com/edge",
		"https://meet.example.com/soon",
		"https://meet.example.com/started",
	}, urls)
	assert.Len(t, f.notifier.dispatched, 3)
	assert.Equal(t, 1, f.matcher.calls)
}

func TestReconcileIsolatesFailingAccount(t *testing.T) {
	f := newReconcilerFixture(t)
	broken := f.link(t, "user-1", "broken@example.com")
	healthy := f.link(t, "user-2", "healthy@example.com")
	f.provider.failing[broken.ID] = domain.ErrUpstreamUnavailable
	f.provider.events[healthy.ID] = []domain.UpstreamEvent{
		upstream("a", reconcileNow.Add(time.Hour), ""),
		upstream("b", reconcileNow.Add(2*time.Hour), ""),
	}

	report, err := f.r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Accounts)
	assert.Equal(t, 1, report.FailedAccounts)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, f.matcher.calls)

	active, err := f.events.FindByUserAndStatus(context.Background(), "user-2", domain.EventStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Meeting a", active[0].Summary)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newReconcilerFixture(t)
	cred := f.link(t, "user-1", "alice@example.com")
	f.provider.events[cred.ID] = []domain.UpstreamEvent{
		upstream("a", reconcileNow.Add(time.Hour), ""),
		upstream("b", reconcileNow.Add(2*time.Hour), ""),
	}
	ctx := context.Background()

	_, err := f.r.Reconcile(ctx)
	require.NoError(t, err)
	report, err := f.r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 2, report.Unchanged)

	// a moved meeting updates in place
	f.provider.events[cred.ID][1].Start = reconcileNow.Add(3 * time.Hour)
	f.provider.events[cred.ID][1].End = reconcileNow.Add(4 * time.Hour)
	report, err = f.r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	active, err := f.events.FindByUserAndStatus(ctx, "user-1", domain.EventStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.True(t, active[1].StartTime.Equal(reconcileNow.Add(3*time.Hour)))
}

func TestReconcileLeavesFinishedEventsAlone(t *testing.T) {
	f := newReconcilerFixture(t)
	cred := f.link(t, "user-1", "alice@example.com")
	f.provider.events[cred.ID] = []domain.UpstreamEvent{
		upstream("a", reconcileNow.Add(time.Hour), "https://meet.example.com/a"),
	}
	ctx := context.Background()

	_, err := f.r.Reconcile(ctx)
	require.NoError(t, err)
	active, err := f.events.FindByUserAndStatus(ctx, "user-1", domain.EventStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NoError(t, f.events.MarkFinished(ctx, active[0].ID, domain.MatchResult{OrderID: 7}))

	// the meeting is now about to start upstream, with a new title
	f.provider.events[cred.ID][0].Start = reconcileNow.Add(time.Minute)
	f.provider.events[cred.ID][0].Summary = "Renamed"
	report, err := f.r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Dispatched)
	assert.Empty(t, f.bot.urls)

	got, err := f.events.FindByID(ctx, active[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusFinished, got.Status)
	assert.Equal(t, "Renamed", got.Summary)
	require.NotNil(t, got.OrderID)
	assert.Equal(t, int64(7), *got.OrderID)
}

func TestReconcilePersistsRefreshedToken(t *testing.T) {
	f := newReconcilerFixture(t)
	cred := f.link(t, "user-1", "alice@example.com")
	f.provider.refresh[cred.ID] = "fresh"

	_, err := f.r.Reconcile(context.Background())
	require.NoError(t, err)

	stored, err := f.creds.FindByID(context.Background(), cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)
}

func TestReconcileDispatchFailureIsCounted(t *testing.T) {
	f := newReconcilerFixture(t)
	cred := f.link(t, "user-1", "alice@example.com")
	f.bot.err = domain.ErrUpstreamUnavailable
	f.provider.events[cred.ID] = []domain.UpstreamEvent{
		upstream("a", reconcileNow, "https://meet.example.com/a"),
	}

	report, err := f.r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Dispatched)
	assert.Equal(t, 1, report.DispatchFailures)
	assert.Empty(t, f.notifier.dispatched)
}

func TestSyncAccountDoesNotDispatch(t *testing.T) {
	f := newReconcilerFixture(t)
	cred := f.link(t, "user-1", "alice@example.com")
	f.provider.events[cred.ID] = []domain.UpstreamEvent{
		upstream("a", reconcileNow, "https://meet.example.com/a"),
	}

	events, err := f.r.SyncAccount(context.Background(), cred)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, f.bot.urls)
	assert.Equal(t, 0, f.matcher.calls)
}
