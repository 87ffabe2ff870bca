package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/repository"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// Matcher runs after every account of a pass is synchronized.
type Matcher interface {
	Match(ctx context.Context) (MatchReport, error)
}

type ReconcilerConfig struct {
	DispatchWindow time.Duration
	CallTimeout    time.Duration
	Concurrency    int
}

type ReconcileReport struct {
	Accounts         int
	FailedAccounts   int
	Created          int
	Updated          int
	Unchanged        int
	Dispatched       int
	DispatchFailures int
	Match            MatchReport
	MatchErr         error
}

func (r *ReconcileReport) add(o accountOutcome) {
	r.Created += o.created
	r.Updated += o.updated
	r.Unchanged += o.unchanged
	r.Dispatched += o.dispatched
	r.DispatchFailures += o.dispatchFailures
}

type accountOutcome struct {
	events           []*domain.Event
	created          int
	updated          int
	unchanged        int
	dispatched       int
	dispatchFailures int
}

// Reconciler mirrors every linked calendar locally, sends the recording
// bot to meetings about to start and then hands over to the matcher.
type Reconciler struct {
	creds    repository.CredentialRepository
	events   repository.EventRepository
	provider CalendarProvider
	bot      BotDispatcher
	matcher  Matcher
	notifier Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	cfg      ReconcilerConfig
	now      func() time.Time
}

type ReconcilerDeps struct {
	Credentials repository.CredentialRepository
	Events      repository.EventRepository
	Provider    CalendarProvider
	Bot         BotDispatcher
	Matcher     Matcher
	Notifier    Notifier // optional
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	Now         func() time.Time
}

func NewReconciler(deps ReconcilerDeps, cfg ReconcilerConfig) *Reconciler {
	if cfg.DispatchWindow <= 0 {
		cfg.DispatchWindow = 5 * time.Minute
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		creds:    deps.Credentials,
		events:   deps.Events,
		provider: deps.Provider,
		bot:      deps.Bot,
		matcher:  deps.Matcher,
		notifier: notifier,
		metrics:  m,
		logger:   deps.Logger.With().Str("component", "reconciler").Logger(),
		cfg:      cfg,
		now:      now,
	}
}

// Reconcile runs one full pass. Each account is isolated: a failing account
// is logged and skipped. The matcher runs once, after every account is done.
// The only returned error is failing to list the accounts at all.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	start := time.Now()
	defer func() {
		r.metrics.ReconcilePasses.Inc()
		r.metrics.PassDuration.Observe(time.Since(start).Seconds())
	}()

	creds, err := r.creds.FindAll(ctx)
	if err != nil {
		return report, fmt.Errorf("list credentials: %w", err)
	}
	report.Accounts = len(creds)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, cred := range creds {
		cred := cred
		g.Go(func() error {
			outcome, err := r.syncCredential(gctx, cred, true)

			mu.Lock()
			defer mu.Unlock()
			report.add(outcome)
			if err != nil {
				report.FailedAccounts++
				r.metrics.AccountSyncErrors.Inc()
				r.logger.Warn().Err(err).Str("credential_id", cred.ID).Str("email", cred.Email).Msg("calendar sync failed")
			}
			// never fail the group: one account must not cancel the others
			return nil
		})
	}
	_ = g.Wait()

	if r.matcher != nil {
		report.Match, report.MatchErr = r.matcher.Match(ctx)
		if report.MatchErr != nil {
			r.logger.Warn().Err(report.MatchErr).Msg("transcription matching skipped")
		}
	}

	r.logger.Info().
		Int("accounts", report.Accounts).
		Int("failed_accounts", report.FailedAccounts).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("dispatched", report.Dispatched).
		Int("matched", report.Match.Matched).
		Msg("reconciliation pass finished")
	return report, nil
}

// SyncAccount refreshes one account on demand, without dispatching bots.
func (r *Reconciler) SyncAccount(ctx context.Context, cred *domain.Credential) ([]*domain.Event, error) {
	outcome, err := r.syncCredential(ctx, cred, false)
	if err != nil {
		return nil, err
	}
	return outcome.events, nil
}

func (r *Reconciler) syncCredential(ctx context.Context, cred *domain.Credential, dispatch bool) (accountOutcome, error) {
	var outcome accountOutcome
	log := r.logger.With().Str("credential_id", cred.ID).Logger()

	onRefresh := func(token *oauth2.Token) error {
		updateCtx, cancel := context.WithTimeout(context.Background(), r.cfg.CallTimeout)
		defer cancel()
		return r.creds.UpdateToken(updateCtx, cred.ID, token)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	upstream, err := r.provider.ListUpcoming(callCtx, cred, r.now(), onRefresh)
	cancel()
	if err != nil {
		return outcome, err
	}

	for _, u := range upstream {
		event, result, err := r.events.UpsertFromUpstream(ctx, cred.UserID, cred.ID, u)
		if err != nil {
			log.Error().Err(err).Str("external_event_id", u.ID).Msg("failed to store event")
			continue
		}
		r.metrics.EventUpserts.WithLabelValues(string(result)).Inc()
		switch result {
		case repository.UpsertCreated:
			outcome.created++
		case repository.UpsertUpdated:
			outcome.updated++
		default:
			outcome.unchanged++
		}
		outcome.events = append(outcome.events, event)

		if dispatch && r.shouldDispatch(event) {
			if r.dispatch(ctx, event) {
				outcome.dispatched++
			} else {
				outcome.dispatchFailures++
			}
		}
	}
	return outcome, nil
}

func (r *Reconciler) shouldDispatch(event *domain.Event) bool {
	return event.Status == domain.EventStatusActive &&
		event.JoinURL != "" &&
		domain.InDispatchWindow(event.StartTime, r.now(), r.cfg.DispatchWindow)
}

// dispatch is fire-and-forget: failures are logged and never retried here.
func (r *Reconciler) dispatch(ctx context.Context, event *domain.Event) bool {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	if err := r.bot.JoinMeeting(callCtx, event.JoinURL); err != nil {
		r.metrics.Dispatches.WithLabelValues("failed").Inc()
		r.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to dispatch recording bot")
		return false
	}
	r.metrics.Dispatches.WithLabelValues("ok").Inc()
	r.logger.Info().Str("event_id", event.ID).Str("summary", event.Summary).Msg("recording bot dispatched")
	r.notifier.BotDispatched(event)
	return true
}
