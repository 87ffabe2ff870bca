package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/repository"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/metrics"

	"github.com/rs/zerolog"
)

// Pair is one job assigned to one event.
type Pair struct {
	Job   domain.TranscriptionJob
	Event *domain.Event
}

// NewerJobs keeps the jobs above mark, ascending and without repeats.
func NewerJobs(jobs []domain.TranscriptionJob, mark int64) []domain.TranscriptionJob {
	seen := make(map[int64]struct{}, len(jobs))
	out := make([]domain.TranscriptionJob, 0, len(jobs))
	for _, j := range jobs {
		if j.OrderID <= mark {
			continue
		}
		if _, dup := seen[j.OrderID]; dup {
			continue
		}
		seen[j.OrderID] = struct{}{}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].OrderID < out[b].OrderID })
	return out
}

// PairByOrder assigns the i-th oldest new job to the i-th earliest active
// event. Jobs carry no event reference, so position is the only link: the
// oldest unresolved meeting gets the earliest newly completed job. Both
// slices must already be sorted.
func PairByOrder(jobs []domain.TranscriptionJob, active []*domain.Event) []Pair {
	n := len(jobs)
	if len(active) < n {
		n = len(active)
	}
	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, Pair{Job: jobs[i], Event: active[i]})
	}
	return pairs
}

type MatcherConfig struct {
	InitialOrderID int64
	// MaxAttempts is how many passes may fail on the same job before its
	// event is finished without a transcript.
	MaxAttempts int
	CallTimeout time.Duration
}

type MatchReport struct {
	NewJobs   int
	Matched   int
	Abandoned int
	Mark      int64
}

// TranscriptionMatcher attaches finished transcription jobs to active events.
type TranscriptionMatcher struct {
	history  TranscriptionHistory
	content  TranscriptSource
	audio    AudioProber
	indexer  VectorIndexer
	events   repository.EventRepository
	state    repository.SyncStateRepository
	store    repository.MatchStore
	notifier Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	cfg      MatcherConfig
	now      func() time.Time

	mu sync.Mutex
}

type MatcherDeps struct {
	History  TranscriptionHistory
	Content  TranscriptSource
	Audio    AudioProber
	Indexer  VectorIndexer // optional
	Events   repository.EventRepository
	State    repository.SyncStateRepository
	Store    repository.MatchStore
	Notifier Notifier // optional
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

func NewTranscriptionMatcher(deps MatcherDeps, cfg MatcherConfig) *TranscriptionMatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	return &TranscriptionMatcher{
		history:  deps.History,
		content:  deps.Content,
		audio:    deps.Audio,
		indexer:  deps.Indexer,
		events:   deps.Events,
		state:    deps.State,
		store:    deps.Store,
		notifier: notifier,
		metrics:  m,
		logger:   deps.Logger.With().Str("component", "matcher").Logger(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Match runs one matching pass. Only failures to read the mark, the job
// history or the active events abort the pass; a failed pairing stops the
// pass at that job so the next tick retries it in the same position.
func (m *TranscriptionMatcher) Match(ctx context.Context) (MatchReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report MatchReport

	state, err := m.state.Load(ctx, domain.HighWaterMarkKey, m.cfg.InitialOrderID)
	if err != nil {
		return report, fmt.Errorf("load high-water mark: %w", err)
	}
	mark := state.Value
	report.Mark = mark
	m.metrics.HighWaterMark.Set(float64(mark))

	histCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	jobs, err := m.history.ListHistory(histCtx)
	cancel()
	if err != nil {
		return report, fmt.Errorf("list transcription history: %w", err)
	}

	fresh := NewerJobs(jobs, mark)
	report.NewJobs = len(fresh)
	if len(fresh) == 0 {
		return report, nil
	}

	active, err := m.events.FindByStatus(ctx, domain.EventStatusActive)
	if err != nil {
		return report, fmt.Errorf("list active events: %w", err)
	}

	for _, pair := range PairByOrder(fresh, active) {
		log := m.logger.With().Int64("order_id", pair.Job.OrderID).Str("event_id", pair.Event.ID).Logger()

		result, err := m.resolve(ctx, pair)
		abandoned := false
		if err != nil {
			m.metrics.MatchFailures.Inc()
			attempts, rerr := m.state.RecordFailure(ctx, domain.HighWaterMarkKey, pair.Job.OrderID, m.now())
			if rerr != nil {
				log.Error().Err(rerr).Msg("failed to record match failure")
				break
			}
			if attempts < m.cfg.MaxAttempts {
				log.Warn().Err(err).Int("attempt", attempts).Msg("pairing failed, retrying next pass")
				break
			}
			log.Error().Err(err).Int("attempt", attempts).Msg("pairing keeps failing, finishing event without transcript")
			result = domain.MatchResult{OrderID: pair.Job.OrderID}
			abandoned = true
		}

		if err := m.store.CommitMatch(ctx, pair.Event.ID, result, domain.HighWaterMarkKey, mark); err != nil {
			// either the event left the active set or another pass moved the
			// mark; the next pass re-pairs from fresh state
			log.Warn().Err(err).Msg("failed to commit match")
			if errors.Is(err, domain.ErrMarkConflict) {
				return report, err
			}
			break
		}

		mark = pair.Job.OrderID
		report.Mark = mark
		m.metrics.HighWaterMark.Set(float64(mark))
		if abandoned {
			report.Abandoned++
			continue
		}

		report.Matched++
		m.metrics.MatchedJobs.Inc()
		finished := *pair.Event
		finished.Status = domain.EventStatusFinished
		finished.OrderID = &result.OrderID
		finished.DurationSeconds = result.DurationSeconds
		finished.IndexHandle = result.IndexHandle
		m.notifier.TranscriptReady(&finished, result)
		log.Info().Msg("transcript attached to event")
	}

	return report, nil
}

func (m *TranscriptionMatcher) resolve(ctx context.Context, pair Pair) (domain.MatchResult, error) {
	result := domain.MatchResult{OrderID: pair.Job.OrderID}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	transcript, err := m.content.GetContent(callCtx, pair.Job.OrderID)
	cancel()
	if err != nil {
		return result, fmt.Errorf("fetch transcript: %w", err)
	}

	if transcript.AudioURL != "" && m.audio != nil {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		seconds, err := m.audio.DurationSeconds(callCtx, transcript.AudioURL)
		cancel()
		if err != nil {
			m.logger.Warn().Err(err).Int64("order_id", pair.Job.OrderID).Msg("could not measure recording")
		} else {
			result.DurationSeconds = &seconds
		}
	}

	if m.indexer != nil {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		handle, err := m.indexer.IndexTranscript(callCtx, pair.Job.OrderID, pair.Event.Summary, transcript.FormattedLines())
		cancel()
		if err != nil {
			return result, fmt.Errorf("index transcript: %w", err)
		}
		result.IndexHandle = &handle
	}

	return result, nil
}
