package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/usecase"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/lock"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/metrics"

	"github.com/rs/zerolog"
)

// ErrPassRunning is returned by Run when another holder has the lock.
var ErrPassRunning = errors.New("reconciliation pass already running")

// Reconciler is one full synchronization pass.
type Reconciler interface {
	Reconcile(ctx context.Context) (usecase.ReconcileReport, error)
}

// ReconcileScheduler runs the reconciler on a fixed interval. A tick that
// finds the previous pass still running is skipped, never queued.
type ReconcileScheduler struct {
	reconciler Reconciler
	locker     lock.Locker
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	interval   time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

// NewReconcileScheduler creates a new scheduler
func NewReconcileScheduler(
	reconciler Reconciler,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	interval time.Duration,
) *ReconcileScheduler {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconcileScheduler{
		reconciler: reconciler,
		locker:     locker,
		metrics:    m,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		interval:   interval,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *ReconcileScheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("starting reconciliation scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(s.done)
		defer cancel()

		// Run immediately on start
		s.RunOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-s.stopChan:
				s.logger.Info().Msg("scheduler stopped")
				return
			}
		}
	}()

	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-s.done:
		}
	}()
}

// Stop cancels the running pass and waits for the loop to exit
func (s *ReconcileScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

// RunOnce runs a pass unless another one holds the lock. It reports whether
// a pass ran.
func (s *ReconcileScheduler) RunOnce(ctx context.Context) bool {
	_, ran, err := s.run(ctx)
	if !ran {
		if errors.Is(err, ErrPassRunning) {
			s.logger.Debug().Msg("previous pass still running, skipping tick")
		} else {
			s.logger.Error().Err(err).Msg("failed to acquire reconciliation lock")
		}
		s.metrics.SkippedTicks.Inc()
		return false
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("reconciliation pass failed")
	}
	return true
}

// Run performs one pass under the same lock as the scheduled ones and
// returns its report. It fails with ErrPassRunning instead of waiting.
func (s *ReconcileScheduler) Run(ctx context.Context) (usecase.ReconcileReport, error) {
	report, _, err := s.run(ctx)
	return report, err
}

func (s *ReconcileScheduler) run(ctx context.Context) (usecase.ReconcileReport, bool, error) {
	release, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		return usecase.ReconcileReport{}, false, fmt.Errorf("acquire reconciliation lock: %w", err)
	}
	if !ok {
		return usecase.ReconcileReport{}, false, ErrPassRunning
	}
	defer release()

	report, err := s.reconciler.Reconcile(ctx)
	return report, true, err
}
