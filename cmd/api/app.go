package api

import (
	"context"
	"fmt"
	"strings"

	authdomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/domain"
	authRepo "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/repository"
	authUsecase "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/usecase"
	calendarDelivery "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/delivery"
	calendardomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
	calendarRepo "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/repository"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/scheduler"
	calendarUsecase "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/usecase"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/notification"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/audio"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/chroma"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/config"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/database"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/fcm"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/googlecalendar"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/lock"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/metrics"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/transkriptor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const reconcileLockKey = "meeting-agent:reconcile"

// Models lists every table the service owns.
func Models() []interface{} {
	return []interface{}{
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.DeviceToken{},
		&calendardomain.Credential{},
		&calendardomain.Event{},
		&calendardomain.SyncState{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// App holds the wired service.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	DB         *gorm.DB
	Metrics    *metrics.Metrics
	Reconciler *calendarUsecase.Reconciler
	Scheduler  *scheduler.ReconcileScheduler
	Handler    *Handler
	Notifier   *notification.Service

	closers []func() error
}

// NewApp connects to the database and every configured collaborator. Optional
// integrations (vector index, push, Pub/Sub, Redis lock) are skipped with a
// warning when unconfigured or unreachable.
func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, DB: db}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(registry)

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	deviceRepo := authRepo.NewDeviceTokenRepository(db)
	credRepo := calendarRepo.NewCredentialRepository(db)
	eventRepo := calendarRepo.NewEventRepository(db)
	stateRepo := calendarRepo.NewSyncStateRepository(db)
	matchStore := calendarRepo.NewMatchStore(db)

	googleService := googlecalendar.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCalendarRedirectURI, logger)
	transcriptions := transkriptor.NewClient(transkriptor.Config{
		APIKey:         cfg.TranskriptorAPIKey,
		JoinMeetingURL: cfg.TranskriptorJoinMeetingURL,
		HistoryURL:     cfg.TranskriptorHistoryURL,
		ContentURL:     cfg.TranskriptorContentURL,
		Language:       cfg.MeetingLanguage,
		Timeout:        cfg.UpstreamTimeout,
	})

	var indexer calendarUsecase.VectorIndexer
	if cfg.ChromaAPIKey != "" {
		chromaClient, err := chroma.NewChromaClient(cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("chroma unavailable, transcripts will not be indexed")
		} else {
			indexer = chromaClient
		}
	} else {
		logger.Warn().Msg("CHROMA_API_KEY not set, transcripts will not be indexed")
	}

	app.Notifier = app.newNotifier(ctx, deviceRepo)

	matcher := calendarUsecase.NewTranscriptionMatcher(calendarUsecase.MatcherDeps{
		History:  transcriptions,
		Content:  transcriptions,
		Audio:    audio.NewProber(cfg.UpstreamTimeout),
		Indexer:  indexer,
		Events:   eventRepo,
		State:    stateRepo,
		Store:    matchStore,
		Notifier: app.Notifier,
		Metrics:  app.Metrics,
		Logger:   logger,
	}, calendarUsecase.MatcherConfig{
		InitialOrderID: cfg.InitialOrderID,
		MaxAttempts:    cfg.MatchMaxAttempts,
		CallTimeout:    cfg.UpstreamTimeout,
	})

	app.Reconciler = calendarUsecase.NewReconciler(calendarUsecase.ReconcilerDeps{
		Credentials: credRepo,
		Events:      eventRepo,
		Provider:    googleService,
		Bot:         transcriptions,
		Matcher:     matcher,
		Notifier:    app.Notifier,
		Metrics:     app.Metrics,
		Logger:      logger,
	}, calendarUsecase.ReconcilerConfig{
		DispatchWindow: cfg.DispatchWindow,
		CallTimeout:    cfg.UpstreamTimeout,
		Concurrency:    cfg.SyncConcurrency,
	})

	app.Scheduler = scheduler.NewReconcileScheduler(app.Reconciler, app.newLocker(), app.Metrics, logger, cfg.SyncInterval)

	calendarUc := calendarUsecase.NewCalendarUsecase(calendarUsecase.CalendarDeps{
		Credentials: credRepo,
		Events:      eventRepo,
		Linker:      googleService,
		Syncer:      app.Reconciler,
		Bot:         transcriptions,
		Content:     transcriptions,
		Logger:      logger,
		StateSecret: cfg.JWTSecret,
		CallTimeout: cfg.UpstreamTimeout,
	})
	authUc := authUsecase.NewAuthUsecase(userRepo, deviceRepo, cfg)

	app.Handler = NewHandler(authUc, calendarDelivery.NewCalendarHandler(calendarUc, cfg.FrontendURL), registry, logger)
	return app, nil
}

func (a *App) newNotifier(ctx context.Context, devices notification.DeviceStore) *notification.Service {
	var push notification.PushSender
	if a.Config.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, a.Config.FirebaseCredentials, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("failed to initialize FCM client, push notifications disabled")
		} else {
			push = fcmClient
		}
	}

	var publisher notification.Publisher
	if a.Config.GoogleProjectID != "" {
		// accept both the short topic name and the full resource name
		topicName := a.Config.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		pubsubPublisher, err := notification.NewPubSubPublisher(ctx, a.Config.GoogleProjectID, topicName, a.Config.GoogleCredentials)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("failed to initialize Pub/Sub publisher, topic notifications disabled")
		} else {
			publisher = pubsubPublisher
			a.closers = append(a.closers, pubsubPublisher.Close)
		}
	}

	return notification.NewService(push, devices, publisher, a.Logger)
}

func (a *App) newLocker() lock.Locker {
	if a.Config.RedisURL == "" {
		return lock.NewLocal()
	}
	locker, client, err := lock.NewRedisFromURL(a.Config.RedisURL, reconcileLockKey, a.Config.LockTTL)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("invalid REDIS_URL, falling back to a process-local lock")
		return lock.NewLocal()
	}
	a.closers = append(a.closers, client.Close)
	return locker
}

// Close waits for pending notifications and releases external clients.
func (a *App) Close() {
	if a.Notifier != nil {
		a.Notifier.Wait()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close client")
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
