package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultInitialOrderID is the transcription order id the high-water mark
// starts from on a fresh database. Jobs at or below it are never matched.
const DefaultInitialOrderID int64 = 1727253113783446562

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"host=localhost user=postgres password=postgres dbname=meeting_agent port=5432 sslmode=disable"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	JWTSecret        string        `envconfig:"JWT_SECRET" default:"your-secret-key-change-in-production"`
	JWTAccessExpiry  time.Duration `envconfig:"JWT_ACCESS_EXPIRY" default:"15m"`
	JWTRefreshExpiry time.Duration `envconfig:"JWT_REFRESH_EXPIRY" default:"168h"`

	GoogleClientID            string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret        string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleCalendarRedirectURI string `envconfig:"GOOGLE_CALENDAR_REDIRECT_URI" default:"http://localhost:8080/api/calendar/auth/callback"`
	FrontendURL               string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	TranskriptorAPIKey         string `envconfig:"TRANSKRIPTOR_API_KEY"`
	TranskriptorJoinMeetingURL string `envconfig:"TRANSKRIPTOR_JOIN_MEETING_URL"`
	TranskriptorHistoryURL     string `envconfig:"TRANSKRIPTOR_HISTORY_URL"`
	TranskriptorContentURL     string `envconfig:"TRANSKRIPTOR_CONTENT_URL"`
	MeetingLanguage            string `envconfig:"MEETING_LANGUAGE" default:"en-US"`

	SyncInterval     time.Duration `envconfig:"SYNC_INTERVAL" default:"60s"`
	DispatchWindow   time.Duration `envconfig:"DISPATCH_WINDOW" default:"5m"`
	UpstreamTimeout  time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	SyncConcurrency  int           `envconfig:"SYNC_CONCURRENCY" default:"4"`
	MatchMaxAttempts int           `envconfig:"MATCH_MAX_ATTEMPTS" default:"3"`
	InitialOrderID   int64         `envconfig:"INITIAL_ORDER_ID" default:"1727253113783446562"`

	// Vector index
	ChromaAPIKey   string `envconfig:"CHROMA_API_KEY"`
	ChromaTenant   string `envconfig:"CHROMA_TENANT"`
	ChromaDatabase string `envconfig:"CHROMA_DATABASE"`
	GeminiApiKey   string `envconfig:"GEMINI_API_KEY"`

	// Tick lock shared between replicas; a process-local lock is used when empty.
	RedisURL string        `envconfig:"REDIS_URL"`
	LockTTL  time.Duration `envconfig:"LOCK_TTL" default:"5m"`

	// Notifications
	GoogleProjectID     string `envconfig:"GOOGLE_PROJECT_ID"`
	GooglePubSubTopic   string `envconfig:"GOOGLE_PUBSUB_TOPIC" default:"meeting-events"`
	GoogleCredentials   string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseCredentials string `envconfig:"FIREBASE_CREDENTIALS"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.SyncConcurrency <= 0 {
		cfg.SyncConcurrency = 1
	}
	if cfg.MatchMaxAttempts <= 0 {
		cfg.MatchMaxAttempts = 1
	}
	return &cfg, nil
}
