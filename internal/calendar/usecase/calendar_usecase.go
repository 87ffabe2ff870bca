package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/dto"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	linkStatePurpose = "calendar_link"
	linkStateTTL     = 10 * time.Minute
)

// calendarUsecase implements CalendarUsecase interface
type calendarUsecase struct {
	creds   repository.CredentialRepository
	events  repository.EventRepository
	linker  AccountLinker
	syncer  AccountSyncer
	bot     BotDispatcher
	content TranscriptSource
	logger  zerolog.Logger
	secret  []byte
	now     func() time.Time
	timeout time.Duration
}

type CalendarDeps struct {
	Credentials repository.CredentialRepository
	Events      repository.EventRepository
	Linker      AccountLinker
	Syncer      AccountSyncer
	Bot         BotDispatcher
	Content     TranscriptSource
	Logger      zerolog.Logger
	// StateSecret signs the OAuth state parameter
	StateSecret string
	CallTimeout time.Duration
	Now         func() time.Time
}

// NewCalendarUsecase creates a new instance of calendarUsecase
func NewCalendarUsecase(deps CalendarDeps) CalendarUsecase {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	timeout := deps.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &calendarUsecase{
		creds:   deps.Credentials,
		events:  deps.Events,
		linker:  deps.Linker,
		syncer:  deps.Syncer,
		bot:     deps.Bot,
		content: deps.Content,
		logger:  deps.Logger.With().Str("component", "calendar").Logger(),
		secret:  []byte(deps.StateSecret),
		now:     now,
		timeout: timeout,
	}
}

func (u *calendarUsecase) AuthURL(userID string) (string, error) {
	state, err := u.signState(userID)
	if err != nil {
		return "", err
	}
	return u.linker.AuthCodeURL(state), nil
}

func (u *calendarUsecase) HandleCallback(ctx context.Context, state, code string) (*domain.Credential, error) {
	userID, err := u.verifyState(state)
	if err != nil {
		return nil, err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	account, err := u.linker.Exchange(exchangeCtx, code)
	if err != nil {
		return nil, err
	}

	cred, err := u.creds.Upsert(ctx, &domain.Credential{
		ID:           uuid.New().String(),
		UserID:       userID,
		Email:        account.Email,
		AccessToken:  account.Token.AccessToken,
		RefreshToken: account.Token.RefreshToken,
		TokenExpiry:  account.Token.Expiry,
		TokenURI:     account.TokenURI,
		ClientID:     account.ClientID,
		Scopes:       strings.Join(account.Scopes, ","),
	})
	if err != nil {
		return nil, err
	}

	// first sync is best effort; the scheduler picks the account up anyway
	if _, err := u.syncer.SyncAccount(ctx, cred); err != nil {
		u.logger.Warn().Err(err).Str("email", cred.Email).Msg("initial calendar sync failed")
	}
	return cred, nil
}

func (u *calendarUsecase) ConnectedEmails(ctx context.Context, userID string) ([]string, error) {
	emails, err := u.creds.FindEmailsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if emails == nil {
		emails = []string{}
	}
	return emails, nil
}

func (u *calendarUsecase) DisconnectEmail(ctx context.Context, userID, email string) error {
	cred, err := u.credential(ctx, userID, email)
	if err != nil {
		return err
	}
	return u.creds.Disconnect(ctx, cred.ID)
}

func (u *calendarUsecase) SyncAccount(ctx context.Context, userID, email string) ([]*domain.Event, error) {
	cred, err := u.credential(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	return u.syncer.SyncAccount(ctx, cred)
}

func (u *calendarUsecase) ListActive(ctx context.Context, userID string) ([]*domain.Event, error) {
	return u.events.FindByUserAndStatus(ctx, userID, domain.EventStatusActive)
}

func (u *calendarUsecase) ListFinished(ctx context.Context, userID string) ([]*domain.Event, error) {
	return u.events.FindByUserAndStatus(ctx, userID, domain.EventStatusFinished)
}

func (u *calendarUsecase) GetEvent(ctx context.Context, userID, eventID string) (*domain.Event, error) {
	event, err := u.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	// someone else's event is reported exactly like a missing one
	if event == nil || event.UserID == nil || *event.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return event, nil
}

func (u *calendarUsecase) AddEvent(ctx context.Context, userID string, req *dto.AddEventRequest) (*domain.Event, error) {
	event := req.ToEvent(userID)
	event.ID = uuid.New().String()
	if err := u.events.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (u *calendarUsecase) DeleteEvent(ctx context.Context, userID, eventID string) error {
	if _, err := u.GetEvent(ctx, userID, eventID); err != nil {
		return err
	}
	return u.events.SoftDelete(ctx, eventID)
}

func (u *calendarUsecase) JoinMeeting(ctx context.Context, meetingURL string) error {
	if err := validateMeetingURL(meetingURL); err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	return u.bot.JoinMeeting(callCtx, meetingURL)
}

func (u *calendarUsecase) FetchTranscription(ctx context.Context, userID, eventID string) (*dto.TranscriptResponse, error) {
	event, err := u.GetEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != domain.EventStatusFinished || event.OrderID == nil {
		return nil, domain.ErrNotFound
	}

	callCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	transcript, err := u.content.GetContent(callCtx, *event.OrderID)
	if err != nil {
		return nil, err
	}
	return &dto.TranscriptResponse{
		OrderID:  *event.OrderID,
		AudioURL: transcript.AudioURL,
		Content:  transcript.Lines,
	}, nil
}

func (u *calendarUsecase) credential(ctx context.Context, userID, email string) (*domain.Credential, error) {
	cred, err := u.creds.FindByUserAndEmail(ctx, userID, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrNotFound
	}
	return cred, nil
}

func validateMeetingURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return domain.ErrInvalidMeetingURL
	}
	return nil
}

// signState binds a consent round trip to the user who started it.
func (u *calendarUsecase) signState(userID string) (string, error) {
	now := u.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"purpose": linkStatePurpose,
		"nonce":   uuid.New().String(),
		"iat":     now.Unix(),
		"exp":     now.Add(linkStateTTL).Unix(),
	})
	signed, err := token.SignedString(u.secret)
	if err != nil {
		return "", fmt.Errorf("sign link state: %w", err)
	}
	return signed, nil
}

func (u *calendarUsecase) verifyState(state string) (string, error) {
	token, err := jwt.Parse(state, func(t *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now))
	if err != nil {
		return "", errors.Join(domain.ErrInvalidState, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != linkStatePurpose {
		return "", domain.ErrInvalidState
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", domain.ErrInvalidState
	}
	return userID, nil
}
