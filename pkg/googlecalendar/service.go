// Package googlecalendar wraps the Google OAuth consent flow and the
// Calendar v3 API for linked accounts.
package googlecalendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	calendardomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Scopes requested on consent.
var Scopes = []string{
	calendar.CalendarReadonlyScope,
	oauth2api.UserinfoEmailScope,
	"openid",
}

type Service struct {
	oauth    *oauth2.Config
	endpoint string
	logger   zerolog.Logger
}

type Option func(*Service)

// WithAPIEndpoint points the Calendar and userinfo clients at another base URL.
func WithAPIEndpoint(endpoint string) Option {
	return func(s *Service) { s.endpoint = endpoint }
}

// WithOAuthEndpoint replaces the Google token endpoints.
func WithOAuthEndpoint(ep oauth2.Endpoint) Option {
	return func(s *Service) { s.oauth.Endpoint = ep }
}

func NewService(clientID, clientSecret, redirectURL string, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       Scopes,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback calendardomain.TokenUpdateFunc
	logger   zerolog.Logger
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist refreshed calendar token")
		}
	}
	return t, nil
}

// AuthCodeURL builds the consent URL. Offline access with forced consent
// makes Google return a refresh token on every link.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and resolves the
// mailbox address they belong to.
func (s *Service) Exchange(ctx context.Context, code string) (*calendardomain.LinkedAccount, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %v: %w", err, calendardomain.ErrUpstreamUnavailable)
	}

	client := s.oauth.Client(ctx, token)
	svc, err := oauth2api.NewService(ctx, s.clientOptions(client)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("userinfo: %v: %w", err, calendardomain.ErrUpstreamUnavailable)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo without email: %w", calendardomain.ErrMalformedUpstreamData)
	}

	return &calendardomain.LinkedAccount{
		Email:    strings.ToLower(info.Email),
		Token:    token,
		TokenURI: s.oauth.Endpoint.TokenURL,
		ClientID: s.oauth.ClientID,
		Scopes:   s.oauth.Scopes,
	}, nil
}

func (s *Service) clientOptions(client *http.Client) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return opts
}

// calendarService creates a Calendar client for a stored credential. Tokens
// refreshed during the call are handed to onTokenRefresh.
func (s *Service) calendarService(ctx context.Context, cred *calendardomain.Credential, onTokenRefresh calendardomain.TokenUpdateFunc) (*calendar.Service, error) {
	token := cred.OAuthToken()

	wrapped := &notifyTokenSource{
		src:      s.oauth.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
		logger:   s.logger,
	}
	client := oauth2.NewClient(ctx, wrapped)

	srv, err := calendar.NewService(ctx, s.clientOptions(client)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return srv, nil
}

// ListUpcoming returns the timed events of the primary calendar starting
// at or after now, expanded into single occurrences.
func (s *Service) ListUpcoming(ctx context.Context, cred *calendardomain.Credential, now time.Time, onTokenRefresh calendardomain.TokenUpdateFunc) ([]calendardomain.UpstreamEvent, error) {
	srv, err := s.calendarService(ctx, cred, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	var out []calendardomain.UpstreamEvent
	call := srv.Events.List("primary").
		TimeMin(now.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)
	err = call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			ev, ok, err := ConvertEvent(item)
			if err != nil {
				s.logger.Warn().Err(err).Str("event_id", item.Id).Msg("skipping unparsable calendar event")
				continue
			}
			if !ok {
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("token refresh for %s: %v: %w", cred.Email, err, calendardomain.ErrUpstreamUnavailable)
		}
		return nil, fmt.Errorf("list events for %s: %v: %w", cred.Email, err, calendardomain.ErrUpstreamUnavailable)
	}
	return out, nil
}

// ConvertEvent maps an API event. ok is false for all-day or cancelled
// events, which carry no dispatchable start time.
func ConvertEvent(item *calendar.Event) (calendardomain.UpstreamEvent, bool, error) {
	if item == nil || item.Status == "cancelled" || item.Start == nil || item.Start.DateTime == "" {
		return calendardomain.UpstreamEvent{}, false, nil
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return calendardomain.UpstreamEvent{}, false, fmt.Errorf("start time: %v: %w", err, calendardomain.ErrMalformedUpstreamData)
	}
	end := start
	if item.End != nil && item.End.DateTime != "" {
		end, err = time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return calendardomain.UpstreamEvent{}, false, fmt.Errorf("end time: %v: %w", err, calendardomain.ErrMalformedUpstreamData)
		}
	}

	ev := calendardomain.UpstreamEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       start.UTC(),
		End:         end.UTC(),
		JoinLink:    item.HangoutLink,
	}
	if item.Organizer != nil {
		ev.OrganizerEmail = item.Organizer.Email
	}
	if item.Creator != nil {
		ev.CreatorEmail = item.Creator.Email
	}
	if cd := item.ConferenceData; cd != nil {
		ev.ConferenceID = cd.ConferenceId
		if cd.ConferenceSolution != nil {
			ev.ConferenceSolutionName = cd.ConferenceSolution.Name
		}
		if ev.JoinLink == "" {
			for _, ep := range cd.EntryPoints {
				if ep.EntryPointType == "video" && ep.Uri != "" {
					ev.JoinLink = ep.Uri
					break
				}
			}
		}
	}
	return ev, true, nil
}
