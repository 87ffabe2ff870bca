// Package notification tells users about meeting activity through push
// notifications and a Pub/Sub topic.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	authdomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/domain"
	calendardomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/fcm"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const (
	KindBotDispatched   = "bot_dispatched"
	KindTranscriptReady = "transcript_ready"

	deliveryTimeout = 15 * time.Second
)

// Message is the Pub/Sub payload for a meeting event.
type Message struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	Summary   string    `json:"summary"`
	StartTime time.Time `json:"start_time"`
	OrderID   *int64    `json:"order_id,omitempty"`
	Duration  *int      `json:"duration,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

type DeviceStore interface {
	GetTokensByUserID(userID string) ([]authdomain.DeviceToken, error)
	DeleteToken(token string) error
}

type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) error
}

// Service fans meeting events out to devices and the topic. Either sink may
// be nil. Deliveries run in the background; Wait blocks until they finish.
type Service struct {
	push      PushSender
	devices   DeviceStore
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewService(push PushSender, devices DeviceStore, publisher Publisher, logger zerolog.Logger) *Service {
	return &Service{
		push:      push,
		devices:   devices,
		publisher: publisher,
		logger:    logger.With().Str("component", "notification").Logger(),
		now:       time.Now,
	}
}

func (s *Service) BotDispatched(event *calendardomain.Event) {
	s.dispatch(Message{
		Kind:      KindBotDispatched,
		EventID:   event.ID,
		Summary:   event.Summary,
		StartTime: event.StartTime,
	}, event.UserID, fcm.NotificationData{
		Title: "Recording bot joined",
		Body:  event.Summary,
	})
}

func (s *Service) TranscriptReady(event *calendardomain.Event, result calendardomain.MatchResult) {
	orderID := result.OrderID
	s.dispatch(Message{
		Kind:      KindTranscriptReady,
		EventID:   event.ID,
		Summary:   event.Summary,
		StartTime: event.StartTime,
		OrderID:   &orderID,
		Duration:  result.DurationSeconds,
	}, event.UserID, fcm.NotificationData{
		Title: "Transcript ready",
		Body:  event.Summary,
	})
}

// Wait blocks until queued deliveries are done.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) dispatch(msg Message, userID *string, push fcm.NotificationData) {
	if userID == nil || *userID == "" {
		return
	}
	msg.UserID = *userID
	msg.SentAt = s.now()
	push.Data = map[string]string{
		"type":         msg.Kind,
		"event_id":     msg.EventID,
		"click_action": fmt.Sprintf("/meetings/%s", msg.EventID),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		s.publish(ctx, msg)
		s.pushToDevices(ctx, msg.UserID, push)
	}()
}

func (s *Service) publish(ctx context.Context, msg Message) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode notification")
		return
	}
	if err := s.publisher.Publish(ctx, data, map[string]string{"kind": msg.Kind}); err != nil {
		s.logger.Error().Err(err).Str("event_id", msg.EventID).Msg("failed to publish notification")
	}
}

func (s *Service) pushToDevices(ctx context.Context, userID string, notification fcm.NotificationData) {
	if s.push == nil || s.devices == nil {
		return
	}
	devices, err := s.devices.GetTokensByUserID(userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load device tokens")
		return
	}
	if len(devices) == 0 {
		return
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.Token)
	}

	failed, err := s.push.SendToDevices(ctx, tokens, notification)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to push notification")
		return
	}
	for _, token := range failed {
		if err := s.devices.DeleteToken(token); err != nil {
			s.logger.Warn().Err(err).Msg("failed to forget rejected device token")
		}
	}
}

// PubSubPublisher publishes to a single Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubPublisher(ctx context.Context, projectID, topicName, credentialsFile string) (*PubSubPublisher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &PubSubPublisher{client: client, topic: client.Topic(topicName)}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	_, err := result.Get(ctx)
	return err
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
