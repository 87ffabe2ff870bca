// Package transkriptor talks to the meeting recording and transcription
// service: dispatching the bot, listing finished jobs, fetching transcripts.
package transkriptor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	calendardomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	APIKey         string
	JoinMeetingURL string
	HistoryURL     string
	ContentURL     string
	Language       string
	Timeout        time.Duration
}

type Client struct {
	http *resty.Client
	cfg  Config
}

func NewClient(cfg Config) *Client {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := resty.New().
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	return &Client{http: c, cfg: cfg}
}

// JoinMeeting asks the service to send its recording bot into meetingURL.
func (c *Client) JoinMeeting(ctx context.Context, meetingURL string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"meetingUrl": meetingURL,
			"language":   c.cfg.Language,
			"apiKey":     c.cfg.APIKey,
		}).
		Get(c.cfg.JoinMeetingURL)
	if err != nil {
		return fmt.Errorf("join meeting request: %v: %w", err, calendardomain.ErrUpstreamUnavailable)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("join meeting status %d: %w", resp.StatusCode(), calendardomain.ErrUpstreamUnavailable)
	}
	return nil
}

type historyItem struct {
	OrderID struct {
		S string `json:"S"`
	} `json:"OrderID"`
}

// ListHistory returns the completed jobs in the order the service lists them.
func (c *Client) ListHistory(ctx context.Context) ([]calendardomain.TranscriptionJob, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("apiKey", c.cfg.APIKey).
		Get(c.cfg.HistoryURL)
	if err != nil {
		return nil, fmt.Errorf("history request: %v: %w", err, calendardomain.ErrUpstreamUnavailable)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("history status %d: %w", resp.StatusCode(), calendardomain.ErrUpstreamUnavailable)
	}
	return ParseHistory(resp.Body())
}

// ParseHistory decodes the history payload. The service wraps the list in a
// JSON string, so the body is decoded twice when it starts with a quote.
func ParseHistory(body []byte) ([]calendardomain.TranscriptionJob, error) {
	payload := []byte(strings.TrimSpace(string(body)))
	if len(payload) > 0 && payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, fmt.Errorf("history envelope: %v: %w", err, calendardomain.ErrMalformedUpstreamData)
		}
		payload = []byte(inner)
	}

	var items []historyItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("history list: %v: %w", err, calendardomain.ErrMalformedUpstreamData)
	}

	jobs := make([]calendardomain.TranscriptionJob, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(item.OrderID.S, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("order id %q: %w", item.OrderID.S, calendardomain.ErrMalformedUpstreamData)
		}
		jobs = append(jobs, calendardomain.TranscriptionJob{OrderID: id})
	}
	return jobs, nil
}

// GetContent fetches the transcript and recording url of one job.
func (c *Client) GetContent(ctx context.Context, orderID int64) (*calendardomain.Transcript, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("orderid", strconv.FormatInt(orderID, 10)).
		Get(c.cfg.ContentURL)
	if err != nil {
		return nil, fmt.Errorf("content request: %v: %w", err, calendardomain.ErrUpstreamUnavailable)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("content status %d: %w", resp.StatusCode(), calendardomain.ErrUpstreamUnavailable)
	}

	var transcript calendardomain.Transcript
	if err := json.Unmarshal(resp.Body(), &transcript); err != nil {
		return nil, fmt.Errorf("content body: %v: %w", err, calendardomain.ErrMalformedUpstreamData)
	}
	return &transcript, nil
}
