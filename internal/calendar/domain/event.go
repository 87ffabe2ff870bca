package domain

import (
	"time"
)

// EventStatus is the lifecycle state of a calendar event.
type EventStatus string

const (
	EventStatusActive   EventStatus = "active"
	EventStatusFinished EventStatus = "finished"
	EventStatusDeleted  EventStatus = "deleted"
)

// Event mirrors one external meeting occurrence, or a manual entry when
// CredentialID and ExternalEventID are nil. The pair (CredentialID,
// ExternalEventID) identifies at most one row when both are set.
type Event struct {
	ID                     string      `json:"id" gorm:"primaryKey"`
	UserID                 *string     `json:"user_id,omitempty" gorm:"index"`
	CredentialID           *string     `json:"credential_id,omitempty" gorm:"uniqueIndex:idx_event_credential_external"`
	ExternalEventID        *string     `json:"event_id,omitempty" gorm:"uniqueIndex:idx_event_credential_external"`
	Summary                string      `json:"summary" gorm:"not null"`
	Description            string      `json:"description"`
	Location               string      `json:"location"`
	StartTime              time.Time   `json:"start_time" gorm:"index;not null"`
	EndTime                time.Time   `json:"end_time"`
	OrganizerEmail         string      `json:"organizer_email"`
	CreatorEmail           string      `json:"creator_email"`
	JoinURL                string      `json:"hangout_link"`
	ConferenceID           string      `json:"conference_id"`
	ConferenceSolutionName string      `json:"conference_solution_name"`
	Status                 EventStatus `json:"status" gorm:"index;not null;default:active"`
	OrderID                *int64      `json:"order_id,omitempty"`
	DurationSeconds        *int        `json:"duration,omitempty"`
	IndexHandle            *string     `json:"vector_store_id,omitempty"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

func (Event) TableName() string {
	return "calendar_events"
}

// UpstreamEvent is one event as returned by an external calendar.
type UpstreamEvent struct {
	ID                     string
	Summary                string
	Description            string
	Location               string
	Start                  time.Time
	End                    time.Time
	OrganizerEmail         string
	CreatorEmail           string
	JoinLink               string
	ConferenceID           string
	ConferenceSolutionName string
}

// DescriptiveColumns are the columns a re-sync may overwrite. Status, order
// id, duration and index handle belong to the matcher and are never listed.
var DescriptiveColumns = []string{
	"summary",
	"description",
	"location",
	"start_time",
	"end_time",
	"organizer_email",
	"creator_email",
	"join_url",
	"conference_id",
	"conference_solution_name",
}

// ApplyUpstream copies the descriptive fields of u onto e.
func (e *Event) ApplyUpstream(u UpstreamEvent) {
	e.Summary = u.Summary
	e.Description = u.Description
	e.Location = u.Location
	e.StartTime = u.Start.UTC()
	e.EndTime = u.End.UTC()
	e.OrganizerEmail = u.OrganizerEmail
	e.CreatorEmail = u.CreatorEmail
	e.JoinURL = u.JoinLink
	e.ConferenceID = u.ConferenceID
	e.ConferenceSolutionName = u.ConferenceSolutionName
}

// MatchesUpstream reports whether applying u would change nothing.
func (e *Event) MatchesUpstream(u UpstreamEvent) bool {
	return e.Summary == u.Summary &&
		e.Description == u.Description &&
		e.Location == u.Location &&
		e.StartTime.Equal(u.Start) &&
		e.EndTime.Equal(u.End) &&
		e.OrganizerEmail == u.OrganizerEmail &&
		e.CreatorEmail == u.CreatorEmail &&
		e.JoinURL == u.JoinLink &&
		e.ConferenceID == u.ConferenceID &&
		e.ConferenceSolutionName == u.ConferenceSolutionName
}

// InDispatchWindow reports whether start lies within [now-window, now+window].
func InDispatchWindow(start, now time.Time, window time.Duration) bool {
	delta := start.Sub(now)
	return delta >= -window && delta <= window
}

// MatchResult is what the matcher attaches to a finished event.
type MatchResult struct {
	OrderID         int64
	DurationSeconds *int
	IndexHandle     *string
}
