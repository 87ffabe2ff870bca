package dto

import (
	"time"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
)

type AddEventRequest struct {
	Summary                string    `json:"summary" binding:"required"`
	Description            string    `json:"description"`
	Location               string    `json:"location"`
	StartTime              time.Time `json:"start_time" binding:"required"`
	EndTime                time.Time `json:"end_time"`
	OrganizerEmail         string    `json:"organizer_email"`
	CreatorEmail           string    `json:"creator_email"`
	HangoutLink            string    `json:"hangout_link"`
	ConferenceID           string    `json:"conference_id"`
	ConferenceSolutionName string    `json:"conference_solution_name"`
}

// ToEvent builds a manual entry: no credential, no external id.
func (r *AddEventRequest) ToEvent(userID string) *domain.Event {
	end := r.EndTime
	if end.IsZero() {
		end = r.StartTime
	}
	owner := userID
	return &domain.Event{
		UserID:                 &owner,
		Summary:                r.Summary,
		Description:            r.Description,
		Location:               r.Location,
		StartTime:              r.StartTime.UTC(),
		EndTime:                end.UTC(),
		OrganizerEmail:         r.OrganizerEmail,
		CreatorEmail:           r.CreatorEmail,
		JoinURL:                r.HangoutLink,
		ConferenceID:           r.ConferenceID,
		ConferenceSolutionName: r.ConferenceSolutionName,
		Status:                 domain.EventStatusActive,
	}
}

type JoinMeetingRequest struct {
	MeetingURL string `json:"meeting_url" binding:"required"`
}

type EventsResponse struct {
	Events []*domain.Event `json:"events"`
}

type ConnectedEmailsResponse struct {
	Emails []string `json:"emails"`
}

type AuthURLResponse struct {
	URL string `json:"url"`
}

type TranscriptResponse struct {
	OrderID  int64                   `json:"order_id"`
	AudioURL string                  `json:"sound"`
	Content  []domain.TranscriptLine `json:"content"`
}
