package delivery

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/dto"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/calendar/usecase"

	"github.com/gin-gonic/gin"
)

// CalendarHandler handles calendar linking, event and meeting requests
type CalendarHandler struct {
	calendarUsecase usecase.CalendarUsecase
	frontendURL     string
}

// NewCalendarHandler creates a new CalendarHandler
func NewCalendarHandler(calendarUsecase usecase.CalendarUsecase, frontendURL string) *CalendarHandler {
	return &CalendarHandler{
		calendarUsecase: calendarUsecase,
		frontendURL:     frontendURL,
	}
}

// GetAuthURL returns the consent page for linking a calendar
// GET /api/calendar/auth-url
func (h *CalendarHandler) GetAuthURL(c *gin.Context) {
	authURL, err := h.calendarUsecase.AuthURL(c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AuthURLResponse{URL: authURL})
}

// Callback finishes the consent flow and sends the browser back to the app
// GET /api/calendar/auth/callback?state=...&code=...
func (h *CalendarHandler) Callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		h.redirect(c, url.Values{"error": {reason}})
		return
	}

	cred, err := h.calendarUsecase.HandleCallback(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		if h.frontendURL == "" {
			writeError(c, err)
			return
		}
		h.redirect(c, url.Values{"error": {err.Error()}})
		return
	}

	if h.frontendURL == "" {
		c.JSON(http.StatusOK, gin.H{"email": cred.Email})
		return
	}
	h.redirect(c, url.Values{"linked": {cred.Email}})
}

func (h *CalendarHandler) redirect(c *gin.Context, query url.Values) {
	c.Redirect(http.StatusFound, h.frontendURL+"/calendar?"+query.Encode())
}

// GetConnectedEmails
// GET /api/calendar/emails
func (h *CalendarHandler) GetConnectedEmails(c *gin.Context) {
	emails, err := h.calendarUsecase.ConnectedEmails(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ConnectedEmailsResponse{Emails: emails})
}

// DisconnectEmail unlinks a calendar account
// DELETE /api/calendar/emails/:email
func (h *CalendarHandler) DisconnectEmail(c *gin.Context) {
	if err := h.calendarUsecase.DisconnectEmail(c.Request.Context(), c.GetString("userID"), c.Param("email")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Calendar disconnected"})
}

// SyncAccount pulls one account's upcoming events now
// POST /api/calendar/emails/:email/sync
func (h *CalendarHandler) SyncAccount(c *gin.Context) {
	events, err := h.calendarUsecase.SyncAccount(c.Request.Context(), c.GetString("userID"), c.Param("email"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventsResponse(events))
}

// GetActiveEvents
// GET /api/events/active
func (h *CalendarHandler) GetActiveEvents(c *gin.Context) {
	events, err := h.calendarUsecase.ListActive(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventsResponse(events))
}

// GetFinishedEvents
// GET /api/events/finished
func (h *CalendarHandler) GetFinishedEvents(c *gin.Context) {
	events, err := h.calendarUsecase.ListFinished(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventsResponse(events))
}

// GetEvent
// GET /api/events/:id
func (h *CalendarHandler) GetEvent(c *gin.Context) {
	event, err := h.calendarUsecase.GetEvent(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// AddEvent stores a manual meeting
// POST /api/events
func (h *CalendarHandler) AddEvent(c *gin.Context) {
	var req dto.AddEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.calendarUsecase.AddEvent(c.Request.Context(), c.GetString("userID"), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// DeleteEvent soft deletes an active event
// DELETE /api/events/:id
func (h *CalendarHandler) DeleteEvent(c *gin.Context) {
	if err := h.calendarUsecase.DeleteEvent(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted"})
}

// GetTranscript
// GET /api/events/:id/transcript
func (h *CalendarHandler) GetTranscript(c *gin.Context) {
	transcript, err := h.calendarUsecase.FetchTranscription(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transcript)
}

// JoinMeeting sends the recording bot into a meeting right away
// POST /api/meetings/join
func (h *CalendarHandler) JoinMeeting(c *gin.Context) {
	var req dto.JoinMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.calendarUsecase.JoinMeeting(c.Request.Context(), req.MeetingURL); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Bot is joining the meeting"})
}

func eventsResponse(events []*domain.Event) dto.EventsResponse {
	if events == nil {
		events = []*domain.Event{}
	}
	return dto.EventsResponse{Events: events}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrInvalidMeetingURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, domain.ErrMalformedUpstreamData):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
