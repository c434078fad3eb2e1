package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"eventhub/models"
	"eventhub/services"
)

type eventRequest struct {
	Title        string    `json:"title" binding:"required,notblank,max=255"`
	Date         time.Time `json:"date" binding:"required"`
	Location     string    `json:"location" binding:"required,notblank,max=255"`
	Description  string    `json:"description" binding:"max=5000"`
	MaxAttendees int       `json:"maxAttendees" binding:"required,min=1"`
}

func (r eventRequest) input() services.EventInput {
	return services.EventInput{
		Title:        r.Title,
		Date:         r.Date,
		Location:     r.Location,
		Description:  r.Description,
		MaxAttendees: r.MaxAttendees,
	}
}

const dateOnly = "2006-01-02"

// parseQueryTime accepts RFC3339 or a bare date. A bare date used as an
// upper bound covers the whole day.
func parseQueryTime(v string, endOfDay bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *handlers) writeEvents(c *gin.Context, events []models.Event, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GET /events
func (h *handlers) listEvents(c *gin.Context) {
	events, err := h.Events.List(c.Request.Context())
	h.writeEvents(c, events, err)
}

// GET /events/upcoming
func (h *handlers) upcomingEvents(c *gin.Context) {
	events, err := h.Events.Upcoming(c.Request.Context())
	h.writeEvents(c, events, err)
}

// GET /events/past
func (h *handlers) pastEvents(c *gin.Context) {
	events, err := h.Events.Past(c.Request.Context())
	h.writeEvents(c, events, err)
}

// GET /events/filter?title=&location=&from=&to=
func (h *handlers) filterEvents(c *gin.Context) {
	from, err := parseQueryTime(c.Query("from"), false)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid from date.", "error": "validation"})
		return
	}
	to, err := parseQueryTime(c.Query("to"), true)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid to date.", "error": "validation"})
		return
	}
	events, err := h.Events.Filter(c.Request.Context(), services.FilterCriteria{
		Title:    strings.TrimSpace(c.Query("title")),
		Location: strings.TrimSpace(c.Query("location")),
		From:     from,
		To:       to,
	})
	h.writeEvents(c, events, err)
}

// GET /events/:id
func (h *handlers) getEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ev, err := h.Events.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// POST /events
func (h *handlers) createEvent(c *gin.Context) {
	if err := principal(c).RequireAdmin(); err != nil {
		writeError(c, err)
		return
	}
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ev, err := h.Events.Create(c.Request.Context(), principal(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	h.purge(c, ev.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "event created!", "event": ev})
}

// PUT /events/:id
func (h *handlers) updateEvent(c *gin.Context) {
	if err := principal(c).RequireAdmin(); err != nil {
		writeError(c, err)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ev, err := h.Events.Update(c.Request.Context(), principal(c), id, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	h.purge(c, id)
	c.JSON(http.StatusOK, gin.H{"message": "Event updated successfully!", "event": ev})
}

// DELETE /events/:id
func (h *handlers) deleteEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Events.Delete(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, err)
		return
	}
	h.purge(c, id)
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully!"})
}
