package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eventhub/models"
)

type statusRequest struct {
	Status string `json:"status" binding:"required,notblank"`
}

// POST /events/:id/register
func (h *handlers) registerForEvent(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	reg, err := h.Registrations.Register(c.Request.Context(), principal(c), eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	h.purge(c, eventID)
	c.JSON(http.StatusCreated, gin.H{"message": "Registered!", "registration": reg})
}

// DELETE /events/:id/unregister
func (h *handlers) unregisterFromEvent(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Registrations.Unregister(c.Request.Context(), principal(c), eventID); err != nil {
		writeError(c, err)
		return
	}
	h.purge(c, eventID)
	c.JSON(http.StatusOK, gin.H{"message": "Cancelled!"})
}

// POST /events/:id/users/:user
func (h *handlers) adminRegister(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "user")
	if !ok {
		return
	}
	reg, err := h.Registrations.AdminRegister(c.Request.Context(), principal(c), eventID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	h.purge(c, eventID)
	c.JSON(http.StatusCreated, gin.H{"message": "User registered.", "registration": reg})
}

// DELETE /events/:id/users/:user
func (h *handlers) adminRemove(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "user")
	if !ok {
		return
	}
	if err := h.Registrations.AdminRemoveUser(c.Request.Context(), principal(c), eventID, userID); err != nil {
		writeError(c, err)
		return
	}
	h.purge(c, eventID)
	c.JSON(http.StatusOK, gin.H{"message": "User removed from event."})
}

// GET /events/:id/registrations?status=
func (h *handlers) listRegistrations(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	regs, err := h.Registrations.ListForEvent(c.Request.Context(), principal(c), eventID, models.Status(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, regs)
}

// PUT /events/:id/registrations/:registration/status
func (h *handlers) setRegistrationStatus(c *gin.Context) {
	if err := principal(c).RequireAdmin(); err != nil {
		writeError(c, err)
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	regID, ok := pathID(c, "registration")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	reg, err := h.Registrations.SetStatus(c.Request.Context(), principal(c), eventID, regID, models.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	h.purge(c, eventID)
	c.JSON(http.StatusOK, gin.H{"message": "Status updated.", "registration": reg})
}

// POST /events/:id/registrations/:registration/reopen
func (h *handlers) reopenRegistration(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	regID, ok := pathID(c, "registration")
	if !ok {
		return
	}
	reg, err := h.Registrations.Reopen(c.Request.Context(), principal(c), eventID, regID)
	if err != nil {
		writeError(c, err)
		return
	}
	h.purge(c, eventID)
	c.JSON(http.StatusOK, gin.H{"message": "Registration reopened.", "registration": reg})
}

// GET /events/:id/audit
func (h *handlers) auditTrail(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.Registrations.AuditTrail(c.Request.Context(), principal(c), eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
