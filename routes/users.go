package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eventhub/services"
)

// userRequest is the admin view of a user; the service requires a password
// on create.
type userRequest struct {
	Name     string `json:"name" binding:"required,notblank,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
	Password string `json:"password" binding:"omitempty,min=6,max=72"`
	IsAdmin  bool   `json:"isAdmin"`
}

func (r userRequest) input() services.UserInput {
	return services.UserInput{
		Name:     r.Name,
		Email:    r.Email,
		Phone:    r.Phone,
		Password: r.Password,
		IsAdmin:  r.IsAdmin,
	}
}

// GET /users
func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GET /users/:id
func (h *handlers) getUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// POST /users
func (h *handlers) createUser(c *gin.Context) {
	if err := principal(c).RequireAdmin(); err != nil {
		writeError(c, err)
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := h.Users.Create(c.Request.Context(), principal(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user created successfully", "user": u})
}

// PUT /users/:id
func (h *handlers) updateUser(c *gin.Context) {
	if err := principal(c).RequireAdmin(); err != nil {
		writeError(c, err)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := h.Users.Update(c.Request.Context(), principal(c), id, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated.", "user": u})
}

// DELETE /users/:id
func (h *handlers) deleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Users.Delete(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted."})
}
