package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eventhub/middlewares"
	"eventhub/models"
	"eventhub/services"
)

type signupRequest struct {
	Name     string `json:"name" binding:"required,notblank,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// profileRequest edits the caller's own profile; an empty password keeps it.
type profileRequest struct {
	Name     string `json:"name" binding:"required,notblank,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
	Password string `json:"password" binding:"omitempty,min=6,max=72"`
}

func (h *handlers) issueToken(c *gin.Context, u models.User) (string, bool) {
	token, err := h.Tokens.Generate(u.ID, u.Email, u.IsAdmin)
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return token, true
}

// POST /register
func (h *handlers) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	u, err := h.Users.Signup(c.Request.Context(), services.UserInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	token, ok := h.issueToken(c, u)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user created successfully", "user": u, "token": token})
}

// POST /login
func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	u, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	token, ok := h.issueToken(c, u)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful!", "token": token, "user": u})
}

// POST /logout revokes the token used for this request.
func (h *handlers) logout(c *gin.Context) {
	claims, ok := middlewares.ClaimsFrom(c)
	if !ok {
		writeError(c, services.ErrUnauthorized)
		return
	}
	if err := h.Revocations.Revoke(c.Request.Context(), claims.ID, h.Tokens.Remaining(claims)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out."})
}

// GET /me
func (h *handlers) me(c *gin.Context) {
	u, err := h.Users.Me(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PUT /me
func (h *handlers) updateMe(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := h.Users.UpdateMe(c.Request.Context(), principal(c), services.UserInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated.", "user": u})
}

// GET /me/registrations
func (h *handlers) myRegistrations(c *gin.Context) {
	regs, err := h.Registrations.ListMine(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, regs)
}
