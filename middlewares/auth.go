package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"eventhub/models"
	"eventhub/services"
	"eventhub/utils"
)

// Context keys set by Authenticate.
const (
	principalKey = "principal"
	claimsKey    = "claims"
	UserIDKey    = "userId"
)

// UserLoader looks up the token's user; soft-deleted users must come back
// as models.ErrNotFound.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

// RevocationChecker reports whether a token id was logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"message": "Not authorized.",
		"error":   "unauthorized",
	})
}

// bearerToken accepts "Bearer <t>" as well as the bare token.
func bearerToken(h string) string {
	h = strings.TrimSpace(h)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// Authenticate verifies the bearer token, rejects revoked tokens and deleted
// users, and stores a services.Principal in the context. The admin flag is
// taken from the stored user, not the token.
func Authenticate(tokens *utils.TokenManager, revoked RevocationChecker, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request.Header.Get("Authorization"))
		if token == "" {
			unauthorized(c)
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			unauthorized(c)
			return
		}

		ctx := c.Request.Context()
		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(ctx, claims.ID)
			if err != nil {
				// without Redis we cannot tell a logged-out token apart
				slog.ErrorContext(ctx, "revocation lookup failed", "error", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"message": "Could not verify session. Try again later.",
				})
				return
			}
			if isRevoked {
				unauthorized(c)
				return
			}
		}

		user, err := users.GetByID(ctx, claims.UserID)
		if errors.Is(err, models.ErrNotFound) {
			unauthorized(c)
			return
		}
		if err != nil {
			slog.ErrorContext(ctx, "loading token user failed", "user_id", claims.UserID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"message": "Could not authenticate user.",
			})
			return
		}

		c.Set(principalKey, services.Principal{UserID: user.ID, IsAdmin: user.IsAdmin})
		c.Set(claimsKey, claims)
		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(c *gin.Context) (services.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return services.Principal{}, false
	}
	p, ok := v.(services.Principal)
	return p, ok
}

// ClaimsFrom returns the verified token claims stored by Authenticate.
func ClaimsFrom(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	cl, ok := v.(*utils.Claims)
	return cl, ok
}
