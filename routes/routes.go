package routes

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"eventhub/config"
	"eventhub/middlewares"
	"eventhub/services"
	"eventhub/utils"
)

// Deps is everything the handlers and middlewares need.
type Deps struct {
	Users         *services.UserService
	Events        *services.EventService
	Registrations *services.RegistrationService

	// UserStore reloads the token's user on every authenticated request.
	UserStore   middlewares.UserLoader
	Tokens      *utils.TokenManager
	Revocations *utils.Revocations
	Redis       *redis.Client
	Invalidator *utils.CacheInvalidator
	Log         *slog.Logger
}

// Options holds the traffic-shaping knobs.
type Options struct {
	CacheTTL    time.Duration
	QuotaLimit  int
	QuotaWindow time.Duration
	Global      middlewares.LimiterConfig
	Auth        middlewares.LimiterConfig
	User        middlewares.LimiterConfig
	Seat        middlewares.LimiterConfig
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		CacheTTL:    cfg.CacheTTL,
		QuotaLimit:  cfg.QuotaLimit,
		QuotaWindow: cfg.QuotaWindow,
		Global:      middlewares.LimiterConfig{RPS: cfg.GlobalRPS, Burst: cfg.GlobalBurst, IdleTTL: 3 * time.Minute},
		Auth:        middlewares.LimiterConfig{RPS: cfg.AuthRPS, Burst: cfg.AuthBurst, IdleTTL: 10 * time.Minute},
		User:        middlewares.LimiterConfig{RPS: cfg.UserRPS, Burst: cfg.UserBurst, IdleTTL: 10 * time.Minute},
		Seat:        middlewares.LimiterConfig{RPS: cfg.SeatRPS, Burst: cfg.SeatBurst, IdleTTL: 10 * time.Minute},
	}
}

type handlers struct{ Deps }

// RegisterRoutes mounts the API on server. The returned func stops the rate
// limiters' background goroutines.
func RegisterRoutes(server *gin.Engine, d Deps, opts Options) (stop func(), err error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	h := &handlers{d}

	// ① per-IP limit on everything
	globalLimiter := middlewares.NewRateLimiter(opts.Global)
	server.Use(globalLimiter.Middleware(func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}))

	server.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// ② stricter per-IP limit on the credential endpoints
	authLimiter := middlewares.NewRateLimiter(opts.Auth)
	server.POST("/register",
		authLimiter.Middleware(func(c *gin.Context) string { return "register:" + c.ClientIP() }),
		h.signup,
	)
	server.POST("/login",
		authLimiter.Middleware(func(c *gin.Context) string { return "login:" + c.ClientIP() }),
		h.login,
	)

	// ③ authenticated: per-user limit, then daily quota
	auth := server.Group("/")
	auth.Use(middlewares.Authenticate(d.Tokens, d.Revocations, d.UserStore))

	userLimiter := middlewares.NewRateLimiter(opts.User)
	auth.Use(userLimiter.Middleware(func(c *gin.Context) string {
		return "u:" + strconv.FormatInt(c.GetInt64(middlewares.UserIDKey), 10)
	}))
	auth.Use(middlewares.Quota(d.Redis, middlewares.QuotaRule{
		Limit:  opts.QuotaLimit,
		Window: opts.QuotaWindow,
		KeyFn:  middlewares.UserQuotaKey,
	}))
	auth.Use(middlewares.ResponseCache(d.Redis, opts.CacheTTL))

	auth.POST("/logout", h.logout)
	auth.GET("/me", h.me)
	auth.PUT("/me", h.updateMe)
	auth.GET("/me/registrations", h.myRegistrations)

	auth.GET("/events", h.listEvents)
	auth.GET("/events/upcoming", h.upcomingEvents)
	auth.GET("/events/past", h.pastEvents)
	auth.GET("/events/filter", h.filterEvents)
	auth.GET("/events/:id", h.getEvent)
	auth.POST("/events", h.createEvent)
	auth.PUT("/events/:id", h.updateEvent)
	auth.DELETE("/events/:id", h.deleteEvent)

	// ④ per user and event on self-service seat changes
	seatLimiter := middlewares.NewRateLimiter(opts.Seat)
	seat := seatLimiter.Middleware(middlewares.SeatKey)
	auth.POST("/events/:id/register", seat, h.registerForEvent)
	auth.DELETE("/events/:id/unregister", seat, h.unregisterFromEvent)
	auth.POST("/events/:id/users/:user", h.adminRegister)
	auth.DELETE("/events/:id/users/:user", h.adminRemove)
	auth.GET("/events/:id/registrations", h.listRegistrations)
	auth.PUT("/events/:id/registrations/:registration/status", h.setRegistrationStatus)
	auth.POST("/events/:id/registrations/:registration/reopen", h.reopenRegistration)
	auth.GET("/events/:id/audit", h.auditTrail)

	auth.GET("/users", h.listUsers)
	auth.POST("/users", h.createUser)
	auth.GET("/users/:id", h.getUser)
	auth.PUT("/users/:id", h.updateUser)
	auth.DELETE("/users/:id", h.deleteUser)

	stop = func() {
		globalLimiter.Close()
		authLimiter.Close()
		userLimiter.Close()
		seatLimiter.Close()
	}
	return stop, nil
}

/* -------------------- helpers -------------------- */

// principal is set by Authenticate on every route of the auth group.
func principal(c *gin.Context) services.Principal {
	p, _ := middlewares.PrincipalFrom(c)
	return p
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message": "Invalid " + name + " in path.",
			"error":   "validation",
		})
		return 0, false
	}
	return id, true
}

// purge drops cached reads of eventID after a write. A stale cache is not
// worth failing the request over.
func (h *handlers) purge(c *gin.Context, eventID int64) {
	if h.Invalidator == nil {
		return
	}
	if err := h.Invalidator.PurgeEvent(c.Request.Context(), eventID); err != nil {
		h.Log.WarnContext(c.Request.Context(), "cache purge failed", "event_id", eventID, "error", err)
	}
}
