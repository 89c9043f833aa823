// Package handler exposes the community API over HTTP with gin. The chat
// transport calls it with an API key; the Mini App only opens /ws with a
// short-lived token.
package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"supportbot/backend/internal/community"
	"supportbot/backend/internal/config"
	"supportbot/backend/internal/filter"
	"supportbot/backend/internal/models"
	"supportbot/backend/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const apiKeyHeader = "X-Api-Key"

type Handler struct {
	Community *community.Service
	Hub       *notify.Hub
	Auth      *Authenticator
	APIKey    string

	throttle *complaintThrottle
	log      *slog.Logger
}

func NewHandler(svc *community.Service, hub *notify.Hub, auth *Authenticator, apiKey string) *Handler {
	return &Handler{
		Community: svc,
		Hub:       hub,
		Auth:      auth,
		APIKey:    apiKey,
		throttle:  newComplaintThrottle(config.ComplaintThrottleLimit),
		log:       slog.Default().With("component", "api"),
	}
}

// Router builds the gin engine with every route.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/", h.requireAPIKey())
	api.POST("/auth/token", h.IssueToken)

	api.POST("/users/nickname", h.RegisterNickname)
	api.POST("/users/reminders", h.SetReminders)
	api.GET("/users/:id/blocked", h.IsBlocked)
	api.GET("/users/:id/profile", h.Profile)
	api.GET("/users/:id/achievements", h.Achievements)
	api.POST("/users/:id/achievements/evaluate", h.EvaluateAchievements)

	api.POST("/support", h.SubmitSupport)
	api.POST("/support/next", h.NextSupport)
	api.POST("/help", h.SubmitHelp)
	api.POST("/help/next", h.NextHelp)
	api.POST("/help/:id/respond", h.Respond)
	api.POST("/help/:id/resolve", h.Resolve)
	api.POST("/items/:id/complaints", h.FileComplaint)

	api.GET("/leaderboard", h.Leaderboard)
	api.GET("/reminders/recipients", h.ReminderRecipients)

	return r
}

func (h *Handler) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.APIKey == "" {
			c.Next()
			return
		}
		got := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.APIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// writeError maps domain errors to status codes. A vanished item is a normal
// outcome and answers 200.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusOK, gin.H{"status": "already_handled", "message": err.Error()})
	case errors.Is(err, models.ErrInvalidNickname),
		errors.Is(err, models.ErrInvalidPayload),
		errors.Is(err, models.ErrInvalidUser),
		errors.Is(err, models.ErrOwnItem):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNicknameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUserBlocked),
		errors.Is(err, models.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotRegistered),
		errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// writeRejected answers a filter verdict with 422.
func writeRejected(c *gin.Context, v *filter.Verdict) {
	body := gin.H{
		"status":   "rejected",
		"category": v.Category,
		"detail":   v.Detail,
	}
	if v.Retry > 0 {
		secs := int((v.Retry + time.Second - 1) / time.Second)
		c.Header("Retry-After", strconv.Itoa(secs))
		body["retry_after"] = secs
	}
	c.JSON(http.StatusUnprocessableEntity, body)
}

func pathUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

func pathItemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return 0, false
	}
	return uint(id), true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
