package handler

import (
	"net/http"
	"strconv"

	"supportbot/backend/internal/achievement"

	"github.com/gin-gonic/gin"
)

type nicknameRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Nickname string `json:"nickname"`
}

func (h *Handler) RegisterNickname(c *gin.Context) {
	var req nicknameRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.Community.RegisterNickname(c.Request.Context(), req.UserID, req.Nickname)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type remindersRequest struct {
	UserID  int64 `json:"user_id" binding:"required"`
	Enabled bool  `json:"enabled"`
}

func (h *Handler) SetReminders(c *gin.Context) {
	var req remindersRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Community.SetReminders(c.Request.Context(), req.UserID, req.Enabled); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders_enabled": req.Enabled})
}

func (h *Handler) IsBlocked(c *gin.Context) {
	id, ok := pathUserID(c)
	if !ok {
		return
	}
	blocked, err := h.Community.IsBlocked(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": blocked})
}

func (h *Handler) Profile(c *gin.Context) {
	id, ok := pathUserID(c)
	if !ok {
		return
	}
	p, err := h.Community.Profile(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Achievements(c *gin.Context) {
	id, ok := pathUserID(c)
	if !ok {
		return
	}
	earned, err := h.Community.Achievements.Earned(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": earned})
}

type evaluateRequest struct {
	Action string `json:"action"`
	DryRun bool   `json:"dry_run"`
}

func (h *Handler) EvaluateAchievements(c *gin.Context) {
	id, ok := pathUserID(c)
	if !ok {
		return
	}
	var req evaluateRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	if req.Action == "" {
		req.Action = string(achievement.ActionAll)
	}
	action, ok := achievement.ParseAction(req.Action)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action " + strconv.Quote(req.Action)})
		return
	}

	granted, err := h.Community.EvaluateAchievements(c.Request.Context(), id, action, req.DryRun)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if granted == nil {
		granted = []achievement.Achievement{}
	}
	c.JSON(http.StatusOK, gin.H{"granted": granted, "dry_run": req.DryRun})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.Community.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *Handler) ReminderRecipients(c *gin.Context) {
	ids, err := h.Community.ReminderRecipients(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"user_ids": ids})
}
