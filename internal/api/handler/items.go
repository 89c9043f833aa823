package handler

import (
	"net/http"

	"supportbot/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type itemRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	models.Payload
}

type userRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type nextHelpRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Cursor *uint `json:"cursor"`
}

func (h *Handler) SubmitSupport(c *gin.Context) {
	h.submit(c, models.CategorySupport)
}

func (h *Handler) SubmitHelp(c *gin.Context) {
	h.submit(c, models.CategoryHelpRequest)
}

func (h *Handler) submit(c *gin.Context, category models.Category) {
	var req itemRequest
	if !bind(c, &req) {
		return
	}
	sub, err := h.Community.SubmitQueueItem(c.Request.Context(), req.UserID, req.Payload, category)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !sub.Accepted {
		writeRejected(c, sub.Verdict)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) NextSupport(c *gin.Context) {
	var req userRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.Community.NextSupportMessage(c.Request.Context(), req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *Handler) NextHelp(c *gin.Context) {
	var req nextHelpRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.Community.NextHelpRequest(c.Request.Context(), req.UserID, req.Cursor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *Handler) Respond(c *gin.Context) {
	itemID, ok := pathItemID(c)
	if !ok {
		return
	}
	var req itemRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.Community.RespondToHelpRequest(c.Request.Context(), itemID, req.UserID, req.Payload)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !resp.Accepted {
		writeRejected(c, resp.Verdict)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Resolve(c *gin.Context) {
	itemID, ok := pathItemID(c)
	if !ok {
		return
	}
	var req userRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.Community.ResolveHelpRequest(c.Request.Context(), itemID, req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved", "item": item})
}

func (h *Handler) FileComplaint(c *gin.Context) {
	itemID, ok := pathItemID(c)
	if !ok {
		return
	}
	var req userRequest
	if !bind(c, &req) {
		return
	}
	if !h.throttle.Take(req.UserID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many complaints, try again later"})
		return
	}
	out, err := h.Community.FileComplaint(c.Request.Context(), itemID, req.UserID)
	if err != nil {
		// only recorded complaints count against the throttle
		h.throttle.Refund(req.UserID)
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
