package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/streamgate/internal/hub"
	"github.com/lalith-99/streamgate/internal/middleware"
	"github.com/lalith-99/streamgate/internal/persistence"
	"github.com/lalith-99/streamgate/internal/protocol"
)

type ChatHandler struct {
	svc    *persistence.Service
	broker *hub.Hub
	logger *zap.Logger
}

func NewChatHandler(svc *persistence.Service, broker *hub.Hub, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, broker: broker, logger: logger}
}

type sendChatRequest struct {
	Body     string `json:"body" binding:"required"`
	ChatType string `json:"chat_type"`
}

// Send handles POST /v1/chats/:user
//
// The durable write happens first; the live push is best-effort on top.
// "delivered" in the response distinguishes delivered-live from queued.
func (h *ChatHandler) Send(c *gin.Context) {
	var req sendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ChatType == "" {
		req.ChatType = "text"
	}

	fromUserID := middleware.GetUserID(c)
	toUserID := c.Param("user")

	msg, err := h.svc.StoreChatMessage(c.Request.Context(), fromUserID, toUserID, req.Body, req.ChatType)
	if err != nil {
		h.logger.Error("failed to store chat message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store chat message"})
		return
	}

	// Live push only: StoreChatMessage already queued the offline
	// notification, so the fallback would duplicate it.
	delivered := h.broker.SendToUserLive(toUserID, protocol.Envelope{
		Type: protocol.TypeChatMessage,
		Data: map[string]any{
			"chat_message_id": msg.ID,
			"from_user_id":    msg.FromUserID,
			"body":            msg.Body,
			"chat_type":       msg.ChatType,
			"created_at":      msg.CreatedAt,
		},
	})

	c.JSON(http.StatusCreated, gin.H{
		"message":   msg,
		"delivered": delivered,
	})
}

// History handles GET /v1/chats/:user?before=123&limit=50
//
// Cursor pagination on the message id: before=0 (or absent) is the most
// recent page; the page itself is chronologically ascending for display.
func (h *ChatHandler) History(c *gin.Context) {
	userID := middleware.GetUserID(c)
	otherUserID := c.Param("user")

	before, ok := parseInt64Query(c, "before", 0)
	if !ok {
		return
	}
	limit, ok := parseLimitQuery(c, 50, 100)
	if !ok {
		return
	}

	messages, err := h.svc.GetChatHistory(c.Request.Context(), userID, otherUserID, limit, before)
	if err != nil {
		h.logger.Error("failed to list chat history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chat history"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// MarkRead handles POST /v1/chats/:user/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	fromUserID := c.Param("user")

	updated, err := h.svc.MarkChatMessagesAsRead(c.Request.Context(), userID, fromUserID)
	if err != nil {
		h.logger.Error("failed to mark chat messages read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// parseInt64Query reads an optional non-negative int64 query parameter,
// replying 400 itself when the value is unparseable.
func parseInt64Query(c *gin.Context, name string, defaultValue int64) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid '" + name + "' parameter"})
		return 0, false
	}
	return v, true
}

// parseLimitQuery reads the limit parameter with a default and a cap.
func parseLimitQuery(c *gin.Context, defaultValue, maxValue int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultValue, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
		return 0, false
	}
	if v > maxValue {
		v = maxValue
	}
	return v, true
}
