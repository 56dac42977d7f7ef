package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/streamgate/internal/middleware"
	"github.com/lalith-99/streamgate/internal/persistence"
)

// MessageHandler exposes a user's offline queue and unread counters.
type MessageHandler struct {
	svc    *persistence.Service
	logger *zap.Logger
}

func NewMessageHandler(svc *persistence.Service, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

// Offline handles GET /v1/messages/offline?limit=50
//
// No automatic push happens on reconnect; clients pull their queue here
// and then acknowledge with ClearOffline.
func (h *MessageHandler) Offline(c *gin.Context) {
	userID := middleware.GetUserID(c)

	limit, ok := parseLimitQuery(c, 50, 100)
	if !ok {
		return
	}

	messages, err := h.svc.GetOfflineMessages(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list offline messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list offline messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// ClearOffline handles DELETE /v1/messages/offline
func (h *MessageHandler) ClearOffline(c *gin.Context) {
	userID := middleware.GetUserID(c)

	if err := h.svc.ClearOfflineMessages(c.Request.Context(), userID); err != nil {
		h.logger.Error("failed to clear offline messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear offline messages"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Unread handles GET /v1/messages/unread
func (h *MessageHandler) Unread(c *gin.Context) {
	userID := middleware.GetUserID(c)

	stats, err := h.svc.GetUnreadMessageStats(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get unread stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get unread stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
