package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/streamgate/internal/hub"
	"github.com/lalith-99/streamgate/internal/persistence"
	"github.com/lalith-99/streamgate/internal/protocol"
)

// ChannelHandler is the domain layer's entry point for channel broadcast
// and history replay.
type ChannelHandler struct {
	svc    *persistence.Service
	broker *hub.Hub
	logger *zap.Logger
}

func NewChannelHandler(svc *persistence.Service, broker *hub.Hub, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{svc: svc, broker: broker, logger: logger}
}

// History handles GET /v1/channels/:name/history?before=<unix_ms>&limit=50
//
// before is a unix-millisecond timestamp; entries strictly older than it
// come back, oldest-to-newest within the page, ready for replay.
func (h *ChannelHandler) History(c *gin.Context) {
	channel := c.Param("name")

	beforeMs, ok := parseInt64Query(c, "before", 0)
	if !ok {
		return
	}
	limit, ok := parseLimitQuery(c, 50, 100)
	if !ok {
		return
	}

	var before time.Time
	if beforeMs > 0 {
		before = time.UnixMilli(beforeMs)
	}

	entries, err := h.svc.GetChannelHistory(c.Request.Context(), channel, limit, before)
	if err != nil {
		h.logger.Error("failed to list channel history",
			zap.String("channel", channel),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channel history"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

type broadcastRequest struct {
	Type    string         `json:"type" binding:"required"`
	Data    map[string]any `json:"data"`
	Exclude string         `json:"exclude_connection_id"`
}

// Broadcast handles POST /v1/channels/:name/broadcast
//
// The payload type is domain-defined and forwarded verbatim; the broker
// only stamps the envelope. Returns how many members received it live.
func (h *ChannelHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	channel := c.Param("name")

	sent := h.broker.BroadcastToChannel(c.Request.Context(), channel, protocol.Envelope{
		Type: req.Type,
		Data: req.Data,
	}, req.Exclude)

	c.JSON(http.StatusOK, gin.H{"channel": channel, "sent": sent})
}
