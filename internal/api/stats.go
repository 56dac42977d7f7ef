package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lalith-99/streamgate/internal/hub"
)

type StatsHandler struct {
	broker *hub.Hub
}

func NewStatsHandler(broker *hub.Hub) *StatsHandler {
	return &StatsHandler{broker: broker}
}

// Get handles GET /v1/stats
func (h *StatsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.broker.Stats())
}
