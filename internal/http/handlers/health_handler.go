// Health handler.
//
// GET /health is the liveness probe. Besides the static ok it reports
// whether the bot's gateway session is connected and, when the audit
// database is available, how many deliveries the instance has recorded.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/avendel/go-delivery-backend/internal/http/middleware"
	"github.com/avendel/go-delivery-backend/internal/repo"
)

// HealthReporter exposes the bot connection state to the health endpoint.
type HealthReporter interface {
	// Ready reports whether the chat-platform session is connected.
	Ready() bool
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status       string `json:"status" example:"ok"`
	BotConnected bool   `json:"bot_connected"`
	// Deliveries is included when the audit database is reachable.
	Deliveries *DeliveryStats `json:"deliveries,omitempty"`
}

// DeliveryStats summarizes the local audit history.
type DeliveryStats struct {
	Attempts  int64 `json:"attempts"`
	Delivered int64 `json:"delivered"`
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Description Reports process liveness and bot connection status.
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(auditDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{
			Status:       "ok",
			BotConnected: h.health != nil && h.health.Ready(),
		}
		if auditDB != nil {
			total, delivered, err := repo.AuditStats(c.Request.Context(), auditDB)
			if err != nil {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("audit stats unavailable")
			} else {
				resp.Deliveries = &DeliveryStats{Attempts: total, Delivered: delivered}
			}
		}
		ok(c, http.StatusOK, resp)
	}
}
