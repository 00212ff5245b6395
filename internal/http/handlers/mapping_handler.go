// Identity mapping handler.
//
// POST /map creates or overwrites the mapping from an external account id to
// a chat identity. Used by operators and the storefront backend; end users
// link themselves through the chat register command instead.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MapRequest is the JSON payload for creating an identity mapping.
type MapRequest struct {
	// RobloxID is the external (game-platform) account id.
	RobloxID string `json:"robloxId" binding:"required" example:"261"`
	// DiscordID is the chat identity that will receive deliveries.
	DiscordID string `json:"discordId" binding:"required" example:"155149108183695360"`
}

// MapResponse acknowledges a created mapping.
type MapResponse struct {
	OK bool `json:"ok" example:"true"`
}

// CreateMapping godoc
// @ID          createMapping
// @Summary     Link an external account to a chat identity
// @Description Creates or overwrites the mapping; the previous chat identity, if any, is replaced.
// @Tags        Mappings
// @Accept      json
// @Produce     json
//
// @Param       X-Delivery-Secret  header  string  true  "Shared webhook secret"
// @Param       body  body  handlers.MapRequest  true  "Mapping payload"
//
// @Success     200  {object}  handlers.MapResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing fields"
// @Failure     401  {object}  handlers.ErrorResponse  "Bad shared secret"
// @Router      /map [post]
func (h *Handlers) CreateMapping(c *gin.Context) {
	var req MapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "robloxId and discordId are required")
		return
	}

	robloxID := strings.TrimSpace(req.RobloxID)
	discordID := strings.TrimSpace(req.DiscordID)
	if robloxID == "" || discordID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "robloxId and discordId are required")
		return
	}

	h.mappings.Link(robloxID, discordID)
	ok(c, http.StatusOK, MapResponse{OK: true})
}
