// Payment webhook handler.
//
// POST /payment receives one payment event from the storefront. The handler
// is transport-thin: it validates the payload, hands the event to the
// payment service, and translates the outcome into the response body the
// storefront expects.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avendel/go-delivery-backend/internal/services"
)

// PaymentProcessor is the webhook flow consumed by the payment handler.
//
// Implementations must be safe for concurrent use: webhook replays can race
// the original request.
type PaymentProcessor interface {
	// Handle processes one payment event and reports its outcome.
	Handle(ctx context.Context, ev services.PaymentEvent) (services.PaymentOutcome, error)
}

// IdentityLinker creates identity mappings for the mapping endpoint.
type IdentityLinker interface {
	// Link creates or overwrites the mapping externalID → chatID.
	Link(externalID, chatID string)
}

// Handlers groups the HTTP endpoints of the delivery backend.
type Handlers struct {
	payments PaymentProcessor
	mappings IdentityLinker
	health   HealthReporter
}

// New constructs a Handlers instance bound to the given collaborators.
func New(payments PaymentProcessor, mappings IdentityLinker, health HealthReporter) *Handlers {
	return &Handlers{payments: payments, mappings: mappings, health: health}
}

// PaymentRequest is the JSON payload of one payment webhook call.
type PaymentRequest struct {
	// UserID is the external (game-platform) account id of the buyer.
	UserID string `json:"userId" binding:"required" example:"261"`
	// ProductID names the purchased product.
	ProductID string `json:"productId" binding:"required" example:"starter-kit"`
	// ReceiptID is the unique payment transaction id.
	ReceiptID string `json:"receiptId" binding:"required" example:"rcpt_9f2c1"`
	// DiscordID optionally names the target chat identity directly.
	DiscordID string `json:"discordId,omitempty" example:"155149108183695360"`
}

// PaymentResponse reports the outcome of one payment event.
type PaymentResponse struct {
	Status string `json:"status" example:"Delivered"`
}

// HandlePayment godoc
// @ID          handlePayment
// @Summary     Process a payment webhook
// @Description Delivers the purchased product to the linked chat identity, at most once per receipt id.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       X-Delivery-Secret  header  string  true  "Shared webhook secret"
// @Param       body  body  handlers.PaymentRequest  true  "Payment event"
//
// @Success     200  {object}  handlers.PaymentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing fields or unknown product"
// @Failure     401  {object}  handlers.ErrorResponse  "Bad shared secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /payment [post]
func (h *Handlers) HandlePayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userId, productId and receiptId are required")
		return
	}

	ev := services.PaymentEvent{
		ReceiptID:  strings.TrimSpace(req.ReceiptID),
		ExternalID: strings.TrimSpace(req.UserID),
		ProductID:  strings.TrimSpace(req.ProductID),
		ChatID:     strings.TrimSpace(req.DiscordID),
	}
	// Whitespace-only fields satisfy binding:"required" but would park the
	// receipt under an empty key; reject them like absent fields.
	if ev.ReceiptID == "" || ev.ExternalID == "" || ev.ProductID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userId, productId and receiptId are required")
		return
	}

	outcome, err := h.payments.Handle(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, services.ErrUnknownProduct) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown product id")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, PaymentResponse{Status: string(outcome)})
}
