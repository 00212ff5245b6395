// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the shared-secret gate protecting the webhook
// endpoints. Authorization failures are rejected before any state change.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderDeliverySecret carries the shared secret on inbound webhook calls.
const HeaderDeliverySecret = "X-Delivery-Secret"

// SharedSecret returns a middleware that rejects requests whose
// X-Delivery-Secret header does not match secret. Comparison is constant
// time. An empty configured secret rejects everything; config validation
// prevents that from ever being deployed.
func SharedSecret(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(strings.TrimSpace(c.GetHeader(HeaderDeliverySecret)))
		if len(want) == 0 || subtle.ConstantTimeCompare(want, got) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "invalid shared secret",
			})
			return
		}
		c.Next()
	}
}
