package middleware

import (
	"net/http"

	"bakery_manager/internal/models"

	"github.com/gin-gonic/gin"
)

// retryAfterSeconds is what clients are told to wait while a subscription
// lookup is still running.
const retryAfterSeconds = "2"

// RequireEntitlement lets a request through only when the session is entitled.
// It must run after RequireAuth.
func RequireEntitlement(checkoutURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		switch principal.Entitlement {
		case models.EntitlementEntitled:
			c.Next()
		case models.EntitlementLoading, "":
			c.Header("Retry-After", retryAfterSeconds)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":       "Subscription status is being verified",
				"entitlement": models.EntitlementLoading,
			})
		default:
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":        "An active subscription is required",
				"entitlement":  models.EntitlementNotEntitled,
				"checkout_url": checkoutURL,
			})
		}
	}
}
