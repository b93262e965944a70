package middleware

import (
	"context"
	"net/http"
	"strings"

	"bakery_manager/internal/services"
	"bakery_manager/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// SessionResolver turns an access token into the principal behind it.
type SessionResolver interface {
	GetSession(ctx context.Context, accessToken string) (*services.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token for a live session.
func RequireAuth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		principal, err := resolver.GetSession(c.Request.Context(), token)
		if err != nil {
			status := apperrors.StatusCode(err)
			c.AbortWithStatusJSON(status, gin.H{"error": apperrors.PublicMessage(err)})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// CurrentPrincipal returns the principal stored by RequireAuth.
func CurrentPrincipal(c *gin.Context) (*services.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*services.Principal)
	return p, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
