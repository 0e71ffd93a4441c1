package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/services"
)

const SessionClaimsKey = "sessionClaims"

// SessionAuth validates an account session token and stores its claims in
// the request context.
func SessionAuth(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		claims, err := accounts.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Set(SessionClaimsKey, claims)
		c.Next()
	}
}

// GetSessionClaims returns the claims stored by SessionAuth, or nil.
func GetSessionClaims(c *gin.Context) *services.SessionClaims {
	if v, ok := c.Get(SessionClaimsKey); ok {
		if claims, ok := v.(*services.SessionClaims); ok {
			return claims
		}
	}
	return nil
}
