package middleware

import (
	"net/http"
	"strings"

	"arebasic/internal/service"

	"github.com/gin-gonic/gin"
)

// IdentityKey is where JWT stores the authenticated player in the gin context
const IdentityKey = "identity"

// JWT requires a Bearer token and puts its identity into the context
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		identity, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// Identity reads the value set by JWT
func Identity(c *gin.Context) (string, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return "", false
	}
	identity, ok := v.(string)
	return identity, ok && identity != ""
}
