package middleware

import (
	"net/http"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/gin-gonic/gin"
)

func RequireRole(allowed ...user.Role) gin.HandlerFunc {
	allowedSet := map[string]struct{}{}
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := c.Get(ctxUserRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Access denied"})
			return
		}

		name, _ := role.(string)
		if _, found := allowedSet[name]; !found {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Access denied"})
			return
		}
		c.Next()
	}
}
