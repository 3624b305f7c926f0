package middleware

import (
	"net/http"
	"strings"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/auth"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/gin-gonic/gin"
)

const (
	ctxUserID    = "user_id"
	ctxUserRole  = "user_role"
	ctxUserEmail = "user_email"
)

// RequireAuth accepts an access token as a Bearer header, an x-auth-token
// header or the access cookie, in that order.
func RequireAuth(jwt *auth.JWTManager) gin.HandlerFunc {
	return requireAuth(jwt, false)
}

// RequireAuthOrQuery also accepts ?token=, for websocket upgrades where
// browsers cannot set headers.
func RequireAuthOrQuery(jwt *auth.JWTManager) gin.HandlerFunc {
	return requireAuth(jwt, true)
}

func requireAuth(jwt *auth.JWTManager, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := accessToken(c.Request)
		if raw == "" && allowQuery {
			raw = strings.TrimSpace(c.Query("token"))
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "No token, authorization denied"})
			return
		}

		claims, err := jwt.Parse(raw)
		if err != nil || claims.Type != auth.TokenTypeAccess || claims.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Token is not valid"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, claims.Role)
		c.Set(ctxUserEmail, claims.Email)
		c.Next()
	}
}

func accessToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if tok := strings.TrimSpace(r.Header.Get("x-auth-token")); tok != "" {
		return tok
	}
	if cookie, err := r.Cookie(auth.AccessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func UserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// Actor describes the caller for audit entries. Unauthenticated callers
// carry only their network identity.
func Actor(c *gin.Context) audit.Actor {
	return audit.Actor{
		UserID:    c.GetString(ctxUserID),
		Email:     c.GetString(ctxUserEmail),
		Role:      c.GetString(ctxUserRole),
		IP:        auth.ClientIP(c.Request),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
