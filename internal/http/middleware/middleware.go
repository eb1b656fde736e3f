package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Authenticator resolves request credentials to users.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (models.User, error)
	AuthenticateSession(ctx context.Context, session string) (models.User, error)
}

// RequestLogger logs one line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if user := CurrentUser(c); user != nil {
			fields["user"] = user.ID
		}
		entry := log.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// AuthMiddleware resolves the bearer token or session cookie. Requests without
// credentials continue anonymously; a bearer token that does not resolve is rejected.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
				return
			}
			user, errAuth := auth.Authenticate(ctx, strings.TrimSpace(token))
			if errAuth != nil {
				AbortWithError(c, errAuth)
				return
			}
			SetUser(c, user)
			c.Next()
			return
		}

		if session, errCookie := c.Cookie(SessionCookie); errCookie == nil && session != "" {
			user, errSession := auth.AuthenticateSession(ctx, session)
			switch {
			case errSession == nil:
				SetUser(c, user)
			case apperr.KindOf(errSession) == apperr.KindInternal:
				AbortWithError(c, errSession)
				return
			}
		}
		c.Next()
	}
}

// RequireUser rejects anonymous requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}
