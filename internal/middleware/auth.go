package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"leavemgmt/internal/model"
	"leavemgmt/internal/service"
	"leavemgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	currentUserKey = "currentUser"
	sessionIDKey   = "sessionID"
)

// SessionResolver turns a session token into the user it belongs to.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.User, error)
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// SetSessionCookie stores the session id as an HttpOnly cookie that lives as long as the session.
func SetSessionCookie(c *gin.Context, cfg CookieConfig, sessionID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Name, sessionID, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Name, "", -1, "/", "", cfg.Secure, true)
}

// SessionToken reads the session id from the cookie, falling back to an Authorization: Bearer header.
func SessionToken(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// Authenticate resolves the caller's session and stores the user in the gin context.
// A stale cookie is cleared so the browser stops sending it.
func Authenticate(resolver SessionResolver, cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cookies.Name)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Not authenticated"))
			return
		}

		user, err := resolver.ResolveSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				ClearSessionCookie(c, cookies)
				message := "Invalid session"
				if errors.Is(err, service.ErrSessionExpired) {
					message = "Session expired"
				}
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, message))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify session"))
			return
		}

		c.Set(currentUserKey, user)
		c.Set(sessionIDKey, token)
		c.Next()
	}
}

// RequireRole must run after Authenticate. It lets the request through only for the given roles.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Not authenticated"))
			return
		}

		for _, role := range allowedRoles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// CurrentUser returns the user set by Authenticate.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok && user != nil
}

// CurrentSessionID returns the session token used by this request.
func CurrentSessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
