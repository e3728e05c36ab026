// Package auth provides Gin middleware for enforcing Auth0 JWT auth.
package auth

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MiddlewareConfig controls auth enforcement behavior. OnAuthenticated runs
// after a token verifies, before the handler; an error aborts the request.
type MiddlewareConfig struct {
	DisableAuth     bool
	OnAuthenticated func(c *gin.Context, claims *Claims) error
}

// Middleware enforces bearer token auth and injects claims into the request context.
func Middleware(verifier *Verifier, cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.DisableAuth || AuthDisabled() {
			claims := &Claims{
				Subject: "local-dev",
				Issuer:  "local",
				Raw:     map[string]any{"sub": "local-dev"},
			}
			ctx := WithClaims(c.Request.Context(), claims)
			c.Request = c.Request.WithContext(ctx)
			if cfg.OnAuthenticated != nil {
				if err := cfg.OnAuthenticated(c, claims); err != nil {
					log.Printf("auth post-verify hook failed path=%s err=%v", c.Request.URL.Path, err)
				}
			}
			c.Next()
			return
		}

		if verifier == nil {
			respondUnauthorized(c, "auth verifier not configured")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Printf("auth failure: missing Authorization header path=%s", c.Request.URL.Path)
			respondUnauthorized(c, "missing authorization header")
			return
		}

		token, ok := extractBearerToken(authHeader)
		if !ok {
			log.Printf("auth failure: malformed Authorization header path=%s", c.Request.URL.Path)
			respondUnauthorized(c, "invalid authorization header")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			log.Printf("auth failure: token invalid path=%s err=%v", c.Request.URL.Path, err)
			respondUnauthorized(c, "invalid token")
			return
		}

		ctx := WithClaims(c.Request.Context(), claims)
		c.Request = c.Request.WithContext(ctx)

		if cfg.OnAuthenticated != nil {
			if err := cfg.OnAuthenticated(c, claims); err != nil {
				log.Printf("auth post-verify hook failed path=%s err=%v", c.Request.URL.Path, err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "failed to prepare user",
				})
				return
			}
		}

		c.Next()
	}
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
