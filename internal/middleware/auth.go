package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/perse-cms/perse/internal/pkg/jwt"
	"github.com/perse-cms/perse/internal/pkg/response"
)

const ContextKeySubject = "auth_subject"

// AdminAuth enforces a bearer JWT signed by signer. With a nil signer the
// routes are open when allowAnonymous is set and closed otherwise.
func AdminAuth(signer *jwt.Signer, allowAnonymous bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if signer == nil {
			if allowAnonymous {
				c.Next()
				return
			}
			response.Unauthorized(c)
			return
		}

		claims, err := ValidateToken(signer, extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}

// OptionalAuth records the subject of a valid token without blocking the request.
func OptionalAuth(signer *jwt.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if signer != nil {
			if claims, err := ValidateToken(signer, extractToken(c)); err == nil && claims.Subject != "" {
				c.Set(ContextKeySubject, claims.Subject)
			}
		}
		c.Next()
	}
}

// ValidateToken validates a raw bearer token and returns its claims.
func ValidateToken(signer *jwt.Signer, rawToken string) (*jwt.Claims, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return nil, errors.New("token is required")
	}
	return signer.Parse(token)
}

// CurrentSubject extracts the authenticated subject from context.
func CurrentSubject(c *gin.Context) string {
	v, _ := c.Get(ContextKeySubject)
	s, _ := v.(string)
	return s
}

// IsAuthenticated returns true if the request carried a valid token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentSubject(c) != ""
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
