package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"analyticsdash/api/utils"
)

const ContextUserEmail = "user_email"

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	Validate(token string) (*utils.Claims, error)
}

// AuthRequired accepts any well-formed, correctly signed bearer token. Every failure gets
// the same 401 body.
func AuthRequired(tokens TokenValidator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, tokenString, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
			logger.WithField("path", c.Request.URL.Path).Debug("AuthRequired: no bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication credentials"})
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(tokenString))
		if err != nil {
			logger.WithError(err).Debug("AuthRequired: rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication credentials"})
			return
		}

		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
