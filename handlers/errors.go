package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"analyticsdash/api/utils"
)

// respondError maps the error taxonomy onto HTTP. Validation messages go back verbatim,
// auth failures get a generic message, and anything else is an opaque 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var vErr *utils.ValidationError
	var aErr *utils.AuthError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
	case errors.As(err, &aErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication credentials"})
	default:
		_ = c.Error(err)
		logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
