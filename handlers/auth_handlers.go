// api/handlers/auth_handlers.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"analyticsdash/api/models"
	"analyticsdash/api/store"
	"analyticsdash/api/utils"
)

// TokenSigner issues bearer tokens for an authenticated email.
type TokenSigner interface {
	Issue(email string) (string, error)
}

type AuthHandlers struct {
	Credentials store.CredentialStore
	Tokens      TokenSigner
	log         *logrus.Logger
}

func NewAuthHandlers(credentials store.CredentialStore, tokens TokenSigner, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{Credentials: credentials, Tokens: tokens, log: logger}
}

// Login checks the credential pair and returns a bearer token.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, utils.NewValidationError("Invalid request body: %v", err))
		return
	}

	principal, err := h.Credentials.Verify(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var aErr *utils.AuthError
		if errors.As(err, &aErr) {
			h.log.WithField("email", req.Email).Infof("Login failed: %s", aErr.Reason)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect email or password"})
			return
		}
		respondError(c, h.log, err)
		return
	}

	tokenString, err := h.Tokens.Issue(principal.Email)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.WithField("email", principal.Email).Info("User logged in, token issued")
	c.JSON(http.StatusOK, models.TokenResponse{AccessToken: tokenString, TokenType: "bearer"})
}
