package store

import (
	"context"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"analyticsdash/api/models"
	"analyticsdash/api/utils"
)

// CredentialStore resolves a login attempt to a principal.
type CredentialStore interface {
	Verify(ctx context.Context, email, password string) (*models.Principal, error)
}

// StaticCredentialStore holds a single account configured at startup. The password is
// kept only as a bcrypt hash.
type StaticCredentialStore struct {
	email          string
	hashedPassword []byte
}

func NewStaticCredentialStore(email, password string) (*StaticCredentialStore, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &StaticCredentialStore{email: email, hashedPassword: hashed}, nil
}

// Verify accepts only the exact configured pair.
func (s *StaticCredentialStore) Verify(_ context.Context, email, password string) (*models.Principal, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.email)) == 1
	// Always run bcrypt so both failure paths cost the same.
	pwErr := bcrypt.CompareHashAndPassword(s.hashedPassword, []byte(password))

	if !emailOK {
		return nil, utils.NewAuthError("unknown email")
	}
	if pwErr != nil {
		return nil, utils.NewAuthError("password mismatch")
	}
	return &models.Principal{Email: s.email}, nil
}
