package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/jamii-coop/jamii-coop/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenManager
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Authenticate validates email/password credentials and issues a bearer
// token for the user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", shared.ErrInvalidCredentials
	}
	return s.tokens.Issue(user.ID)
}
