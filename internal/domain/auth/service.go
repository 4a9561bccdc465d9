package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/preventia/studio-api/internal/pkg/jwt"
	"github.com/preventia/studio-api/internal/pkg/password"
)

// Service handles authentication business logic
type Service struct {
	repo        Repository
	jwtService  *jwt.Service
	revocations *RevocationStore // nil without Redis
}

// NewService creates the auth service
func NewService(repo Repository, jwtService *jwt.Service, revocations *RevocationStore) *Service {
	return &Service{repo: repo, jwtService: jwtService, revocations: revocations}
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, pass string) (string, *User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", nil, err
	}
	if user == nil || !password.Verify(pass, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout revokes the session's token id until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.revocations == nil {
		log.Debug().Msg("Logout without revocation store, token expires naturally")
		return nil
	}
	return s.revocations.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

// GetByID loads the account behind a session.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CreateAccount provisions a new client account with a pre-confirmed email.
// Only reachable through the admin-gated provisioning endpoint.
func (s *Service) CreateAccount(ctx context.Context, email, pass string) (*User, error) {
	hash, err := password.Hash(pass)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:             uuid.New(),
		Email:          normalizeEmail(email),
		PasswordHash:   hash,
		Role:           RoleClient,
		EmailConfirmed: true,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("email", user.Email).Msg("Client account provisioned")
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
