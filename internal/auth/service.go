package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/brandchat-server/internal/store"
)

// ErrInvalidCredentials is returned when email/password don't match.
var ErrInvalidCredentials = errors.New("invalid credentials")

const bcryptCost = 10

// TokenResolver turns a bearer credential into a user identity.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*store.User, error)
}

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// ResolveToken validates the token and loads the active user it names.
// Every failure is reported as ErrInvalidToken.
func (s *Service) ResolveToken(ctx context.Context, token string) (*store.User, error) {
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return user, nil
}

// Login validates credentials and returns an access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if user.PasswordHash == "" || ComparePassword(user.PasswordHash, password) != nil {
		return "", ErrInvalidCredentials
	}

	return s.IssueToken(user.ID)
}

// IssueToken signs an access token for the user id.
func (s *Service) IssueToken(userID int64) (string, error) {
	token, err := GenerateToken(s.jwtConfig, userID)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword compares a bcrypt hashed password with its plaintext version.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
