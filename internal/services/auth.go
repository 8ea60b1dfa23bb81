package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/symptomly/apiserver/internal/store"
	"github.com/symptomly/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	apiKeyBytes       = 32
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ErrInvalidEmail is returned when the email does not look like an address.
var ErrInvalidEmail = errors.New("invalid email address")

// ErrWeakPassword is returned when the password is below the minimum length.
var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", minPasswordLength)

// ErrInvalidCredentials is returned for both unknown emails and wrong
// passwords so responses cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidAPIKey is returned when an API key is missing or unknown.
var ErrInvalidAPIKey = errors.New("invalid API key")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByAPIKey(ctx context.Context, apiKey string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int64) error
}

// AuthService registers users, verifies credentials, and resolves API keys.
type AuthService struct {
	repo UserRepository
}

func NewAuthService(repo UserRepository) *AuthService {
	return &AuthService{repo: repo}
}

// Signup validates the input, hashes the password, issues an opaque
// API key, and stores the account. Duplicate emails surface as
// store.ErrDuplicateEmail.
func (s *AuthService) Signup(ctx context.Context, email, password string) (types.User, error) {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return types.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return types.User{}, ErrWeakPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return types.User{}, fmt.Errorf("generate API key: %w", err)
	}

	return s.repo.Create(ctx, types.User{
		Email:        email,
		PasswordHash: string(hashed),
		APIKey:       apiKey,
	})
}

// Signin verifies the password against the stored hash and returns the
// account. Unknown email and wrong password are indistinguishable.
func (s *AuthService) Signin(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// Authenticate resolves an API key to its user.
func (s *AuthService) Authenticate(ctx context.Context, apiKey string) (types.User, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return types.User{}, ErrInvalidAPIKey
	}

	user, err := s.repo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidAPIKey
		}
		return types.User{}, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateAPIKey produces an opaque URL-safe token with 256 bits of
// entropy from the platform CSPRNG.
func generateAPIKey() (string, error) {
	raw := make([]byte, apiKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
