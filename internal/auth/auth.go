// Package auth registers users and issues and checks their access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
)

// Claims are the access token claims. The subject is the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	store  storage.Repository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates an auth service signing HS256 tokens with secret.
func NewService(store storage.Repository, secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required (set ORBIT_JWT_SECRET or 'orbit keyring set %s')", constants.SecretJWT)
	}
	if ttl <= 0 {
		ttl = constants.DefaultTokenTTL
	}
	return &Service{store: store, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Register creates a user and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, email, password, timezone string) (models.User, string, error) {
	user, err := CreateUser(ctx, s.store, email, password, timezone, s.now())
	if err != nil {
		return models.User{}, "", err
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

// CreateUser checks the password length, hashes it and stores a new user.
// The CLI uses it directly since it has no token to issue.
func CreateUser(ctx context.Context, repo storage.Repository, email, password, timezone string, now time.Time) (models.User, error) {
	if len(password) < constants.MinPasswordLength {
		return models.User{}, apperrors.Invalid("password", "password must be at least %d characters", constants.MinPasswordLength)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	user, err := models.NewUser(email, hash, timezone, now)
	if err != nil {
		return models.User{}, err
	}
	if err := repo.AddUser(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login checks the credentials. Unknown emails and wrong passwords both
// return ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (models.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.User{}, "", apperrors.ErrUnauthorized
	}
	if err != nil {
		return models.User{}, "", err
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return models.User{}, "", apperrors.ErrUnauthorized
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

func (s *Service) IssueToken(user models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    constants.AppName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken returns the user id of a valid token.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", apperrors.ErrUnauthorized
	}
	return claims.Subject, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
