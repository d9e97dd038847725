// Package auth signs customers and staff in with username and password and
// issues the bearer tokens the API middleware verifies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/loja/storefront/internal/user"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 30 * 24 * time.Hour

// Authenticator checks credentials; *user.Service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*user.User, error)
}

// LoginResult holds the token issued on a successful login.
type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *user.User `json:"user"`
}

// Service contains the business logic for password authentication.
type Service struct {
	users  Authenticator
	secret []byte
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a new auth Service.
func NewService(users Authenticator, jwtSecret string, log *zap.Logger) *Service {
	return &Service{users: users, secret: []byte(jwtSecret), log: log, now: time.Now}
}

// Login verifies the credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.Authenticate(ctx, username, password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		s.log.Info("login rejected", zap.String("username", username))
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	token, expiresAt, err := s.issueToken(u)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.log.Info("login succeeded", zap.String("id", u.ID), zap.Bool("staff", u.IsStaff))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// issueToken creates a signed JWT for the given user.
func (s *Service) issueToken(u *user.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(TokenTTL)
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"staff":    u.IsStaff,
		"iat":      now.Unix(),
		"exp":      expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
