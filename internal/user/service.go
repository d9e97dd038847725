package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a username and password do not match.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Store is the persistence the Service relies on; *Repository implements it.
type Store interface {
	Lookup
	Create(ctx context.Context, u *User, p *Profile) error
	Update(ctx context.Context, u *User, p *Profile) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// Account is a user together with their profile.
type Account struct {
	User    *User    `json:"user"`
	Profile *Profile `json:"profile"`
}

// Service contains business logic for user management.
type Service struct {
	repo Store
	log  *zap.Logger
}

// NewService creates a new user Service.
func NewService(repo Store, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Register validates both forms and creates the account. Rule failures are
// returned as ValidationErrors.
func (s *Service) Register(ctx context.Context, uf UserForm, pf ProfileForm) (*Account, error) {
	profile, err := s.validate(ctx, uf, pf, nil)
	if err != nil {
		return nil, err
	}

	hash, err := hashPassword(uf.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Username:     strings.TrimSpace(uf.Username),
		Email:        strings.TrimSpace(uf.Email),
		FirstName:    strings.TrimSpace(uf.FirstName),
		LastName:     strings.TrimSpace(uf.LastName),
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u, profile); err != nil {
		return nil, s.conflict(err, "create user")
	}

	s.log.Info("user registered", zap.String("id", u.ID), zap.String("username", u.Username))
	return &Account{User: u, Profile: profile}, nil
}

// Update edits the account of userID. An empty password keeps the current one.
func (s *Service) Update(ctx context.Context, userID string, uf UserForm, pf ProfileForm) (*Account, error) {
	current, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.validate(ctx, uf, pf, current)
	if err != nil {
		return nil, err
	}

	current.Username = strings.TrimSpace(uf.Username)
	current.Email = strings.TrimSpace(uf.Email)
	current.FirstName = strings.TrimSpace(uf.FirstName)
	current.LastName = strings.TrimSpace(uf.LastName)
	if uf.Password != "" {
		if current.PasswordHash, err = hashPassword(uf.Password); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, current, profile); err != nil {
		return nil, s.conflict(err, "update user")
	}

	s.log.Info("user updated", zap.String("id", current.ID), zap.Bool("password_changed", uf.Password != ""))
	return &Account{User: current, Profile: profile}, nil
}

// GetAccount returns a user and their profile. A user without a profile is
// returned with a nil Profile.
func (s *Service) GetAccount(ctx context.Context, userID string) (*Account, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &Account{User: u, Profile: p}, nil
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Authenticate returns the user matching username and password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (s *Service) validate(ctx context.Context, uf UserForm, pf ProfileForm, current *User) (*Profile, error) {
	userErrs, err := ValidateUserForm(ctx, s.repo, uf, current)
	if err != nil {
		return nil, err
	}
	profile, profileErrs := ValidateProfileForm(pf)

	if userErrs == nil && profileErrs == nil {
		return profile, nil
	}
	all := ValidationErrors{}
	for k, v := range userErrs {
		all[k] = v
	}
	for k, v := range profileErrs {
		all[k] = v
	}
	return nil, all
}

// conflict maps a unique violation that slipped past the form checks, such
// as a concurrent registration, back to a form error.
func (s *Service) conflict(err error, op string) error {
	if errors.Is(err, ErrAlreadyExists) {
		return ValidationErrors{"username": msgUsernameTaken}
	}
	s.log.Error(op+" failed", zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
