package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"genienews/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthDisabled       = errors.New("admin authentication is not configured")
)

// Service checks admin credentials against the configured bcrypt hash
type Service struct {
	user     string
	password Password
	logger   *core.Logger
}

// NewService creates the admin credential checker. A configured hash wins
// over a plaintext password; with neither, admin endpoints stay closed.
func NewService(cfg core.AuthConfig, logger *core.Logger) (*Service, error) {
	s := &Service{
		user:   cfg.AdminUser,
		logger: logger,
	}

	switch {
	case cfg.PasswordHash != "":
		if err := s.password.SetHash(cfg.PasswordHash); err != nil {
			return nil, core.NewConfigurationError("invalid admin password hash", err)
		}
	case cfg.AdminPassword != "":
		if err := s.password.Set(cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	default:
		logger.Warn("No admin password configured, admin endpoints are disabled")
	}

	return s, nil
}

// Enabled reports whether admin credentials are configured
func (s *Service) Enabled() bool {
	return s.password.IsSet()
}

// Authenticate verifies a user and password pair
func (s *Service) Authenticate(user, password string) error {
	if !s.Enabled() {
		return ErrAuthDisabled
	}

	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(s.user)) == 1
	match, err := s.password.Matches(password)
	if err != nil {
		return err
	}

	if !userMatch || !match {
		return ErrInvalidCredentials
	}
	return nil
}
