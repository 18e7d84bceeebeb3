package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used for admin passwords
const PasswordCost = 12

// Password represents a bcrypt-hashed password
type Password struct {
	hash []byte
}

// Set hashes and stores a plaintext password
func (p *Password) Set(plaintextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), PasswordCost)
	if err != nil {
		return err
	}

	p.hash = hash
	return nil
}

// SetHash stores an existing bcrypt hash
func (p *Password) SetHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return err
	}
	p.hash = []byte(hash)
	return nil
}

// IsSet reports whether a password has been configured
func (p *Password) IsSet() bool {
	return len(p.hash) > 0
}

// Matches checks if a plaintext password matches the hash
func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(p.hash, []byte(plaintextPassword))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

// HashPassword returns the bcrypt hash of plaintextPassword, suitable for
// NEWS_ADMIN_PASSWORD_HASH
func HashPassword(plaintextPassword string) (string, error) {
	var p Password
	if err := p.Set(plaintextPassword); err != nil {
		return "", err
	}
	return string(p.hash), nil
}
