// Package auth holds the credentials sockd accepts for RFC 1929
// username/password authentication.
//
// A Store is built once at startup and never mutated afterwards, so it can be
// shared by every session without locking.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Authenticator decides whether a username/password pair may use the proxy.
// Implementations must be safe for concurrent use.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(username, password string) bool

func (f AuthenticatorFunc) Authenticate(username, password string) bool {
	return f(username, password)
}

// User is one configured account. Password is either the plaintext password
// or a bcrypt hash of it.
type User struct {
	Name     string
	Password string
}

// Store is an immutable username to password mapping.
type Store struct {
	users map[string]string
}

var errEmptyName = errors.New("empty user name")

// NewStore builds a Store from users. Duplicate or empty names are an error.
func NewStore(users []User) (*Store, error) {
	m := make(map[string]string, len(users))
	for i, u := range users {
		if u.Name == "" {
			return nil, fmt.Errorf("user %d: %w", i, errEmptyName)
		}
		if _, dup := m[u.Name]; dup {
			return nil, fmt.Errorf("user %q: duplicate entry", u.Name)
		}
		if IsHash(u.Password) {
			if _, err := bcrypt.Cost([]byte(u.Password)); err != nil {
				return nil, fmt.Errorf("user %q: bad bcrypt hash: %w", u.Name, err)
			}
		}
		m[u.Name] = u.Password
	}
	return &Store{users: m}, nil
}

// Len returns the number of users.
func (s *Store) Len() int {
	return len(s.users)
}

// Authenticate reports whether username exists and password matches it
// exactly.
func (s *Store) Authenticate(username, password string) bool {
	stored, ok := s.users[username]
	if !ok {
		return false
	}
	if IsHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// IsHash reports whether s looks like a bcrypt hash rather than a plaintext
// password.
func IsHash(s string) bool {
	return len(s) == 60 &&
		(strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// HashPassword returns a bcrypt hash of password suitable for a User entry.
func HashPassword(password string) (string, error) {
	if len(password) > 72 {
		return "", errors.New("password longer than 72 bytes")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
