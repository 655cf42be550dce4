// Package auth hashes passwords and verifies wire credentials against the
// user store.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/personstore/personstore/internal/model"
)

// ErrEmptyUsername rejects registration without a username.
var ErrEmptyUsername = errors.New("username must not be empty")

// UserStore is the slice of the persistence gateway the credential service
// needs.
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsUserByUsername(ctx context.Context, username string) (bool, error)
	SaveUser(ctx context.Context, username, passwordHash string) (*model.User, error)
}

// Service verifies credentials and registers users.
type Service struct {
	users UserStore
}

// NewService creates a credential service backed by the given user store.
func NewService(users UserStore) *Service {
	return &Service{users: users}
}

// Hash returns the lowercase hex SHA-224 of the plaintext's UTF-8 bytes.
// Deterministic and unsalted: stored hashes from earlier deployments must
// keep verifying.
func Hash(plaintext string) string {
	sum := sha256.Sum224([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether plaintext matches the user's stored hash. The
// comparison is constant-time. Stored hashes in bcrypt format are accepted
// as the upgrade path from unsalted SHA-224.
func Verify(user *model.User, plaintext string) bool {
	if user == nil {
		return false
	}
	if strings.HasPrefix(user.PasswordHash, "$2a$") || strings.HasPrefix(user.PasswordHash, "$2b$") {
		return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(Hash(plaintext)), []byte(user.PasswordHash)) == 1
}

// Authenticate resolves the session user for the given wire credentials.
// It returns nil when the user is unknown or the password is wrong; callers
// must not reveal which.
func (s *Service) Authenticate(ctx context.Context, creds model.Credentials) (*model.User, error) {
	if creds.Username == "" {
		return nil, nil
	}
	user, err := s.users.FindUserByUsername(ctx, creds.Username)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil || !Verify(user, creds.Password) {
		return nil, nil
	}
	return user, nil
}

// Register creates a new user with the hashed password. Returns the store's
// ErrDuplicateUser when the username is taken.
func (s *Service) Register(ctx context.Context, username, plaintext string) (*model.User, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	user, err := s.users.SaveUser(ctx, username, Hash(plaintext))
	if err != nil {
		return nil, err
	}
	slog.Info("user registered", "username", username, "id", user.Id)
	return user, nil
}
