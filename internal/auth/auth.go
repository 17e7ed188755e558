// Package auth handles account registration and credential verification.
// Credentials are stored as bcrypt hashes, never in plain text.
package auth

import (
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/dentascan/dentascan-go/internal/datastore"
	"github.com/dentascan/dentascan-go/internal/errors"
	"github.com/dentascan/dentascan-go/internal/logging"
)

// ErrInvalidCredentials is returned by Authenticate when the username does
// not exist or the password does not match. The two cases are deliberately
// indistinguishable to the caller.
var ErrInvalidCredentials = errors.NewStd("auth: invalid credentials")

// Service verifies and registers user credentials against the store.
type Service struct {
	ds  datastore.Interface
	log *slog.Logger
}

// NewService creates an authentication service backed by the given store.
func NewService(ds datastore.Interface) *Service {
	return &Service{
		ds:  ds,
		log: logging.ForService("auth"),
	}
}

// Register creates a new user account. It returns
// datastore.ErrDuplicateUsername when the username is already taken, which
// callers surface for a user-facing retry.
func (s *Service) Register(username, password string) (uint, error) {
	if username == "" || password == "" {
		return 0, errors.Newf("username and password are required").
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hashing password: %w", err)
	}

	user := datastore.User{
		Username:       username,
		CredentialHash: string(hash),
	}
	if err := s.ds.CreateUser(&user); err != nil {
		return 0, err
	}

	s.log.Info("user registered", "username", username, "user_id", user.ID)
	return user.ID, nil
}

// Authenticate verifies a username and password pair and returns the user id
// on success. A missing user and a wrong password both yield
// ErrInvalidCredentials.
func (s *Service) Authenticate(username, password string) (uint, error) {
	user, err := s.ds.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.CredentialHash), []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}

	return user.ID, nil
}
