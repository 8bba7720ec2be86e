package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/service/auth"
	"github.com/requiemhq/requiem-api/internal/store"
)

// UserService handles account registration and credential verification.
type UserService struct {
	userStore store.UserStore
	hasher    auth.PasswordHasher
	verifier  auth.PasswordVerifier
	logger    *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	userStore store.UserStore,
	hasher auth.PasswordHasher,
	verifier auth.PasswordVerifier,
	logger *slog.Logger,
) (*UserService, error) {
	if userStore == nil {
		return nil, &ProgressServiceError{
			Operation: "create_user_service",
			Message:   "userStore cannot be nil",
		}
	}
	if hasher == nil || verifier == nil {
		return nil, &ProgressServiceError{
			Operation: "create_user_service",
			Message:   "password hasher and verifier cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &UserService{
		userStore: userStore,
		hasher:    hasher,
		verifier:  verifier,
		logger:    logger.With("component", "user_service"),
	}, nil
}

// Register hashes the password and creates the account. Uniqueness
// conflicts surface as store.ErrUsernameExists or store.ErrEmailExists.
func (s *UserService) Register(
	ctx context.Context,
	username, email, password string,
) (*domain.User, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, NewProgressServiceError("register", "failed to hash password", err)
	}

	user, err := domain.NewUser(username, email, hashed)
	if err != nil {
		return nil, err
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
		"username", user.Username)
	return user, nil
}

// Authenticate verifies the username/password pair and returns the
// matching user. An unknown username and a wrong password both yield
// auth.ErrInvalidCredentials so callers cannot distinguish them.
func (s *UserService) Authenticate(
	ctx context.Context,
	username, password string,
) (*domain.User, error) {
	user, err := s.userStore.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, NewProgressServiceError("authenticate", "failed to look up user", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	return user, nil
}

// GetByID fetches a user by ID, for token-refresh and profile flows.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}
