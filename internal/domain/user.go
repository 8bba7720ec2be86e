package domain

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for User
var (
	ErrUserIDEmpty       = errors.New("user ID cannot be empty")
	ErrUsernameEmpty     = errors.New("username cannot be empty")
	ErrEmailEmpty        = errors.New("email cannot be empty")
	ErrEmailInvalid      = errors.New("email is not in a valid format")
	ErrPasswordHashEmpty = errors.New("hashed password cannot be empty")
)

// emailRegex is a simple pattern for basic email validation.
// It is intentionally permissive; definitive validation happens at delivery.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents a registered account. Authentication is glue around
// the progress engine; only the fields the auth routes need are modeled.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUser creates a User with a fresh UUID. The password must already
// be hashed by the caller; plaintext never reaches the domain layer.
func NewUser(username, email, hashedPassword string) (*User, error) {
	user := &User{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      time.Now().UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrUserIDEmpty
	}
	if u.Username == "" {
		return ErrUsernameEmpty
	}
	if u.Email == "" {
		return ErrEmailEmpty
	}
	if !emailRegex.MatchString(u.Email) {
		return ErrEmailInvalid
	}
	if u.HashedPassword == "" {
		return ErrPasswordHashEmpty
	}
	return nil
}
