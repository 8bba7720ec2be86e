package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies who authored a chat message.
type MessageRole string

// Possible message roles
const (
	MessageRoleUser MessageRole = "user"
	MessageRoleAI   MessageRole = "ai"
)

// Common validation errors for Message
var (
	ErrMessageUserIDEmpty  = errors.New("message user ID cannot be empty")
	ErrMessageContentEmpty = errors.New("message content cannot be empty")
	ErrInvalidMessageRole  = errors.New("invalid message role")
)

// Message is one entry in a user's chat transcript. The chat pipeline
// is a collaborator of the progress engine: AI reply text is scanned for
// progress directives after the message pair is persisted.
type Message struct {
	ID        int64       `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewMessage creates a Message for the given user.
// Returns an error if validation fails.
func NewMessage(userID uuid.UUID, role MessageRole, content string) (*Message, error) {
	message := &Message{
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if err := message.Validate(); err != nil {
		return nil, err
	}

	return message, nil
}

// Validate checks if the Message has valid data.
func (m *Message) Validate() error {
	if m.UserID == uuid.Nil {
		return ErrMessageUserIDEmpty
	}
	if m.Content == "" {
		return ErrMessageContentEmpty
	}
	if !isValidMessageRole(m.Role) {
		return ErrInvalidMessageRole
	}
	return nil
}

// isValidMessageRole checks if the given role is a valid MessageRole.
func isValidMessageRole(role MessageRole) bool {
	switch role {
	case MessageRoleUser, MessageRoleAI:
		return true
	default:
		return false
	}
}
