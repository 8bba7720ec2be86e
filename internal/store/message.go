package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/requiemhq/requiem-api/internal/domain"
)

// MessageStore defines the interface for chat message persistence.
type MessageStore interface {
	// Create saves a new message to the store.
	// Returns ErrInvalidEntity if the referenced user does not exist.
	Create(ctx context.Context, message *domain.Message) error

	// ListRecentByUser retrieves the most recent limit messages for a
	// user by created_at descending. Callers re-reverse for
	// chronological display.
	ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error)

	// WithTx returns a new MessageStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) MessageStore
}
