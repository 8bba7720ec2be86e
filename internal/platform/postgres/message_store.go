package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/platform/logger"
	"github.com/requiemhq/requiem-api/internal/store"
)

// PostgresMessageStore implements the store.MessageStore interface
// using a PostgreSQL database as the storage backend.
type PostgresMessageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMessageStore creates a new PostgreSQL implementation of the MessageStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresMessageStore(db store.DBTX, logger *slog.Logger) *PostgresMessageStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMessageStore{
		db:     db,
		logger: logger.With(slog.String("component", "message_store")),
	}
}

// Ensure PostgresMessageStore implements store.MessageStore interface
var _ store.MessageStore = (*PostgresMessageStore)(nil)

// WithTx returns a new MessageStore that executes against the given transaction.
func (s *PostgresMessageStore) WithTx(tx *sql.Tx) store.MessageStore {
	return &PostgresMessageStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.MessageStore.Create
// Returns store.ErrInvalidEntity if the referenced user does not exist.
func (s *PostgresMessageStore) Create(ctx context.Context, message *domain.Message) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := message.Validate(); err != nil {
		log.Warn("message validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", message.UserID.String()))
		return err
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		message.UserID,
		message.Role,
		message.Content,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("foreign key violation during message creation",
				slog.String("error", err.Error()),
				slog.String("user_id", message.UserID.String()))
			return fmt.Errorf("%w: user with ID %s not found",
				store.ErrInvalidEntity, message.UserID)
		}

		log.Error("failed to create message",
			slog.String("error", err.Error()),
			slog.String("user_id", message.UserID.String()))
		return err
	}

	log.Debug("message created",
		slog.Int64("message_id", message.ID),
		slog.String("user_id", message.UserID.String()),
		slog.String("role", string(message.Role)))
	return nil
}

// ListRecentByUser implements store.MessageStore.ListRecentByUser
func (s *PostgresMessageStore) ListRecentByUser(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) ([]*domain.Message, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, role, content, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		log.Error("failed to query messages",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var messages []*domain.Message
	for rows.Next() {
		var message domain.Message
		var role string

		err := rows.Scan(
			&message.ID,
			&message.UserID,
			&role,
			&message.Content,
			&message.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan message row",
				slog.String("error", err.Error()))
			return nil, err
		}

		message.Role = domain.MessageRole(role)
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, err
	}

	if messages == nil {
		messages = []*domain.Message{}
	}
	return messages, nil
}
