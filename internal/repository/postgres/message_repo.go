package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/repository"
)

const messageColumns = `m.id, m.seq, m.channel_id, m.conversation_id, m.author_id, m.content, m.status,
	m.is_edited, m.edited_at, m.encryption_type, m.parent_message_id, m.created_at, m.updated_at,
	m.deleted_by, m.deleted_at`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		msg          domain.Message
		status, encT string
	)
	err := row.Scan(
		&msg.ID, &msg.Seq, &msg.ChannelID, &msg.ConversationID, &msg.AuthorID, &msg.Content, &status,
		&msg.IsEdited, &msg.EditedAt, &encT, &msg.ParentMessageID, &msg.CreatedAt, &msg.UpdatedAt,
		&msg.DeletedBy, &msg.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.Status = domain.MessageStatus(status)
	msg.EncryptionType = domain.EncryptionType(encT)
	return &msg, nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrap(err, "messageRepo.Create.Begin")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (id, channel_id, conversation_id, author_id, content, status,
			encryption_type, parent_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq`
	err = tx.QueryRow(ctx, query,
		msg.ID, msg.ChannelID, msg.ConversationID, msg.AuthorID, msg.Content, string(msg.Status),
		string(msg.EncryptionType), msg.ParentMessageID, msg.CreatedAt, msg.UpdatedAt,
	).Scan(&msg.Seq)
	if err != nil {
		return wrap(err, "messageRepo.Create.Insert")
	}

	if msg.ConversationID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE conversations
			SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2)
			WHERE id = $1`, *msg.ConversationID, msg.CreatedAt)
		if err != nil {
			return wrap(err, "messageRepo.Create.TouchConversation")
		}
	}

	return wrap(tx.Commit(ctx), "messageRepo.Create.Commit")
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m WHERE m.id = $1`
	msg, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "messageRepo.GetByID")
	}
	return msg, nil
}

func (r *MessageRepo) ListByScope(ctx context.Context, scope domain.Scope, before *uuid.UUID, limit int) ([]domain.Message, error) {
	column, scopeID := "channel_id", scope.ChannelID
	if scope.IsConversation() {
		column, scopeID = "conversation_id", scope.ConversationID
	}
	if scopeID == nil {
		return nil, fmt.Errorf("messageRepo.ListByScope: empty scope")
	}

	args := []any{*scopeID, limit}
	cursor := ""
	if before != nil {
		// Cursor on (created_at, seq) so equal timestamps page stably.
		cursor = `AND (m.created_at, m.seq) < (SELECT created_at, seq FROM messages WHERE id = $3)`
		args = append(args, *before)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM messages m
		WHERE m.%s = $1 AND m.status IN ('approved', 'deleted')
			%s
		ORDER BY m.created_at DESC, m.seq DESC
		LIMIT $2`, messageColumns, column, cursor)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "messageRepo.ListByScope")
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, wrap(err, "messageRepo.ListByScope.Scan")
	}

	// Reverse to chronological order (query returns DESC)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *MessageRepo) ListReplies(ctx context.Context, parentID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		WHERE m.parent_message_id = $1 AND m.status IN ('approved', 'deleted')
		ORDER BY m.created_at, m.seq`
	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, wrap(err, "messageRepo.ListReplies")
	}
	messages, err := collectMessages(rows)
	return messages, wrap(err, "messageRepo.ListReplies.Scan")
}

func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	query := `
		UPDATE messages
		SET content = $1, encryption_type = $2, is_edited = true, edited_at = $3, updated_at = $3
		WHERE id = $4 AND status = 'approved'`
	tag, err := r.pool.Exec(ctx, query, msg.Content, string(msg.EncryptionType), msg.EditedAt, msg.ID)
	if err != nil {
		return wrap(err, "messageRepo.Update")
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotApplied
	}
	return nil
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, at time.Time) error {
	query := `
		UPDATE messages
		SET status = 'deleted', deleted_by = $2, deleted_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'approved'`
	tag, err := r.pool.Exec(ctx, query, id, deletedBy, at)
	if err != nil {
		return wrap(err, "messageRepo.SoftDelete")
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotApplied
	}
	return nil
}
