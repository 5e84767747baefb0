package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/repository"
)

const conversationColumns = `c.id, c.type, c.created_by, c.created_at, c.last_message_at`

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := row.Scan(&conv.ID, &conv.Type, &conv.CreatedBy, &conv.CreatedAt, &conv.LastMessageAt); err != nil {
		return nil, err
	}
	return &conv, nil
}

// getOne runs a single-conversation query and attaches its participants.
func (r *ConversationRepo) getOne(ctx context.Context, op, query string, args ...any) (*domain.Conversation, error) {
	conv, err := scanConversation(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, op)
	}
	if err := r.attachParticipants(ctx, []*domain.Conversation{conv}); err != nil {
		return nil, wrap(err, op+".Participants")
	}
	return conv, nil
}

func (r *ConversationRepo) attachParticipants(ctx context.Context, convs []*domain.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(convs))
	byID := make(map[uuid.UUID]*domain.Conversation, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
		byID[c.ID] = c
	}

	rows, err := r.pool.Query(ctx, `
		SELECT conversation_id, user_id, joined_at, left_at
		FROM conversation_participants
		WHERE conversation_id = ANY($1)
		ORDER BY joined_at, user_id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.JoinedAt, &p.LeftAt); err != nil {
			return err
		}
		if c, ok := byID[p.ConversationID]; ok {
			c.Participants = append(c.Participants, p)
		}
	}
	return rows.Err()
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.id = $1`
	return r.getOne(ctx, "conversationRepo.GetByID", query, id)
}

func (r *ConversationRepo) FindDirectBetween(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		JOIN conversation_participants pa
			ON pa.conversation_id = c.id AND pa.user_id = $1 AND pa.left_at IS NULL
		JOIN conversation_participants pb
			ON pb.conversation_id = c.id AND pb.user_id = $2 AND pb.left_at IS NULL
		WHERE c.type = 'direct'
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
		LIMIT 1`
	return r.getOne(ctx, "conversationRepo.FindDirectBetween", query, a, b)
}

func (r *ConversationRepo) GetByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.pair_key = $1`
	return r.getOne(ctx, "conversationRepo.GetByPairKey", query, pairKey)
}

func (r *ConversationRepo) CreateDirect(ctx context.Context, conv *domain.Conversation, pairKey string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrap(err, "conversationRepo.CreateDirect.Begin")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO conversations (id, type, pair_key, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pair_key) DO NOTHING`,
		conv.ID, conv.Type, pairKey, conv.CreatedBy, conv.CreatedAt)
	if err != nil {
		return wrap(err, "conversationRepo.CreateDirect.Insert")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(repository.ErrConflict, "conversationRepo.CreateDirect: pair_key")
	}

	for _, p := range conv.Participants {
		_, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, joined_at)
			VALUES ($1, $2, $3)`, conv.ID, p.UserID, p.JoinedAt)
		if err != nil {
			return wrap(err, "conversationRepo.CreateDirect.Participant")
		}
	}

	return wrap(tx.Commit(ctx), "conversationRepo.CreateDirect.Commit")
}

func (r *ConversationRepo) ReactivateParticipants(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_participants
		SET left_at = NULL, joined_at = now()
		WHERE conversation_id = $1 AND left_at IS NOT NULL`, conversationID)
	return wrap(err, "conversationRepo.ReactivateParticipants")
}

func (r *ConversationRepo) ListDirectForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		JOIN conversation_participants p
			ON p.conversation_id = c.id AND p.user_id = $1 AND p.left_at IS NULL
		WHERE c.type = 'direct'
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, wrap(err, "conversationRepo.ListDirectForUser")
	}

	var convs []*domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			rows.Close()
			return nil, wrap(err, "conversationRepo.ListDirectForUser.Scan")
		}
		convs = append(convs, conv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "conversationRepo.ListDirectForUser.Rows")
	}

	if err := r.attachParticipants(ctx, convs); err != nil {
		return nil, wrap(err, "conversationRepo.ListDirectForUser.Participants")
	}

	out := make([]domain.Conversation, len(convs))
	for i, c := range convs {
		out[i] = *c
	}
	return out, nil
}
