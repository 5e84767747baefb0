package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/pulse/internal/domain"
)

var (
	// ErrConflict is returned when an insert hits a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violated")
	// ErrNotApplied is returned when a conditional update matched no row.
	ErrNotApplied = errors.New("no row matched the update condition")
	// ErrReferenceMissing is returned when a foreign key target is absent.
	ErrReferenceMissing = errors.New("referenced row does not exist")
)

// Lookups return (nil, nil) when the row does not exist.

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.UserSnapshot, error)
	ListExcept(ctx context.Context, id uuid.UUID) ([]domain.UserSnapshot, error)
}

type ChannelRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
}

type MessageRepository interface {
	// Create inserts msg, fills msg.Seq and advances the conversation's
	// last_message_at in the same transaction.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListByScope returns approved and deleted messages in ascending
	// (created_at, seq) order, at most limit of the newest ones before the
	// cursor message.
	ListByScope(ctx context.Context, scope domain.Scope, before *uuid.UUID, limit int) ([]domain.Message, error)
	ListReplies(ctx context.Context, parentID uuid.UUID) ([]domain.Message, error)
	// Update writes content, encryption type and edit markers only while
	// the message is approved. ErrNotApplied otherwise.
	Update(ctx context.Context, msg *domain.Message) error
	SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, at time.Time) error
}

type ConversationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	// FindDirectBetween returns the direct conversation where both users are
	// active, preferring the most recent last_message_at.
	FindDirectBetween(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error)
	GetByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error)
	// CreateDirect inserts the conversation and its participants atomically.
	// ErrConflict when pairKey is already taken.
	CreateDirect(ctx context.Context, conv *domain.Conversation, pairKey string) error
	ReactivateParticipants(ctx context.Context, conversationID uuid.UUID) error
	ListDirectForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
}

type SettingsRepository interface {
	// Get returns the active setting only.
	Get(ctx context.Context, key string, scopeType domain.ScopeType, scopeID uuid.UUID) (*domain.Setting, error)
	// Upsert writes on the (key, scope_type, scope_id) identity and marks
	// the row active.
	Upsert(ctx context.Context, s *domain.Setting) error
	Deactivate(ctx context.Context, key string, scopeType domain.ScopeType, scopeID uuid.UUID) error
}
