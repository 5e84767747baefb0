package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/metrics"
	"github.com/vedran77/pulse/internal/repository"
	"github.com/vedran77/pulse/pkg/apperrors"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Encrypter is satisfied by *encryption.Cipher.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// EncryptionPolicy tells how new content should be stored. It is consulted
// on every write, never on read.
type EncryptionPolicy interface {
	MessageEncryption(ctx context.Context) (domain.EncryptionType, error)
}

type MessageService struct {
	messageRepo      repository.MessageRepository
	channelRepo      repository.ChannelRepository
	conversationRepo repository.ConversationRepository
	cipher           Encrypter
	policy           EncryptionPolicy
	metrics          *metrics.Metrics
	log              *slog.Logger
	now              func() time.Time
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	channelRepo repository.ChannelRepository,
	conversationRepo repository.ConversationRepository,
	cipher Encrypter,
	policy EncryptionPolicy,
	m *metrics.Metrics,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		messageRepo:      messageRepo,
		channelRepo:      channelRepo,
		conversationRepo: conversationRepo,
		cipher:           cipher,
		policy:           policy,
		metrics:          m,
		log:              log,
		now:              func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

type CreateMessageInput struct {
	ChannelID       *uuid.UUID `json:"channel_id,omitempty"`
	ConversationID  *uuid.UUID `json:"conversation_id,omitempty"`
	Content         string     `json:"content"`
	ParentMessageID *uuid.UUID `json:"parent_message_id,omitempty"`
}

func (in CreateMessageInput) Scope() domain.Scope {
	return domain.NewScope(in.ChannelID, in.ConversationID)
}

type ListOptions struct {
	Before *uuid.UUID
	Limit  int
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

type ThreadResponse struct {
	Parent  domain.Message   `json:"parent"`
	Replies []domain.Message `json:"replies"`
}

func (s *MessageService) Create(ctx context.Context, authorID uuid.UUID, input CreateMessageInput) (*domain.Message, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, ErrEmptyContent
	}
	scope := input.Scope()
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}
	if err := s.checkScopeAccess(ctx, authorID, scope, true); err != nil {
		return nil, err
	}

	if input.ParentMessageID != nil {
		parent, err := s.messageRepo.GetByID(ctx, *input.ParentMessageID)
		if err != nil {
			return nil, storageErr("messageService.Create.Parent", err)
		}
		if parent == nil || !listable(parent) {
			return nil, ErrParentNotFound
		}
		if !parent.Scope().Equal(scope) {
			return nil, ErrParentScope
		}
	}

	stored, encType, err := s.seal(ctx, input.Content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &domain.Message{
		ID:              uuid.New(),
		ChannelID:       scope.ChannelID,
		ConversationID:  scope.ConversationID,
		AuthorID:        authorID,
		Content:         stored,
		Status:          domain.MessageStatusApproved,
		EncryptionType:  encType,
		ParentMessageID: input.ParentMessageID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrReferenceMissing) {
			return nil, ErrScopeGone
		}
		return nil, storageErr("messageService.Create", err)
	}
	s.metrics.MessagesCreated.WithLabelValues(string(encType)).Inc()

	out := *msg
	out.Content = input.Content
	return &out, nil
}

func (s *MessageService) List(ctx context.Context, requesterID uuid.UUID, scope domain.Scope, opts ListOptions) (*MessageListResponse, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}
	if err := s.checkScopeAccess(ctx, requesterID, scope, false); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}

	// limit+1 tells us whether an older page exists
	messages, err := s.messageRepo.ListByScope(ctx, scope, opts.Before, limit+1)
	if err != nil {
		return nil, storageErr("messageService.List", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}

	return &MessageListResponse{
		Messages: s.renderAll(ctx, messages),
		HasMore:  hasMore,
	}, nil
}

func (s *MessageService) Get(ctx context.Context, requesterID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.visible(ctx, requesterID, messageID)
	if err != nil {
		return nil, err
	}
	out := s.render(ctx, msg)
	return &out, nil
}

// ListThread returns a message and its direct replies, oldest first.
func (s *MessageService) ListThread(ctx context.Context, requesterID, parentID uuid.UUID) (*ThreadResponse, error) {
	parent, err := s.visible(ctx, requesterID, parentID)
	if err != nil {
		return nil, err
	}

	replies, err := s.messageRepo.ListReplies(ctx, parentID)
	if err != nil {
		return nil, storageErr("messageService.ListThread", err)
	}

	return &ThreadResponse{
		Parent:  s.render(ctx, parent),
		Replies: s.renderAll(ctx, replies),
	}, nil
}

func (s *MessageService) Edit(ctx context.Context, authorID, messageID uuid.UUID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	msg, err := s.owned(ctx, authorID, messageID)
	if err != nil {
		return nil, err
	}

	stored, encType, err := s.seal(ctx, content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg.Content = stored
	msg.EncryptionType = encType
	msg.IsEdited = true
	msg.EditedAt = &now
	msg.UpdatedAt = now

	if err := s.messageRepo.Update(ctx, msg); err != nil {
		// A delete landed between the read and the write.
		if errors.Is(err, repository.ErrNotApplied) {
			return nil, ErrMessageDeleted
		}
		return nil, storageErr("messageService.Edit", err)
	}

	msg.Content = content
	return msg, nil
}

func (s *MessageService) Delete(ctx context.Context, authorID, messageID uuid.UUID) error {
	if _, err := s.owned(ctx, authorID, messageID); err != nil {
		return err
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID, authorID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotApplied) {
			return ErrMessageDeleted
		}
		return storageErr("messageService.Delete", err)
	}
	return nil
}

// visible loads a message the requester may read.
func (s *MessageService) visible(ctx context.Context, requesterID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, storageErr("messageService.Get", err)
	}
	if msg == nil || !listable(msg) {
		return nil, ErrMessageNotFound
	}
	if err := s.checkScopeAccess(ctx, requesterID, msg.Scope(), false); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

// owned loads a live message authored by authorID.
func (s *MessageService) owned(ctx context.Context, authorID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, storageErr("messageService.GetByID", err)
	}
	if msg == nil || !listable(msg) {
		return nil, ErrMessageNotFound
	}
	if msg.AuthorID != authorID {
		return nil, ErrNotMessageOwner
	}
	if msg.IsDeleted() {
		return nil, ErrMessageDeleted
	}
	return msg, nil
}

func listable(m *domain.Message) bool {
	return m.Status == domain.MessageStatusApproved || m.Status == domain.MessageStatusDeleted
}

func (s *MessageService) checkScopeAccess(ctx context.Context, userID uuid.UUID, scope domain.Scope, write bool) error {
	if scope.IsConversation() {
		conv, err := s.conversationRepo.GetByID(ctx, *scope.ConversationID)
		if err != nil {
			return storageErr("messageService.Conversation", err)
		}
		// Outsiders cannot tell a foreign conversation from a missing one.
		if conv == nil || !conv.HasActive(userID) {
			return ErrConversationNotFound
		}
		return nil
	}

	ch, err := s.channelRepo.GetByID(ctx, *scope.ChannelID)
	if err != nil {
		return storageErr("messageService.Channel", err)
	}
	if ch == nil {
		return ErrChannelNotFound
	}
	if write && ch.ArchivedAt != nil {
		return ErrChannelArchived
	}
	return nil
}

// seal prepares plaintext for storage under the current policy.
func (s *MessageService) seal(ctx context.Context, plaintext string) (string, domain.EncryptionType, error) {
	encType := domain.EncryptionNone
	if s.policy != nil {
		t, err := s.policy.MessageEncryption(ctx)
		if err != nil {
			return "", "", err
		}
		encType = t
	}

	if encType != domain.EncryptionInstanceKey {
		return plaintext, encType, nil
	}
	if s.cipher == nil {
		return "", "", apperrors.Configuration("message encryption is required but no cipher is configured")
	}
	blob, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeInternal, "encrypting message", err)
	}
	return blob, encType, nil
}

// render returns the client view of a stored message. A message that cannot
// be decrypted is flagged instead of failing the caller.
func (s *MessageService) render(ctx context.Context, msg *domain.Message) domain.Message {
	out := *msg
	if out.IsDeleted() {
		out.Content = domain.DeletedPlaceholder
		return out
	}
	if out.EncryptionType != domain.EncryptionInstanceKey {
		return out
	}

	var err error
	if s.cipher == nil {
		err = errors.New("no cipher configured")
	} else {
		var plain string
		if plain, err = s.cipher.Decrypt(out.Content); err == nil {
			out.Content = plain
			return out
		}
	}

	s.metrics.DecryptionFailures.Inc()
	s.log.WarnContext(ctx, "message decryption failed", "message_id", out.ID, "error", err)
	out.Content = domain.UndecryptablePlaceholder
	out.DecryptionError = true
	return out
}

func (s *MessageService) renderAll(ctx context.Context, messages []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	for i := range messages {
		out = append(out, s.render(ctx, &messages[i]))
	}
	return out
}
