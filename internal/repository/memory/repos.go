package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/repository"
)

type UserRepo struct{ s *Store }

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.UserSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) ListExcept(_ context.Context, id uuid.UUID) ([]domain.UserSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.UserSnapshot
	for uid, u := range r.s.users {
		if uid != id {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

type ChannelRepo struct{ s *Store }

func (r *ChannelRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Channel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ch, ok := r.s.channels[id]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if !msg.Scope().Valid() {
		return fmt.Errorf("messages_one_scope check violated")
	}
	if _, dup := r.s.messages[msg.ID]; dup {
		return repository.ErrConflict
	}
	if msg.ChannelID != nil {
		if _, ok := r.s.channels[*msg.ChannelID]; !ok {
			return repository.ErrReferenceMissing
		}
	}
	var conv *conversationRow
	if msg.ConversationID != nil {
		var ok bool
		if conv, ok = r.s.conversations[*msg.ConversationID]; !ok {
			return repository.ErrReferenceMissing
		}
	}
	if msg.ParentMessageID != nil {
		if _, ok := r.s.messages[*msg.ParentMessageID]; !ok {
			return repository.ErrReferenceMissing
		}
	}

	r.s.seq++
	msg.Seq = r.s.seq
	stored := *msg
	r.s.messages[msg.ID] = &stored

	if conv != nil {
		if conv.conv.LastMessageAt == nil || msg.CreatedAt.After(*conv.conv.LastMessageAt) {
			at := msg.CreatedAt
			conv.conv.LastMessageAt = &at
		}
	}
	return nil
}

func (r *MessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func listable(m *domain.Message) bool {
	return m.Status == domain.MessageStatusApproved || m.Status == domain.MessageStatusDeleted
}

func sortMessages(ms []domain.Message) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].Seq < ms[j].Seq
	})
}

func (r *MessageRepo) ListByScope(_ context.Context, scope domain.Scope, before *uuid.UUID, limit int) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Message
	for _, m := range r.s.messages {
		if listable(m) && m.Scope().Equal(scope) {
			out = append(out, *m)
		}
	}
	sortMessages(out)

	if before != nil {
		cur, ok := r.s.messages[*before]
		if !ok {
			return nil, nil
		}
		cut := len(out)
		for i, m := range out {
			if !m.CreatedAt.Before(cur.CreatedAt) && !(m.CreatedAt.Equal(cur.CreatedAt) && m.Seq < cur.Seq) {
				cut = i
				break
			}
		}
		out = out[:cut]
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *MessageRepo) ListReplies(_ context.Context, parentID uuid.UUID) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Message
	for _, m := range r.s.messages {
		if listable(m) && m.ParentMessageID != nil && *m.ParentMessageID == parentID {
			out = append(out, *m)
		}
	}
	sortMessages(out)
	return out, nil
}

func (r *MessageRepo) Update(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[msg.ID]
	if !ok || m.Status != domain.MessageStatusApproved {
		return repository.ErrNotApplied
	}
	m.Content = msg.Content
	m.EncryptionType = msg.EncryptionType
	m.IsEdited = true
	m.EditedAt = msg.EditedAt
	if msg.EditedAt != nil {
		m.UpdatedAt = *msg.EditedAt
	}
	return nil
}

func (r *MessageRepo) SoftDelete(_ context.Context, id, deletedBy uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.Status != domain.MessageStatusApproved {
		return repository.ErrNotApplied
	}
	m.Status = domain.MessageStatusDeleted
	m.DeletedBy = &deletedBy
	m.DeletedAt = &at
	m.UpdatedAt = at
	return nil
}

type ConversationRepo struct{ s *Store }

func (r *ConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	return copyConversation(row.conv), nil
}

// newer orders by last_message_at desc (nulls last), then created_at desc.
func newer(a, b *domain.Conversation) bool {
	switch {
	case a.LastMessageAt != nil && b.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
		return a.LastMessageAt.After(*b.LastMessageAt)
	case a.LastMessageAt != nil && b.LastMessageAt == nil:
		return true
	case a.LastMessageAt == nil && b.LastMessageAt != nil:
		return false
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (r *ConversationRepo) FindDirectBetween(_ context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var best *domain.Conversation
	for _, row := range r.s.conversations {
		c := &row.conv
		if c.Type != domain.ConversationTypeDirect || !c.HasActive(a) || !c.HasActive(b) {
			continue
		}
		if best == nil || newer(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyConversation(*best), nil
}

func (r *ConversationRepo) GetByPairKey(_ context.Context, pairKey string) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.pairs[pairKey]
	if !ok {
		return nil, nil
	}
	return copyConversation(r.s.conversations[id].conv), nil
}

func (r *ConversationRepo) CreateDirect(ctx context.Context, conv *domain.Conversation, pairKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.pairs[pairKey]; taken {
		return repository.ErrConflict
	}
	for _, p := range conv.Participants {
		if _, ok := r.s.users[p.UserID]; !ok {
			return repository.ErrReferenceMissing
		}
	}
	r.s.conversations[conv.ID] = &conversationRow{conv: *copyConversation(*conv), pairKey: pairKey}
	r.s.pairs[pairKey] = conv.ID
	return nil
}

func (r *ConversationRepo) ReactivateParticipants(_ context.Context, conversationID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.conversations[conversationID]
	if !ok {
		return nil
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := range row.conv.Participants {
		if row.conv.Participants[i].LeftAt != nil {
			row.conv.Participants[i].LeftAt = nil
			row.conv.Participants[i].JoinedAt = now
		}
	}
	return nil
}

func (r *ConversationRepo) ListDirectForUser(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Conversation
	for _, row := range r.s.conversations {
		if row.conv.Type == domain.ConversationTypeDirect && row.conv.HasActive(userID) {
			out = append(out, *copyConversation(row.conv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(&out[i], &out[j]) })
	return out, nil
}

type SettingsRepo struct{ s *Store }

func (r *SettingsRepo) Get(_ context.Context, key string, scopeType domain.ScopeType, scopeID uuid.UUID) (*domain.Setting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.settings[settingKey{key, scopeType, scopeID}]
	if !ok || !st.IsActive {
		return nil, nil
	}
	out := *st
	return &out, nil
}

func (r *SettingsRepo) Upsert(_ context.Context, st *domain.Setting) error {
	// Round-trip through the stored text form, like the postgres driver.
	text, err := st.Value.Encode()
	if err != nil {
		return err
	}
	value, err := domain.DecodeSettingValue(st.Value.Kind, text)
	if err != nil {
		return err
	}

	scopeID := uuid.Nil
	if st.ScopeID != nil {
		scopeID = *st.ScopeID
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *st
	stored.Value = value
	stored.IsActive = true
	r.s.settings[settingKey{st.Key, st.ScopeType, scopeID}] = &stored
	st.IsActive = true
	return nil
}

func (r *SettingsRepo) Deactivate(_ context.Context, key string, scopeType domain.ScopeType, scopeID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.settings[settingKey{key, scopeType, scopeID}]
	if !ok || !st.IsActive {
		return repository.ErrNotApplied
	}
	st.IsActive = false
	return nil
}

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.ChannelRepository      = (*ChannelRepo)(nil)
	_ repository.MessageRepository      = (*MessageRepo)(nil)
	_ repository.ConversationRepository = (*ConversationRepo)(nil)
	_ repository.SettingsRepository     = (*SettingsRepo)(nil)
)
