// Package memory is an in-process storage driver. It enforces the same
// constraints as the postgres schema (scope check, pair uniqueness,
// settings identity) and is used for development and tests.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/pulse/internal/domain"
)

type settingKey struct {
	key       string
	scopeType domain.ScopeType
	scopeID   uuid.UUID
}

type conversationRow struct {
	conv    domain.Conversation
	pairKey string
}

type Store struct {
	mu sync.RWMutex

	users         map[uuid.UUID]domain.UserSnapshot
	channels      map[uuid.UUID]domain.Channel
	messages      map[uuid.UUID]*domain.Message
	seq           int64
	conversations map[uuid.UUID]*conversationRow
	pairs         map[string]uuid.UUID
	settings      map[settingKey]*domain.Setting
}

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]domain.UserSnapshot),
		channels:      make(map[uuid.UUID]domain.Channel),
		messages:      make(map[uuid.UUID]*domain.Message),
		conversations: make(map[uuid.UUID]*conversationRow),
		pairs:         make(map[string]uuid.UUID),
		settings:      make(map[settingKey]*domain.Setting),
	}
}

// AddUser and AddChannel stand in for the external collaborators that own
// those tables.
func (s *Store) AddUser(u domain.UserSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) AddChannel(ch domain.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.ID] = ch
}

// ReplaceStoredContent overwrites the stored content of a message as is,
// bypassing the service layer.
func (s *Store) ReplaceStoredContent(id uuid.UUID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if ok {
		m.Content = content
	}
	return ok
}

// StoredMessage returns the row exactly as persisted.
func (s *Store) StoredMessage(id uuid.UUID) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.Message{}, false
	}
	return *m, true
}

// LeaveConversation marks a participant as departed.
func (s *Store) LeaveConversation(conversationID, userID uuid.UUID, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.conversations[conversationID]
	if !ok {
		return false
	}
	for i := range row.conv.Participants {
		if row.conv.Participants[i].UserID == userID {
			row.conv.Participants[i].LeftAt = &at
			return true
		}
	}
	return false
}

func (s *Store) ConversationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func (s *Store) Users() *UserRepo                 { return &UserRepo{s: s} }
func (s *Store) Channels() *ChannelRepo           { return &ChannelRepo{s: s} }
func (s *Store) Messages() *MessageRepo           { return &MessageRepo{s: s} }
func (s *Store) Conversations() *ConversationRepo { return &ConversationRepo{s: s} }
func (s *Store) Settings() *SettingsRepo          { return &SettingsRepo{s: s} }

func copyConversation(c domain.Conversation) *domain.Conversation {
	out := c
	out.Participants = append([]domain.Participant(nil), c.Participants...)
	return &out
}
