package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessageStatusApproved MessageStatus = "approved"
	MessageStatusDeleted  MessageStatus = "deleted"
)

// EncryptionType records how Content was stored, so a message stays
// readable after the instance policy changes.
type EncryptionType string

const (
	EncryptionNone        EncryptionType = "none"
	EncryptionInstanceKey EncryptionType = "instance_key"
	// EncryptionE2EE is reserved; content is stored and rendered as is.
	EncryptionE2EE EncryptionType = "e2ee"
)

func (t EncryptionType) Valid() bool {
	switch t {
	case EncryptionNone, EncryptionInstanceKey, EncryptionE2EE:
		return true
	}
	return false
}

const (
	DeletedPlaceholder       = "[Message deleted]"
	UndecryptablePlaceholder = "[Unable to decrypt message]"
)

// Scope is the container a message belongs to. Exactly one field is set.
type Scope struct {
	ChannelID      *uuid.UUID `json:"channel_id,omitempty"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

func ChannelScope(id uuid.UUID) Scope {
	return Scope{ChannelID: &id}
}

func ConversationScope(id uuid.UUID) Scope {
	return Scope{ConversationID: &id}
}

// NewScope builds a scope from optional ids. A nil UUID counts as unset.
func NewScope(channelID, conversationID *uuid.UUID) Scope {
	var s Scope
	if channelID != nil && *channelID != uuid.Nil {
		s.ChannelID = channelID
	}
	if conversationID != nil && *conversationID != uuid.Nil {
		s.ConversationID = conversationID
	}
	return s
}

// Valid reports whether exactly one non-nil scope id is set.
func (s Scope) Valid() bool {
	hasChannel := s.ChannelID != nil && *s.ChannelID != uuid.Nil
	hasConv := s.ConversationID != nil && *s.ConversationID != uuid.Nil
	return hasChannel != hasConv
}

func (s Scope) IsConversation() bool {
	return s.ConversationID != nil && *s.ConversationID != uuid.Nil
}

func (s Scope) Equal(o Scope) bool {
	return eqID(s.ChannelID, o.ChannelID) && eqID(s.ConversationID, o.ConversationID)
}

func eqID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type Message struct {
	ID              uuid.UUID      `json:"id"`
	ChannelID       *uuid.UUID     `json:"channel_id,omitempty"`
	ConversationID  *uuid.UUID     `json:"conversation_id,omitempty"`
	AuthorID        uuid.UUID      `json:"author_id"`
	Content         string         `json:"content"`
	Status          MessageStatus  `json:"status"`
	IsEdited        bool           `json:"is_edited"`
	EditedAt        *time.Time     `json:"edited_at,omitempty"`
	EncryptionType  EncryptionType `json:"encryption_type"`
	ParentMessageID *uuid.UUID     `json:"parent_message_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedBy       *uuid.UUID     `json:"deleted_by,omitempty"`
	DeletedAt       *time.Time     `json:"deleted_at,omitempty"`
	// Seq is the insertion sequence, the ordering tie-break for equal CreatedAt.
	Seq int64 `json:"-"`
	// Set on read only, when Content could not be decrypted.
	DecryptionError bool `json:"decryption_error,omitempty"`
}

func (m *Message) Scope() Scope {
	return Scope{ChannelID: m.ChannelID, ConversationID: m.ConversationID}
}

func (m *Message) IsDeleted() bool {
	return m.Status == MessageStatusDeleted
}
