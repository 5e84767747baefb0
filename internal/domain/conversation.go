package domain

import (
	"time"

	"github.com/google/uuid"
)

const ConversationTypeDirect = "direct"

type Conversation struct {
	ID            uuid.UUID     `json:"id"`
	Type          string        `json:"type"`
	CreatedBy     uuid.UUID     `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	LastMessageAt *time.Time    `json:"last_message_at,omitempty"`
	Participants  []Participant `json:"participants,omitempty"`
}

type Participant struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	UserID         uuid.UUID  `json:"user_id"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
}

func (p Participant) Active() bool {
	return p.LeftAt == nil
}

// HasActive reports whether userID is a participant who has not left.
func (c *Conversation) HasActive(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID && p.Active() {
			return true
		}
	}
	return false
}

// PairKey is the canonical key of an unordered user pair: the smaller id
// first. Both orderings of the same pair produce the same key.
func PairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

// Contact is one row of the "who can I talk to" view.
type Contact struct {
	User          UserSnapshot  `json:"user"`
	Conversation  *Conversation `json:"conversation,omitempty"`
	LastMessageAt *time.Time    `json:"last_message_at,omitempty"`
}
