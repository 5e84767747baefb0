package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel is owned by an external collaborator; messages only need to know
// that it exists.
type Channel struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}
