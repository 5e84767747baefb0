package domain

import (
	"strings"

	"github.com/google/uuid"
)

// UserSnapshot is a read-only projection of a user owned by the external
// auth collaborator. It is fetched whole and never mutated.
type UserSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email,omitempty"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
}

// DisplayName falls back from first name to last name to "Unknown User".
func (u UserSnapshot) DisplayName() string {
	if u.FirstName != nil && strings.TrimSpace(*u.FirstName) != "" {
		return strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil && strings.TrimSpace(*u.LastName) != "" {
		return strings.TrimSpace(*u.LastName)
	}
	return "Unknown User"
}
