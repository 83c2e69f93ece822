package models

import (
	"time"

	"github.com/google/uuid"
)

// Member represents a cooperative member
type Member struct {
	ID           uuid.UUID `json:"id"`
	MemberNumber string    `json:"member_number"`
	FullName     string    `json:"full_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName falls back to the member number when no name is on file
func (m *Member) DisplayName() string {
	if m.FullName != "" {
		return m.FullName
	}
	if m.MemberNumber != "" {
		return "Member " + m.MemberNumber
	}
	return "A guarantor"
}
