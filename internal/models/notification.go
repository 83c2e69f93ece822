package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification types written by the guarantee workflow
const (
	NotificationGuarantorResponse = "guarantor_response"
	NotificationLoanReadyForAdmin = "loan_ready_for_admin"
)

// Role names a group of staff that can receive broadcast notifications
type Role string

const RoleAdmin Role = "admin"

type recipientKind int

const (
	recipientDirect recipientKind = iota + 1
	recipientRole
)

// Recipient addresses a notification either to one member or to every
// holder of a role. The zero value addresses nobody and is rejected by Validate.
type Recipient struct {
	kind     recipientKind
	memberID uuid.UUID
	role     Role
}

// Direct addresses a single member
func Direct(memberID uuid.UUID) Recipient {
	return Recipient{kind: recipientDirect, memberID: memberID}
}

// BroadcastToRole addresses every holder of role
func BroadcastToRole(role Role) Recipient {
	return Recipient{kind: recipientRole, role: role}
}

// MemberID returns the target member for a direct recipient
func (r Recipient) MemberID() (uuid.UUID, bool) {
	return r.memberID, r.kind == recipientDirect
}

// Role returns the target role for a broadcast recipient
func (r Recipient) Role() (Role, bool) {
	return r.role, r.kind == recipientRole
}

// Validate checks that exactly one addressing mode is set
func (r Recipient) Validate() error {
	switch r.kind {
	case recipientDirect:
		if r.memberID == uuid.Nil {
			return fmt.Errorf("direct recipient without member id")
		}
	case recipientRole:
		if r.role == "" {
			return fmt.Errorf("broadcast recipient without role")
		}
	default:
		return fmt.Errorf("recipient not set")
	}
	return nil
}

func (r Recipient) String() string {
	switch r.kind {
	case recipientDirect:
		return "member:" + r.memberID.String()
	case recipientRole:
		return "role:" + string(r.role)
	}
	return "none"
}

// NotificationPayload is the structured metadata attached to a notification
type NotificationPayload struct {
	LoanID      uuid.UUID       `json:"loan_id"`
	GuarantorID *uuid.UUID      `json:"guarantor_id,omitempty"`
	Decision    GuaranteeStatus `json:"decision,omitempty"`
}

// Notification is an outward event handed to the notification collaborator
type Notification struct {
	ID        uuid.UUID           `json:"id"`
	Recipient Recipient           `json:"-"`
	Type      string              `json:"type"`
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	Payload   NotificationPayload `json:"payload"`
	SentAt    time.Time           `json:"sent_at"`
	Read      bool                `json:"read"`
}

// Metadata encodes the payload for storage
func (n *Notification) Metadata() ([]byte, error) {
	b, err := json.Marshal(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification payload: %w", err)
	}
	return b, nil
}
