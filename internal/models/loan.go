package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle status of a loan
type LoanStatus string

const (
	LoanAwaitingGuarantors LoanStatus = "awaiting_guarantors"
	LoanAwaitingAdmin      LoanStatus = "awaiting_admin"
	LoanApproved           LoanStatus = "approved"
	LoanRejected           LoanStatus = "rejected"
	LoanDisbursed          LoanStatus = "disbursed"
	LoanCompleted          LoanStatus = "completed"
)

// Valid reports whether s is one of the known loan statuses
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanAwaitingGuarantors, LoanAwaitingAdmin, LoanApproved, LoanRejected, LoanDisbursed, LoanCompleted:
		return true
	}
	return false
}

// Loan represents a member's credit request
type Loan struct {
	ID              uuid.UUID           `json:"id"`
	MemberID        uuid.UUID           `json:"member_id"`
	LoanNumber      string              `json:"loan_number"`
	AmountRequested decimal.Decimal     `json:"amount_requested"`
	AmountApproved  decimal.NullDecimal `json:"amount_approved"`
	Status          LoanStatus          `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}
