package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GuaranteeStatus is a guarantor's decision on a loan
type GuaranteeStatus string

const (
	GuaranteePending  GuaranteeStatus = "pending"
	GuaranteeAccepted GuaranteeStatus = "accepted"
	GuaranteeDeclined GuaranteeStatus = "declined"
)

// IsDecision reports whether s can be submitted by a guarantor.
// Pending is the initial state and is never settable.
func (s GuaranteeStatus) IsDecision() bool {
	return s == GuaranteeAccepted || s == GuaranteeDeclined
}

// Invitation is a guarantor's pledge on a loan as proposed by the borrower
type Invitation struct {
	LoanID           uuid.UUID           `json:"loan_id"`
	GuarantorID      uuid.UUID           `json:"guarantor_id"`
	AmountGuaranteed decimal.NullDecimal `json:"amount_guaranteed"`
}

// Pledge returns the invited amount, zero when none was given
func (i *Invitation) Pledge() decimal.Decimal {
	if !i.AmountGuaranteed.Valid {
		return decimal.Zero
	}
	return i.AmountGuaranteed.Decimal
}

// GuaranteeRecord is the single decision row for a (loan, guarantor) pair
type GuaranteeRecord struct {
	ID               uuid.UUID       `json:"id"`
	LoanID           uuid.UUID       `json:"loan_id"`
	GuarantorID      uuid.UUID       `json:"guarantor_id"`
	AmountGuaranteed decimal.Decimal `json:"amount_guaranteed"`
	Status           GuaranteeStatus `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CountsTowardConsensus reports whether the guarantor pledged a positive amount
func (g *GuaranteeRecord) CountsTowardConsensus() bool {
	return g.AmountGuaranteed.IsPositive()
}
