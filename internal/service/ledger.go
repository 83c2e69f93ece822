package service

import (
	"context"
	"time"

	"github.com/Dan9191/coop-lending/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GuaranteeStore holds loans, members, pledges and guarantee decisions
type GuaranteeStore interface {
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetInvitation(ctx context.Context, loanID, guarantorID uuid.UUID) (*models.Invitation, error)
	UpsertGuarantee(ctx context.Context, rec *models.GuaranteeRecord) error
	ListGuarantees(ctx context.Context, loanID uuid.UUID) ([]models.GuaranteeRecord, error)
}

// Ledger records guarantor decisions, one row per (loan, guarantor)
type Ledger struct {
	store GuaranteeStore
	sink  NotificationSink
	log   *logrus.Logger
	now   func() time.Time
}

// NewLedger initializes a new ledger
func NewLedger(store GuaranteeStore, sink NotificationSink, log *logrus.Logger) *Ledger {
	return &Ledger{store: store, sink: sink, log: log, now: time.Now}
}

// ParseDecision validates a decision submitted by a guarantor
func ParseDecision(s string) (models.GuaranteeStatus, error) {
	d := models.GuaranteeStatus(s)
	if !d.IsDecision() {
		return "", &ValidationError{Field: "decision", Reason: "must be accepted or declined"}
	}
	return d, nil
}

// RecordDecision stores the guarantor's decision on the loan and tells the
// loan owner about it. The pledge is taken from the guarantor's invitation and
// is never changed by this call, so repeating a decision has no further effect.
func (l *Ledger) RecordDecision(ctx context.Context, loanID, guarantorID uuid.UUID, decision models.GuaranteeStatus) (*models.GuaranteeRecord, error) {
	if !decision.IsDecision() {
		return nil, &ValidationError{Field: "decision", Reason: "must be accepted or declined"}
	}
	if loanID == uuid.Nil {
		return nil, &ValidationError{Field: "loan_id", Reason: "is required"}
	}
	if guarantorID == uuid.Nil {
		return nil, &ValidationError{Field: "guarantor_id", Reason: "is required"}
	}

	loan, err := l.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, translate("loan", err)
	}
	guarantor, err := l.store.GetMember(ctx, guarantorID)
	if err != nil {
		return nil, translate("guarantor", err)
	}
	inv, err := l.store.GetInvitation(ctx, loanID, guarantorID)
	if err != nil {
		return nil, translate("guarantor invitation", err)
	}

	rec := &models.GuaranteeRecord{
		LoanID:           loanID,
		GuarantorID:      guarantorID,
		AmountGuaranteed: inv.Pledge(),
		Status:           decision,
	}
	if err := l.store.UpsertGuarantee(ctx, rec); err != nil {
		return nil, translate("guarantee", err)
	}

	fields := logrus.Fields{
		"loan_id":      loanID,
		"guarantor_id": guarantorID,
		"decision":     decision,
		"pledge":       rec.AmountGuaranteed.StringFixed(2),
	}
	l.log.WithFields(fields).Info("Guarantor decision recorded")

	// The decision stands even if the owner is never told about it.
	_ = deliver(ctx, l.sink, l.log, guarantorResponse(loan, guarantor, decision, l.now()))

	return rec, nil
}
