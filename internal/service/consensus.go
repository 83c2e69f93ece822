package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dan9191/coop-lending/internal/models"
	"github.com/Dan9191/coop-lending/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoanStore reads guarantee sets and performs guarded loan status transitions
type LoanStore interface {
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	ListGuarantees(ctx context.Context, loanID uuid.UUID) ([]models.GuaranteeRecord, error)
	// TransitionLoan moves the loan from -> to only if it is currently in
	// from, writing event in the same unit of work, and reports whether it did.
	TransitionLoan(ctx context.Context, loanID uuid.UUID, from, to models.LoanStatus, event *models.Notification) (bool, error)
}

// ConsensusResult describes a loan's guarantor consensus
type ConsensusResult struct {
	Reached             bool              `json:"reached"`
	ValidGuarantorCount int               `json:"valid_guarantor_count"`
	Transitioned        bool              `json:"transitioned"`
	LoanStatus          models.LoanStatus `json:"loan_status"`
}

// Consensus reports whether every guarantor with a positive pledge accepted,
// and how many such guarantors there are. An empty valid set is never consensus.
func Consensus(records []models.GuaranteeRecord) (bool, int) {
	valid := 0
	allAccepted := true
	for i := range records {
		if !records[i].CountsTowardConsensus() {
			continue
		}
		valid++
		if records[i].Status != models.GuaranteeAccepted {
			allAccepted = false
		}
	}
	return valid > 0 && allAccepted, valid
}

// Evaluator detects guarantor consensus and raises the admin event once per loan
type Evaluator struct {
	store LoanStore
	log   *logrus.Logger
	now   func() time.Time
}

// NewEvaluator initializes a new evaluator
func NewEvaluator(store LoanStore, log *logrus.Logger) *Evaluator {
	return &Evaluator{store: store, log: log, now: time.Now}
}

// Inspect computes consensus from the current records without side effects
func (e *Evaluator) Inspect(ctx context.Context, loanID uuid.UUID) (*ConsensusResult, error) {
	_, res, err := e.inspect(ctx, loanID)
	return res, err
}

func (e *Evaluator) inspect(ctx context.Context, loanID uuid.UUID) (*models.Loan, *ConsensusResult, error) {
	loan, err := e.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, nil, translate("loan", err)
	}
	records, err := e.store.ListGuarantees(ctx, loanID)
	if err != nil {
		return nil, nil, translate("guarantees", err)
	}
	reached, valid := Consensus(records)
	return loan, &ConsensusResult{Reached: reached, ValidGuarantorCount: valid, LoanStatus: loan.Status}, nil
}

// EvaluateConsensus re-reads the loan's guarantees and, when consensus holds
// and the loan is still awaiting guarantors, moves it to awaiting_admin and
// broadcasts the admin event. Only the caller that wins the status transition
// emits, so concurrent evaluations raise the event once.
func (e *Evaluator) EvaluateConsensus(ctx context.Context, loanID uuid.UUID) (*ConsensusResult, error) {
	loan, res, err := e.inspect(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !res.Reached || res.LoanStatus != models.LoanAwaitingGuarantors {
		return res, nil
	}

	fields := logrus.Fields{"loan_id": loanID, "valid_guarantors": res.ValidGuarantorCount}
	ok, err := e.store.TransitionLoan(ctx, loanID, models.LoanAwaitingGuarantors, models.LoanAwaitingAdmin, loanReadyForAdmin(loan, e.now()))
	if errors.Is(err, repository.ErrEventNotStored) {
		// Transition rolled back with the event; the loan stays awaiting
		// guarantors and the reconciler retries.
		dErr := &NotificationDeliveryError{Type: models.NotificationLoanReadyForAdmin, Err: err}
		e.log.WithFields(fields).Warnf("Admin notification not delivered: %v", dErr)
		return res, nil
	}
	if err != nil {
		return nil, translate("loan", err)
	}
	if !ok {
		// Another evaluation already moved the loan on.
		current, err := e.store.GetLoan(ctx, loanID)
		if err != nil {
			return nil, translate("loan", err)
		}
		res.LoanStatus = current.Status
		return res, nil
	}

	res.Transitioned = true
	res.LoanStatus = models.LoanAwaitingAdmin
	e.log.WithFields(fields).Info("Loan reached guarantor consensus, awaiting admin")
	return res, nil
}
