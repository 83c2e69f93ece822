package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dan9191/coop-lending/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is everything the guarantee workflow needs from storage
type Store interface {
	GuaranteeStore
	LoanStore
	NotificationSink
	ListLoanIDsByStatus(ctx context.Context, status models.LoanStatus) ([]uuid.UUID, error)
}

// Alerter pages operators about invariant breaches
type Alerter interface {
	Alert(subject, body string) error
}

// DecisionResult is returned to the caller of RecordDecision
type DecisionResult struct {
	Record           *models.GuaranteeRecord `json:"record"`
	ConsensusReached bool                    `json:"consensus_reached"`
	LoanStatus       models.LoanStatus       `json:"loan_status"`
}

// Service handles the guarantor decision workflow
type Service struct {
	repo      Store
	log       *logrus.Logger
	alerter   Alerter
	ledger    *Ledger
	evaluator *Evaluator
}

// NewService initializes a new service. alerter may be nil.
func NewService(repo Store, log *logrus.Logger, alerter Alerter) *Service {
	return &Service{
		repo:      repo,
		log:       log,
		alerter:   alerter,
		ledger:    NewLedger(repo, repo, log),
		evaluator: NewEvaluator(repo, log),
	}
}

// RecordDecision stores a guarantor's decision and re-evaluates the loan's consensus
func (s *Service) RecordDecision(ctx context.Context, loanID, guarantorID uuid.UUID, decision models.GuaranteeStatus) (*DecisionResult, error) {
	rec, err := s.ledger.RecordDecision(ctx, loanID, guarantorID, decision)
	if err != nil {
		return nil, s.fail("record decision", loanID, err)
	}

	res, err := s.evaluator.EvaluateConsensus(ctx, loanID)
	if err != nil {
		return nil, s.fail("evaluate consensus", loanID, err)
	}

	return &DecisionResult{Record: rec, ConsensusReached: res.Reached, LoanStatus: res.LoanStatus}, nil
}

// EvaluateConsensus re-evaluates a loan and raises the admin event if it is due
func (s *Service) EvaluateConsensus(ctx context.Context, loanID uuid.UUID) (*ConsensusResult, error) {
	res, err := s.evaluator.EvaluateConsensus(ctx, loanID)
	if err != nil {
		return nil, s.fail("evaluate consensus", loanID, err)
	}
	return res, nil
}

// Consensus reports a loan's current consensus without changing anything
func (s *Service) Consensus(ctx context.Context, loanID uuid.UUID) (*ConsensusResult, error) {
	return s.evaluator.Inspect(ctx, loanID)
}

// Guarantees lists a loan's guarantee records
func (s *Service) Guarantees(ctx context.Context, loanID uuid.UUID) ([]models.GuaranteeRecord, error) {
	if _, err := s.repo.GetLoan(ctx, loanID); err != nil {
		return nil, translate("loan", err)
	}
	records, err := s.repo.ListGuarantees(ctx, loanID)
	if err != nil {
		return nil, translate("guarantees", err)
	}
	return records, nil
}

// fail logs err and raises an alert for constraint violations
func (s *Service) fail(op string, loanID uuid.UUID, err error) error {
	entry := s.log.WithFields(logrus.Fields{"loan_id": loanID, "op": op})

	var cv *ConstraintViolation
	if !errors.As(err, &cv) {
		entry.Debugf("Operation failed: %v", err)
		return err
	}

	entry.WithField("constraint", cv.Constraint).Errorf("Constraint violation: %v", err)
	if s.alerter != nil {
		body := fmt.Sprintf("Operation %q on loan %s was rejected by constraint %q.\n\n%v", op, loanID, cv.Constraint, err)
		if aErr := s.alerter.Alert("Guarantee workflow constraint violation", body); aErr != nil {
			entry.Errorf("Failed to send alert: %v", aErr)
		}
	}
	return err
}
