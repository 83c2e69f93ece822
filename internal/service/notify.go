package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/coop-lending/internal/models"
	"github.com/sirupsen/logrus"
)

// NotificationSink receives notifications produced by the workflow
type NotificationSink interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// guarantorResponse builds the event telling the loan owner how a guarantor decided
func guarantorResponse(loan *models.Loan, guarantor *models.Member, decision models.GuaranteeStatus, at time.Time) *models.Notification {
	guarantorID := guarantor.ID
	return &models.Notification{
		Recipient: models.Direct(loan.MemberID),
		Type:      models.NotificationGuarantorResponse,
		Title:     "Guarantor Response",
		Message:   fmt.Sprintf("%s %s your loan guarantee.", guarantor.DisplayName(), decision),
		Payload: models.NotificationPayload{
			LoanID:      loan.ID,
			GuarantorID: &guarantorID,
			Decision:    decision,
		},
		SentAt: at,
	}
}

// loanReadyForAdmin builds the broadcast raised when every valid guarantor accepted
func loanReadyForAdmin(loan *models.Loan, at time.Time) *models.Notification {
	return &models.Notification{
		Recipient: models.BroadcastToRole(models.RoleAdmin),
		Type:      models.NotificationLoanReadyForAdmin,
		Title:     "Loan Ready for Approval",
		Message:   fmt.Sprintf("Loan %s has all guarantor approvals.", loan.LoanNumber),
		Payload:   models.NotificationPayload{LoanID: loan.ID},
		SentAt:    at,
	}
}

// deliver writes n to the sink. Failures are logged and returned as
// *NotificationDeliveryError so callers can ignore them.
func deliver(ctx context.Context, sink NotificationSink, log *logrus.Logger, n *models.Notification) error {
	if err := sink.CreateNotification(ctx, n); err != nil {
		dErr := &NotificationDeliveryError{Type: n.Type, Err: err}
		log.WithFields(logrus.Fields{
			"loan_id":   n.Payload.LoanID,
			"recipient": n.Recipient.String(),
			"type":      n.Type,
		}).Warnf("Notification not delivered: %v", err)
		return dErr
	}
	return nil
}
