package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/Dan9191/coop-lending/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) (*MemoryRepository, models.Loan, models.Member) {
	t.Helper()
	repo := NewMemoryRepository()
	owner := repo.AddMember(models.Member{MemberNumber: "M-1", FullName: "Owner"})
	guarantor := repo.AddMember(models.Member{MemberNumber: "M-2", FullName: "Guarantor"})
	loan, err := repo.AddLoan(models.Loan{MemberID: owner.ID, LoanNumber: "LN-1", AmountRequested: decimal.NewFromInt(100)})
	require.NoError(t, err)
	return repo, loan, guarantor
}

func TestMemoryUpsertKeepsOneRowPerPair(t *testing.T) {
	repo, loan, g := seedMemory(t)
	ctx := context.Background()

	first := &models.GuaranteeRecord{LoanID: loan.ID, GuarantorID: g.ID, AmountGuaranteed: decimal.NewFromInt(40), Status: models.GuaranteeAccepted}
	require.NoError(t, repo.UpsertGuarantee(ctx, first))

	second := &models.GuaranteeRecord{LoanID: loan.ID, GuarantorID: g.ID, AmountGuaranteed: decimal.NewFromInt(99), Status: models.GuaranteeDeclined}
	require.NoError(t, repo.UpsertGuarantee(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.AmountGuaranteed.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, models.GuaranteeDeclined, second.Status)

	records, err := repo.ListGuarantees(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, *second, records[0])
}

func TestMemoryUpsertConstraints(t *testing.T) {
	repo, loan, g := seedMemory(t)
	ctx := context.Background()

	cases := map[string]*models.GuaranteeRecord{
		"bad status":      {LoanID: loan.ID, GuarantorID: g.ID, Status: "maybe"},
		"negative amount": {LoanID: loan.ID, GuarantorID: g.ID, Status: models.GuaranteeAccepted, AmountGuaranteed: decimal.NewFromInt(-1)},
		"unknown loan":    {LoanID: uuid.New(), GuarantorID: g.ID, Status: models.GuaranteeAccepted},
		"unknown member":  {LoanID: loan.ID, GuarantorID: uuid.New(), Status: models.GuaranteeAccepted},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			var cErr *ConstraintError
			assert.ErrorAs(t, repo.UpsertGuarantee(ctx, rec), &cErr)
		})
	}
}

func TestMemoryTransitionLoan(t *testing.T) {
	repo, loan, _ := seedMemory(t)
	ctx := context.Background()
	event := &models.Notification{Recipient: models.BroadcastToRole(models.RoleAdmin), Type: models.NotificationLoanReadyForAdmin}

	ok, err := repo.TransitionLoan(ctx, loan.ID, models.LoanAwaitingGuarantors, models.LoanAwaitingAdmin, event)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionLoan(ctx, loan.ID, models.LoanAwaitingGuarantors, models.LoanAwaitingAdmin, event)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, repo.Notifications(), 1)
	got, err := repo.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanAwaitingAdmin, got.Status)
}

func TestMemoryTransitionRollsBackWithEvent(t *testing.T) {
	repo, loan, _ := seedMemory(t)
	ctx := context.Background()
	repo.SetNotificationError(errors.New("down"))

	event := &models.Notification{Recipient: models.BroadcastToRole(models.RoleAdmin), Type: models.NotificationLoanReadyForAdmin}
	ok, err := repo.TransitionLoan(ctx, loan.ID, models.LoanAwaitingGuarantors, models.LoanAwaitingAdmin, event)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrEventNotStored)

	got, err := repo.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanAwaitingGuarantors, got.Status)
}

func TestMemoryNotificationNeedsRecipient(t *testing.T) {
	repo, _, _ := seedMemory(t)
	err := repo.CreateNotification(context.Background(), &models.Notification{Type: models.NotificationGuarantorResponse})
	assert.Error(t, err)
	assert.Empty(t, repo.Notifications())
}

func TestMemoryNotFound(t *testing.T) {
	repo, loan, g := seedMemory(t)
	ctx := context.Background()

	_, err := repo.GetLoan(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetMember(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetInvitation(ctx, loan.ID, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
