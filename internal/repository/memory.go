package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/coop-lending/internal/models"
	"github.com/google/uuid"
)

type guaranteeKey struct {
	loanID      uuid.UUID
	guarantorID uuid.UUID
}

// MemoryRepository is a thread-safe in-process store with the same
// uniqueness, check and compare-and-set semantics as Repository.
// It backs local runs and the workflow tests.
type MemoryRepository struct {
	mu sync.RWMutex

	members       map[uuid.UUID]models.Member
	loans         map[uuid.UUID]models.Loan
	invitations   map[guaranteeKey]models.Invitation
	guarantees    map[guaranteeKey]models.GuaranteeRecord
	notifications []models.Notification

	notificationErr error
	now             func() time.Time
}

// NewMemoryRepository returns an empty store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		members:     make(map[uuid.UUID]models.Member),
		loans:       make(map[uuid.UUID]models.Loan),
		invitations: make(map[guaranteeKey]models.Invitation),
		guarantees:  make(map[guaranteeKey]models.GuaranteeRecord),
		now:         time.Now,
	}
}

// --- Seeding ---

// AddMember stores a member, assigning an id when missing
func (m *MemoryRepository) AddMember(member models.Member) models.Member {
	m.mu.Lock()
	defer m.mu.Unlock()

	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	if member.CreatedAt.IsZero() {
		member.CreatedAt = m.now()
	}
	m.members[member.ID] = member
	return member
}

// AddLoan stores a loan, defaulting to awaiting_guarantors
func (m *MemoryRepository) AddLoan(loan models.Loan) (models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[loan.MemberID]; !ok {
		return models.Loan{}, &ConstraintError{Constraint: "loans_member_id_fkey", Code: "23503", Err: fmt.Errorf("member %s does not exist", loan.MemberID)}
	}
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	if loan.Status == "" {
		loan.Status = models.LoanAwaitingGuarantors
	}
	if !loan.Status.Valid() {
		return models.Loan{}, &ConstraintError{Constraint: "loans_status_check", Code: "23514", Err: fmt.Errorf("invalid status %q", loan.Status)}
	}
	now := m.now()
	loan.CreatedAt, loan.UpdatedAt = now, now
	m.loans[loan.ID] = loan
	return loan, nil
}

// AddInvitation records a guarantor's pledge on a loan
func (m *MemoryRepository) AddInvitation(inv models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loans[inv.LoanID]; !ok {
		return &ConstraintError{Constraint: "loan_guarantor_invitations_loan_id_fkey", Code: "23503", Err: fmt.Errorf("loan %s does not exist", inv.LoanID)}
	}
	if _, ok := m.members[inv.GuarantorID]; !ok {
		return &ConstraintError{Constraint: "loan_guarantor_invitations_guarantor_id_fkey", Code: "23503", Err: fmt.Errorf("member %s does not exist", inv.GuarantorID)}
	}
	m.invitations[guaranteeKey{inv.LoanID, inv.GuarantorID}] = inv
	return nil
}

// SetNotificationError makes every subsequent notification write fail with err.
// A nil err restores normal behaviour.
func (m *MemoryRepository) SetNotificationError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationErr = err
}

// Notifications returns a copy of every stored notification in write order
func (m *MemoryRepository) Notifications() []models.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// --- Store implementation ---

func (m *MemoryRepository) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loan, ok := m.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
	}
	return &loan, nil
}

func (m *MemoryRepository) ListLoanIDsByStatus(ctx context.Context, status models.LoanStatus) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var loans []models.Loan
	for _, l := range m.loans {
		if l.Status == status {
			loans = append(loans, l)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].CreatedAt.Before(loans[j].CreatedAt) })

	ids := make([]uuid.UUID, 0, len(loans))
	for _, l := range loans {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

func (m *MemoryRepository) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	member, ok := m.members[id]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	return &member, nil
}

func (m *MemoryRepository) GetInvitation(ctx context.Context, loanID, guarantorID uuid.UUID) (*models.Invitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invitations[guaranteeKey{loanID, guarantorID}]
	if !ok {
		return nil, fmt.Errorf("invitation for guarantor %s on loan %s: %w", guarantorID, loanID, ErrNotFound)
	}
	return &inv, nil
}

func (m *MemoryRepository) UpsertGuarantee(ctx context.Context, rec *models.GuaranteeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch rec.Status {
	case models.GuaranteePending, models.GuaranteeAccepted, models.GuaranteeDeclined:
	default:
		return fmt.Errorf("failed to upsert guarantee: %w", &ConstraintError{
			Constraint: "loan_guarantees_status_check", Code: "23514", Err: fmt.Errorf("invalid status %q", rec.Status),
		})
	}
	if rec.AmountGuaranteed.IsNegative() {
		return fmt.Errorf("failed to upsert guarantee: %w", &ConstraintError{
			Constraint: "loan_guarantees_amount_guaranteed_check", Code: "23514", Err: fmt.Errorf("negative amount %s", rec.AmountGuaranteed),
		})
	}
	if _, ok := m.loans[rec.LoanID]; !ok {
		return fmt.Errorf("failed to upsert guarantee: %w", &ConstraintError{
			Constraint: "loan_guarantees_loan_id_fkey", Code: "23503", Err: fmt.Errorf("loan %s does not exist", rec.LoanID),
		})
	}
	if _, ok := m.members[rec.GuarantorID]; !ok {
		return fmt.Errorf("failed to upsert guarantee: %w", &ConstraintError{
			Constraint: "loan_guarantees_guarantor_id_fkey", Code: "23503", Err: fmt.Errorf("member %s does not exist", rec.GuarantorID),
		})
	}

	key := guaranteeKey{rec.LoanID, rec.GuarantorID}
	now := m.now()
	stored, ok := m.guarantees[key]
	if !ok {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		stored = *rec
		stored.CreatedAt, stored.UpdatedAt = now, now
	} else if stored.Status != rec.Status {
		stored.Status = rec.Status
		stored.UpdatedAt = now
	}
	m.guarantees[key] = stored
	*rec = stored
	return nil
}

func (m *MemoryRepository) ListGuarantees(ctx context.Context, loanID uuid.UUID) ([]models.GuaranteeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []models.GuaranteeRecord
	for key, g := range m.guarantees {
		if key.loanID == loanID {
			records = append(records, g)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID.String() < records[j].ID.String()
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (m *MemoryRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertNotification(n)
}

func (m *MemoryRepository) TransitionLoan(ctx context.Context, loanID uuid.UUID, from, to models.LoanStatus, event *models.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !to.Valid() {
		return false, &ConstraintError{Constraint: "loans_status_check", Code: "23514", Err: fmt.Errorf("invalid status %q", to)}
	}
	loan, ok := m.loans[loanID]
	if !ok || loan.Status != from {
		return false, nil
	}
	if event != nil {
		if err := m.insertNotification(event); err != nil {
			return false, fmt.Errorf("%w: %w", ErrEventNotStored, err)
		}
	}
	loan.Status = to
	loan.UpdatedAt = m.now()
	m.loans[loanID] = loan
	return true, nil
}

// insertNotification must be called with m.mu held for writing
func (m *MemoryRepository) insertNotification(n *models.Notification) error {
	if m.notificationErr != nil {
		return fmt.Errorf("failed to create notification: %w", m.notificationErr)
	}
	if err := n.Recipient.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}
	if id, ok := n.Recipient.MemberID(); ok {
		if _, exists := m.members[id]; !exists {
			return fmt.Errorf("failed to create notification: %w", &ConstraintError{
				Constraint: "notifications_member_id_fkey", Code: "23503", Err: fmt.Errorf("member %s does not exist", id),
			})
		}
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	m.notifications = append(m.notifications, *n)
	return nil
}
