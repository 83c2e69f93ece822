package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dan9191/coop-lending/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("not found")
	// ErrEventNotStored is returned when a status transition was rolled back
	// because its notification could not be written
	ErrEventNotStored = errors.New("notification not stored")
)

// ConstraintError reports a row rejected by a database constraint
type ConstraintError struct {
	Constraint string
	Code       string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %q violated (%s): %v", e.Constraint, e.Code, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// classify turns constraint failures reported by Postgres into *ConstraintError
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation", "check_violation", "foreign_key_violation", "not_null_violation":
			return &ConstraintError{Constraint: pqErr.Constraint, Code: string(pqErr.Code), Err: err}
		}
	}
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetLoan retrieves a loan by id
func (r *Repository) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	loan := &models.Loan{}
	query := `
		SELECT id, member_id, loan_number, amount_requested, amount_approved, status, created_at, updated_at
		FROM loans
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&loan.ID, &loan.MemberID, &loan.LoanNumber, &loan.AmountRequested, &loan.AmountApproved,
			&loan.Status, &loan.CreatedAt, &loan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan: %w", err)
	}
	return loan, nil
}

// ListLoanIDsByStatus returns the ids of every loan in the given status
func (r *Repository) ListLoanIDsByStatus(ctx context.Context, status models.LoanStatus) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM loans WHERE status = $1 ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan loan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return ids, nil
}

// GetMember retrieves a member by id
func (r *Repository) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	member := &models.Member{}
	query := `
		SELECT id, member_number, full_name, created_at
		FROM members
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&member.ID, &member.MemberNumber, &member.FullName, &member.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return member, nil
}

// GetInvitation retrieves the guarantor's pledge invitation on a loan
func (r *Repository) GetInvitation(ctx context.Context, loanID, guarantorID uuid.UUID) (*models.Invitation, error) {
	inv := &models.Invitation{}
	query := `
		SELECT loan_id, guarantor_id, amount_guaranteed
		FROM loan_guarantor_invitations
		WHERE loan_id = $1 AND guarantor_id = $2`
	err := r.db.QueryRowContext(ctx, query, loanID, guarantorID).
		Scan(&inv.LoanID, &inv.GuarantorID, &inv.AmountGuaranteed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invitation for guarantor %s on loan %s: %w", guarantorID, loanID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	return inv, nil
}

// UpsertGuarantee inserts the record or, when the (loan, guarantor) pair
// already exists, overwrites only its status. The stored row is scanned back
// into rec, so AmountGuaranteed reflects the original pledge.
func (r *Repository) UpsertGuarantee(ctx context.Context, rec *models.GuaranteeRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO loan_guarantees (id, loan_id, guarantor_id, amount_guaranteed, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (loan_id, guarantor_id) DO UPDATE
			SET status = EXCLUDED.status,
				updated_at = CASE
					WHEN loan_guarantees.status = EXCLUDED.status THEN loan_guarantees.updated_at
					ELSE CURRENT_TIMESTAMP
				END
		RETURNING id, amount_guaranteed, status, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, rec.ID, rec.LoanID, rec.GuarantorID, rec.AmountGuaranteed, rec.Status).
		Scan(&rec.ID, &rec.AmountGuaranteed, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert guarantee: %w", classify(err))
	}
	return nil
}

// ListGuarantees returns every guarantee record of a loan
func (r *Repository) ListGuarantees(ctx context.Context, loanID uuid.UUID) ([]models.GuaranteeRecord, error) {
	query := `
		SELECT id, loan_id, guarantor_id, amount_guaranteed, status, created_at, updated_at
		FROM loan_guarantees
		WHERE loan_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guarantees: %w", err)
	}
	defer rows.Close()

	var records []models.GuaranteeRecord
	for rows.Next() {
		g := models.GuaranteeRecord{}
		err := rows.Scan(&g.ID, &g.LoanID, &g.GuarantorID, &g.AmountGuaranteed, &g.Status, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guarantee: %w", err)
		}
		records = append(records, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list guarantees: %w", err)
	}
	return records, nil
}

// CreateNotification stores a notification for the notification collaborator
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return insertNotification(ctx, r.db, n)
}

// TransitionLoan moves a loan from one status to another only if it is
// currently in from. When event is non-nil it is written in the same
// transaction, so the transition and its notification commit together.
// It reports whether this call performed the transition.
func (r *Repository) TransitionLoan(ctx context.Context, loanID uuid.UUID, from, to models.LoanStatus, event *models.Notification) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET status = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $2`,
		loanID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update loan status: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update loan status: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if event != nil {
		if err := insertNotification(ctx, tx, event); err != nil {
			return false, fmt.Errorf("%w: %w", ErrEventNotStored, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit loan transition: %w", err)
	}
	return true, nil
}

func insertNotification(ctx context.Context, db execer, n *models.Notification) error {
	if err := n.Recipient.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	meta, err := n.Metadata()
	if err != nil {
		return err
	}

	var member uuid.NullUUID
	if id, ok := n.Recipient.MemberID(); ok {
		member = uuid.NullUUID{UUID: id, Valid: true}
	}
	var role sql.NullString
	if rl, ok := n.Recipient.Role(); ok {
		role = sql.NullString{String: string(rl), Valid: true}
	}

	query := `
		INSERT INTO notifications (id, member_id, recipient_role, type, title, message, metadata, sent_at, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = db.ExecContext(ctx, query, n.ID, member, role, n.Type, n.Title, n.Message, string(meta), n.SentAt, n.Read)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", classify(err))
	}
	return nil
}
