package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

// BillingRepository manages persistence for billing (debit) records. Voided
// billings are kept as rows and filtered out by the reconciliation core, so
// nothing ever hard-deletes a charge.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository constructs a BillingRepository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// ListByStudent returns every billing row for a student, voided included.
func (r *BillingRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Billing, error) {
	const query = `SELECT id, student_id, term, type, description, amount, date, is_brought_forward, voided, created_at
        FROM billings WHERE student_id = $1 ORDER BY date, id`
	var billings []models.Billing
	if err := r.db.SelectContext(ctx, &billings, query, studentID); err != nil {
		return nil, fmt.Errorf("list billings: %w", err)
	}
	return billings, nil
}

// Create inserts a billing record.
func (r *BillingRepository) Create(ctx context.Context, billing *models.Billing) error {
	if billing.ID == "" {
		billing.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if billing.CreatedAt.IsZero() {
		billing.CreatedAt = now
	}
	if billing.Date.IsZero() {
		billing.Date = now
	}
	const query = `INSERT INTO billings (id, student_id, term, type, description, amount, date, is_brought_forward, voided, created_at)
        VALUES (:id, :student_id, :term, :type, :description, :amount, :date, :is_brought_forward, :voided, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, billing); err != nil {
		return fmt.Errorf("create billing: %w", err)
	}
	return nil
}

// Void marks a billing as voided without deleting the row.
func (r *BillingRepository) Void(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE billings SET voided = true WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("void billing: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExistsForTerm reports whether a student already has a billing of the given
// type in a term. Promotion billing issuance uses this for duplicate
// prevention.
func (r *BillingRepository) ExistsForTerm(ctx context.Context, studentID, term, billingType string) (bool, error) {
	var exists int
	const query = "SELECT 1 FROM billings WHERE student_id = $1 AND term = $2 AND type = $3 AND voided = false LIMIT 1"
	if err := r.db.GetContext(ctx, &exists, query, studentID, term, billingType); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check billing: %w", err)
	}
	return true, nil
}
