package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

// PaymentRepository manages persistence for payment (credit) records and their
// per-fee allocations. Payments written before the allocation feature have no
// allocation rows at all; callers treat that absence as meaningful, so the
// loader never synthesises entries.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

type allocationRow struct {
	PaymentID string `db:"payment_id"`
	FeeKey    string `db:"fee_key"`
	Amount    int64  `db:"amount"`
}

// ListByStudent returns every payment for a student with allocations attached.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	const query = `SELECT id, student_id, term, amount, date, method, particulars, created_at
        FROM payments WHERE student_id = $1 ORDER BY date, id`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if len(payments) == 0 {
		return payments, nil
	}

	const allocationQuery = `SELECT a.payment_id, a.fee_key, a.amount
        FROM payment_allocations a
        JOIN payments p ON p.id = a.payment_id
        WHERE p.student_id = $1`
	var rows []allocationRow
	if err := r.db.SelectContext(ctx, &rows, allocationQuery, studentID); err != nil {
		return nil, fmt.Errorf("list payment allocations: %w", err)
	}

	byPayment := make(map[string]map[string]int64, len(rows))
	for _, row := range rows {
		if byPayment[row.PaymentID] == nil {
			byPayment[row.PaymentID] = make(map[string]int64)
		}
		byPayment[row.PaymentID][row.FeeKey] += row.Amount
	}
	for i := range payments {
		payments[i].Allocations = byPayment[payments[i].ID]
	}
	return payments, nil
}

// Create inserts a payment and its allocation rows.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	if payment.Date.IsZero() {
		payment.Date = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO payments (id, student_id, term, amount, date, method, particulars, created_at)
        VALUES (:id, :student_id, :term, :amount, :date, :method, :particulars, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	const allocationQuery = `INSERT INTO payment_allocations (payment_id, fee_key, amount) VALUES ($1, $2, $3)`
	for key, amount := range payment.Allocations {
		if _, err := tx.ExecContext(ctx, allocationQuery, payment.ID, key, amount); err != nil {
			return fmt.Errorf("create payment allocation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}
