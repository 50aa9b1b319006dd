package service

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-finance-api/internal/models"
	appErrors "github.com/noah-isme/sma-finance-api/pkg/errors"
)

// The fee matrix is a display projection: arbitrary billing/payment records
// bucketed under named columns, with whatever cannot be attributed to a known
// column pooled as credit. Column order is an explicit parameter because the
// credit pool is consumed left to right when marking cells covered.

var installmentPattern = regexp.MustCompile(`(?i)\b(\d+(?:st|nd|rd|th)?|first|second|third|fourth|fifth|final)\s+install?ment\b|\binstall?ment\s*\d+`)

// ProjectMatrix buckets one student's ledger onto the named columns.
// Runs in a single pass over billings and payments per column set; linear in
// records, never quadratic in students.
func ProjectMatrix(student models.Student, billings []models.Billing, payments []models.Payment, columns []string) models.MatrixProjection {
	projection := models.MatrixProjection{StudentID: student.ID}
	if len(columns) == 0 {
		return projection
	}

	cells := make([]models.MatrixCell, len(columns))
	for i, column := range columns {
		cells[i] = models.MatrixCell{Column: column}
	}

	for _, b := range billings {
		if b.StudentID != student.ID || b.Voided {
			continue
		}
		for i, column := range columns {
			if KeysMatch(b.Type, column) || KeysMatch(b.Description, column) {
				cells[i].Billed += b.Amount
				break
			}
		}
	}

	var totalPaid, assigned int64
	for _, p := range payments {
		if p.StudentID != student.ID {
			continue
		}
		totalPaid += p.Amount

		if len(p.Allocations) > 0 {
			for key, amount := range p.Allocations {
				if i, ok := matchColumn(key, columns); ok {
					cells[i].Paid += amount
					assigned += amount
				}
			}
			continue
		}
		if i, ok := matchPaymentText(p, columns); ok {
			cells[i].Paid += p.Amount
			assigned += p.Amount
		}
	}

	pool := totalPaid - assigned
	if pool < 0 {
		pool = 0
	}
	// Left-to-right consumption in the caller's column order.
	for i := range cells {
		deficit := cells[i].Billed - cells[i].Paid
		if deficit > 0 && pool >= deficit {
			cells[i].CoveredByCredit = true
			pool -= deficit
		}
	}

	projection.Cells = cells
	projection.CreditPool = pool
	return projection
}

func matchColumn(key string, columns []string) (int, bool) {
	for i, column := range columns {
		if KeysMatch(key, column) {
			return i, true
		}
	}
	return 0, false
}

// matchPaymentText attributes an unallocated payment by its free text. An
// "installment" column additionally claims payments whose particulars name an
// ordinal installment.
func matchPaymentText(p models.Payment, columns []string) (int, bool) {
	for i, column := range columns {
		if KeysMatch(p.Particulars, column) {
			return i, true
		}
		if NormalizeKey(column) == "installment" && installmentPattern.MatchString(p.Particulars) {
			return i, true
		}
	}
	return 0, false
}

// MatrixService projects fee matrices for display screens.
type MatrixService struct {
	students ledgerStudentReader
	billings billingReader
	payments paymentReader
	columns  []string
	logger   *zap.Logger
}

// NewMatrixService constructs a MatrixService with the configured default
// column order.
func NewMatrixService(students ledgerStudentReader, billings billingReader, payments paymentReader, columns []string, logger *zap.Logger) *MatrixService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatrixService{students: students, billings: billings, payments: payments, columns: columns, logger: logger}
}

// Project returns the matrix projection for a student. columns may be empty
// to use the configured defaults.
func (s *MatrixService) Project(ctx context.Context, studentID string, columns []string) (*models.MatrixProjection, error) {
	if len(columns) == 0 {
		columns = s.columns
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	billings, err := s.billings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billings")
	}
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	projection := ProjectMatrix(*student, billings, payments, columns)
	return &projection, nil
}
