package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-finance-api/internal/models"
	appErrors "github.com/noah-isme/sma-finance-api/pkg/errors"
)

// Historical ledgers mix three generations of record keeping: fully tagged
// ledgers with explicit brought-forward lines, partially tagged ledgers that
// rely on a manually entered arrears figure, and flat ledgers with no term
// tags at all. Summarize resolves that spread with a fixed priority chain so
// identical inputs always produce the identical summary.

var broughtForwardPattern = regexp.MustCompile(`(?i)\b(brought|forward|bf|b/f|arrears)\b`)

// Summarize computes the financial summary for one student from raw ledger
// records. It is a pure function: it filters by student id, ignores voided
// billings, and never mutates its inputs.
func Summarize(student models.Student, billings []models.Billing, payments []models.Payment, bursaries []models.Bursary) models.FinancialSummary {
	discount := bursaryDiscount(student, bursaries)
	effectivePrevious := effectivePreviousBalance(student)

	var (
		tuitionBilled int64
		explicitBF    bool
	)
	for _, b := range billings {
		if b.StudentID != student.ID || b.Voided {
			continue
		}
		if !isCurrentTerm(b.Term, student.Term) {
			continue
		}
		if isTuition(b) {
			tuitionBilled += b.Amount
		}
		if b.IsBroughtForward || broughtForwardPattern.MatchString(b.Type) || broughtForwardPattern.MatchString(b.Description) {
			explicitBF = true
		}
	}

	summary := models.FinancialSummary{
		TuitionBilled:   tuitionBilled,
		BursaryDiscount: discount,
	}

	switch {
	case explicitBF:
		// The ledger carries its own arrears line; trust it fully and
		// ignore the manual figure so arrears are not counted twice.
		summary.Mode = models.LedgerExplicitBF
		summary.TotalBilled, summary.TotalPayments = sumFromTerm(student, billings, payments)
	case effectivePrevious != 0:
		summary.Mode = models.LedgerHybrid
		summary.TotalBilled, summary.TotalPayments = sumFromTerm(student, billings, payments)
		summary.ManualArrears = effectivePrevious
	default:
		summary.Mode = models.LedgerFull
		summary.TotalBilled, summary.TotalPayments = sumAll(student, billings, payments)
	}

	summary.TotalBilled += summary.ManualArrears - discount
	summary.OutstandingBalance = summary.TotalBilled - summary.TotalPayments

	// Services never gate clearance: the target is tuition plus arrears
	// only. A generous bursary may push it negative; callers clamp when
	// converting to a percentage, not here.
	summary.ClearanceTarget = tuitionBilled + summary.ManualArrears - discount
	summary.ClearancePaid = clearancePaid(student, payments)

	return summary
}

// sumFromTerm totals every record whose term is not strictly earlier than the
// student's current term. Untagged and unparseable terms compare equal to the
// current term and stay included.
func sumFromTerm(student models.Student, billings []models.Billing, payments []models.Payment) (billed, paid int64) {
	for _, b := range billings {
		if b.StudentID != student.ID || b.Voided {
			continue
		}
		if b.Term == "" || CompareTerms(b.Term, student.Term) >= 0 {
			billed += b.Amount
		}
	}
	for _, p := range payments {
		if p.StudentID != student.ID {
			continue
		}
		if p.Term == "" || CompareTerms(p.Term, student.Term) >= 0 {
			paid += p.Amount
		}
	}
	return billed, paid
}

func sumAll(student models.Student, billings []models.Billing, payments []models.Payment) (billed, paid int64) {
	for _, b := range billings {
		if b.StudentID != student.ID || b.Voided {
			continue
		}
		billed += b.Amount
	}
	for _, p := range payments {
		if p.StudentID != student.ID {
			continue
		}
		paid += p.Amount
	}
	return billed, paid
}

// clearancePaid totals current-term payments that count toward the clearance
// target. Allocated payments contribute only their tuition/arrears entries; a
// payment with no allocations at all predates the allocation feature and
// contributes its entire amount.
func clearancePaid(student models.Student, payments []models.Payment) int64 {
	var total int64
	for _, p := range payments {
		if p.StudentID != student.ID {
			continue
		}
		if !isCurrentTerm(p.Term, student.Term) {
			continue
		}
		if len(p.Allocations) == 0 {
			total += p.Amount
			continue
		}
		for key, amount := range p.Allocations {
			if isClearanceKey(key) {
				total += amount
			}
		}
	}
	return total
}

// effectivePreviousBalance prefers the promotion snapshot that produced the
// student's current term over the manually maintained arrears field.
func effectivePreviousBalance(student models.Student) int64 {
	for _, entry := range student.PromotionHistory {
		if TermsEqual(entry.ToTerm, student.Term) {
			return entry.PreviousBalance
		}
	}
	return student.PreviousBalance
}

func bursaryDiscount(student models.Student, bursaries []models.Bursary) int64 {
	if student.BursaryID == nil {
		return 0
	}
	for _, b := range bursaries {
		if b.ID == *student.BursaryID {
			return b.FixedValue
		}
	}
	return 0
}

// isCurrentTerm buckets a record term tag with the student's current term.
// Empty tags and unparseable tags count as current: the safe default keeps
// legacy records visible rather than silently aging them out.
func isCurrentTerm(recordTerm, currentTerm string) bool {
	if strings.TrimSpace(recordTerm) == "" {
		return true
	}
	return CompareTerms(recordTerm, currentTerm) == 0
}

func isTuition(b models.Billing) bool {
	return KeysMatch(b.Type, "tuition") || KeysMatch(b.Description, "tuition")
}

type ledgerStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type billingReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Billing, error)
}

type paymentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
}

type bursaryReader interface {
	List(ctx context.Context) ([]models.Bursary, error)
}

type summaryCache interface {
	Get(ctx context.Context, studentID string) (*models.FinancialSummary, error)
	Set(ctx context.Context, studentID string, summary models.FinancialSummary) error
	Invalidate(ctx context.Context, studentID string) error
}

// LedgerService loads ledger records and computes financial summaries. The
// computation itself is Summarize; the service adds repository access, an
// optional read-through cache, and reconciliation metrics.
type LedgerService struct {
	students  ledgerStudentReader
	billings  billingReader
	payments  paymentReader
	bursaries bursaryReader
	cache     summaryCache
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewLedgerService constructs a LedgerService. cache and metrics may be nil.
func NewLedgerService(students ledgerStudentReader, billings billingReader, payments paymentReader, bursaries bursaryReader, cache summaryCache, metrics *MetricsService, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{students: students, billings: billings, payments: payments, bursaries: bursaries, cache: cache, metrics: metrics, logger: logger}
}

// Summary returns the financial summary for a student, serving from cache
// unless refresh is set.
func (s *LedgerService) Summary(ctx context.Context, studentID string, refresh bool) (*models.FinancialSummary, error) {
	if s.cache != nil && !refresh {
		if cached, err := s.cache.Get(ctx, studentID); err != nil {
			s.logger.Warn("summary cache read failed", zap.String("student_id", studentID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	student, billings, payments, bursaries, err := s.loadLedger(ctx, studentID)
	if err != nil {
		return nil, err
	}

	summary := Summarize(*student, billings, payments, bursaries)
	s.metrics.RecordReconciliation(string(summary.Mode))

	if s.cache != nil {
		if err := s.cache.Set(ctx, studentID, summary); err != nil {
			s.logger.Warn("summary cache write failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return &summary, nil
}

// Invalidate drops any cached summary for the student. Mutating flows call
// this so the next read reconciles from scratch.
func (s *LedgerService) Invalidate(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, studentID); err != nil {
		s.logger.Warn("summary cache invalidate failed", zap.String("student_id", studentID), zap.Error(err))
	}
}

func (s *LedgerService) loadLedger(ctx context.Context, studentID string) (*models.Student, []models.Billing, []models.Payment, []models.Bursary, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	billings, err := s.billings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billings")
	}
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	bursaries, err := s.bursaries.List(ctx)
	if err != nil {
		return nil, nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bursaries")
	}
	return student, billings, payments, bursaries, nil
}
