package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-finance-api/internal/models"
	appErrors "github.com/noah-isme/sma-finance-api/pkg/errors"
)

// Promotion is a stack discipline, not a general undo log: each promotion
// pushes exactly one snapshot, and only the most recent snapshot can be
// reversed. Both transitions are expressed as pure functions over an
// in-memory student so invalid transitions are no-op results, never errors
// and never partial state.

// TransitionResult reports whether a promote/reverse was applied.
type TransitionResult struct {
	StudentID string                 `json:"student_id"`
	Applied   bool                   `json:"applied"`
	Reason    string                 `json:"reason,omitempty"`
	Entry     *models.PromotionEntry `json:"entry,omitempty"`
	Student   *models.Student        `json:"student,omitempty"`
}

// Promote advances a student to nextTerm, pushing a history snapshot carrying
// the outstanding balance forward as the new term's arrears.
func Promote(student models.Student, outstanding int64, nextTerm string, now time.Time) (models.Student, TransitionResult) {
	if nextTerm == "" || TermsEqual(nextTerm, student.Term) {
		return student, TransitionResult{StudentID: student.ID, Applied: false, Reason: "next term must differ from current term"}
	}

	entry := models.PromotionEntry{
		ID:              uuid.NewString(),
		StudentID:       student.ID,
		Date:            now,
		FromTerm:        student.Term,
		ToTerm:          nextTerm,
		PreviousBalance: outstanding,
	}
	student.PromotionHistory = append([]models.PromotionEntry{entry}, student.PromotionHistory...)
	student.PreviousBalance = outstanding
	student.Term = nextTerm
	student.UpdatedAt = now

	return student, TransitionResult{StudentID: student.ID, Applied: true, Entry: &entry}
}

// Reverse undoes the single most recent promotion, restoring term and balance
// from the popped snapshot. Reversing an empty history is an explicit no-op.
func Reverse(student models.Student, now time.Time) (models.Student, TransitionResult) {
	if len(student.PromotionHistory) == 0 {
		return student, TransitionResult{StudentID: student.ID, Applied: false, Reason: "nothing to reverse"}
	}

	popped := student.PromotionHistory[0]
	student.PromotionHistory = student.PromotionHistory[1:]
	student.Term = popped.FromTerm
	student.Balance = popped.PreviousBalance
	if len(student.PromotionHistory) > 0 {
		student.PreviousBalance = student.PromotionHistory[0].PreviousBalance
	} else {
		student.PreviousBalance = popped.PreviousBalance
	}
	student.UpdatedAt = now

	return student, TransitionResult{StudentID: student.ID, Applied: true, Entry: &popped}
}

// BillingIssuer is the external collaborator that raises the new term's fees
// after a promotion. Fee lookup and duplicate prevention live behind it.
type BillingIssuer interface {
	Issue(ctx context.Context, student models.Student, term string) ([]models.Billing, error)
}

type promotionStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateFinancials(ctx context.Context, student *models.Student) error
	PushPromotionEntry(ctx context.Context, entry *models.PromotionEntry) error
	PopPromotionEntry(ctx context.Context, entryID string) error
	SetPromotionNewBalance(ctx context.Context, entryID string, newBalance int64) error
}

type billingWriter interface {
	Create(ctx context.Context, billing *models.Billing) error
}

// PromoteRequest names the term a student is advanced to.
type PromoteRequest struct {
	NextTerm string `json:"next_term" validate:"required"`
}

// BulkReverseRequest lists students whose latest promotion is undone.
type BulkReverseRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1"`
}

// PromotionService runs term rollovers against persistent storage.
type PromotionService struct {
	students  promotionStudentRepository
	billings  billingWriter
	ledger    *LedgerService
	issuer    BillingIssuer
	ladder    []string
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewPromotionService constructs a PromotionService. ladder is the ordered
// programme level list used for terminal-term detection; issuer may be nil
// when billing issuance is handled out of band.
func NewPromotionService(students promotionStudentRepository, billings billingWriter, ledger *LedgerService, issuer BillingIssuer, ladder []string, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *PromotionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{students: students, billings: billings, ledger: ledger, issuer: issuer, ladder: ladder, validator: validate, metrics: metrics, logger: logger}
}

// Promote rolls a student into the next term: snapshot, arrears carry-over,
// term move, then billing issuance for the new term. The outstanding balance
// is recomputed from the ledger at promote time, never read from the cache
// columns.
func (s *PromotionService) Promote(ctx context.Context, studentID string, req PromoteRequest) (*TransitionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promote payload")
	}
	student, err := s.findStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if s.exceedsLadder(req.NextTerm) {
		s.metrics.RecordPromotion("noop")
		return &TransitionResult{StudentID: studentID, Applied: false, Reason: "next term is beyond the programme ladder; use graduate"}, nil
	}

	summary, err := s.ledger.Summary(ctx, studentID, true)
	if err != nil {
		return nil, err
	}

	updated, result := Promote(*student, summary.OutstandingBalance, req.NextTerm, time.Now().UTC())
	if !result.Applied {
		s.metrics.RecordPromotion("noop")
		return &result, nil
	}

	if err := s.students.PushPromotionEntry(ctx, result.Entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record promotion")
	}
	if err := s.students.UpdateFinancials(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	if err := s.issueBillings(ctx, updated, req.NextTerm); err != nil {
		s.logger.Warn("billing issuance failed after promotion", zap.String("student_id", studentID), zap.Error(err))
	}

	s.ledger.Invalidate(ctx, studentID)
	if fresh, err := s.ledger.Summary(ctx, studentID, true); err == nil {
		if err := s.students.SetPromotionNewBalance(ctx, result.Entry.ID, fresh.OutstandingBalance); err != nil {
			s.logger.Warn("failed to record post-promotion balance", zap.String("student_id", studentID), zap.Error(err))
		} else {
			result.Entry.NewBalance = fresh.OutstandingBalance
		}
	}

	s.metrics.RecordPromotion("promote")
	result.Student = &updated
	return &result, nil
}

// Reverse undoes the most recent promotion for one student.
func (s *PromotionService) Reverse(ctx context.Context, studentID string) (*TransitionResult, error) {
	student, err := s.findStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	updated, result := Reverse(*student, time.Now().UTC())
	if !result.Applied {
		s.metrics.RecordPromotion("noop")
		return &result, nil
	}

	if err := s.students.PopPromotionEntry(ctx, result.Entry.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to pop promotion entry")
	}
	if err := s.students.UpdateFinancials(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.ledger.Invalidate(ctx, studentID)
	s.metrics.RecordPromotion("reverse")
	result.Student = &updated
	return &result, nil
}

// BulkReverse applies Reverse independently per student: a failure or no-op
// for one student never rolls back or blocks the others.
func (s *PromotionService) BulkReverse(ctx context.Context, req BulkReverseRequest) ([]TransitionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk reverse payload")
	}
	results := make([]TransitionResult, 0, len(req.StudentIDs))
	for _, id := range req.StudentIDs {
		result, err := s.Reverse(ctx, id)
		if err != nil {
			results = append(results, TransitionResult{StudentID: id, Applied: false, Reason: appErrors.FromError(err).Message})
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// Graduate closes out a student at a terminal term instead of promoting.
func (s *PromotionService) Graduate(ctx context.Context, studentID string) (*TransitionResult, error) {
	student, err := s.findStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !s.isTerminal(student.Term) {
		return &TransitionResult{StudentID: studentID, Applied: false, Reason: "current term is not terminal"}, nil
	}
	updated := *student
	updated.Active = false
	updated.UpdatedAt = time.Now().UTC()
	if err := s.students.UpdateFinancials(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &TransitionResult{StudentID: studentID, Applied: true, Student: &updated}, nil
}

// ladderEnd parses the last rung of the configured programme ladder. The rung
// may be a full term ("Year 4 Semester 2") or level-only ("Year 4").
func (s *PromotionService) ladderEnd() (models.Term, bool) {
	if len(s.ladder) == 0 {
		return models.Term{}, false
	}
	last := ParseTerm(s.ladder[len(s.ladder)-1])
	return last, last.Valid
}

// exceedsLadder reports whether promoting into nextTerm would leave the
// programme ladder. A level-only final rung keeps every term within that
// level promotable; a full final rung permits promotion up to and including
// that exact term.
func (s *PromotionService) exceedsLadder(nextTerm string) bool {
	last, ok := s.ladderEnd()
	if !ok {
		return false
	}
	next := ParseTerm(nextTerm)
	if !next.Valid {
		return false
	}
	if last.Unit == models.PeriodNone {
		return next.Level > last.Level
	}
	return CompareParsed(next, last) > 0
}

// isTerminal reports whether the term sits at (or beyond) the last rung of
// the configured programme ladder, i.e. graduation is available. With a
// level-only final rung any term in that level qualifies.
func (s *PromotionService) isTerminal(term string) bool {
	last, ok := s.ladderEnd()
	if !ok {
		return false
	}
	current := ParseTerm(term)
	if !current.Valid {
		return false
	}
	if last.Unit == models.PeriodNone {
		return current.Level >= last.Level
	}
	return CompareParsed(current, last) >= 0
}

func (s *PromotionService) issueBillings(ctx context.Context, student models.Student, term string) error {
	if s.issuer == nil {
		return nil
	}
	issued, err := s.issuer.Issue(ctx, student, term)
	if err != nil {
		return err
	}
	for i := range issued {
		if err := s.billings.Create(ctx, &issued[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *PromotionService) findStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}
