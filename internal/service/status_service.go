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
	"github.com/noah-isme/sma-finance-api/pkg/jobs"
)

// DetermineStatus derives the clearance standing for one student.
//
// A manual account status always wins: overrides are set deliberately by the
// bursar and are never silently recomputed away. Otherwise every configured
// compulsory fee is checked first; a single unsatisfied fee forces defaulter
// regardless of how much of the clearance target was paid. Only then does the
// percentage band apply. probationPct above clearancePct is legal and simply
// leaves no probation band.
func DetermineStatus(student models.Student, summary models.FinancialSummary, payments []models.Payment, fees []models.CompulsoryFee, clearancePct, probationPct int) models.AccountStatus {
	if student.AccountStatus != nil {
		return *student.AccountStatus
	}

	for _, fee := range fees {
		if !feeSatisfied(student, payments, fee) {
			return models.StatusDefaulter
		}
	}

	pct := summary.ClearancePercent()
	if pct < float64(probationPct) {
		return models.StatusDefaulter
	}
	if pct >= float64(clearancePct) {
		return models.StatusClearance
	}
	return models.StatusProbation
}

func feeSatisfied(student models.Student, payments []models.Payment, fee models.CompulsoryFee) bool {
	switch fee.Category {
	case models.FeePhysical:
		// No tracked requirement list means nothing to enforce.
		for _, req := range student.Requirements {
			if KeysMatch(req.Name, fee.Name) && req.Brought < req.Required {
				return false
			}
		}
		return true
	default:
		return monetaryPaid(student, payments, fee.Name) >= fee.Amount
	}
}

// monetaryPaid totals the amounts identifiably paid toward a fee name:
// allocation entries match by key, unallocated payments fall back to a
// substring match against their free-text particulars.
func monetaryPaid(student models.Student, payments []models.Payment, feeName string) int64 {
	var total int64
	for _, p := range payments {
		if p.StudentID != student.ID {
			continue
		}
		if len(p.Allocations) > 0 {
			for key, amount := range p.Allocations {
				if KeysMatch(key, feeName) {
					total += amount
				}
			}
			continue
		}
		if KeysMatch(p.Particulars, feeName) {
			total += p.Amount
		}
	}
	return total
}

type statusStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
	SetAccountStatus(ctx context.Context, id string, status *models.AccountStatus) error
	AppendClearanceEntry(ctx context.Context, entry *models.ClearanceEntry) error
	UpsertRequirement(ctx context.Context, req *models.PhysicalRequirement) error
}

type feeReader interface {
	List(ctx context.Context) ([]models.CompulsoryFee, error)
}

// StatusThresholds carries the externally owned percentage configuration.
type StatusThresholds struct {
	ClearancePct int
	ProbationPct int
}

// OverrideStatusRequest pins a manual account status.
type OverrideStatusRequest struct {
	Status models.AccountStatus `json:"status" validate:"required,oneof=clearance probation defaulter"`
	Reason string               `json:"reason" validate:"required"`
}

// RecategorizeRequest triggers a bulk recomputation. Empty IDs means every
// active student.
type RecategorizeRequest struct {
	StudentIDs []string `json:"student_ids"`
}

// RequirementRequest records how many units of an in-kind compulsory item a
// student has brought against the number required.
type RequirementRequest struct {
	Name     string `json:"name" validate:"required"`
	Required int    `json:"required" validate:"min=0"`
	Brought  int    `json:"brought" validate:"min=0"`
}

// StatusResult is the evaluated standing returned to callers.
type StatusResult struct {
	StudentID  string                  `json:"student_id"`
	Status     models.AccountStatus    `json:"status"`
	Percent    float64                 `json:"percent"`
	Overridden bool                    `json:"overridden"`
	Summary    models.FinancialSummary `json:"summary"`
}

type recategorizePayload struct {
	StudentIDs []string
	Actor      string
}

// StatusService evaluates, overrides and bulk-recategorises account statuses.
type StatusService struct {
	students   statusStudentRepository
	payments   paymentReader
	fees       feeReader
	ledger     *LedgerService
	thresholds StatusThresholds
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
	queue      *jobs.Queue
}

// NewStatusService constructs a StatusService and its recategorisation queue.
func NewStatusService(students statusStudentRepository, payments paymentReader, fees feeReader, ledger *LedgerService, thresholds StatusThresholds, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *StatusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatusService{
		students:   students,
		payments:   payments,
		fees:       fees,
		ledger:     ledger,
		thresholds: thresholds,
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
	}
	s.queue = jobs.NewQueue("recategorize", s.processRecategorize, jobs.QueueConfig{Workers: 1, Logger: logger})
	return s
}

// StartJobs begins background processing of bulk recategorisation.
func (s *StatusService) StartJobs(ctx context.Context) { s.queue.Start(ctx) }

// StopJobs drains the recategorisation workers.
func (s *StatusService) StopJobs() { s.queue.Stop() }

// Status evaluates the standing of one student.
func (s *StatusService) Status(ctx context.Context, studentID string) (*StatusResult, error) {
	student, payments, fees, summary, err := s.loadEvaluation(ctx, studentID)
	if err != nil {
		return nil, err
	}
	status := DetermineStatus(*student, *summary, payments, fees, s.thresholds.ClearancePct, s.thresholds.ProbationPct)
	s.metrics.RecordStatusEvaluation(string(status))
	return &StatusResult{
		StudentID:  studentID,
		Status:     status,
		Percent:    summary.ClearancePercent(),
		Overridden: student.AccountStatus != nil,
		Summary:    *summary,
	}, nil
}

// Override pins a manual account status and appends the audit history entry,
// replacing any prior override.
func (s *StatusService) Override(ctx context.Context, studentID string, req OverrideStatusRequest, actor string) (*StatusResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if _, err := s.findStudent(ctx, studentID); err != nil {
		return nil, err
	}
	entry := &models.ClearanceEntry{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Date:      time.Now().UTC(),
		Status:    req.Status,
		Reason:    req.Reason,
		Actor:     actor,
	}
	if err := s.students.AppendClearanceEntry(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record clearance entry")
	}
	status := req.Status
	if err := s.students.SetAccountStatus(ctx, studentID, &status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set account status")
	}
	return s.Status(ctx, studentID)
}

// ClearOverride removes a manual account status so evaluation resumes.
func (s *StatusService) ClearOverride(ctx context.Context, studentID, reason, actor string) (*StatusResult, error) {
	student, err := s.findStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.AccountStatus == nil {
		return s.Status(ctx, studentID)
	}
	if err := s.students.SetAccountStatus(ctx, studentID, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear account status")
	}
	result, err := s.Status(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "manual override cleared"
	}
	entry := &models.ClearanceEntry{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Date:      time.Now().UTC(),
		Status:    result.Status,
		Reason:    reason,
		Actor:     actor,
	}
	if err := s.students.AppendClearanceEntry(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record clearance entry")
	}
	return result, nil
}

// RecordRequirement upserts the brought/required counts for one physical
// requirement and returns the freshly evaluated standing, so the caller sees
// immediately whether the item cleared the mandatory-fee gate.
func (s *StatusService) RecordRequirement(ctx context.Context, studentID string, req RequirementRequest) (*StatusResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	if _, err := s.findStudent(ctx, studentID); err != nil {
		return nil, err
	}
	requirement := &models.PhysicalRequirement{
		StudentID: studentID,
		Name:      req.Name,
		Required:  req.Required,
		Brought:   req.Brought,
	}
	if err := s.students.UpsertRequirement(ctx, requirement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record requirement")
	}
	return s.Status(ctx, studentID)
}

// Recategorize queues a bulk recomputation that replaces manual overrides with
// freshly evaluated statuses, one history entry per student.
func (s *StatusService) Recategorize(ctx context.Context, req RecategorizeRequest, actor string) (int, error) {
	ids := req.StudentIDs
	if len(ids) == 0 {
		all, err := s.students.ListActiveIDs(ctx)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
		}
		ids = all
	}
	if len(ids) == 0 {
		return 0, nil
	}
	job := jobs.Job{ID: uuid.NewString(), Type: "recategorize", Payload: recategorizePayload{StudentIDs: ids, Actor: actor}}
	if err := s.queue.Enqueue(job); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue recategorisation")
	}
	return len(ids), nil
}

func (s *StatusService) processRecategorize(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(recategorizePayload)
	if !ok {
		s.logger.Error("unexpected recategorize payload", zap.String("job_id", job.ID))
		return nil
	}
	for _, id := range payload.StudentIDs {
		if err := s.recategorizeOne(ctx, id, payload.Actor); err != nil {
			s.logger.Warn("recategorisation failed", zap.String("student_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *StatusService) recategorizeOne(ctx context.Context, studentID, actor string) error {
	student, payments, fees, summary, err := s.loadEvaluation(ctx, studentID)
	if err != nil {
		return err
	}
	// Evaluate with the prior override out of the way: recategorisation
	// replaces it rather than echoing it back.
	fresh := *student
	fresh.AccountStatus = nil
	status := DetermineStatus(fresh, *summary, payments, fees, s.thresholds.ClearancePct, s.thresholds.ProbationPct)
	entry := &models.ClearanceEntry{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Date:      time.Now().UTC(),
		Status:    status,
		Reason:    "bulk recategorisation",
		Actor:     actor,
	}
	if err := s.students.AppendClearanceEntry(ctx, entry); err != nil {
		return err
	}
	return s.students.SetAccountStatus(ctx, studentID, &status)
}

func (s *StatusService) loadEvaluation(ctx context.Context, studentID string) (*models.Student, []models.Payment, []models.CompulsoryFee, *models.FinancialSummary, error) {
	student, err := s.findStudent(ctx, studentID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	summary, err := s.ledger.Summary(ctx, studentID, false)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	fees, err := s.fees.List(ctx)
	if err != nil {
		return nil, nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load compulsory fees")
	}
	return student, payments, fees, summary, nil
}

func (s *StatusService) findStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}
