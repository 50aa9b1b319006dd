package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

func summaryWithPct(paid, target int64) models.FinancialSummary {
	return models.FinancialSummary{Mode: models.LedgerFull, ClearancePaid: paid, ClearanceTarget: target}
}

func TestDetermineStatusPercentageBands(t *testing.T) {
	student := testStudent("Year 1 Semester 1")

	assert.Equal(t, models.StatusClearance, DetermineStatus(student, summaryWithPct(1_000_000, 1_000_000), nil, nil, 100, 80))
	assert.Equal(t, models.StatusProbation, DetermineStatus(student, summaryWithPct(800_000, 1_000_000), nil, nil, 100, 80))
	assert.Equal(t, models.StatusDefaulter, DetermineStatus(student, summaryWithPct(799_999, 1_000_000), nil, nil, 100, 80))
}

func TestDetermineStatusEmptyLedgerClears(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	assert.Equal(t, models.StatusClearance, DetermineStatus(student, summaryWithPct(0, 0), nil, nil, 100, 80))
}

func TestDetermineStatusOverrideWins(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	pinned := models.StatusClearance
	student.AccountStatus = &pinned

	// Zero percent paid, yet the override stands.
	assert.Equal(t, models.StatusClearance, DetermineStatus(student, summaryWithPct(0, 1_000_000), nil, nil, 100, 80))

	student.AccountStatus = nil
	assert.Equal(t, models.StatusDefaulter, DetermineStatus(student, summaryWithPct(0, 1_000_000), nil, nil, 100, 80))
}

func TestDetermineStatusPhysicalFeeForcesDefaulter(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	student.Requirements = []models.PhysicalRequirement{
		{StudentID: student.ID, Name: "Uniform", Required: 2, Brought: 1},
	}
	fees := []models.CompulsoryFee{
		{ID: "fee-1", Name: "Uniform", Category: models.FeePhysical, RequirementType: models.RequirementClearance},
	}

	// Fully paid up, still a defaulter over the missing uniform.
	assert.Equal(t, models.StatusDefaulter, DetermineStatus(student, summaryWithPct(1_000_000, 1_000_000), nil, fees, 100, 80))

	student.Requirements[0].Brought = 2
	assert.Equal(t, models.StatusClearance, DetermineStatus(student, summaryWithPct(1_000_000, 1_000_000), nil, fees, 100, 80))
}

func TestDetermineStatusPhysicalFeeUntrackedPasses(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	fees := []models.CompulsoryFee{
		{ID: "fee-1", Name: "Uniform", Category: models.FeePhysical},
	}
	assert.Equal(t, models.StatusClearance, DetermineStatus(student, summaryWithPct(1_000_000, 1_000_000), nil, fees, 100, 80))
}

func TestDetermineStatusMonetaryFee(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	fees := []models.CompulsoryFee{
		{ID: "fee-1", Name: "Development Levy", Amount: 50_000, Category: models.FeeMonetary},
	}

	payments := []models.Payment{
		payment("Year 1 Semester 1", 40_000, map[string]int64{"Development Levy": 40_000}),
	}
	assert.Equal(t, models.StatusDefaulter, DetermineStatus(student, summaryWithPct(1_000_000, 1_000_000), payments, fees, 100, 80))

	payments = append(payments, payment("Year 1 Semester 1", 10_000, map[string]int64{"development levy": 10_000}))
	assert.Equal(t, models.StatusClearance, DetermineStatus(student, summaryWithPct(1_000_000, 1_000_000), payments, fees, 100, 80))
}

func TestDetermineStatusMonetaryFeeParticularsFallback(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	fees := []models.CompulsoryFee{
		{ID: "fee-1", Name: "Development Levy", Amount: 50_000, Category: models.FeeMonetary},
	}
	legacy := payment("Year 1 Semester 1", 50_000, nil)
	legacy.Particulars = "development levy for term"
	assert.Equal(t, models.StatusClearance, DetermineStatus(student, summaryWithPct(1_000_000, 1_000_000), []models.Payment{legacy}, fees, 100, 80))
}

func TestDetermineStatusProbationAboveClearanceLeavesNoBand(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	// probationPct 90 > clearancePct 80: 85% clears, 89% clears, 70% defaults.
	assert.Equal(t, models.StatusClearance, DetermineStatus(student, summaryWithPct(850_000, 1_000_000), nil, nil, 80, 90))
	assert.Equal(t, models.StatusDefaulter, DetermineStatus(student, summaryWithPct(700_000, 1_000_000), nil, nil, 80, 90))
}

type mockStatusStudents struct {
	students  map[string]models.Student
	statuses  map[string]*models.AccountStatus
	clearance []models.ClearanceEntry
}

func newMockStatusStudents(students ...models.Student) *mockStatusStudents {
	m := &mockStatusStudents{students: map[string]models.Student{}, statuses: map[string]*models.AccountStatus{}}
	for _, s := range students {
		m.students[s.ID] = s
	}
	return m
}

func (m *mockStatusStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if status, ok := m.statuses[id]; ok {
		s.AccountStatus = status
	}
	return &s, nil
}

func (m *mockStatusStudents) ListActiveIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.students))
	for id := range m.students {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockStatusStudents) SetAccountStatus(ctx context.Context, id string, status *models.AccountStatus) error {
	m.statuses[id] = status
	return nil
}

func (m *mockStatusStudents) AppendClearanceEntry(ctx context.Context, entry *models.ClearanceEntry) error {
	m.clearance = append(m.clearance, *entry)
	return nil
}

func (m *mockStatusStudents) UpsertRequirement(ctx context.Context, req *models.PhysicalRequirement) error {
	s := m.students[req.StudentID]
	for i := range s.Requirements {
		if s.Requirements[i].Name == req.Name {
			s.Requirements[i] = *req
			m.students[req.StudentID] = s
			return nil
		}
	}
	s.Requirements = append(s.Requirements, *req)
	m.students[req.StudentID] = s
	return nil
}

type mockFees struct {
	fees []models.CompulsoryFee
}

func (m *mockFees) List(ctx context.Context) ([]models.CompulsoryFee, error) {
	return m.fees, nil
}

func newTestStatusService(students *mockStatusStudents, billings *mockBillings, payments *mockPayments, fees *mockFees) *StatusService {
	ledgerStudents := &mockLedgerStudents{students: students.students}
	ledger := NewLedgerService(ledgerStudents, billings, payments, &mockBursaries{}, nil, nil, zap.NewNop())
	return NewStatusService(students, payments, fees, ledger, StatusThresholds{ClearancePct: 100, ProbationPct: 80}, nil, nil, zap.NewNop())
}

func TestStatusServiceOverrideLifecycle(t *testing.T) {
	students := newMockStatusStudents(testStudent("Year 1 Semester 1"))
	billings := &mockBillings{billings: []models.Billing{billing("Year 1 Semester 1", "Tuition", "", 1_000_000)}}
	svc := newTestStatusService(students, billings, &mockPayments{}, &mockFees{})

	before, err := svc.Status(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDefaulter, before.Status)
	assert.False(t, before.Overridden)

	after, err := svc.Override(context.Background(), "stu-1", OverrideStatusRequest{Status: models.StatusClearance, Reason: "cheque in transit"}, "bursar@school.test")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClearance, after.Status)
	assert.True(t, after.Overridden)
	require.Len(t, students.clearance, 1)
	assert.Equal(t, "cheque in transit", students.clearance[0].Reason)
	assert.Equal(t, "bursar@school.test", students.clearance[0].Actor)

	cleared, err := svc.ClearOverride(context.Background(), "stu-1", "", "bursar@school.test")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDefaulter, cleared.Status)
	assert.False(t, cleared.Overridden)
	require.Len(t, students.clearance, 2)
	assert.Equal(t, "manual override cleared", students.clearance[1].Reason)
}

func TestStatusServiceOverrideRejectsUnknownStatus(t *testing.T) {
	students := newMockStatusStudents(testStudent("Year 1 Semester 1"))
	svc := newTestStatusService(students, &mockBillings{}, &mockPayments{}, &mockFees{})

	_, err := svc.Override(context.Background(), "stu-1", OverrideStatusRequest{Status: "expelled", Reason: "x"}, "bursar@school.test")
	require.Error(t, err)
	assert.Empty(t, students.clearance)
}

func TestStatusServiceRecordRequirementFeedsPhysicalGate(t *testing.T) {
	students := newMockStatusStudents(testStudent("Year 1 Semester 1"))
	billings := &mockBillings{billings: []models.Billing{billing("Year 1 Semester 1", "Tuition", "", 1_000_000)}}
	payments := &mockPayments{payments: []models.Payment{payment("Year 1 Semester 1", 1_000_000, nil)}}
	fees := &mockFees{fees: []models.CompulsoryFee{
		{ID: "fee-1", Name: "Uniform", Category: models.FeePhysical, RequirementType: models.RequirementClearance},
	}}
	svc := newTestStatusService(students, billings, payments, fees)

	// Fully paid, but recording a short uniform count trips the mandatory gate.
	result, err := svc.RecordRequirement(context.Background(), "stu-1", RequirementRequest{Name: "Uniform", Required: 2, Brought: 1})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDefaulter, result.Status)

	result, err = svc.RecordRequirement(context.Background(), "stu-1", RequirementRequest{Name: "Uniform", Required: 2, Brought: 2})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClearance, result.Status)

	require.Len(t, students.students["stu-1"].Requirements, 1)
	assert.Equal(t, 2, students.students["stu-1"].Requirements[0].Brought)
}

func TestStatusServiceRecordRequirementValidates(t *testing.T) {
	students := newMockStatusStudents(testStudent("Year 1 Semester 1"))
	svc := newTestStatusService(students, &mockBillings{}, &mockPayments{}, &mockFees{})

	_, err := svc.RecordRequirement(context.Background(), "stu-1", RequirementRequest{Name: "", Required: 2, Brought: 1})
	require.Error(t, err)
	assert.Empty(t, students.students["stu-1"].Requirements)
}

func TestStatusServiceRecategorizeReplacesOverride(t *testing.T) {
	students := newMockStatusStudents(testStudent("Year 1 Semester 1"))
	pinned := models.StatusClearance
	students.statuses["stu-1"] = &pinned
	billings := &mockBillings{billings: []models.Billing{billing("Year 1 Semester 1", "Tuition", "", 1_000_000)}}
	svc := newTestStatusService(students, billings, &mockPayments{}, &mockFees{})

	err := svc.recategorizeOne(context.Background(), "stu-1", "system")
	require.NoError(t, err)

	require.NotNil(t, students.statuses["stu-1"])
	assert.Equal(t, models.StatusDefaulter, *students.statuses["stu-1"])
	require.Len(t, students.clearance, 1)
	assert.Equal(t, "bulk recategorisation", students.clearance[0].Reason)
}
