package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

func testStudent(term string) models.Student {
	return models.Student{ID: "stu-1", AdmissionNo: "A-001", FullName: "Jane Doe", Term: term, Active: true}
}

func billing(term, typ, desc string, amount int64) models.Billing {
	return models.Billing{ID: typ + desc, StudentID: "stu-1", Term: term, Type: typ, Description: desc, Amount: amount, Date: time.Now()}
}

func payment(term string, amount int64, allocations map[string]int64) models.Payment {
	return models.Payment{ID: "pay", StudentID: "stu-1", Term: term, Amount: amount, Allocations: allocations, Date: time.Now()}
}

func TestSummarizeEmptyLedger(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	summary := Summarize(student, nil, nil, nil)

	assert.Equal(t, models.LedgerFull, summary.Mode)
	assert.Equal(t, int64(0), summary.OutstandingBalance)
	assert.Equal(t, int64(0), summary.ClearanceTarget)
	assert.Equal(t, float64(100), summary.ClearancePercent())
}

func TestSummarizeIsPure(t *testing.T) {
	student := testStudent("Year 2 Semester 1")
	student.PreviousBalance = 150_000
	billings := []models.Billing{billing("Year 2 Semester 1", "Tuition", "Tuition fees", 1_000_000)}
	payments := []models.Payment{payment("Year 2 Semester 1", 400_000, map[string]int64{"Tuition": 400_000})}

	first := Summarize(student, billings, payments, nil)
	second := Summarize(student, billings, payments, nil)
	assert.Equal(t, first, second)
}

func TestSummarizeFullLedgerMode(t *testing.T) {
	student := testStudent("Year 2 Semester 1")
	billings := []models.Billing{
		billing("Year 1 Semester 1", "Tuition", "", 500_000),
		billing("Year 2 Semester 1", "Tuition", "", 1_000_000),
	}
	payments := []models.Payment{
		payment("Year 1 Semester 1", 500_000, nil),
		payment("Year 2 Semester 1", 200_000, nil),
	}

	summary := Summarize(student, billings, payments, nil)
	assert.Equal(t, models.LedgerFull, summary.Mode)
	assert.Equal(t, int64(1_500_000), summary.TotalBilled)
	assert.Equal(t, int64(700_000), summary.TotalPayments)
	assert.Equal(t, int64(800_000), summary.OutstandingBalance)
	assert.Equal(t, int64(0), summary.ManualArrears)
}

func TestSummarizeHybridMode(t *testing.T) {
	student := testStudent("Year 2 Semester 1")
	student.PreviousBalance = 300_000
	billings := []models.Billing{
		billing("Year 1 Semester 1", "Tuition", "", 500_000), // earlier term, excluded
		billing("Year 2 Semester 1", "Tuition", "", 1_000_000),
	}
	payments := []models.Payment{
		payment("Year 1 Semester 1", 500_000, nil), // earlier term, excluded
		payment("Year 2 Semester 1", 400_000, nil),
	}

	summary := Summarize(student, billings, payments, nil)
	assert.Equal(t, models.LedgerHybrid, summary.Mode)
	assert.Equal(t, int64(300_000), summary.ManualArrears)
	assert.Equal(t, int64(1_300_000), summary.TotalBilled)
	assert.Equal(t, int64(400_000), summary.TotalPayments)
	assert.Equal(t, int64(900_000), summary.OutstandingBalance)
	assert.Equal(t, int64(1_300_000), summary.ClearanceTarget)
}

func TestSummarizeExplicitBroughtForwardMode(t *testing.T) {
	student := testStudent("Year 2 Semester 1")
	// Manual arrears must be ignored when the ledger carries its own BF line.
	student.PreviousBalance = 999_999
	billings := []models.Billing{
		billing("Year 2 Semester 1", "Adjustment", "Brought Forward balance", 300_000),
		billing("Year 2 Semester 1", "Tuition", "", 1_000_000),
	}
	payments := []models.Payment{payment("Year 2 Semester 1", 500_000, nil)}

	summary := Summarize(student, billings, payments, nil)
	assert.Equal(t, models.LedgerExplicitBF, summary.Mode)
	assert.Equal(t, int64(0), summary.ManualArrears)
	assert.Equal(t, int64(1_300_000), summary.TotalBilled)
	assert.Equal(t, int64(800_000), summary.OutstandingBalance)
}

func TestSummarizeExplicitBFFlagWithoutText(t *testing.T) {
	student := testStudent("Year 2 Semester 1")
	bf := billing("Year 2 Semester 1", "Adjustment", "Opening balance", 200_000)
	bf.IsBroughtForward = true
	billings := []models.Billing{bf}

	summary := Summarize(student, billings, nil, nil)
	assert.Equal(t, models.LedgerExplicitBF, summary.Mode)
}

func TestSummarizePromotionSnapshotBeatsManualArrears(t *testing.T) {
	student := testStudent("Year 2 Semester 1")
	student.PreviousBalance = 999_999
	student.PromotionHistory = []models.PromotionEntry{
		{StudentID: "stu-1", FromTerm: "Year 1 Semester 2", ToTerm: "Year 2 Semester 1", PreviousBalance: 250_000},
	}

	summary := Summarize(student, nil, nil, nil)
	assert.Equal(t, models.LedgerHybrid, summary.Mode)
	assert.Equal(t, int64(250_000), summary.ManualArrears)
}

func TestSummarizeUntaggedRecordsStayVisible(t *testing.T) {
	student := testStudent("Year 2 Semester 1")
	student.PreviousBalance = 100_000
	billings := []models.Billing{
		billing("", "Tuition", "", 1_000_000),        // untagged counts as current
		billing("???", "Library", "Library", 50_000), // unparseable compares equal
	}

	summary := Summarize(student, billings, nil, nil)
	assert.Equal(t, int64(1_000_000), summary.TuitionBilled)
	assert.Equal(t, int64(1_150_000), summary.TotalBilled)
}

func TestSummarizeVoidedBillingsExcluded(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	voided := billing("Year 1 Semester 1", "Tuition", "", 1_000_000)
	voided.Voided = true
	summary := Summarize(student, []models.Billing{voided}, nil, nil)
	assert.Equal(t, int64(0), summary.TotalBilled)
}

func TestSummarizeClearancePaidAllocationAsymmetry(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	billings := []models.Billing{billing("Year 1 Semester 1", "Tuition", "", 1_000_000)}
	payments := []models.Payment{
		// Allocated: only tuition/arrears keys count.
		payment("Year 1 Semester 1", 500_000, map[string]int64{"Billed: Tuition": 300_000, "service: Transport": 200_000}),
		// Legacy unallocated: the whole amount counts.
		payment("Year 1 Semester 1", 250_000, nil),
	}

	summary := Summarize(student, billings, payments, nil)
	assert.Equal(t, int64(550_000), summary.ClearancePaid)
	assert.Equal(t, int64(750_000), summary.TotalPayments)
}

func TestSummarizeBursaryDiscount(t *testing.T) {
	bursaryID := "bur-1"
	student := testStudent("Year 1 Semester 1")
	student.BursaryID = &bursaryID
	billings := []models.Billing{billing("Year 1 Semester 1", "Tuition", "", 1_000_000)}
	payments := []models.Payment{payment("Year 1 Semester 1", 700_000, nil)}
	bursaries := []models.Bursary{{ID: "bur-1", Name: "Needy Fund", FixedValue: 300_000}}

	summary := Summarize(student, billings, payments, bursaries)
	assert.Equal(t, int64(700_000), summary.ClearanceTarget)
	assert.Equal(t, int64(700_000), summary.ClearancePaid)
	assert.Equal(t, float64(100), summary.ClearancePercent())
	assert.Equal(t, int64(0), summary.OutstandingBalance)
}

func TestSummarizeNegativeTargetNotClamped(t *testing.T) {
	bursaryID := "bur-1"
	student := testStudent("Year 1 Semester 1")
	student.BursaryID = &bursaryID
	billings := []models.Billing{billing("Year 1 Semester 1", "Tuition", "", 100_000)}
	bursaries := []models.Bursary{{ID: "bur-1", Name: "Full Bursary", FixedValue: 500_000}}

	summary := Summarize(student, billings, nil, bursaries)
	assert.Equal(t, int64(-400_000), summary.TotalBilled)
	assert.Equal(t, int64(-400_000), summary.ClearanceTarget)
	// Clamping happens only at percentage conversion.
	assert.Equal(t, float64(100), summary.ClearancePercent())
}

func TestSummarizeIgnoresOtherStudents(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	other := billing("Year 1 Semester 1", "Tuition", "", 1_000_000)
	other.StudentID = "stu-2"
	summary := Summarize(student, []models.Billing{other}, nil, nil)
	assert.Equal(t, int64(0), summary.TotalBilled)
}

type mockLedgerStudents struct {
	students map[string]models.Student
}

func (m *mockLedgerStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockBillings struct {
	billings []models.Billing
	created  []models.Billing
}

func (m *mockBillings) ListByStudent(ctx context.Context, studentID string) ([]models.Billing, error) {
	var out []models.Billing
	for _, b := range m.billings {
		if b.StudentID == studentID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBillings) Create(ctx context.Context, b *models.Billing) error {
	m.billings = append(m.billings, *b)
	m.created = append(m.created, *b)
	return nil
}

type mockPayments struct {
	payments []models.Payment
}

func (m *mockPayments) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range m.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockBursaries struct {
	bursaries []models.Bursary
}

func (m *mockBursaries) List(ctx context.Context) ([]models.Bursary, error) {
	return m.bursaries, nil
}

type mockSummaryCache struct {
	entries     map[string]models.FinancialSummary
	gets        int
	sets        int
	invalidated []string
}

func (m *mockSummaryCache) Get(ctx context.Context, studentID string) (*models.FinancialSummary, error) {
	m.gets++
	if s, ok := m.entries[studentID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *mockSummaryCache) Set(ctx context.Context, studentID string, summary models.FinancialSummary) error {
	if m.entries == nil {
		m.entries = make(map[string]models.FinancialSummary)
	}
	m.entries[studentID] = summary
	m.sets++
	return nil
}

func (m *mockSummaryCache) Invalidate(ctx context.Context, studentID string) error {
	delete(m.entries, studentID)
	m.invalidated = append(m.invalidated, studentID)
	return nil
}

func newTestLedgerService(students *mockLedgerStudents, billings *mockBillings, payments *mockPayments, cache *mockSummaryCache) *LedgerService {
	var c summaryCache
	if cache != nil {
		c = cache
	}
	return NewLedgerService(students, billings, payments, &mockBursaries{}, c, nil, zap.NewNop())
}

func TestLedgerServiceSummaryCaches(t *testing.T) {
	students := &mockLedgerStudents{students: map[string]models.Student{"stu-1": testStudent("Year 1 Semester 1")}}
	billings := &mockBillings{billings: []models.Billing{billing("Year 1 Semester 1", "Tuition", "", 1_000_000)}}
	payments := &mockPayments{}
	cache := &mockSummaryCache{}
	svc := newTestLedgerService(students, billings, payments, cache)

	first, err := svc.Summary(context.Background(), "stu-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Summary(context.Background(), "stu-1", false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets, "second read must come from cache")

	_, err = svc.Summary(context.Background(), "stu-1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets, "refresh bypasses the cache")
}

func TestLedgerServiceSummaryUnknownStudent(t *testing.T) {
	svc := newTestLedgerService(&mockLedgerStudents{}, &mockBillings{}, &mockPayments{}, nil)
	_, err := svc.Summary(context.Background(), "missing", false)
	require.Error(t, err)
}
