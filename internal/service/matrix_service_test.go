package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

var defaultColumns = []string{"Tuition", "Boarding", "Transport", "Installment"}

func TestProjectMatrixBucketsBillings(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	billings := []models.Billing{
		billing("Year 1 Semester 1", "Tuition", "Tuition fees", 1_000_000),
		billing("Year 1 Semester 1", "Service", "Boarding full term", 400_000),
		billing("Year 1 Semester 1", "Misc", "ID card replacement", 5_000),
	}

	projection := ProjectMatrix(student, billings, nil, defaultColumns)
	require.Len(t, projection.Cells, 4)
	assert.Equal(t, int64(1_000_000), projection.Cells[0].Billed)
	assert.Equal(t, int64(400_000), projection.Cells[1].Billed)
	assert.Equal(t, int64(0), projection.Cells[2].Billed)
	// Unmatched billings simply fall outside the matrix.
	assert.Equal(t, int64(0), projection.Cells[3].Billed)
}

func TestProjectMatrixFirstColumnWins(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	b := billing("Year 1 Semester 1", "Tuition", "Boarding and tuition bundle", 500_000)

	projection := ProjectMatrix(student, []models.Billing{b}, nil, []string{"Tuition", "Boarding"})
	assert.Equal(t, int64(500_000), projection.Cells[0].Billed)
	assert.Equal(t, int64(0), projection.Cells[1].Billed)
}

func TestProjectMatrixAllocatedPayments(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	payments := []models.Payment{
		payment("Year 1 Semester 1", 600_000, map[string]int64{
			"Billed: Tuition":    400_000,
			"service: Transport": 200_000,
		}),
	}

	projection := ProjectMatrix(student, nil, payments, defaultColumns)
	assert.Equal(t, int64(400_000), projection.Cells[0].Paid)
	assert.Equal(t, int64(200_000), projection.Cells[2].Paid)
	assert.Equal(t, int64(0), projection.CreditPool)
}

func TestProjectMatrixUnallocatedPaymentByText(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	p := payment("Year 1 Semester 1", 300_000, nil)
	p.Particulars = "boarding for the term"

	projection := ProjectMatrix(student, nil, []models.Payment{p}, defaultColumns)
	assert.Equal(t, int64(300_000), projection.Cells[1].Paid)
	assert.Equal(t, int64(0), projection.CreditPool)
}

func TestProjectMatrixInstallmentColumn(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	first := payment("Year 1 Semester 1", 200_000, nil)
	first.Particulars = "2nd installment"
	second := payment("Year 1 Semester 1", 150_000, nil)
	second.Particulars = "instalment 3"

	projection := ProjectMatrix(student, nil, []models.Payment{first, second}, defaultColumns)
	assert.Equal(t, int64(350_000), projection.Cells[3].Paid)
}

func TestProjectMatrixCreditPoolCoversLeftToRight(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	billings := []models.Billing{
		billing("Year 1 Semester 1", "Tuition", "", 300_000),
		billing("Year 1 Semester 1", "Boarding", "", 200_000),
		billing("Year 1 Semester 1", "Transport", "", 200_000),
	}
	// Unattributable payment feeds the credit pool.
	p := payment("Year 1 Semester 1", 500_000, nil)
	p.Particulars = "mobile money deposit"

	projection := ProjectMatrix(student, billings, []models.Payment{p}, defaultColumns)

	// 500k pool: covers tuition (300k) then boarding (200k); transport's
	// deficit finds an empty pool.
	assert.True(t, projection.Cells[0].CoveredByCredit)
	assert.True(t, projection.Cells[1].CoveredByCredit)
	assert.False(t, projection.Cells[2].CoveredByCredit)
	assert.Equal(t, int64(0), projection.CreditPool)
}

func TestProjectMatrixPartialPoolSkipsUncoverableCell(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	billings := []models.Billing{
		billing("Year 1 Semester 1", "Tuition", "", 400_000),
		billing("Year 1 Semester 1", "Boarding", "", 100_000),
	}
	p := payment("Year 1 Semester 1", 150_000, nil)
	p.Particulars = "cash deposit"

	projection := ProjectMatrix(student, billings, []models.Payment{p}, defaultColumns)
	// Pool cannot cover tuition's 400k deficit but can cover boarding's 100k.
	assert.False(t, projection.Cells[0].CoveredByCredit)
	assert.True(t, projection.Cells[1].CoveredByCredit)
	assert.Equal(t, int64(50_000), projection.CreditPool)
}

func TestProjectMatrixEmptyColumns(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	projection := ProjectMatrix(student, nil, nil, nil)
	assert.Empty(t, projection.Cells)
	assert.Equal(t, int64(0), projection.CreditPool)
}

func TestProjectMatrixIgnoresVoidedAndForeign(t *testing.T) {
	student := testStudent("Year 1 Semester 1")
	voided := billing("Year 1 Semester 1", "Tuition", "", 100_000)
	voided.Voided = true
	foreign := billing("Year 1 Semester 1", "Tuition", "", 100_000)
	foreign.StudentID = "stu-2"

	projection := ProjectMatrix(student, []models.Billing{voided, foreign}, nil, defaultColumns)
	assert.Equal(t, int64(0), projection.Cells[0].Billed)
}

func TestMatrixServiceUsesConfiguredDefaults(t *testing.T) {
	students := &mockLedgerStudents{students: map[string]models.Student{"stu-1": testStudent("Year 1 Semester 1")}}
	billings := &mockBillings{billings: []models.Billing{billing("Year 1 Semester 1", "Tuition", "", 800_000)}}
	svc := NewMatrixService(students, billings, &mockPayments{}, defaultColumns, zap.NewNop())

	projection, err := svc.Project(context.Background(), "stu-1", nil)
	require.NoError(t, err)
	require.Len(t, projection.Cells, len(defaultColumns))
	assert.Equal(t, int64(800_000), projection.Cells[0].Billed)

	narrowed, err := svc.Project(context.Background(), "stu-1", []string{"Tuition"})
	require.NoError(t, err)
	require.Len(t, narrowed.Cells, 1)
}

func TestMatrixServiceUnknownStudent(t *testing.T) {
	svc := NewMatrixService(&mockLedgerStudents{}, &mockBillings{}, &mockPayments{}, defaultColumns, zap.NewNop())
	_, err := svc.Project(context.Background(), "missing", nil)
	require.Error(t, err)
}
