package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-finance-api/internal/models"
	appErrors "github.com/noah-isme/sma-finance-api/pkg/errors"
	"github.com/noah-isme/sma-finance-api/pkg/export"
)

// StatementService renders a student's ledger and summary as a downloadable
// statement. It sits outside the reconciliation core: it only formats what
// Summarize computed.
type StatementService struct {
	students ledgerStudentReader
	billings billingReader
	payments paymentReader
	ledger   *LedgerService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewStatementService constructs a StatementService.
func NewStatementService(students ledgerStudentReader, billings billingReader, payments paymentReader, ledger *LedgerService, logger *zap.Logger) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementService{
		students: students,
		billings: billings,
		payments: payments,
		ledger:   ledger,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

var statementHeaders = []string{"Date", "Term", "Particulars", "Debit", "Credit"}

// Render produces the statement in the requested format ("csv" or "pdf"),
// returning the bytes, content type and a suggested file name.
func (s *StatementService) Render(ctx context.Context, studentID, format string) ([]byte, string, string, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	summary, err := s.ledger.Summary(ctx, studentID, false)
	if err != nil {
		return nil, "", "", err
	}
	billings, err := s.billings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billings")
	}
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	data := buildStatement(*student, *summary, billings, payments)
	title := statementTitle(*student)

	switch format {
	case "pdf":
		body, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf statement")
		}
		return body, "application/pdf", fmt.Sprintf("statement-%s.pdf", student.AdmissionNo), nil
	default:
		body, err := s.csv.Render(data)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv statement")
		}
		return body, "text/csv", fmt.Sprintf("statement-%s.csv", student.AdmissionNo), nil
	}
}

// statementTitle stays within cp1252: gofpdf's default encoding mangles
// characters outside it, so the title uses a plain hyphen.
func statementTitle(student models.Student) string {
	return fmt.Sprintf("Fee statement - %s (%s)", student.FullName, student.AdmissionNo)
}

type statementLine struct {
	date        time.Time
	term        string
	particulars string
	debit       int64
	credit      int64
}

func buildStatement(student models.Student, summary models.FinancialSummary, billings []models.Billing, payments []models.Payment) export.Dataset {
	lines := make([]statementLine, 0, len(billings)+len(payments))
	for _, b := range billings {
		if b.StudentID != student.ID || b.Voided {
			continue
		}
		particulars := b.Description
		if particulars == "" {
			particulars = b.Type
		}
		lines = append(lines, statementLine{date: b.Date, term: b.Term, particulars: particulars, debit: b.Amount})
	}
	for _, p := range payments {
		if p.StudentID != student.ID {
			continue
		}
		particulars := p.Particulars
		if particulars == "" {
			particulars = fmt.Sprintf("Payment (%s)", p.Method)
		}
		lines = append(lines, statementLine{date: p.Date, term: p.Term, particulars: particulars, credit: p.Amount})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].date.Before(lines[j].date) })

	rows := make([]map[string]string, 0, len(lines)+3)
	for _, line := range lines {
		rows = append(rows, map[string]string{
			"Date":        line.date.Format("2006-01-02"),
			"Term":        line.term,
			"Particulars": line.particulars,
			"Debit":       formatAmount(line.debit),
			"Credit":      formatAmount(line.credit),
		})
	}
	rows = append(rows,
		map[string]string{"Particulars": "Total billed", "Debit": strconv.FormatInt(summary.TotalBilled, 10)},
		map[string]string{"Particulars": "Total paid", "Credit": strconv.FormatInt(summary.TotalPayments, 10)},
		map[string]string{"Particulars": "Outstanding balance", "Debit": strconv.FormatInt(summary.OutstandingBalance, 10)},
	)

	return export.Dataset{Headers: statementHeaders, Rows: rows}
}

func formatAmount(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}
