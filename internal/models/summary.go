package models

// LedgerMode tags which reconciliation strategy a summary was computed with.
// The mode is selected once per summarize call by a fixed priority chain, so
// identical inputs always reconcile identically.
type LedgerMode string

const (
	LedgerExplicitBF LedgerMode = "explicit_bf"
	LedgerHybrid     LedgerMode = "hybrid"
	LedgerFull       LedgerMode = "full_ledger"
)

// FinancialSummary is the single auditable truth about what a student owes.
type FinancialSummary struct {
	Mode               LedgerMode `json:"mode"`
	TotalBilled        int64      `json:"total_billed"`
	TotalPayments      int64      `json:"total_payments"`
	OutstandingBalance int64      `json:"outstanding_balance"`
	TuitionBilled      int64      `json:"tuition_billed"`
	ClearancePaid      int64      `json:"clearance_paid"`
	ClearanceTarget    int64      `json:"clearance_target"`
	ManualArrears      int64      `json:"manual_arrears"`
	BursaryDiscount    int64      `json:"bursary_discount"`
}

// ClearancePercent converts the clearance target/paid pair to a percentage.
// A target of zero or less counts as fully satisfied.
func (s FinancialSummary) ClearancePercent() float64 {
	if s.ClearanceTarget <= 0 {
		return 100
	}
	return float64(s.ClearancePaid) / float64(s.ClearanceTarget) * 100
}

// MatrixCell is one named display column of a student's fee matrix.
type MatrixCell struct {
	Column          string `json:"column"`
	Billed          int64  `json:"billed"`
	Paid            int64  `json:"paid"`
	CoveredByCredit bool   `json:"covered_by_credit"`
}

// MatrixProjection maps a student's ledger onto display columns plus the
// unallocated credit pool left over after known columns are filled.
type MatrixProjection struct {
	StudentID  string       `json:"student_id"`
	Cells      []MatrixCell `json:"cells"`
	CreditPool int64        `json:"credit_pool"`
}
