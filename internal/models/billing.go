package models

import "time"

// Billing is a debit line on a student ledger. Billings are never hard-deleted,
// only voided, so historical reconciliation stays replayable.
type Billing struct {
	ID               string    `db:"id" json:"id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	Term             string    `db:"term" json:"term"`
	Type             string    `db:"type" json:"type"`
	Description      string    `db:"description" json:"description"`
	Amount           int64     `db:"amount" json:"amount"`
	Date             time.Time `db:"date" json:"date"`
	IsBroughtForward bool      `db:"is_brought_forward" json:"is_brought_forward"`
	Voided           bool      `db:"voided" json:"voided"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Payment is a credit line on a student ledger. A nil/empty Allocations map
// means the payment predates the allocation feature ("legacy unallocated").
type Payment struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Term        string    `db:"term" json:"term"`
	Amount      int64     `db:"amount" json:"amount"`
	Date        time.Time `db:"date" json:"date"`
	Method      string    `db:"method" json:"method"`
	Particulars string    `db:"particulars" json:"particulars"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	Allocations map[string]int64 `db:"-" json:"allocations,omitempty"`
}

// Bursary is a discretionary flat deduction attached to a student. The value
// is a fixed amount, not a percentage.
type Bursary struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	FixedValue int64     `db:"fixed_value" json:"fixed_value"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
