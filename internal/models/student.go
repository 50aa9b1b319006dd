package models

import "time"

// AccountStatus is the derived (or manually pinned) financial standing of a student.
type AccountStatus string

const (
	StatusClearance AccountStatus = "clearance"
	StatusProbation AccountStatus = "probation"
	StatusDefaulter AccountStatus = "defaulter"
)

// Student represents an enrolled, billable student.
//
// Balance and TotalFees are denormalized caches kept for listing screens; the
// finance core always recomputes them and never trusts the stored values.
type Student struct {
	ID          string `db:"id" json:"id"`
	AdmissionNo string `db:"admission_no" json:"admission_no"`
	FullName    string `db:"full_name" json:"full_name"`
	Term        string `db:"term" json:"term"`

	Balance         int64 `db:"balance" json:"balance"`
	TotalFees       int64 `db:"total_fees" json:"total_fees"`
	PreviousBalance int64 `db:"previous_balance" json:"previous_balance"`

	BursaryID     *string        `db:"bursary_id" json:"bursary_id,omitempty"`
	AccountStatus *AccountStatus `db:"account_status" json:"account_status,omitempty"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`

	// Loaded from satellite tables; history slices are most-recent-first.
	ServiceIDs       []string              `db:"-" json:"service_ids,omitempty"`
	PromotionHistory []PromotionEntry      `db:"-" json:"promotion_history,omitempty"`
	ClearanceHistory []ClearanceEntry      `db:"-" json:"clearance_history,omitempty"`
	Requirements     []PhysicalRequirement `db:"-" json:"requirements,omitempty"`
}

// PromotionEntry is one snapshot on the promotion stack. The head of the stack
// is the only reversible step.
type PromotionEntry struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	Date            time.Time `db:"date" json:"date"`
	FromTerm        string    `db:"from_term" json:"from_term"`
	ToTerm          string    `db:"to_term" json:"to_term"`
	PreviousBalance int64     `db:"previous_balance" json:"previous_balance"`
	NewBalance      int64     `db:"new_balance" json:"new_balance"`
}

// ClearanceEntry records a manual status recategorisation for auditability.
type ClearanceEntry struct {
	ID        string        `db:"id" json:"id"`
	StudentID string        `db:"student_id" json:"student_id"`
	Date      time.Time     `db:"date" json:"date"`
	Status    AccountStatus `db:"status" json:"status"`
	Reason    string        `db:"reason" json:"reason"`
	Actor     string        `db:"actor" json:"actor"`
}

// PhysicalRequirement tracks an in-kind compulsory item (e.g. uniforms brought).
type PhysicalRequirement struct {
	StudentID string `db:"student_id" json:"student_id"`
	Name      string `db:"name" json:"name"`
	Required  int    `db:"required" json:"required"`
	Brought   int    `db:"brought" json:"brought"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Term      string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
