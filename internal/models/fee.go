package models

// RequirementType says which gate a compulsory fee participates in.
type RequirementType string

const (
	RequirementClearance RequirementType = "clearance"
	RequirementProbation RequirementType = "probation"
)

// FeeCategory distinguishes money owed from items brought in kind.
type FeeCategory string

const (
	FeeMonetary FeeCategory = "monetary"
	FeePhysical FeeCategory = "physical"
)

// CompulsoryFee is an externally configured requirement that gates clearance
// independent of the raw billed amounts.
type CompulsoryFee struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Amount          int64           `db:"amount" json:"amount"`
	RequirementType RequirementType `db:"requirement_type" json:"requirement_type"`
	Category        FeeCategory     `db:"category" json:"category"`
}
