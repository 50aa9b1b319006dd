package models

// LevelCategory classifies the level portion of an academic term label.
type LevelCategory string

const (
	LevelYear    LevelCategory = "YEAR"
	LevelGrade   LevelCategory = "GRADE"
	LevelForm    LevelCategory = "FORM"
	LevelLevel   LevelCategory = "LEVEL"
	LevelPrimary LevelCategory = "PRIMARY"
	LevelSenior  LevelCategory = "SENIOR"
	LevelRetaker LevelCategory = "RETAKER"
	LevelOther   LevelCategory = "OTHER"
)

// PeriodUnit classifies the period portion of an academic term label.
type PeriodUnit string

const (
	PeriodSemester  PeriodUnit = "SEMESTER"
	PeriodTerm      PeriodUnit = "TERM"
	PeriodTrimester PeriodUnit = "TRIMESTER"
	PeriodQuarter   PeriodUnit = "QUARTER"
	PeriodNone      PeriodUnit = "NONE"
)

// Term is the canonical structured form of a free-text level/term label.
// Label is display-only and never participates in ordering.
type Term struct {
	Raw        string        `json:"raw"`
	Category   LevelCategory `json:"category"`
	Level      int           `json:"level"`
	Unit       PeriodUnit    `json:"unit"`
	Period     int           `json:"period"`
	Label      string        `json:"label"`
	Valid      bool          `json:"valid"`
	Confidence float64       `json:"confidence"`
}
