package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

// Historical records carry level/term tags typed by hand over many years, so
// the parser accepts full keywords, abbreviations, and bare digit prefixes.
// It never fails: unrecognisable text yields Valid=false, which the comparison
// treats as equal to everything.

var (
	levelPattern = regexp.MustCompile(`(?i)\b(year|yr|grade|gr|form|fm|level|lvl|primary|pri|senior|snr|retaker|rtk|[ypsr])\s*\.?\s*-?\s*(\d+)`)

	reverseLevelPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:st|nd|rd|th)?\s*\.?\s*(year|yr|grade|form|level|primary|senior)\b`)

	periodPattern = regexp.MustCompile(`(?i)\b(semester|sem|trimester|tri|term|quarter|qtr)\s*\.?\s*-?\s*(\d+)`)

	reversePeriodPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:st|nd|rd|th)?\s*\.?\s*(semester|sem|trimester|term|quarter)\b`)

	leadingDigitsPattern = regexp.MustCompile(`^\s*(\d+)`)
)

var levelCategories = map[string]models.LevelCategory{
	"year": models.LevelYear, "yr": models.LevelYear, "y": models.LevelYear,
	"grade": models.LevelGrade, "gr": models.LevelGrade,
	"form": models.LevelForm, "fm": models.LevelForm,
	"level": models.LevelLevel, "lvl": models.LevelLevel,
	"primary": models.LevelPrimary, "pri": models.LevelPrimary, "p": models.LevelPrimary,
	"senior": models.LevelSenior, "snr": models.LevelSenior, "s": models.LevelSenior,
	"retaker": models.LevelRetaker, "rtk": models.LevelRetaker, "r": models.LevelRetaker,
}

var periodUnits = map[string]models.PeriodUnit{
	"semester": models.PeriodSemester, "sem": models.PeriodSemester,
	"trimester": models.PeriodTrimester, "tri": models.PeriodTrimester,
	"term":    models.PeriodTerm,
	"quarter": models.PeriodQuarter, "qtr": models.PeriodQuarter,
}

// ParseTerm converts a free-form level/term label into its canonical form.
func ParseTerm(text string) models.Term {
	term := models.Term{
		Raw:      text,
		Category: models.LevelOther,
		Level:    1,
		Unit:     models.PeriodNone,
		Label:    strings.TrimSpace(text),
	}

	if unit, number, ok := matchPeriod(text); ok {
		term.Unit = unit
		term.Period = number
	}

	if category, number, ok := matchLevel(text); ok {
		term.Category = category
		term.Level = number
		term.Valid = true
		term.Confidence = 1
		term.Label = canonicalLabel(term)
		return term
	}

	if m := leadingDigitsPattern.FindStringSubmatch(text); m != nil {
		// No keyword, but the tag starts with digits ("2/1", "3 north").
		// Treat the number as a year level at reduced confidence.
		term.Category = models.LevelYear
		term.Level = atoiOr(m[1], 1)
		term.Valid = true
		term.Confidence = 0.5
		term.Label = canonicalLabel(term)
		return term
	}

	if term.Period > 0 {
		// Period-only tags like "Sem 2" still order within a level.
		term.Category = models.LevelYear
		term.Valid = true
		term.Confidence = 0.5
		term.Label = canonicalLabel(term)
		return term
	}

	term.Valid = false
	term.Confidence = 0
	return term
}

// CompareTerms orders two raw term labels: -1, 0 or 1.
//
// Identical raw text is always equal, and an unparseable side compares equal
// to anything. Treating unknown terms as "now" keeps their records visible in
// current-term reconciliation instead of silently aging them out.
func CompareTerms(a, b string) int {
	if a == b {
		return 0
	}
	return CompareParsed(ParseTerm(a), ParseTerm(b))
}

// CompareParsed orders two parsed terms by level then period.
func CompareParsed(a, b models.Term) int {
	if a.Raw == b.Raw {
		return 0
	}
	if !a.Valid || !b.Valid {
		return 0
	}
	if a.Level != b.Level {
		if a.Level < b.Level {
			return -1
		}
		return 1
	}
	if a.Period != b.Period {
		if a.Period < b.Period {
			return -1
		}
		return 1
	}
	return 0
}

// TermsEqual reports whether two raw labels refer to the same term.
func TermsEqual(a, b string) bool {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return true
	}
	pa, pb := ParseTerm(a), ParseTerm(b)
	if !pa.Valid || !pb.Valid {
		return false
	}
	return pa.Level == pb.Level && pa.Period == pb.Period
}

func matchLevel(text string) (models.LevelCategory, int, bool) {
	if m := levelPattern.FindStringSubmatch(text); m != nil {
		if category, ok := levelCategories[strings.ToLower(m[1])]; ok {
			return category, atoiOr(m[2], 1), true
		}
	}
	if m := reverseLevelPattern.FindStringSubmatch(text); m != nil {
		if category, ok := levelCategories[strings.ToLower(m[2])]; ok {
			return category, atoiOr(m[1], 1), true
		}
	}
	return models.LevelOther, 0, false
}

func matchPeriod(text string) (models.PeriodUnit, int, bool) {
	if m := periodPattern.FindStringSubmatch(text); m != nil {
		if unit, ok := periodUnits[strings.ToLower(m[1])]; ok {
			return unit, atoiOr(m[2], 1), true
		}
	}
	if m := reversePeriodPattern.FindStringSubmatch(text); m != nil {
		if unit, ok := periodUnits[strings.ToLower(m[2])]; ok {
			return unit, atoiOr(m[1], 1), true
		}
	}
	return models.PeriodNone, 0, false
}

func canonicalLabel(term models.Term) string {
	label := fmt.Sprintf("%s %d", titleCase(string(term.Category)), term.Level)
	if term.Unit != models.PeriodNone && term.Period > 0 {
		label = fmt.Sprintf("%s %s %d", label, titleCase(string(term.Unit)), term.Period)
	}
	return label
}

func titleCase(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
