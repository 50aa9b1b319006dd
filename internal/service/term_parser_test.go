package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

func TestParseTermKeywords(t *testing.T) {
	cases := []struct {
		text     string
		category models.LevelCategory
		level    int
		unit     models.PeriodUnit
		period   int
	}{
		{"Year 1 Semester 2", models.LevelYear, 1, models.PeriodSemester, 2},
		{"year2 sem1", models.LevelYear, 2, models.PeriodSemester, 1},
		{"Yr 3", models.LevelYear, 3, models.PeriodNone, 0},
		{"Grade 10", models.LevelGrade, 10, models.PeriodNone, 0},
		{"gr 9 term 2", models.LevelGrade, 9, models.PeriodTerm, 2},
		{"Form 4 Term 1", models.LevelForm, 4, models.PeriodTerm, 1},
		{"P.7", models.LevelPrimary, 7, models.PeriodNone, 0},
		{"S2 Term 3", models.LevelSenior, 2, models.PeriodTerm, 3},
		{"Level 5 Trimester 2", models.LevelLevel, 5, models.PeriodTrimester, 2},
		{"Retaker 1", models.LevelRetaker, 1, models.PeriodNone, 0},
		{"2nd Year Semester 1", models.LevelYear, 2, models.PeriodSemester, 1},
		{"Quarter 3 Year 1", models.LevelYear, 1, models.PeriodQuarter, 3},
	}
	for _, tc := range cases {
		term := ParseTerm(tc.text)
		require.True(t, term.Valid, "expected %q to parse", tc.text)
		assert.Equal(t, tc.category, term.Category, tc.text)
		assert.Equal(t, tc.level, term.Level, tc.text)
		assert.Equal(t, tc.unit, term.Unit, tc.text)
		assert.Equal(t, tc.period, term.Period, tc.text)
		assert.Equal(t, 1.0, term.Confidence, tc.text)
	}
}

func TestParseTermDigitPrefixDegradesGracefully(t *testing.T) {
	term := ParseTerm("3 North")
	require.True(t, term.Valid)
	assert.Equal(t, models.LevelYear, term.Category)
	assert.Equal(t, 3, term.Level)
	assert.Equal(t, 0.5, term.Confidence)
}

func TestParseTermUnrecognisedNeverFails(t *testing.T) {
	for _, text := range []string{"", "   ", "alumni", "transferred out", "???"} {
		term := ParseTerm(text)
		assert.False(t, term.Valid, text)
		assert.Equal(t, 1, term.Level, text)
		assert.GreaterOrEqual(t, term.Level, 0, text)
	}
}

func TestParseTermLabelIsDisplayOnly(t *testing.T) {
	a := ParseTerm("Year 1 Semester 2")
	b := ParseTerm("yr1 sem 2")
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Equal(t, 0, CompareParsed(a, b))
	assert.Equal(t, "Year 1 Semester 2", a.Label)
}

func TestCompareTermsReflexive(t *testing.T) {
	for _, text := range []string{"Year 1", "garbage", "", "Form 4 Term 1", "2/1"} {
		assert.Equal(t, 0, CompareTerms(text, text), text)
	}
}

func TestCompareTermsLevelBeforePeriod(t *testing.T) {
	assert.Equal(t, 1, CompareTerms("Year 2 Semester 1", "Year 1 Semester 2"))
	assert.Equal(t, -1, CompareTerms("Year 1 Semester 2", "Year 2 Semester 1"))
	assert.Equal(t, -1, CompareTerms("Year 1 Semester 1", "Year 1 Semester 2"))
	assert.Equal(t, 0, CompareTerms("Year 1 Semester 2", "yr 1 sem 2"))
}

func TestCompareTermsInvalidIsEqualToAnything(t *testing.T) {
	assert.Equal(t, 0, CompareTerms("unknown cohort", "Year 3 Semester 1"))
	assert.Equal(t, 0, CompareTerms("Year 3 Semester 1", "unknown cohort"))
	assert.Equal(t, 0, CompareTerms("unknown", "also unknown"))
}

func TestTermsEqual(t *testing.T) {
	assert.True(t, TermsEqual("Year 1 Semester 2", "year 1 semester 2"))
	assert.True(t, TermsEqual("Year 1 Semester 2", "Yr1 Sem2"))
	assert.False(t, TermsEqual("Year 1 Semester 2", "Year 1 Semester 1"))
	assert.False(t, TermsEqual("garbage", "Year 1"))
	assert.True(t, TermsEqual("garbage", "garbage"))
}
