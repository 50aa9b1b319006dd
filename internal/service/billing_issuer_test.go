package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

type stubExistsChecker struct {
	existing map[string]bool
}

func (s *stubExistsChecker) ExistsForTerm(ctx context.Context, studentID, term, billingType string) (bool, error) {
	return s.existing[billingType], nil
}

func TestFeeBillingIssuerSkipsDuplicatesAndPhysicalFees(t *testing.T) {
	fees := &mockFees{fees: []models.CompulsoryFee{
		{ID: "fee-1", Name: "Tuition", Amount: 1_000_000, Category: models.FeeMonetary},
		{ID: "fee-2", Name: "Development Levy", Amount: 50_000, Category: models.FeeMonetary},
		{ID: "fee-3", Name: "Uniform", Category: models.FeePhysical},
	}}
	checker := &stubExistsChecker{existing: map[string]bool{"Development Levy": true}}
	issuer := NewFeeBillingIssuer(fees, checker, nil)

	billings, err := issuer.Issue(context.Background(), testStudent("Year 1 Semester 2"), "Year 2 Semester 1")
	require.NoError(t, err)
	require.Len(t, billings, 1)
	assert.Equal(t, "Tuition", billings[0].Type)
	assert.Equal(t, "Year 2 Semester 1", billings[0].Term)
	assert.Equal(t, int64(1_000_000), billings[0].Amount)
}
