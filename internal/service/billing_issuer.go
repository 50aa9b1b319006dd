package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

type billingExistsChecker interface {
	ExistsForTerm(ctx context.Context, studentID, term, billingType string) (bool, error)
}

// FeeBillingIssuer raises the new term's charges from the compulsory fee
// catalogue after a promotion. It only issues monetary fees and skips any the
// student was already billed for in that term, so re-running a promotion never
// double-bills.
type FeeBillingIssuer struct {
	fees     feeReader
	existing billingExistsChecker
	logger   *zap.Logger
}

// NewFeeBillingIssuer constructs a FeeBillingIssuer.
func NewFeeBillingIssuer(fees feeReader, existing billingExistsChecker, logger *zap.Logger) *FeeBillingIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeBillingIssuer{fees: fees, existing: existing, logger: logger}
}

// Issue builds the billing rows for a student's new term.
func (i *FeeBillingIssuer) Issue(ctx context.Context, student models.Student, term string) ([]models.Billing, error) {
	fees, err := i.fees.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list compulsory fees: %w", err)
	}

	var billings []models.Billing
	for _, fee := range fees {
		if fee.Category != models.FeeMonetary || fee.Amount <= 0 {
			continue
		}
		exists, err := i.existing.ExistsForTerm(ctx, student.ID, term, fee.Name)
		if err != nil {
			return nil, fmt.Errorf("check existing billing: %w", err)
		}
		if exists {
			i.logger.Debug("skipping already billed fee",
				zap.String("student_id", student.ID), zap.String("term", term), zap.String("fee", fee.Name))
			continue
		}
		billings = append(billings, models.Billing{
			StudentID:   student.ID,
			Term:        term,
			Type:        fee.Name,
			Description: fmt.Sprintf("%s (%s)", fee.Name, term),
			Amount:      fee.Amount,
		})
	}
	return billings, nil
}
