package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

// FeeRepository manages the compulsory fee catalogue that gates clearance.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs a FeeRepository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// List returns every configured compulsory fee.
func (r *FeeRepository) List(ctx context.Context) ([]models.CompulsoryFee, error) {
	var fees []models.CompulsoryFee
	const query = "SELECT id, name, amount, requirement_type, category FROM compulsory_fees ORDER BY name"
	if err := r.db.SelectContext(ctx, &fees, query); err != nil {
		return nil, fmt.Errorf("list compulsory fees: %w", err)
	}
	return fees, nil
}
