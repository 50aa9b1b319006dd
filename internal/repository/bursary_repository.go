package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

// BursaryRepository manages the fixed-value bursary catalogue.
type BursaryRepository struct {
	db *sqlx.DB
}

// NewBursaryRepository constructs a BursaryRepository.
func NewBursaryRepository(db *sqlx.DB) *BursaryRepository {
	return &BursaryRepository{db: db}
}

// List returns every configured bursary.
func (r *BursaryRepository) List(ctx context.Context) ([]models.Bursary, error) {
	var bursaries []models.Bursary
	if err := r.db.SelectContext(ctx, &bursaries, "SELECT id, name, fixed_value, created_at FROM bursaries ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list bursaries: %w", err)
	}
	return bursaries, nil
}
