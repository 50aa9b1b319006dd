package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

// SummaryCacheRepository is a Redis read-through cache for financial
// summaries. A cache miss is returned as (nil, nil) so callers fall back to a
// fresh reconciliation without treating the miss as a failure.
type SummaryCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCacheRepository constructs a SummaryCacheRepository.
func NewSummaryCacheRepository(client *redis.Client, ttl time.Duration) *SummaryCacheRepository {
	return &SummaryCacheRepository{client: client, ttl: ttl}
}

func summaryKey(studentID string) string {
	return fmt.Sprintf("finance:summary:%s", studentID)
}

// Get returns the cached summary for a student, or nil on a miss.
func (r *SummaryCacheRepository) Get(ctx context.Context, studentID string) (*models.FinancialSummary, error) {
	payload, err := r.client.Get(ctx, summaryKey(studentID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached summary: %w", err)
	}
	var summary models.FinancialSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("decode cached summary: %w", err)
	}
	return &summary, nil
}

// Set stores a summary under the configured TTL.
func (r *SummaryCacheRepository) Set(ctx context.Context, studentID string, summary models.FinancialSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := r.client.Set(ctx, summaryKey(studentID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("set cached summary: %w", err)
	}
	return nil
}

// Invalidate drops the cached summary for a student.
func (r *SummaryCacheRepository) Invalidate(ctx context.Context, studentID string) error {
	if err := r.client.Del(ctx, summaryKey(studentID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached summary: %w", err)
	}
	return nil
}
