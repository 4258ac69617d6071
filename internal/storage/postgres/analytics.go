package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"social_autoposter/internal/domain"
)

type AnalyticsStore struct {
	db *sqlx.DB
}

func NewAnalyticsStore(db *sqlx.DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

// Append inserts all samples of one post in a single statement.
func (s *AnalyticsStore) Append(ctx context.Context, postID int64, samples []domain.AnalyticsSample) error {
	if len(samples) == 0 {
		return nil
	}

	const cols = 5
	var sb strings.Builder
	sb.WriteString("INSERT INTO analytics (post_id, platform, metric_name, metric_value, collected_at) VALUES ")
	valueArgs := make([]interface{}, 0, len(samples)*cols)

	for i, sample := range samples {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(itoa(i*cols + j + 1))
		}
		sb.WriteString(")")
		valueArgs = append(valueArgs, postID, sample.Platform, sample.MetricName, sample.MetricValue, sample.CollectedAt)
	}

	if _, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), valueArgs...); err != nil {
		return fmt.Errorf("insert analytics: %w", err)
	}
	return nil
}

// ListByPost returns a post's samples in collection order.
func (s *AnalyticsStore) ListByPost(ctx context.Context, postID int64) ([]domain.AnalyticsSample, error) {
	query := `
		SELECT id, post_id, platform, metric_name, metric_value, collected_at
		FROM analytics
		WHERE post_id = $1
		ORDER BY collected_at ASC, id ASC`

	var samples []domain.AnalyticsSample
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &samples, query, postID)
	return samples, err
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return itoa(i/10) + string(rune('0'+i%10))
}
