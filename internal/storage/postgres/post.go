package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"social_autoposter/internal/domain"
)

const postColumns = `
	id, content, platform, theme, hashtags, media, scheduled_time, posted_time,
	status, platform_post_id, error_message, created_at, updated_at`

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

// postRow carries the array columns the domain record keeps as plain slices.
type postRow struct {
	domain.PostRecord
	HashtagList pq.StringArray `db:"hashtags"`
	MediaList   pq.StringArray `db:"media"`
}

func (r *postRow) record() domain.PostRecord {
	p := r.PostRecord
	p.Hashtags = []string(r.HashtagList)
	p.Media = []string(r.MediaList)
	return p
}

func (s *PostStore) Create(ctx context.Context, post *domain.PostRecord) error {
	query := `
		INSERT INTO posts (
			content, platform, theme, hashtags, media, scheduled_time, posted_time,
			status, platform_post_id, error_message
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING id, created_at, updated_at`

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		post.Content,
		post.Platform,
		post.Theme,
		pq.StringArray(nonNil(post.Hashtags)),
		pq.StringArray(nonNil(post.Media)),
		post.ScheduledTime,
		post.PostedTime,
		post.Status,
		post.PlatformPostID,
		post.ErrorMessage,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *PostStore) NextDue(ctx context.Context, platform domain.Platform, now time.Time) (*domain.PostRecord, error) {
	query := `SELECT` + postColumns + `
		FROM posts
		WHERE platform = $1 AND status = 'scheduled' AND scheduled_time <= $2
		ORDER BY scheduled_time ASC, id ASC
		LIMIT 1`

	var row postRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, platform, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select due post: %w", err)
	}

	post := row.record()
	return &post, nil
}

func (s *PostStore) MarkPosted(ctx context.Context, id int64, platformPostID string, at time.Time) error {
	query := `
		UPDATE posts SET
			status = 'posted',
			posted_time = $2,
			platform_post_id = $3,
			error_message = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, id, at, platformPostID)
	if err != nil {
		return fmt.Errorf("mark post %d posted: %w", id, err)
	}
	return s.checkTransition(ctx, res, id, domain.StatusPosted)
}

func (s *PostStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	if reason == "" {
		reason = "unknown error"
	}
	query := `
		UPDATE posts SET
			status = 'failed',
			error_message = $2,
			posted_time = NULL,
			platform_post_id = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'scheduled')`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("mark post %d failed: %w", id, err)
	}
	return s.checkTransition(ctx, res, id, domain.StatusFailed)
}

// checkTransition turns a zero-row update into ErrPostNotFound or
// ErrInvalidTransition.
func (s *PostStore) checkTransition(ctx context.Context, res sql.Result, id int64, to domain.PostStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var current domain.PostStatus
	err = sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &current, `SELECT status FROM posts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("post %d: %w", id, domain.ErrPostNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("post %d: %w: %s -> %s", id, domain.ErrInvalidTransition, current, to)
}

// PostedSince returns posted records with a platform id whose posted_time is
// at or after since, oldest first.
func (s *PostStore) PostedSince(ctx context.Context, since time.Time) ([]domain.PostRecord, error) {
	query := `SELECT` + postColumns + `
		FROM posts
		WHERE status = 'posted' AND posted_time >= $1 AND platform_post_id IS NOT NULL
		ORDER BY posted_time ASC, id ASC`

	return s.selectPosts(ctx, query, since)
}

// FailScheduled fails every scheduled record of the given platforms.
func (s *PostStore) FailScheduled(ctx context.Context, platforms []domain.Platform, reason string) (int64, error) {
	if len(platforms) == 0 {
		return 0, nil
	}

	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}

	query := `
		UPDATE posts SET
			status = 'failed',
			error_message = $2,
			updated_at = NOW()
		WHERE status = 'scheduled' AND platform = ANY($1)`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, pq.Array(names), reason)
	if err != nil {
		return 0, fmt.Errorf("fail scheduled posts: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostStore) DeleteFailedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM posts WHERE status = 'failed' AND created_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete failed posts: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts records created since the given time per platform and status,
// with each post's most recent engagement samples summed in.
func (s *PostStore) Stats(ctx context.Context, since time.Time) ([]domain.PlatformStats, error) {
	query := `
		SELECT
			p.platform,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE p.status = 'scheduled') AS scheduled,
			COUNT(*) FILTER (WHERE p.status = 'posted') AS posted,
			COUNT(*) FILTER (WHERE p.status = 'failed') AS failed,
			COALESCE(SUM(e.engagement), 0) AS engagement
		FROM posts p
		LEFT JOIN (
			SELECT post_id, SUM(metric_value) AS engagement
			FROM (
				SELECT DISTINCT ON (post_id, metric_name) post_id, metric_value
				FROM analytics
				WHERE metric_name = ANY($2)
				ORDER BY post_id, metric_name, collected_at DESC, id DESC
			) latest
			GROUP BY post_id
		) e ON e.post_id = p.id
		WHERE p.created_at >= $1
		GROUP BY p.platform
		ORDER BY p.platform`

	var stats []domain.PlatformStats
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &stats, query, since, pq.Array(engagementMetrics))
	if err != nil {
		return nil, fmt.Errorf("select post stats: %w", err)
	}
	return stats, nil
}

var engagementMetrics = []string{"likes", "shares", "comments", "retweets", "replies", "quotes"}

// Recent returns the newest records first.
func (s *PostStore) Recent(ctx context.Context, limit int) ([]domain.PostRecord, error) {
	query := `SELECT` + postColumns + `
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	return s.selectPosts(ctx, query, limit)
}

func (s *PostStore) selectPosts(ctx context.Context, query string, args ...any) ([]domain.PostRecord, error) {
	var rows []postRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}

	posts := make([]domain.PostRecord, len(rows))
	for i := range rows {
		posts[i] = rows[i].record()
	}
	return posts, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
