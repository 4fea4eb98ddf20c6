package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"mindcast/internal/canon"
)

// SystemStats aggregates the system-wide counters the admin surface
// exposes.
type SystemStats struct {
	TopicsByStatus   map[canon.TopicStatus]int64
	TotalRequests    int64
	CacheHits        int64
	CacheHitRate     float64
	TotalCostCents   int64
	AvgMissCostCents float64
	SavingsCents     int64
	JobsByStatus     map[canon.JobStatus]int64
	TopCanon         []*canon.Topic
	NearPromotion    []*canon.Topic
}

// Stats computes the grouped aggregates for the stats endpoint. TopN
// bounds both ranked topic lists.
func (s *Store) Stats(ctx context.Context, topN int) (*SystemStats, error) {
	ctx = ensureContext(ctx)
	if topN <= 0 {
		topN = 10
	}
	stats := &SystemStats{
		TopicsByStatus: make(map[canon.TopicStatus]int64),
		JobsByStatus:   make(map[canon.JobStatus]int64),
	}

	if err := s.countTopicsByStatus(ctx, stats); err != nil {
		return nil, err
	}
	if err := s.requestTotals(ctx, stats); err != nil {
		return nil, err
	}
	if err := s.countJobsByStatus(ctx, stats); err != nil {
		return nil, err
	}

	if stats.TotalRequests > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(stats.TotalRequests)
	}
	stats.SavingsCents = int64(float64(stats.CacheHits) * stats.AvgMissCostCents)

	var err error
	if stats.TopCanon, err = s.rankedTopics(ctx, canon.TopicCanon, "request_count DESC", topN); err != nil {
		return nil, err
	}
	if stats.NearPromotion, err = s.rankedTopics(ctx, canon.TopicCandidate, "canon_score DESC", topN); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) countTopicsByStatus(ctx context.Context, stats *SystemStats) error {
	query, args, err := sq.Select("status", "COUNT(1)").
		From("topics").
		GroupBy("status").
		ToSql()
	if err != nil {
		return fmt.Errorf("build topic count query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("topic counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return err
		}
		stats.TopicsByStatus[canon.TopicStatus(status)] = count
	}
	return rows.Err()
}

func (s *Store) requestTotals(ctx context.Context, stats *SystemStats) error {
	query, args, err := sq.Select(
		"COUNT(1)",
		"COALESCE(SUM(cache_hit), 0)",
		"COALESCE(SUM(cost_cents), 0)",
		"AVG(CASE WHEN cache_hit = 0 THEN cost_cents END)",
	).From("topic_requests").ToSql()
	if err != nil {
		return fmt.Errorf("build request totals query: %w", err)
	}

	var avgMiss sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalRequests,
		&stats.CacheHits,
		&stats.TotalCostCents,
		&avgMiss,
	); err != nil {
		return fmt.Errorf("request totals: %w", err)
	}
	if avgMiss.Valid {
		stats.AvgMissCostCents = avgMiss.Float64
	}
	return nil
}

func (s *Store) countJobsByStatus(ctx context.Context, stats *SystemStats) error {
	query, args, err := sq.Select("status", "COUNT(1)").
		From("canon_jobs").
		GroupBy("status").
		ToSql()
	if err != nil {
		return fmt.Errorf("build job count query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("job counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return err
		}
		stats.JobsByStatus[canon.JobStatus(status)] = count
	}
	return rows.Err()
}

func (s *Store) rankedTopics(ctx context.Context, status canon.TopicStatus, order string, limit int) ([]*canon.Topic, error) {
	query, args, err := sq.Select(topicColumns).
		From("topics").
		Where(sq.Eq{"status": string(status)}).
		OrderBy(order).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ranked topics query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ranked topics: %w", err)
	}
	defer rows.Close()

	var topics []*canon.Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}
