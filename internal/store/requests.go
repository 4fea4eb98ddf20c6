package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mindcast/internal/canon"
)

// RecordRequest appends a usage event and folds it into the topic's
// rolling aggregates in a single transaction. The incremental update
// converges to a full recompute: request_count and save_count are plain
// counters, completion is tracked as sum plus sample count, and unique
// users advance only when the membership insert lands a new row.
func (s *Store) RecordRequest(ctx context.Context, req *canon.TopicRequest) (*canon.TopicRequest, error) {
	now := time.Now()
	stored := *req
	stored.CreatedAt = now

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO topic_requests (
                topic_id, user_id, request_type, cache_hit, completion_pct,
                saved, replayed, cost_cents, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.TopicID,
			nullableString(req.UserID),
			req.Type,
			boolToInt(req.CacheHit),
			nullableFloat(req.CompletionPct),
			boolToInt(req.Saved),
			boolToInt(req.Replayed),
			nullableInt(req.CostCents),
			timestamp(now),
		)
		if err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		if stored.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		newUser := int64(0)
		if req.UserID != "" {
			userRes, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO topic_users (topic_id, user_id) VALUES (?, ?)`,
				req.TopicID, req.UserID)
			if err != nil {
				return fmt.Errorf("insert topic user: %w", err)
			}
			if newUser, err = userRes.RowsAffected(); err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
		}

		completionSum := 0.0
		completionSamples := 0
		if req.CompletionPct != nil {
			completionSum = *req.CompletionPct
			completionSamples = 1
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE topics
             SET request_count = request_count + 1,
                 unique_user_count = unique_user_count + ?,
                 completion_sum = completion_sum + ?,
                 completion_samples = completion_samples + ?,
                 save_count = save_count + ?,
                 updated_at = ?
             WHERE id = ?`,
			newUser,
			completionSum,
			completionSamples,
			boolToInt(req.Saved),
			timestamp(now),
			req.TopicID,
		); err != nil {
			return fmt.Errorf("update topic aggregates: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// Signals returns the aggregate tuple the promotion scorer consumes.
func (s *Store) Signals(ctx context.Context, topicID int64) (canon.Signals, error) {
	topic, err := s.GetTopicByID(ctx, topicID)
	if err != nil {
		return canon.Signals{}, err
	}
	if topic == nil {
		return canon.Signals{}, fmt.Errorf("signals: topic %d not found", topicID)
	}
	return topic.Signals(), nil
}

// RecentRequests returns the newest usage events for a topic.
func (s *Store) RecentRequests(ctx context.Context, topicID int64, limit int) ([]*canon.TopicRequest, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, topic_id, user_id, request_type, cache_hit, completion_pct,
                saved, replayed, cost_cents, created_at
         FROM topic_requests WHERE topic_id = ?
         ORDER BY id DESC LIMIT ?`,
		topicID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent requests: %w", err)
	}
	defer rows.Close()

	var requests []*canon.TopicRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(scanner interface{ Scan(dest ...any) error }) (*canon.TopicRequest, error) {
	var (
		id            int64
		topicID       int64
		userID        sql.NullString
		requestType   string
		cacheHit      int
		completionPct sql.NullFloat64
		saved         int
		replayed      int
		costCents     sql.NullInt64
		createdRaw    sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&topicID,
		&userID,
		&requestType,
		&cacheHit,
		&completionPct,
		&saved,
		&replayed,
		&costCents,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	req := &canon.TopicRequest{
		ID:       id,
		TopicID:  topicID,
		UserID:   userID.String,
		Type:     canon.RequestType(requestType),
		CacheHit: cacheHit != 0,
		Saved:    saved != 0,
		Replayed: replayed != 0,
	}
	if completionPct.Valid {
		value := completionPct.Float64
		req.CompletionPct = &value
	}
	if costCents.Valid {
		value := costCents.Int64
		req.CostCents = &value
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		req.CreatedAt = created
	}
	return req, nil
}
