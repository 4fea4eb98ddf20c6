package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mindcast/internal/canon"
	"mindcast/internal/services"
)

const topicColumns = `id, topic_key, title, status, request_count, unique_user_count,
    completion_sum, completion_samples, save_count, canon_score,
    canon_episode_id, canon_promoted_at, created_at, updated_at`

// EnsureTopic returns the topic for a canonical key, creating it cold on
// first sight. Idempotent under concurrent callers.
func (s *Store) EnsureTopic(ctx context.Context, key, title string) (*canon.Topic, error) {
	ctx = ensureContext(ctx)
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "ensure topic", "empty topic key", nil)
	}
	if topic, err := s.GetTopicByKey(ctx, key); err != nil {
		return nil, err
	} else if topic != nil {
		return topic, nil
	}

	now := timestamp(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO topics (topic_key, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(topic_key) DO NOTHING`,
		key,
		title,
		canon.TopicCold,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert topic: %w", err)
	}

	topic, err := s.GetTopicByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, fmt.Errorf("topic %q missing after insert", key)
	}
	return topic, nil
}

// GetTopicByKey fetches a topic by canonical key; nil when unknown.
func (s *Store) GetTopicByKey(ctx context.Context, key string) (*canon.Topic, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+topicColumns+` FROM topics WHERE topic_key = ?`, key)
	topic, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic by key: %w", err)
	}
	return topic, nil
}

// GetTopicByID fetches a topic by identifier; nil when unknown.
func (s *Store) GetTopicByID(ctx context.Context, id int64) (*canon.Topic, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+topicColumns+` FROM topics WHERE id = ?`, id)
	topic, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic by id: %w", err)
	}
	return topic, nil
}

// TopicsByStatus returns topics in a status ordered by creation time.
func (s *Store) TopicsByStatus(ctx context.Context, status canon.TopicStatus) ([]*canon.Topic, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+topicColumns+` FROM topics WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("query topics by status: %w", err)
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

// TransitionTopicStatus applies a status change guarded by the expected
// prior status. Returns false when the guard did not match, meaning a
// concurrent writer already applied an overlapping transition.
func (s *Store) TransitionTopicStatus(ctx context.Context, id int64, from, to canon.TopicStatus) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE topics SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		timestamp(time.Now()),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition topic status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetCanonScore persists a refreshed composite score onto the topic row.
func (s *Store) SetCanonScore(ctx context.Context, id int64, score float64) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE topics SET canon_score = ?, updated_at = ? WHERE id = ?`,
		score,
		timestamp(time.Now()),
		id,
	); err != nil {
		return fmt.Errorf("set canon score: %w", err)
	}
	return nil
}

// CommitPromotion flips a candidate topic to canon and marks the episode
// canonical, atomically. Fails with a conflict when the topic is no longer
// a candidate (e.g. it raced an administrative demotion).
func (s *Store) CommitPromotion(ctx context.Context, topicID int64, episodeID string) error {
	now := time.Now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE topics
             SET status = ?, canon_episode_id = ?, canon_promoted_at = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			canon.TopicCanon,
			episodeID,
			timestamp(now),
			timestamp(now),
			topicID,
			canon.TopicCandidate,
		)
		if err != nil {
			return fmt.Errorf("promote topic: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return services.Wrap(services.ErrConflict, "store", "commit promotion",
				fmt.Sprintf("topic %d is not a candidate", topicID), nil)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE episodes SET canonical = 1 WHERE id = ?`, episodeID); err != nil {
			return fmt.Errorf("mark episode canonical: %w", err)
		}
		return nil
	})
}

// DemoteResult reports the outcome of a demotion.
type DemoteResult struct {
	PreviousStatus canon.TopicStatus
	NewStatus      canon.TopicStatus
	CancelledJobs  int64
}

// Demote resets a topic's promoted fields, cancels any queued job, and
// unmarks the previously canonical episode. The whole unit runs in one
// transaction so a racing promotion commit either lands entirely before
// or entirely after it.
func (s *Store) Demote(ctx context.Context, topicID int64, target canon.TopicStatus) (DemoteResult, error) {
	var result DemoteResult
	now := time.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			statusStr string
			episodeID sql.NullString
		)
		err := tx.QueryRowContext(ctx,
			`SELECT status, canon_episode_id FROM topics WHERE id = ?`, topicID).
			Scan(&statusStr, &episodeID)
		if errors.Is(err, sql.ErrNoRows) {
			return services.Wrap(services.ErrNotFound, "store", "demote",
				fmt.Sprintf("topic %d", topicID), nil)
		}
		if err != nil {
			return fmt.Errorf("load topic for demote: %w", err)
		}
		result.PreviousStatus = canon.TopicStatus(statusStr)
		result.NewStatus = target

		res, err := tx.ExecContext(
			ctx,
			`UPDATE topics
             SET status = ?, canon_episode_id = NULL, canon_promoted_at = NULL, updated_at = ?
             WHERE id = ? AND status = ?`,
			target,
			timestamp(now),
			topicID,
			statusStr,
		)
		if err != nil {
			return fmt.Errorf("demote topic: %w", err)
		}
		if affected, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if affected == 0 {
			return services.Wrap(services.ErrConflict, "store", "demote",
				fmt.Sprintf("topic %d changed concurrently", topicID), nil)
		}

		cancelRes, err := tx.ExecContext(
			ctx,
			`UPDATE canon_jobs
             SET status = ?, error_message = ?, completed_at = ?
             WHERE topic_id = ? AND status = ?`,
			canon.JobFailed,
			canon.DemotedJobError,
			timestamp(now),
			topicID,
			canon.JobQueued,
		)
		if err != nil {
			return fmt.Errorf("cancel queued jobs: %w", err)
		}
		if result.CancelledJobs, err = cancelRes.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		// Best effort: a missing episode row is already consistent.
		if episodeID.Valid && episodeID.String != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE episodes SET canonical = 0 WHERE id = ?`, episodeID.String); err != nil {
				return fmt.Errorf("unmark canonical episode: %w", err)
			}
		}
		return nil
	})
	return result, err
}

func scanTopic(scanner interface{ Scan(dest ...any) error }) (*canon.Topic, error) {
	var (
		id                int64
		key               string
		title             string
		statusStr         string
		requestCount      int64
		uniqueUserCount   int64
		completionSum     float64
		completionSamples int64
		saveCount         int64
		canonScore        float64
		canonEpisodeID    sql.NullString
		canonPromotedRaw  sql.NullString
		createdRaw        sql.NullString
		updatedRaw        sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&key,
		&title,
		&statusStr,
		&requestCount,
		&uniqueUserCount,
		&completionSum,
		&completionSamples,
		&saveCount,
		&canonScore,
		&canonEpisodeID,
		&canonPromotedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	topic := &canon.Topic{
		ID:              id,
		Key:             key,
		Title:           title,
		Status:          canon.TopicStatus(statusStr),
		RequestCount:    requestCount,
		UniqueUserCount: uniqueUserCount,
		CanonScore:      canonScore,
		CanonEpisodeID:  canonEpisodeID.String,
	}
	if completionSamples > 0 {
		rate := completionSum / float64(completionSamples) / 100
		topic.CompletionRate = &rate
	}
	if requestCount > 0 {
		rate := float64(saveCount) / float64(requestCount)
		topic.SaveRate = &rate
	}
	if canonPromotedRaw.Valid {
		if promoted, err := parseTimeString(canonPromotedRaw.String); err == nil {
			topic.CanonPromotedAt = &promoted
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		topic.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		topic.UpdatedAt = updated
	}
	return topic, nil
}
