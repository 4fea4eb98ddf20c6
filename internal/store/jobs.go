package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mindcast/internal/canon"
)

const jobColumns = `id, topic_id, status, episode_id, cost_cents, error_message,
    created_at, started_at, completed_at`

// EnqueueJob creates a queued remaster job for a topic, or returns the
// existing active job unchanged. The second return reports whether a new
// row was created.
func (s *Store) EnqueueJob(ctx context.Context, topicID int64) (*canon.CanonJob, bool, error) {
	ctx = ensureContext(ctx)
	if job, err := s.ActiveJobForTopic(ctx, topicID); err != nil {
		return nil, false, err
	} else if job != nil {
		return job, false, nil
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO canon_jobs (topic_id, status, created_at) VALUES (?, ?, ?)`,
		topicID,
		canon.JobQueued,
		timestamp(time.Now()),
	)
	if err != nil {
		// A concurrent enqueue may have taken the active slot between the
		// lookup and the insert; the partial unique index reports that.
		if isUniqueViolation(err) {
			job, lookupErr := s.ActiveJobForTopic(ctx, topicID)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			if job != nil {
				return job, false, nil
			}
		}
		return nil, false, fmt.Errorf("insert canon job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// GetJob fetches a job by identifier; nil when unknown.
func (s *Store) GetJob(ctx context.Context, id int64) (*canon.CanonJob, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM canon_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ActiveJobForTopic returns the queued or running job for a topic, if any.
func (s *Store) ActiveJobForTopic(ctx context.Context, topicID int64) (*canon.CanonJob, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM canon_jobs
         WHERE topic_id = ? AND status IN (?, ?) LIMIT 1`,
		topicID, canon.JobQueued, canon.JobRunning)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for topic: %w", err)
	}
	return job, nil
}

// ClaimNextQueuedJob atomically moves the oldest queued job to running.
// Two concurrent claimers never win the same job: the guarded update
// affects zero rows for the loser, which simply tries the next candidate.
// Returns nil when no queued work remains.
func (s *Store) ClaimNextQueuedJob(ctx context.Context) (*canon.CanonJob, error) {
	ctx = ensureContext(ctx)
	for {
		row := s.db.QueryRowContext(ctx,
			`SELECT id FROM canon_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
			canon.JobQueued)
		var id int64
		err := row.Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("next queued job: %w", err)
		}

		res, err := s.execWithRetry(
			ctx,
			`UPDATE canon_jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
			canon.JobRunning,
			timestamp(time.Now()),
			id,
			canon.JobQueued,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the claim race; look for another queued job.
			continue
		}
		return s.GetJob(ctx, id)
	}
}

// CompleteJob marks a running job succeeded with its episode and cost.
func (s *Store) CompleteJob(ctx context.Context, id int64, episodeID string, costCents int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE canon_jobs
         SET status = ?, episode_id = ?, cost_cents = ?, completed_at = ?
         WHERE id = ? AND status = ?`,
		canon.JobSucceeded,
		episodeID,
		costCents,
		timestamp(time.Now()),
		id,
		canon.JobRunning,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("complete job: job %d not running", id)
	}
	return nil
}

// FailJob marks a running job failed with the captured error message and
// any partial cost incurred before the failure.
func (s *Store) FailJob(ctx context.Context, id int64, message string, costCents *int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE canon_jobs
         SET status = ?, error_message = ?, cost_cents = ?, completed_at = ?
         WHERE id = ? AND status = ?`,
		canon.JobFailed,
		message,
		nullableInt(costCents),
		timestamp(time.Now()),
		id,
		canon.JobRunning,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fail job: job %d not running", id)
	}
	return nil
}

// RecentJobs returns the newest jobs for a topic.
func (s *Store) RecentJobs(ctx context.Context, topicID int64, limit int) ([]*canon.CanonJob, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM canon_jobs WHERE topic_id = ?
         ORDER BY id DESC LIMIT ?`,
		topicID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*canon.CanonJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*canon.CanonJob, error) {
	var (
		id           int64
		topicID      int64
		statusStr    string
		episodeID    sql.NullString
		costCents    sql.NullInt64
		errorMessage sql.NullString
		createdRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&topicID,
		&statusStr,
		&episodeID,
		&costCents,
		&errorMessage,
		&createdRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &canon.CanonJob{
		ID:        id,
		TopicID:   topicID,
		Status:    canon.JobStatus(statusStr),
		EpisodeID: episodeID.String,
		Error:     errorMessage.String,
	}
	if costCents.Valid {
		value := costCents.Int64
		job.CostCents = &value
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}
