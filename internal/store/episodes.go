package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mindcast/internal/canon"
)

// InsertEpisode stores the durable artifact a remaster produced. The row
// is created non-canonical; CommitPromotion flips the flag.
func (s *Store) InsertEpisode(ctx context.Context, episode *canon.Episode) error {
	if episode == nil || episode.ID == "" {
		return errors.New("episode requires an id")
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO episodes (id, topic_id, audio_url, duration_secs, word_count, cost_cents, canonical, created_at)
         VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		episode.ID,
		episode.TopicID,
		episode.AudioURL,
		episode.DurationSecs,
		episode.WordCount,
		episode.CostCents,
		timestamp(time.Now()),
	); err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// GetEpisode fetches an episode by identifier; nil when unknown.
func (s *Store) GetEpisode(ctx context.Context, id string) (*canon.Episode, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, topic_id, audio_url, duration_secs, word_count, cost_cents, canonical, created_at
         FROM episodes WHERE id = ?`, id)

	var (
		episode    canon.Episode
		canonical  int
		createdRaw sql.NullString
	)
	err := row.Scan(
		&episode.ID,
		&episode.TopicID,
		&episode.AudioURL,
		&episode.DurationSecs,
		&episode.WordCount,
		&episode.CostCents,
		&canonical,
		&createdRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	episode.Canonical = canonical != 0
	if created, err := parseTimeString(createdRaw.String); err == nil {
		episode.CreatedAt = created
	}
	return &episode, nil
}
