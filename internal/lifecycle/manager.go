package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"mindcast/internal/canon"
	"mindcast/internal/logging"
	"mindcast/internal/scoring"
	"mindcast/internal/services"
	"mindcast/internal/store"
)

// Manager owns topic state transitions. All promotion and demotion flows
// route through it so the status machine stays in one place: the store
// provides the guarded updates, the manager decides which to apply.
type Manager struct {
	store      *store.Store
	thresholds canon.Thresholds
	logger     *slog.Logger
}

// NewManager constructs a lifecycle manager over the canon store.
func NewManager(st *store.Store, thresholds canon.Thresholds, logger *slog.Logger) *Manager {
	return &Manager{
		store:      st,
		thresholds: thresholds,
		logger:     logging.WithComponent(logger, "lifecycle"),
	}
}

// Thresholds exposes the promotion policy the manager applies.
func (m *Manager) Thresholds() canon.Thresholds {
	return m.thresholds
}

// ResolveTopic canonicalizes a raw topic string and returns its row,
// creating it cold on first sight.
func (m *Manager) ResolveTopic(ctx context.Context, rawTopic string) (*canon.Topic, error) {
	key := canon.NormalizeKey(rawTopic)
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, "lifecycle", "resolve topic",
			"topic must not be empty", nil)
	}
	return m.store.EnsureTopic(ctx, key, canon.TitleFor(rawTopic))
}

// TopicByKey fetches a topic by canonical key.
func (m *Manager) TopicByKey(ctx context.Context, rawKey string) (*canon.Topic, error) {
	key := canon.NormalizeKey(rawKey)
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, "lifecycle", "topic by key",
			"topic key must not be empty", nil)
	}
	topic, err := m.store.GetTopicByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, services.Wrap(services.ErrNotFound, "lifecycle", "topic by key",
			fmt.Sprintf("topic %q", key), nil)
	}
	return topic, nil
}

// MarkCandidate moves a cold topic into the tracked candidate pool. The
// transition is guarded; false means the topic was no longer cold.
func (m *Manager) MarkCandidate(ctx context.Context, topic *canon.Topic) (bool, error) {
	moved, err := m.store.TransitionTopicStatus(ctx, topic.ID, canon.TopicCold, canon.TopicCandidate)
	if err != nil {
		return false, err
	}
	if moved {
		m.logger.Info("topic entered candidate pool",
			logging.String("topic", topic.Key),
			logging.Int64("requests", topic.RequestCount),
		)
	}
	return moved, nil
}

// RefreshScore recomputes and persists the composite score for a topic,
// returning the promotion evaluation alongside it.
func (m *Manager) RefreshScore(ctx context.Context, topic *canon.Topic) (scoring.Evaluation, error) {
	eval := scoring.EvaluatePromotion(topic.Signals(), m.thresholds)
	if err := m.store.SetCanonScore(ctx, topic.ID, eval.Score); err != nil {
		return eval, err
	}
	topic.CanonScore = eval.Score
	return eval, nil
}

// EnqueueRemaster queues a remaster job for a candidate topic. Idempotent:
// when an active job already holds the topic's slot it is returned with
// created=false and no new row is written.
func (m *Manager) EnqueueRemaster(ctx context.Context, topic *canon.Topic) (*canon.CanonJob, bool, error) {
	if topic.Status != canon.TopicCandidate {
		return nil, false, services.Wrap(services.ErrConflict, "lifecycle", "enqueue remaster",
			fmt.Sprintf("topic %q is %s, not a candidate", topic.Key, topic.Status), nil)
	}
	job, created, err := m.store.EnqueueJob(ctx, topic.ID)
	if err != nil {
		return nil, false, err
	}
	if created {
		m.logger.Info("remaster job queued",
			logging.String("topic", topic.Key),
			logging.Int64("job_id", job.ID),
		)
	}
	return job, created, nil
}

// CommitPromotion atomically flips a candidate to canon and marks its
// episode canonical. A conflict means the topic left the candidate state
// while the remaster ran, typically via demotion; the caller must then
// fail the job rather than serve the episode.
func (m *Manager) CommitPromotion(ctx context.Context, topicID int64, episodeID string) error {
	if err := m.store.CommitPromotion(ctx, topicID, episodeID); err != nil {
		return err
	}
	m.logger.Info("topic promoted to canon",
		logging.Int64("topic_id", topicID),
		logging.String("episode_id", episodeID),
	)
	return nil
}

// Demote unwinds a topic's promotion: clears canon fields, cancels any
// queued job, and unmarks the canonical episode, all in one transaction.
// The target status defaults to candidate so usage history keeps counting
// toward re-promotion.
func (m *Manager) Demote(ctx context.Context, rawKey string, target canon.TopicStatus) (*canon.Topic, store.DemoteResult, error) {
	if target == "" {
		target = canon.TopicCandidate
	}
	if target == canon.TopicCanon {
		return nil, store.DemoteResult{}, services.Wrap(services.ErrValidation, "lifecycle", "demote",
			"cannot demote to canon", nil)
	}

	topic, err := m.TopicByKey(ctx, rawKey)
	if err != nil {
		return nil, store.DemoteResult{}, err
	}

	result, err := m.store.Demote(ctx, topic.ID, target)
	if err != nil {
		return nil, store.DemoteResult{}, err
	}
	m.logger.Info("topic demoted",
		logging.String("topic", topic.Key),
		logging.String("from", string(result.PreviousStatus)),
		logging.String("to", string(result.NewStatus)),
		logging.Int64("cancelled_jobs", result.CancelledJobs),
	)

	updated, err := m.store.GetTopicByID(ctx, topic.ID)
	if err != nil {
		return nil, result, err
	}
	return updated, result, nil
}

// TopicDetail is a topic with its recent activity and a live promotion
// evaluation attached.
type TopicDetail struct {
	Topic      *canon.Topic
	Evaluation scoring.Evaluation
	Episode    *canon.Episode
	Jobs       []*canon.CanonJob
	Requests   []*canon.TopicRequest
}

// Detail assembles the admin view of one topic.
func (m *Manager) Detail(ctx context.Context, rawKey string) (*TopicDetail, error) {
	topic, err := m.TopicByKey(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	detail := &TopicDetail{
		Topic:      topic,
		Evaluation: scoring.EvaluatePromotion(topic.Signals(), m.thresholds),
	}

	if topic.CanonEpisodeID != "" {
		if detail.Episode, err = m.store.GetEpisode(ctx, topic.CanonEpisodeID); err != nil {
			return nil, err
		}
	}
	if detail.Jobs, err = m.store.RecentJobs(ctx, topic.ID, 10); err != nil {
		return nil, err
	}
	if detail.Requests, err = m.store.RecentRequests(ctx, topic.ID, 20); err != nil {
		return nil, err
	}
	return detail, nil
}
