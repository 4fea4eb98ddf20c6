package router

import (
	"context"
	"log/slog"

	"mindcast/internal/canon"
	"mindcast/internal/lifecycle"
	"mindcast/internal/logging"
	"mindcast/internal/services"
	"mindcast/internal/signals"
	"mindcast/internal/store"
)

// ResolveInput is one incoming listen request.
type ResolveInput struct {
	Topic  string
	UserID string
	Type   canon.RequestType
}

// Resolution is the routing decision for a request: serve the cached
// canonical episode, or fall through to fresh generation.
type Resolution struct {
	Topic    *canon.Topic
	CacheHit bool
	Episode  *canon.Episode
}

// Resolver is the request router. Every request lands here first; canon
// topics serve their cached episode at zero marginal cost, everything
// else is a miss the caller generates fresh. Either way the usage event
// is recorded asynchronously so the decision path never blocks on it.
type Resolver struct {
	store    *store.Store
	manager  *lifecycle.Manager
	recorder *signals.Recorder
	logger   *slog.Logger
}

// NewResolver constructs a resolver.
func NewResolver(st *store.Store, manager *lifecycle.Manager, recorder *signals.Recorder, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    st,
		manager:  manager,
		recorder: recorder,
		logger:   logging.WithComponent(logger, "router"),
	}
}

// Resolve routes one request. The topic is created cold on first sight,
// so every distinct subject is tracked from its first request.
func (r *Resolver) Resolve(ctx context.Context, input ResolveInput) (*Resolution, error) {
	if input.Type == "" {
		input.Type = canon.RequestGenerate
	}

	topic, err := r.manager.ResolveTopic(ctx, input.Topic)
	if err != nil {
		return nil, err
	}

	resolution := &Resolution{Topic: topic}
	if topic.IsCanon() {
		episode, err := r.store.GetEpisode(ctx, topic.CanonEpisodeID)
		if err != nil {
			return nil, err
		}
		if episode == nil {
			// Promoted row pointing at a missing episode is corrupt
			// state; treat it as a miss rather than failing the caller.
			r.logger.Error("canon topic missing episode",
				logging.String("topic", topic.Key),
				logging.String("episode_id", topic.CanonEpisodeID),
			)
		} else {
			resolution.CacheHit = true
			resolution.Episode = episode
		}
	}

	event := &canon.TopicRequest{
		TopicID:  topic.ID,
		UserID:   input.UserID,
		Type:     input.Type,
		CacheHit: resolution.CacheHit,
	}
	if resolution.CacheHit {
		// Serving the cached episode costs nothing.
		zero := int64(0)
		event.CostCents = &zero
	}
	r.recorder.Submit(event)

	return resolution, nil
}

// UsageInput reports playback outcome signals after a listen session.
type UsageInput struct {
	Topic         string
	UserID        string
	Type          canon.RequestType
	CacheHit      bool
	CompletionPct *float64
	Saved         bool
	Replayed      bool
	CostCents     *int64
}

// RecordUsage persists an outcome event synchronously and returns the
// stored row. Unlike Resolve's fire-and-forget event this path reports
// errors: callers posting usage explicitly want to know it landed.
func (r *Resolver) RecordUsage(ctx context.Context, input UsageInput) (*canon.TopicRequest, error) {
	if input.CompletionPct != nil && (*input.CompletionPct < 0 || *input.CompletionPct > 100) {
		return nil, services.Wrap(services.ErrValidation, "router", "record usage",
			"completion_pct must be within 0..100", nil)
	}
	if input.Type == "" {
		input.Type = canon.RequestPlayback
	}

	topic, err := r.manager.ResolveTopic(ctx, input.Topic)
	if err != nil {
		return nil, err
	}

	return r.recorder.RecordNow(ctx, &canon.TopicRequest{
		TopicID:       topic.ID,
		UserID:        input.UserID,
		Type:          input.Type,
		CacheHit:      input.CacheHit,
		CompletionPct: input.CompletionPct,
		Saved:         input.Saved,
		Replayed:      input.Replayed,
		CostCents:     input.CostCents,
	})
}
