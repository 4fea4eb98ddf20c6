package remaster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mindcast/internal/canon"
	"mindcast/internal/lifecycle"
	"mindcast/internal/logging"
	"mindcast/internal/retry"
	"mindcast/internal/services"
	"mindcast/internal/services/audio"
	"mindcast/internal/services/generation"
	"mindcast/internal/store"
)

// TranscriptService produces a lesson transcript for a topic title.
type TranscriptService interface {
	GenerateTranscript(ctx context.Context, topicTitle string) (*generation.Transcript, error)
}

// SynthesisService converts a transcript into stored audio.
type SynthesisService interface {
	Synthesize(ctx context.Context, transcript string) (*audio.Artifact, error)
}

// Result summarizes one worker pass over the queue.
type Result struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Config tunes the worker's wall-clock budget and external call policy.
type Config struct {
	Budget  time.Duration
	Policy  retry.Policy
	Breaker *retry.Breaker
}

// Worker drains the remaster queue: claim a job, run the generation and
// synthesis pipeline, commit the promotion. A job that fails stays
// failed; a later sweep queues a fresh job if the topic still qualifies,
// so failed jobs are never reopened.
type Worker struct {
	store       *store.Store
	manager     *lifecycle.Manager
	transcripts TranscriptService
	synthesis   SynthesisService
	budget      time.Duration
	policy      retry.Policy
	breaker     *retry.Breaker
	logger      *slog.Logger

	now func() time.Time
}

// NewWorker constructs a remaster worker.
func NewWorker(
	st *store.Store,
	manager *lifecycle.Manager,
	transcripts TranscriptService,
	synthesis SynthesisService,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	policy := cfg.Policy
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	return &Worker{
		store:       st,
		manager:     manager,
		transcripts: transcripts,
		synthesis:   synthesis,
		budget:      cfg.Budget,
		policy:      policy,
		breaker:     cfg.Breaker,
		logger:      logging.WithComponent(logger, "remaster"),
		now:         time.Now,
	}
}

// Run claims and processes queued jobs until the queue is empty, the
// wall-clock budget is spent, or the circuit breaker opens. Claimed jobs
// always reach a terminal status before the next claim.
func (w *Worker) Run(ctx context.Context) (Result, error) {
	var result Result

	deadline := time.Time{}
	if w.budget > 0 {
		deadline = w.now().Add(w.budget)
	}

	for {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !deadline.IsZero() && !w.now().Before(deadline) {
			w.logger.Info("remaster budget exhausted", logging.Int("processed", result.Processed))
			break
		}
		if w.breaker != nil && !w.breaker.Allow() {
			// Leave queued jobs for a later pass instead of burning them
			// against a dependency that is known to be down.
			w.logger.Warn("circuit breaker open, pausing remaster pass")
			break
		}

		job, err := w.store.ClaimNextQueuedJob(ctx)
		if err != nil {
			return result, err
		}
		if job == nil {
			break
		}

		result.Processed++
		if err := w.process(ctx, job); err != nil {
			result.Failed++
			w.logger.Warn("remaster job failed",
				logging.Int64("job_id", job.ID),
				logging.Int64("topic_id", job.TopicID),
				logging.Error(err),
			)
		} else {
			result.Succeeded++
		}
	}

	w.logger.Info("remaster pass complete",
		logging.Int("processed", result.Processed),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (w *Worker) process(ctx context.Context, job *canon.CanonJob) error {
	topic, err := w.store.GetTopicByID(ctx, job.TopicID)
	if err != nil {
		return w.fail(ctx, job, nil, err)
	}
	if topic == nil {
		return w.fail(ctx, job, nil, fmt.Errorf("topic %d no longer exists", job.TopicID))
	}
	if topic.Status != canon.TopicCandidate {
		// The topic left the candidate state while the job waited,
		// typically via an administrative demotion.
		return w.failWithMessage(ctx, job, nil, canon.DemotedJobError)
	}

	var transcript *generation.Transcript
	err = w.callExternal(ctx, func(ctx context.Context) error {
		var callErr error
		transcript, callErr = w.transcripts.GenerateTranscript(ctx, topic.Title)
		return callErr
	})
	if err != nil {
		return w.fail(ctx, job, nil, fmt.Errorf("generate transcript: %w", err))
	}
	costCents := transcript.CostCents

	var artifact *audio.Artifact
	err = w.callExternal(ctx, func(ctx context.Context) error {
		var callErr error
		artifact, callErr = w.synthesis.Synthesize(ctx, transcript.Text)
		return callErr
	})
	if err != nil {
		return w.fail(ctx, job, &costCents, fmt.Errorf("synthesize audio: %w", err))
	}
	costCents += artifact.CostCents

	episode := &canon.Episode{
		ID:           uuid.NewString(),
		TopicID:      topic.ID,
		AudioURL:     artifact.AudioURL,
		DurationSecs: artifact.DurationSecs,
		WordCount:    transcript.WordCount,
		CostCents:    costCents,
	}
	if err := w.store.InsertEpisode(ctx, episode); err != nil {
		return w.fail(ctx, job, &costCents, fmt.Errorf("store episode: %w", err))
	}

	if err := w.manager.CommitPromotion(ctx, topic.ID, episode.ID); err != nil {
		if errors.Is(err, services.ErrConflict) {
			// Demoted mid-run. The episode stays non-canonical and the
			// job records why it could not land.
			return w.failWithMessage(ctx, job, &costCents, canon.DemotedJobError)
		}
		return w.fail(ctx, job, &costCents, fmt.Errorf("commit promotion: %w", err))
	}

	if err := w.store.CompleteJob(ctx, job.ID, episode.ID, costCents); err != nil {
		return err
	}
	w.logger.Info("remaster succeeded",
		logging.Int64("job_id", job.ID),
		logging.String("topic", topic.Key),
		logging.String("episode_id", episode.ID),
		logging.Int64("cost_cents", costCents),
	)
	return nil
}

// callExternal runs one pipeline stage with retries and feeds the outcome
// into the shared circuit breaker.
func (w *Worker) callExternal(ctx context.Context, op func(context.Context) error) error {
	if w.breaker != nil && !w.breaker.Allow() {
		return services.Wrap(services.ErrExternalService, "remaster", "pipeline",
			"circuit breaker open", retry.ErrBreakerOpen)
	}
	err := retry.Do(ctx, w.policy, services.Retryable, op)
	if err != nil {
		w.breaker.RecordFailure()
		return err
	}
	w.breaker.RecordSuccess()
	return nil
}

func (w *Worker) fail(ctx context.Context, job *canon.CanonJob, costCents *int64, cause error) error {
	return w.failWithMessage(ctx, job, costCents, cause.Error())
}

func (w *Worker) failWithMessage(ctx context.Context, job *canon.CanonJob, costCents *int64, message string) error {
	if err := w.store.FailJob(ctx, job.ID, message, costCents); err != nil {
		w.logger.Error("could not mark job failed",
			logging.Int64("job_id", job.ID),
			logging.Error(err),
		)
	}
	return errors.New(message)
}
