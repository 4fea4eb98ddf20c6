package remaster_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mindcast/internal/canon"
	"mindcast/internal/lifecycle"
	"mindcast/internal/logging"
	"mindcast/internal/remaster"
	"mindcast/internal/retry"
	"mindcast/internal/services"
	"mindcast/internal/services/audio"
	"mindcast/internal/services/generation"
	"mindcast/internal/store"
	"mindcast/internal/testsupport"
)

type fakeTranscripts struct {
	calls int
	err   error
}

func (f *fakeTranscripts) GenerateTranscript(ctx context.Context, topicTitle string) (*generation.Transcript, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &generation.Transcript{Text: "a lesson about " + topicTitle, WordCount: 4, CostCents: 30}, nil
}

type fakeSynthesis struct {
	calls int
	err   error
}

func (f *fakeSynthesis) Synthesize(ctx context.Context, transcript string) (*audio.Artifact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &audio.Artifact{AudioURL: "https://cdn/lesson.mp3", DurationSecs: 480, CostCents: 12}, nil
}

type fixture struct {
	store       *store.Store
	manager     *lifecycle.Manager
	transcripts *fakeTranscripts
	synthesis   *fakeSynthesis
	worker      *remaster.Worker
}

func newFixture(t *testing.T, cfg remaster.Config) *fixture {
	t.Helper()
	conf := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, conf)
	manager := lifecycle.NewManager(st, conf.CanonThresholds(), logging.NewNop())
	transcripts := &fakeTranscripts{}
	synthesis := &fakeSynthesis{}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.Policy{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		}
	}
	return &fixture{
		store:       st,
		manager:     manager,
		transcripts: transcripts,
		synthesis:   synthesis,
		worker:      remaster.NewWorker(st, manager, transcripts, synthesis, cfg, logging.NewNop()),
	}
}

func (f *fixture) queueCandidate(t *testing.T, key string) (*canon.Topic, *canon.CanonJob) {
	t.Helper()
	ctx := context.Background()
	topic, err := f.manager.ResolveTopic(ctx, key)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := f.store.TransitionTopicStatus(ctx, topic.ID, canon.TopicCold, canon.TopicCandidate); err != nil {
		t.Fatalf("to candidate: %v", err)
	}
	topic.Status = canon.TopicCandidate
	job, _, err := f.store.EnqueueJob(ctx, topic.ID)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return topic, job
}

func TestWorkerPromotesCandidate(t *testing.T) {
	f := newFixture(t, remaster.Config{})
	topic, job := f.queueCandidate(t, "success topic")
	ctx := context.Background()

	result, err := f.worker.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Processed != 1 || result.Succeeded != 1 || result.Failed != 0 {
		t.Errorf("result = %+v", result)
	}

	promoted, _ := f.store.GetTopicByID(ctx, topic.ID)
	if promoted.Status != canon.TopicCanon || promoted.CanonEpisodeID == "" {
		t.Fatalf("topic after run = %+v", promoted)
	}
	episode, err := f.store.GetEpisode(ctx, promoted.CanonEpisodeID)
	if err != nil {
		t.Fatalf("get episode: %v", err)
	}
	if !episode.Canonical {
		t.Error("episode not canonical")
	}
	if episode.CostCents != 42 {
		t.Errorf("episode cost = %d, want 42", episode.CostCents)
	}

	done, _ := f.store.GetJob(ctx, job.ID)
	if done.Status != canon.JobSucceeded || done.EpisodeID != episode.ID {
		t.Errorf("job after run = %+v", done)
	}
	if done.CostCents == nil || *done.CostCents != 42 {
		t.Errorf("job cost = %v, want 42", done.CostCents)
	}
}

func TestWorkerFailsJobOnGenerationError(t *testing.T) {
	f := newFixture(t, remaster.Config{})
	topic, job := f.queueCandidate(t, "broken generation")
	f.transcripts.err = services.Wrap(services.ErrExternalService, "generation", "transcript", "upstream 500", nil)
	ctx := context.Background()

	result, err := f.worker.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Failed != 1 || result.Succeeded != 0 {
		t.Errorf("result = %+v", result)
	}
	// Retryable failures are retried before the job fails.
	if f.transcripts.calls != 2 {
		t.Errorf("generation calls = %d, want 2", f.transcripts.calls)
	}

	failed, _ := f.store.GetJob(ctx, job.ID)
	if failed.Status != canon.JobFailed || failed.Error == "" {
		t.Errorf("job = %+v", failed)
	}
	// The topic stays a candidate so a later sweep can try again.
	still, _ := f.store.GetTopicByID(ctx, topic.ID)
	if still.Status != canon.TopicCandidate {
		t.Errorf("topic status = %s, want candidate", still.Status)
	}
}

func TestWorkerDoesNotRetryValidationErrors(t *testing.T) {
	f := newFixture(t, remaster.Config{})
	f.queueCandidate(t, "bad input")
	f.transcripts.err = services.Wrap(services.ErrValidation, "generation", "transcript", "api key required", nil)

	if _, err := f.worker.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.transcripts.calls != 1 {
		t.Errorf("generation calls = %d, want 1 (no retry)", f.transcripts.calls)
	}
}

func TestWorkerFailsJobWhenTopicDemotedBeforeRun(t *testing.T) {
	f := newFixture(t, remaster.Config{})
	topic, job := f.queueCandidate(t, "demoted early")
	ctx := context.Background()

	// Demote directly without cancelling the job, simulating the race
	// where the claim lands first.
	if _, err := f.store.TransitionTopicStatus(ctx, topic.ID, canon.TopicCandidate, canon.TopicCold); err != nil {
		t.Fatalf("demote: %v", err)
	}

	result, err := f.worker.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("result = %+v", result)
	}
	failed, _ := f.store.GetJob(ctx, job.ID)
	if failed.Status != canon.JobFailed || failed.Error != canon.DemotedJobError {
		t.Errorf("job = %+v, want failed/demoted", failed)
	}
	if f.transcripts.calls != 0 {
		t.Error("pipeline must not run for a demoted topic")
	}
}

func TestWorkerBreakerOpenLeavesQueueIntact(t *testing.T) {
	breaker := retry.NewBreaker(1, time.Minute, time.Hour)
	breaker.RecordFailure()
	f := newFixture(t, remaster.Config{Breaker: breaker})
	topic, _ := f.queueCandidate(t, "breaker open")
	ctx := context.Background()

	result, err := f.worker.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("result = %+v, want nothing processed", result)
	}
	job, err := f.store.ActiveJobForTopic(ctx, topic.ID)
	if err != nil {
		t.Fatalf("active job: %v", err)
	}
	if job == nil || job.Status != canon.JobQueued {
		t.Errorf("job = %+v, want still queued", job)
	}
}

func TestWorkerRepeatedFailuresOpenBreaker(t *testing.T) {
	breaker := retry.NewBreaker(2, time.Minute, time.Hour)
	f := newFixture(t, remaster.Config{
		Breaker: breaker,
		Policy: retry.Policy{
			MaxAttempts: 1,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	})
	f.transcripts.err = services.Wrap(services.ErrExternalService, "generation", "transcript", "down", nil)
	f.queueCandidate(t, "fail one")
	f.queueCandidate(t, "fail two")
	f.queueCandidate(t, "fail three")
	ctx := context.Background()

	result, err := f.worker.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Two failures trip the breaker; the third job stays queued.
	if result.Processed != 2 || result.Failed != 2 {
		t.Errorf("result = %+v, want processed=2 failed=2", result)
	}
}

func TestWorkerRespectsBudget(t *testing.T) {
	f := newFixture(t, remaster.Config{Budget: -time.Second})
	f.queueCandidate(t, "over budget")

	result, err := f.worker.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("result = %+v, want nothing processed on spent budget", result)
	}
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, remaster.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.worker.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
