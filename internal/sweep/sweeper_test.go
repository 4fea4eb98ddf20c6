package sweep_test

import (
	"context"
	"fmt"
	"testing"

	"mindcast/internal/canon"
	"mindcast/internal/config"
	"mindcast/internal/lifecycle"
	"mindcast/internal/logging"
	"mindcast/internal/store"
	"mindcast/internal/sweep"
	"mindcast/internal/testsupport"
)

func lowThresholds() config.Thresholds {
	return config.Thresholds{
		SweepMinRequests: 3,
		MinRequests:      5,
		MinUsers:         2,
		MinCompletion:    0.5,
		MinSaveRate:      0.1,
		MinScore:         0.05,
	}
}

func newSweeper(t *testing.T) (*sweep.Sweeper, *lifecycle.Manager, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithThresholds(lowThresholds()))
	st := testsupport.MustOpenStore(t, cfg)
	manager := lifecycle.NewManager(st, cfg.CanonThresholds(), logging.NewNop())
	return sweep.NewSweeper(st, manager, logging.NewNop()), manager, st
}

func seedRequests(t *testing.T, st *store.Store, topicID int64, count int, completion, saved bool) {
	t.Helper()
	for i := 0; i < count; i++ {
		req := &canon.TopicRequest{
			TopicID: topicID,
			UserID:  fmt.Sprintf("user-%d", i),
			Type:    canon.RequestGenerate,
			Saved:   saved,
		}
		if completion {
			pct := 90.0
			req.CompletionPct = &pct
		}
		testsupport.MustRecordRequest(t, st, req)
	}
}

func TestSweepPromotesBusyColdTopics(t *testing.T) {
	sweeper, manager, st := newSweeper(t)
	ctx := context.Background()

	busy, err := manager.ResolveTopic(ctx, "busy topic")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	quiet, err := manager.ResolveTopic(ctx, "quiet topic")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	seedRequests(t, st, busy.ID, 4, false, false)
	seedRequests(t, st, quiet.ID, 1, false, false)

	if _, err := sweeper.Run(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	gotBusy, _ := st.GetTopicByID(ctx, busy.ID)
	if gotBusy.Status != canon.TopicCandidate {
		t.Errorf("busy topic status = %s, want candidate", gotBusy.Status)
	}
	gotQuiet, _ := st.GetTopicByID(ctx, quiet.ID)
	if gotQuiet.Status != canon.TopicCold {
		t.Errorf("quiet topic status = %s, want cold", gotQuiet.Status)
	}
}

func TestSweepQueuesJobForEligibleCandidate(t *testing.T) {
	sweeper, manager, st := newSweeper(t)
	ctx := context.Background()

	topic, err := manager.ResolveTopic(ctx, "eligible")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	seedRequests(t, st, topic.ID, 6, true, true)
	if _, err := st.TransitionTopicStatus(ctx, topic.ID, canon.TopicCold, canon.TopicCandidate); err != nil {
		t.Fatalf("to candidate: %v", err)
	}

	result, err := sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Evaluated != 1 || result.Promoted != 1 {
		t.Errorf("result = %+v, want evaluated=1 promoted=1", result)
	}

	job, err := st.ActiveJobForTopic(ctx, topic.ID)
	if err != nil {
		t.Fatalf("active job: %v", err)
	}
	if job == nil || job.Status != canon.JobQueued {
		t.Fatalf("active job = %+v, want queued", job)
	}

	// A refreshed score lands on the topic row during the pass.
	refreshed, _ := st.GetTopicByID(ctx, topic.ID)
	if refreshed.CanonScore <= 0 {
		t.Errorf("canon score = %v, want > 0", refreshed.CanonScore)
	}
}

func TestSweepIdempotentWhileJobActive(t *testing.T) {
	sweeper, manager, st := newSweeper(t)
	ctx := context.Background()

	topic, err := manager.ResolveTopic(ctx, "already queued")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	seedRequests(t, st, topic.ID, 6, true, true)
	if _, err := st.TransitionTopicStatus(ctx, topic.ID, canon.TopicCold, canon.TopicCandidate); err != nil {
		t.Fatalf("to candidate: %v", err)
	}

	if _, err := sweeper.Run(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	second, err := sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second.Promoted != 0 || second.Skipped != 1 {
		t.Errorf("second sweep = %+v, want promoted=0 skipped=1", second)
	}

	jobs, err := st.RecentJobs(ctx, topic.ID, 10)
	if err != nil {
		t.Fatalf("recent jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("jobs = %d, want exactly 1", len(jobs))
	}
}

func TestSweepSkipsIneligibleCandidate(t *testing.T) {
	sweeper, manager, st := newSweeper(t)
	ctx := context.Background()

	topic, err := manager.ResolveTopic(ctx, "not there yet")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Plenty of traffic but nobody finishes or saves.
	seedRequests(t, st, topic.ID, 6, false, false)
	if _, err := st.TransitionTopicStatus(ctx, topic.ID, canon.TopicCold, canon.TopicCandidate); err != nil {
		t.Fatalf("to candidate: %v", err)
	}

	result, err := sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Skipped != 1 || result.Promoted != 0 {
		t.Errorf("result = %+v, want skipped=1 promoted=0", result)
	}
	job, err := st.ActiveJobForTopic(ctx, topic.ID)
	if err != nil {
		t.Fatalf("active job: %v", err)
	}
	if job != nil {
		t.Errorf("ineligible candidate got a job: %+v", job)
	}
}

func TestSweepLeavesCanonTopicsAlone(t *testing.T) {
	sweeper, manager, st := newSweeper(t)
	ctx := context.Background()

	topic, err := manager.ResolveTopic(ctx, "already canon")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := st.TransitionTopicStatus(ctx, topic.ID, canon.TopicCold, canon.TopicCandidate); err != nil {
		t.Fatalf("to candidate: %v", err)
	}
	if err := st.InsertEpisode(ctx, &canon.Episode{ID: "ep-c", TopicID: topic.ID}); err != nil {
		t.Fatalf("insert episode: %v", err)
	}
	if err := st.CommitPromotion(ctx, topic.ID, "ep-c"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	result, err := sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Evaluated != 0 {
		t.Errorf("canon topics must not be evaluated: %+v", result)
	}
}
