package signals_test

import (
	"context"
	"fmt"
	"testing"

	"mindcast/internal/canon"
	"mindcast/internal/logging"
	"mindcast/internal/signals"
	"mindcast/internal/testsupport"
)

func TestRecorderPersistsSubmittedEvents(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	topic := testsupport.MustEnsureTopic(t, st, "async", "Async")

	recorder := signals.NewRecorder(st, logging.NewNop())
	recorder.Start()

	for i := 0; i < 5; i++ {
		recorder.Submit(&canon.TopicRequest{
			TopicID: topic.ID,
			UserID:  fmt.Sprintf("u%d", i),
			Type:    canon.RequestGenerate,
		})
	}
	recorder.Stop()

	got, err := st.GetTopicByID(context.Background(), topic.ID)
	if err != nil {
		t.Fatalf("get topic: %v", err)
	}
	if got.RequestCount != 5 {
		t.Errorf("request count = %d, want 5", got.RequestCount)
	}
	if got.UniqueUserCount != 5 {
		t.Errorf("unique users = %d, want 5", got.UniqueUserCount)
	}
	if recorder.Dropped() != 0 {
		t.Errorf("dropped = %d, want 0", recorder.Dropped())
	}
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	topic := testsupport.MustEnsureTopic(t, st, "backpressure", "Backpressure")

	// Never started, so the queue only drains into the drop counter.
	recorder := signals.NewRecorder(st, logging.NewNop())
	for i := 0; i < 300; i++ {
		recorder.Submit(&canon.TopicRequest{TopicID: topic.ID, Type: canon.RequestGenerate})
	}
	if recorder.Dropped() == 0 {
		t.Error("expected drops once the queue filled")
	}
}

func TestRecorderIgnoresNil(t *testing.T) {
	recorder := signals.NewRecorder(testsupport.MustOpenStore(t, nil), logging.NewNop())
	recorder.Submit(nil)
	if recorder.Dropped() != 0 {
		t.Errorf("dropped = %d, want 0", recorder.Dropped())
	}
}
