package testsupport

import (
	"context"
	"testing"
	"time"

	"mindcast/internal/canon"
	"mindcast/internal/config"
	"mindcast/internal/store"
)

// MustOpenStore opens a store against a fresh temp database and closes
// it when the test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	if cfg == nil {
		cfg = NewConfig(t)
	}
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

// MustEnsureTopic creates or fetches a topic and fails the test on error.
func MustEnsureTopic(t testing.TB, st *store.Store, key, title string) *canon.Topic {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	topic, err := st.EnsureTopic(ctx, key, title)
	if err != nil {
		t.Fatalf("ensure topic %q: %v", key, err)
	}
	return topic
}

// MustRecordRequest appends a usage event and fails the test on error.
func MustRecordRequest(t testing.TB, st *store.Store, req *canon.TopicRequest) *canon.TopicRequest {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stored, err := st.RecordRequest(ctx, req)
	if err != nil {
		t.Fatalf("record request: %v", err)
	}
	return stored
}
