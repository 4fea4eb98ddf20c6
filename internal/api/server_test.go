package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mindcast/internal/api"
	"mindcast/internal/config"
	"mindcast/internal/lifecycle"
	"mindcast/internal/logging"
	"mindcast/internal/remaster"
	"mindcast/internal/retry"
	"mindcast/internal/router"
	"mindcast/internal/services/audio"
	"mindcast/internal/services/generation"
	"mindcast/internal/signals"
	"mindcast/internal/sweep"
	"mindcast/internal/testsupport"
)

const testToken = "secret-token"

type harness struct {
	base   string
	client *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	generationSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"a short lesson about the topic"}}],"usage":{"total_tokens":5000}}`)
	}))
	t.Cleanup(generationSrv.Close)
	audioSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"audio_url":"https://cdn/test.mp3","duration_seconds":480,"cost_cents":12}`)
	}))
	t.Cleanup(audioSrv.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithAPIToken(testToken),
		testsupport.WithThresholds(config.Thresholds{
			SweepMinRequests: 2,
			MinRequests:      3,
			MinUsers:         2,
			MinCompletion:    0.5,
			MinSaveRate:      0.1,
			MinScore:         0.05,
		}),
	)
	st := testsupport.MustOpenStore(t, cfg)

	logger := logging.NewNop()
	recorder := signals.NewRecorder(st, logger)
	recorder.Start()
	t.Cleanup(recorder.Stop)
	manager := lifecycle.NewManager(st, cfg.CanonThresholds(), logger)
	resolver := router.NewResolver(st, manager, recorder, logger)
	sweeper := sweep.NewSweeper(st, manager, logger)

	transcripts := generation.NewClient(generation.Config{APIKey: "test", BaseURL: generationSrv.URL})
	synthesis := audio.NewClient(audio.Config{APIKey: "test", BaseURL: audioSrv.URL})
	worker := remaster.NewWorker(st, manager, transcripts, synthesis, remaster.Config{
		Policy: retry.Policy{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	}, logger)

	server := api.NewServer("127.0.0.1:0", testToken, api.Deps{
		Resolver: resolver,
		Manager:  manager,
		Sweeper:  sweeper,
		Worker:   worker,
		Store:    st,
		Status: func(context.Context) api.StatusResponse {
			return api.StatusResponse{Running: true, DroppedEvents: recorder.Dropped()}
		},
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := server.Start(ctx); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(server.Stop)

	return &harness{
		base:   "http://" + server.Addr(),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *harness) do(t *testing.T, method, path string, payload any, target any) (int, *api.ErrorBody) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, h.base+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var envelope api.ErrorBody
		_ = json.Unmarshal(raw, &envelope)
		return resp.StatusCode, &envelope
	}
	if target != nil {
		if err := json.Unmarshal(raw, target); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, nil
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)
	resp, err := h.client.Get(h.base + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestResolveValidation(t *testing.T) {
	h := newHarness(t)
	status, envelope := h.do(t, http.MethodPost, "/api/resolve", api.ResolveRequest{Topic: "  "}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if envelope.Error.Kind != "validation" {
		t.Errorf("kind = %q, want validation", envelope.Error.Kind)
	}
}

func TestDemoteUnknownTopic(t *testing.T) {
	h := newHarness(t)
	status, envelope := h.do(t, http.MethodPost, "/api/topics/never-seen/demote", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if envelope.Error.Kind != "not_found" {
		t.Errorf("kind = %q, want not_found", envelope.Error.Kind)
	}
}

// TestPromotionLifecycle drives the whole flow over HTTP: misses build
// signals, a sweep queues the remaster, the worker promotes, and the
// next resolve hits the cache. A demotion then unwinds it.
func TestPromotionLifecycle(t *testing.T) {
	h := newHarness(t)

	var first api.ResolveResponse
	if status, _ := h.do(t, http.MethodPost, "/api/resolve", api.ResolveRequest{Topic: "Black Holes", UserID: "u1"}, &first); status != http.StatusOK {
		t.Fatalf("resolve status = %d", status)
	}
	if first.CacheHit {
		t.Fatal("first resolve must miss")
	}

	for i := 0; i < 4; i++ {
		pct := 90.0
		cost := int64(40)
		usage := api.UsageRequest{
			Topic:         "Black Holes",
			UserID:        fmt.Sprintf("u%d", i+1),
			CompletionPct: &pct,
			Saved:         true,
			CostCents:     &cost,
		}
		var ack api.UsageResponse
		if status, _ := h.do(t, http.MethodPost, "/api/usage", usage, &ack); status != http.StatusOK {
			t.Fatalf("usage status = %d", status)
		}
		if ack.RequestID == 0 {
			t.Fatal("usage ack missing request id")
		}
	}

	// First sweep moves the cold topic into the candidate pool; the
	// second evaluates it and queues the remaster.
	var sweepResult map[string]int
	if status, _ := h.do(t, http.MethodPost, "/api/sweep", nil, &sweepResult); status != http.StatusOK {
		t.Fatal("first sweep failed")
	}
	if status, _ := h.do(t, http.MethodPost, "/api/sweep", nil, &sweepResult); status != http.StatusOK {
		t.Fatal("second sweep failed")
	}
	if sweepResult["promoted"] != 1 {
		t.Fatalf("second sweep = %v, want one promotion queued", sweepResult)
	}

	var remasterResult map[string]int
	if status, _ := h.do(t, http.MethodPost, "/api/remaster", nil, &remasterResult); status != http.StatusOK {
		t.Fatal("remaster failed")
	}
	if remasterResult["succeeded"] != 1 {
		t.Fatalf("remaster = %v, want one success", remasterResult)
	}

	var hit api.ResolveResponse
	if status, _ := h.do(t, http.MethodPost, "/api/resolve", api.ResolveRequest{Topic: "black holes", UserID: "u9"}, &hit); status != http.StatusOK {
		t.Fatal("resolve after promotion failed")
	}
	if !hit.CacheHit || hit.Episode == nil {
		t.Fatalf("resolve after promotion = %+v, want cache hit", hit)
	}
	if hit.Episode.AudioURL != "https://cdn/test.mp3" {
		t.Errorf("audio url = %q", hit.Episode.AudioURL)
	}

	var detail api.TopicDetailResponse
	if status, _ := h.do(t, http.MethodGet, "/api/topics/black%20holes", nil, &detail); status != http.StatusOK {
		t.Fatal("topic detail failed")
	}
	if detail.Topic.Status != "canon" || detail.Episode == nil {
		t.Fatalf("detail = %+v", detail.Topic)
	}

	var demote api.DemoteResponse
	if status, _ := h.do(t, http.MethodPost, "/api/topics/black%20holes/demote", api.DemoteRequest{}, &demote); status != http.StatusOK {
		t.Fatal("demote failed")
	}
	if demote.PreviousStatus != "canon" || demote.NewStatus != "candidate" {
		t.Fatalf("demote = %+v", demote)
	}

	var afterDemote api.ResolveResponse
	if status, _ := h.do(t, http.MethodPost, "/api/resolve", api.ResolveRequest{Topic: "Black Holes", UserID: "u10"}, &afterDemote); status != http.StatusOK {
		t.Fatal("resolve after demote failed")
	}
	if afterDemote.CacheHit {
		t.Error("demoted topic must miss")
	}

	var stats api.StatsResponse
	if status, _ := h.do(t, http.MethodGet, "/api/stats", nil, &stats); status != http.StatusOK {
		t.Fatal("stats failed")
	}
	if stats.TotalRequests == 0 {
		t.Error("stats should count recorded requests")
	}

	var daemonStatus api.StatusResponse
	if status, _ := h.do(t, http.MethodGet, "/api/status", nil, &daemonStatus); status != http.StatusOK {
		t.Fatal("status failed")
	}
	if !daemonStatus.Running {
		t.Error("status should report running")
	}
}
