package api

import (
	"time"

	"mindcast/internal/canon"
	"mindcast/internal/lifecycle"
	"mindcast/internal/store"
)

// TopicPayload is the wire form of a topic row.
type TopicPayload struct {
	Key             string     `json:"key"`
	Title           string     `json:"title"`
	Status          string     `json:"status"`
	RequestCount    int64      `json:"request_count"`
	UniqueUserCount int64      `json:"unique_user_count"`
	CompletionRate  *float64   `json:"completion_rate,omitempty"`
	SaveRate        *float64   `json:"save_rate,omitempty"`
	CanonScore      float64    `json:"canon_score"`
	CanonEpisodeID  string     `json:"canon_episode_id,omitempty"`
	CanonPromotedAt *time.Time `json:"canon_promoted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EpisodePayload is the wire form of an episode row.
type EpisodePayload struct {
	ID           string    `json:"id"`
	AudioURL     string    `json:"audio_url"`
	DurationSecs int64     `json:"duration_secs"`
	WordCount    int64     `json:"word_count"`
	CostCents    int64     `json:"cost_cents"`
	Canonical    bool      `json:"canonical"`
	CreatedAt    time.Time `json:"created_at"`
}

// JobPayload is the wire form of a remaster job row.
type JobPayload struct {
	ID          int64      `json:"id"`
	Status      string     `json:"status"`
	EpisodeID   string     `json:"episode_id,omitempty"`
	CostCents   *int64     `json:"cost_cents,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RequestPayload is the wire form of a usage event row.
type RequestPayload struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id,omitempty"`
	Type          string    `json:"type"`
	CacheHit      bool      `json:"cache_hit"`
	CompletionPct *float64  `json:"completion_pct,omitempty"`
	Saved         bool      `json:"saved"`
	Replayed      bool      `json:"replayed"`
	CostCents     *int64    `json:"cost_cents,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ResolveRequest asks the router where a topic request should go.
type ResolveRequest struct {
	Topic  string `json:"topic"`
	UserID string `json:"user_id"`
	Type   string `json:"type,omitempty"`
}

// ResolveResponse is the routing decision.
type ResolveResponse struct {
	Topic    TopicPayload    `json:"topic"`
	CacheHit bool            `json:"cache_hit"`
	Episode  *EpisodePayload `json:"episode,omitempty"`
}

// UsageRequest reports a usage outcome event.
type UsageRequest struct {
	Topic         string   `json:"topic"`
	UserID        string   `json:"user_id"`
	Type          string   `json:"type,omitempty"`
	CacheHit      bool     `json:"cache_hit"`
	CompletionPct *float64 `json:"completion_pct,omitempty"`
	Saved         bool     `json:"saved"`
	Replayed      bool     `json:"replayed"`
	CostCents     *int64   `json:"cost_cents,omitempty"`
}

// UsageResponse acknowledges a recorded usage event.
type UsageResponse struct {
	RequestID int64 `json:"request_id"`
}

// EvaluationPayload is the live promotion verdict for a topic.
type EvaluationPayload struct {
	Eligible bool     `json:"eligible"`
	Score    float64  `json:"score"`
	Reasons  []string `json:"reasons,omitempty"`
}

// TopicDetailResponse is the admin view of one topic.
type TopicDetailResponse struct {
	Topic      TopicPayload      `json:"topic"`
	Evaluation EvaluationPayload `json:"evaluation"`
	Episode    *EpisodePayload   `json:"episode,omitempty"`
	Jobs       []JobPayload      `json:"jobs,omitempty"`
	Requests   []RequestPayload  `json:"requests,omitempty"`
}

// DemoteRequest names the status a demoted topic lands in; empty means
// candidate.
type DemoteRequest struct {
	Target string `json:"target,omitempty"`
}

// DemoteResponse reports the demotion outcome.
type DemoteResponse struct {
	Topic          TopicPayload `json:"topic"`
	PreviousStatus string       `json:"previous_status"`
	NewStatus      string       `json:"new_status"`
	CancelledJobs  int64        `json:"cancelled_jobs"`
}

// StatsResponse is the system-wide aggregate view.
type StatsResponse struct {
	TopicsByStatus   map[string]int64 `json:"topics_by_status"`
	TotalRequests    int64            `json:"total_requests"`
	CacheHits        int64            `json:"cache_hits"`
	CacheHitRate     float64          `json:"cache_hit_rate"`
	TotalCostCents   int64            `json:"total_cost_cents"`
	AvgMissCostCents float64          `json:"avg_miss_cost_cents"`
	SavingsCents     int64            `json:"savings_cents"`
	JobsByStatus     map[string]int64 `json:"jobs_by_status"`
	TopCanon         []TopicPayload   `json:"top_canon,omitempty"`
	NearPromotion    []TopicPayload   `json:"near_promotion,omitempty"`
}

// StatusResponse describes the running daemon.
type StatusResponse struct {
	Running          bool   `json:"running"`
	PID              int    `json:"pid"`
	DatabasePath     string `json:"database_path"`
	LockFilePath     string `json:"lock_file_path"`
	SchedulerEnabled bool   `json:"scheduler_enabled"`
	DroppedEvents    int64  `json:"dropped_events"`
}

// ErrorBody is the uniform error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable error kind plus a message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FromTopic converts a topic row to its wire form.
func FromTopic(topic *canon.Topic) TopicPayload {
	return TopicPayload{
		Key:             topic.Key,
		Title:           topic.Title,
		Status:          string(topic.Status),
		RequestCount:    topic.RequestCount,
		UniqueUserCount: topic.UniqueUserCount,
		CompletionRate:  topic.CompletionRate,
		SaveRate:        topic.SaveRate,
		CanonScore:      topic.CanonScore,
		CanonEpisodeID:  topic.CanonEpisodeID,
		CanonPromotedAt: topic.CanonPromotedAt,
		CreatedAt:       topic.CreatedAt,
		UpdatedAt:       topic.UpdatedAt,
	}
}

// FromEpisode converts an episode row to its wire form; nil passes
// through.
func FromEpisode(episode *canon.Episode) *EpisodePayload {
	if episode == nil {
		return nil
	}
	return &EpisodePayload{
		ID:           episode.ID,
		AudioURL:     episode.AudioURL,
		DurationSecs: episode.DurationSecs,
		WordCount:    episode.WordCount,
		CostCents:    episode.CostCents,
		Canonical:    episode.Canonical,
		CreatedAt:    episode.CreatedAt,
	}
}

// FromJob converts a job row to its wire form.
func FromJob(job *canon.CanonJob) JobPayload {
	return JobPayload{
		ID:          job.ID,
		Status:      string(job.Status),
		EpisodeID:   job.EpisodeID,
		CostCents:   job.CostCents,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}

// FromUsage converts a usage event row to its wire form.
func FromUsage(req *canon.TopicRequest) RequestPayload {
	return RequestPayload{
		ID:            req.ID,
		UserID:        req.UserID,
		Type:          string(req.Type),
		CacheHit:      req.CacheHit,
		CompletionPct: req.CompletionPct,
		Saved:         req.Saved,
		Replayed:      req.Replayed,
		CostCents:     req.CostCents,
		CreatedAt:     req.CreatedAt,
	}
}

// FromDetail converts an assembled topic detail to its wire form.
func FromDetail(detail *lifecycle.TopicDetail) TopicDetailResponse {
	resp := TopicDetailResponse{
		Topic: FromTopic(detail.Topic),
		Evaluation: EvaluationPayload{
			Eligible: detail.Evaluation.Eligible,
			Score:    detail.Evaluation.Score,
			Reasons:  detail.Evaluation.Reasons,
		},
		Episode: FromEpisode(detail.Episode),
	}
	for _, job := range detail.Jobs {
		resp.Jobs = append(resp.Jobs, FromJob(job))
	}
	for _, req := range detail.Requests {
		resp.Requests = append(resp.Requests, FromUsage(req))
	}
	return resp
}

// FromStats converts system stats to their wire form.
func FromStats(stats *store.SystemStats) StatsResponse {
	resp := StatsResponse{
		TopicsByStatus:   make(map[string]int64, len(stats.TopicsByStatus)),
		TotalRequests:    stats.TotalRequests,
		CacheHits:        stats.CacheHits,
		CacheHitRate:     stats.CacheHitRate,
		TotalCostCents:   stats.TotalCostCents,
		AvgMissCostCents: stats.AvgMissCostCents,
		SavingsCents:     stats.SavingsCents,
		JobsByStatus:     make(map[string]int64, len(stats.JobsByStatus)),
	}
	for status, count := range stats.TopicsByStatus {
		resp.TopicsByStatus[string(status)] = count
	}
	for status, count := range stats.JobsByStatus {
		resp.JobsByStatus[string(status)] = count
	}
	for _, topic := range stats.TopCanon {
		resp.TopCanon = append(resp.TopCanon, FromTopic(topic))
	}
	for _, topic := range stats.NearPromotion {
		resp.NearPromotion = append(resp.NearPromotion, FromTopic(topic))
	}
	return resp
}
