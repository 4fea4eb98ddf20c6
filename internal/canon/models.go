package canon

import (
	"strings"
	"time"
)

// TopicStatus represents the cache lifecycle of a topic.
type TopicStatus string

const (
	TopicCold      TopicStatus = "cold"
	TopicCandidate TopicStatus = "candidate"
	TopicCanon     TopicStatus = "canon"
)

var topicStatusSet = map[TopicStatus]struct{}{
	TopicCold:      {},
	TopicCandidate: {},
	TopicCanon:     {},
}

// ParseTopicStatus converts a string into a known TopicStatus.
func ParseTopicStatus(value string) (TopicStatus, bool) {
	normalized := TopicStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := topicStatusSet[normalized]
	return normalized, ok
}

// Topic is a canonicalized subject plus its rolling usage aggregates.
type Topic struct {
	ID              int64
	Key             string
	Title           string
	Status          TopicStatus
	RequestCount    int64
	UniqueUserCount int64
	CompletionRate  *float64
	SaveRate        *float64
	CanonScore      float64
	CanonEpisodeID  string
	CanonPromotedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsCanon reports whether the topic currently serves a cached episode.
func (t *Topic) IsCanon() bool {
	return t != nil && t.Status == TopicCanon && t.CanonEpisodeID != ""
}

// Signals is the aggregate tuple consumed by the promotion scorer.
type Signals struct {
	RequestCount    int64
	UniqueUserCount int64
	CompletionRate  *float64
	SaveRate        *float64
}

// Signals extracts the scoring inputs from a topic row.
func (t *Topic) Signals() Signals {
	return Signals{
		RequestCount:    t.RequestCount,
		UniqueUserCount: t.UniqueUserCount,
		CompletionRate:  t.CompletionRate,
		SaveRate:        t.SaveRate,
	}
}

// RequestType classifies a usage event.
type RequestType string

const (
	RequestGenerate RequestType = "generate"
	RequestPlayback RequestType = "playback"
)

// ParseRequestType converts a string into a known RequestType, defaulting
// to generate for empty input.
func ParseRequestType(value string) (RequestType, bool) {
	normalized := RequestType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return RequestGenerate, true
	case RequestGenerate, RequestPlayback:
		return normalized, true
	default:
		return "", false
	}
}

// TopicRequest is one immutable usage event. Rows are append-only; the
// topic aggregates are derived from them and never fed back.
type TopicRequest struct {
	ID            int64
	TopicID       int64
	UserID        string
	Type          RequestType
	CacheHit      bool
	CompletionPct *float64
	Saved         bool
	Replayed      bool
	CostCents     *int64
	CreatedAt     time.Time
}

// JobStatus represents the lifecycle of a remaster job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// DemotedJobError is the synthetic error recorded on jobs cancelled by an
// administrative demotion.
const DemotedJobError = "demoted"

// IsActive reports whether a job status still holds the per-topic slot.
func (s JobStatus) IsActive() bool {
	return s == JobQueued || s == JobRunning
}

// CanonJob is one unit of remaster work. At most one job per topic may be
// queued or running at any time.
type CanonJob struct {
	ID          int64
	TopicID     int64
	Status      JobStatus
	EpisodeID   string
	CostCents   *int64
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Episode is the durable audio artifact a successful remaster produces.
type Episode struct {
	ID           string
	TopicID      int64
	AudioURL     string
	DurationSecs int64
	WordCount    int64
	CostCents    int64
	Canonical    bool
	CreatedAt    time.Time
}

// Thresholds is the process-wide promotion policy, read-only at runtime.
// SweepMinRequests gates COLD -> CANDIDATE and is deliberately smaller
// than MinRequests so topics are tracked before they can promote.
type Thresholds struct {
	SweepMinRequests int64
	MinRequests      int64
	MinUsers         int64
	MinCompletion    float64
	MinSaveRate      float64
	MinScore         float64
}
