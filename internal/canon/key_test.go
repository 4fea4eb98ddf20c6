package canon

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Photosynthesis", "photosynthesis"},
		{"  The French   Revolution  ", "the french revolution"},
		{"BLACK\tHOLES", "black holes"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeKeyCollapsesToSameTopic(t *testing.T) {
	variants := []string{"Black Holes", "black holes", "  BLACK   HOLES "}
	want := NormalizeKey(variants[0])
	for _, v := range variants {
		if got := NormalizeKey(v); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestParseRequestType(t *testing.T) {
	if got, ok := ParseRequestType(""); !ok || got != RequestGenerate {
		t.Errorf("empty type = %q, %v; want generate, true", got, ok)
	}
	if got, ok := ParseRequestType(" Playback "); !ok || got != RequestPlayback {
		t.Errorf("playback = %q, %v", got, ok)
	}
	if _, ok := ParseRequestType("download"); ok {
		t.Error("unknown type should not parse")
	}
}

func TestParseTopicStatus(t *testing.T) {
	if got, ok := ParseTopicStatus("Candidate"); !ok || got != TopicCandidate {
		t.Errorf("candidate = %q, %v", got, ok)
	}
	if _, ok := ParseTopicStatus("promoted"); ok {
		t.Error("unknown status should not parse")
	}
}

func TestTopicIsCanon(t *testing.T) {
	topic := &Topic{Status: TopicCanon}
	if topic.IsCanon() {
		t.Error("canon status without episode should not serve from cache")
	}
	topic.CanonEpisodeID = "ep-1"
	if !topic.IsCanon() {
		t.Error("canon status with episode should serve from cache")
	}
	topic.Status = TopicCandidate
	if topic.IsCanon() {
		t.Error("candidate must never serve from cache")
	}
}

func TestJobStatusIsActive(t *testing.T) {
	for status, want := range map[JobStatus]bool{
		JobQueued:    true,
		JobRunning:   true,
		JobSucceeded: false,
		JobFailed:    false,
	} {
		if got := status.IsActive(); got != want {
			t.Errorf("%s.IsActive() = %v, want %v", status, got, want)
		}
	}
}
