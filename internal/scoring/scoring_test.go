package scoring

import (
	"testing"

	"mindcast/internal/canon"
)

func ptr(v float64) *float64 { return &v }

func testThresholds() canon.Thresholds {
	return canon.Thresholds{
		SweepMinRequests: 5,
		MinRequests:      30,
		MinUsers:         20,
		MinCompletion:    0.6,
		MinSaveRate:      0.2,
		MinScore:         0.5,
	}
}

func TestComputeCanonScoreZeroSignals(t *testing.T) {
	if got := ComputeCanonScore(canon.Signals{}); got != 0 {
		t.Errorf("zero signals score = %v, want 0", got)
	}
}

func TestComputeCanonScoreBounded(t *testing.T) {
	score := ComputeCanonScore(canon.Signals{
		RequestCount:    1_000_000,
		UniqueUserCount: 1_000_000,
		CompletionRate:  ptr(1.0),
		SaveRate:        ptr(1.0),
	})
	if score <= 0 || score >= 1 {
		t.Errorf("saturated score = %v, want within (0, 1)", score)
	}
}

func TestComputeCanonScoreMonotone(t *testing.T) {
	base := canon.Signals{
		RequestCount:    40,
		UniqueUserCount: 25,
		CompletionRate:  ptr(0.7),
		SaveRate:        ptr(0.3),
	}
	baseScore := ComputeCanonScore(base)

	bumps := []canon.Signals{
		{RequestCount: 80, UniqueUserCount: 25, CompletionRate: ptr(0.7), SaveRate: ptr(0.3)},
		{RequestCount: 40, UniqueUserCount: 50, CompletionRate: ptr(0.7), SaveRate: ptr(0.3)},
		{RequestCount: 40, UniqueUserCount: 25, CompletionRate: ptr(0.9), SaveRate: ptr(0.3)},
		{RequestCount: 40, UniqueUserCount: 25, CompletionRate: ptr(0.7), SaveRate: ptr(0.6)},
	}
	for i, bumped := range bumps {
		if got := ComputeCanonScore(bumped); got <= baseScore {
			t.Errorf("bump %d: score %v not above base %v", i, got, baseScore)
		}
	}
}

func TestComputeCanonScoreMissingRatesConservative(t *testing.T) {
	withRates := ComputeCanonScore(canon.Signals{
		RequestCount:    40,
		UniqueUserCount: 25,
		CompletionRate:  ptr(0.7),
		SaveRate:        ptr(0.3),
	})
	withoutRates := ComputeCanonScore(canon.Signals{
		RequestCount:    40,
		UniqueUserCount: 25,
	})
	if withoutRates >= withRates {
		t.Errorf("missing rates score %v should fall below %v", withoutRates, withRates)
	}
}

func TestEvaluatePromotionEligible(t *testing.T) {
	eval := EvaluatePromotion(canon.Signals{
		RequestCount:    50,
		UniqueUserCount: 30,
		CompletionRate:  ptr(0.75),
		SaveRate:        ptr(0.3),
	}, testThresholds())
	if !eval.Eligible {
		t.Fatalf("expected eligible, reasons: %v", eval.Reasons)
	}
	if eval.Score < 0.5 {
		t.Errorf("eligible score = %v, want >= 0.5", eval.Score)
	}
}

func TestEvaluatePromotionBelowEachThreshold(t *testing.T) {
	good := canon.Signals{
		RequestCount:    50,
		UniqueUserCount: 30,
		CompletionRate:  ptr(0.75),
		SaveRate:        ptr(0.3),
	}
	cases := []struct {
		name   string
		mutate func(*canon.Signals)
	}{
		{"requests", func(s *canon.Signals) { s.RequestCount = 10 }},
		{"users", func(s *canon.Signals) { s.UniqueUserCount = 5 }},
		{"completion", func(s *canon.Signals) { s.CompletionRate = ptr(0.3) }},
		{"save rate", func(s *canon.Signals) { s.SaveRate = ptr(0.05) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signals := good
			tc.mutate(&signals)
			eval := EvaluatePromotion(signals, testThresholds())
			if eval.Eligible {
				t.Error("expected ineligible")
			}
			if len(eval.Reasons) == 0 {
				t.Error("expected at least one reason")
			}
		})
	}
}

func TestEvaluatePromotionNilRatesNotEligible(t *testing.T) {
	eval := EvaluatePromotion(canon.Signals{
		RequestCount:    100,
		UniqueUserCount: 80,
	}, testThresholds())
	if eval.Eligible {
		t.Error("missing rate samples must not promote")
	}
}
