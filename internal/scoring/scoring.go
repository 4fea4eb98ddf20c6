package scoring

import (
	"fmt"

	"mindcast/internal/canon"
)

// Composite weight constants. Tunable policy, not contract: the score
// only has to stay monotone in each signal and finite for any input.
const (
	weightVolume     = 0.35
	weightUsers      = 0.25
	weightCompletion = 0.25
	weightSave       = 0.15

	// Saturation midpoints for the diminishing-returns volume terms:
	// x/(x+k) reaches 0.5 at k and approaches 1 asymptotically.
	volumeMidpoint = 30.0
	usersMidpoint  = 20.0
)

// ComputeCanonScore maps aggregate signals to a composite in [0, 1).
// Missing completion and save rates contribute zero, which keeps
// low-evidence topics conservatively scored. All-zero signals score 0.
func ComputeCanonScore(signals canon.Signals) float64 {
	volume := saturate(float64(signals.RequestCount), volumeMidpoint)
	users := saturate(float64(signals.UniqueUserCount), usersMidpoint)

	completion := 0.0
	if signals.CompletionRate != nil {
		completion = clamp01(*signals.CompletionRate)
	}
	save := 0.0
	if signals.SaveRate != nil {
		save = clamp01(*signals.SaveRate)
	}

	return weightVolume*volume +
		weightUsers*users +
		weightCompletion*completion +
		weightSave*save
}

// Evaluation is the promotion verdict for one topic's signals.
type Evaluation struct {
	Eligible bool
	Score    float64
	Reasons  []string
}

// EvaluatePromotion checks every promotion threshold and reports which
// ones failed. A nil completion rate is treated as not-yet-eligible
// rather than passing by default.
func EvaluatePromotion(signals canon.Signals, thresholds canon.Thresholds) Evaluation {
	eval := Evaluation{Score: ComputeCanonScore(signals)}

	if signals.RequestCount < thresholds.MinRequests {
		eval.Reasons = append(eval.Reasons,
			fmt.Sprintf("requests %d below minimum %d", signals.RequestCount, thresholds.MinRequests))
	}
	if signals.UniqueUserCount < thresholds.MinUsers {
		eval.Reasons = append(eval.Reasons,
			fmt.Sprintf("unique users %d below minimum %d", signals.UniqueUserCount, thresholds.MinUsers))
	}
	switch {
	case signals.CompletionRate == nil:
		eval.Reasons = append(eval.Reasons, "completion rate has no samples yet")
	case *signals.CompletionRate < thresholds.MinCompletion:
		eval.Reasons = append(eval.Reasons,
			fmt.Sprintf("completion rate %.2f below minimum %.2f", *signals.CompletionRate, thresholds.MinCompletion))
	}
	switch {
	case signals.SaveRate == nil:
		eval.Reasons = append(eval.Reasons, "save rate has no samples yet")
	case *signals.SaveRate < thresholds.MinSaveRate:
		eval.Reasons = append(eval.Reasons,
			fmt.Sprintf("save rate %.2f below minimum %.2f", *signals.SaveRate, thresholds.MinSaveRate))
	}
	if eval.Score < thresholds.MinScore {
		eval.Reasons = append(eval.Reasons,
			fmt.Sprintf("canon score %.3f below minimum %.3f", eval.Score, thresholds.MinScore))
	}

	eval.Eligible = len(eval.Reasons) == 0
	return eval
}

func saturate(value, midpoint float64) float64 {
	if value <= 0 {
		return 0
	}
	return value / (value + midpoint)
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
