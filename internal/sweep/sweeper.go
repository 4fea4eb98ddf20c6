package sweep

import (
	"context"
	"log/slog"

	"mindcast/internal/canon"
	"mindcast/internal/lifecycle"
	"mindcast/internal/logging"
	"mindcast/internal/store"
)

// Result summarizes one sweep pass.
type Result struct {
	Evaluated int `json:"evaluated"`
	Promoted  int `json:"promoted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Sweeper periodically re-evaluates the topic pool: cold topics with
// enough traffic become candidates, and candidates that clear every
// promotion threshold get a remaster job queued. Failures are isolated
// per topic so one bad row never aborts the pass.
type Sweeper struct {
	store   *store.Store
	manager *lifecycle.Manager
	logger  *slog.Logger
}

// NewSweeper constructs a sweeper over the store and lifecycle manager.
func NewSweeper(st *store.Store, manager *lifecycle.Manager, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:   st,
		manager: manager,
		logger:  logging.WithComponent(logger, "sweep"),
	}
}

// Run executes one full sweep pass and reports what it did.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var result Result

	if err := s.promoteColdTopics(ctx, &result); err != nil {
		return result, err
	}
	if err := s.evaluateCandidates(ctx, &result); err != nil {
		return result, err
	}

	s.logger.Info("sweep complete",
		logging.Int("evaluated", result.Evaluated),
		logging.Int("promoted", result.Promoted),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

// promoteColdTopics moves cold topics with enough requests into the
// candidate pool. The guard threshold is deliberately lower than the
// promotion minimum so topics are tracked well before they can promote.
func (s *Sweeper) promoteColdTopics(ctx context.Context, result *Result) error {
	cold, err := s.store.TopicsByStatus(ctx, canon.TopicCold)
	if err != nil {
		return err
	}
	minRequests := s.manager.Thresholds().SweepMinRequests
	for _, topic := range cold {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if topic.RequestCount < minRequests {
			continue
		}
		if _, err := s.manager.MarkCandidate(ctx, topic); err != nil {
			result.Failed++
			s.logger.Warn("cold topic transition failed",
				logging.String("topic", topic.Key),
				logging.Error(err),
			)
		}
	}
	return nil
}

func (s *Sweeper) evaluateCandidates(ctx context.Context, result *Result) error {
	candidates, err := s.store.TopicsByStatus(ctx, canon.TopicCandidate)
	if err != nil {
		return err
	}
	for _, topic := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.Evaluated++

		eval, err := s.manager.RefreshScore(ctx, topic)
		if err != nil {
			result.Failed++
			s.logger.Warn("score refresh failed",
				logging.String("topic", topic.Key),
				logging.Error(err),
			)
			continue
		}
		if !eval.Eligible {
			result.Skipped++
			s.logger.Debug("candidate below thresholds",
				logging.String("topic", topic.Key),
				logging.Float64("score", eval.Score),
				logging.Any("reasons", eval.Reasons),
			)
			continue
		}

		_, created, err := s.manager.EnqueueRemaster(ctx, topic)
		if err != nil {
			result.Failed++
			s.logger.Warn("remaster enqueue failed",
				logging.String("topic", topic.Key),
				logging.Error(err),
			)
			continue
		}
		if created {
			result.Promoted++
		} else {
			// An active job already holds the slot; nothing to do.
			result.Skipped++
		}
	}
	return nil
}
