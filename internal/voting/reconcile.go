package voting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"scholar-hub/internal/dbretry"
	"scholar-hub/internal/models"
	"scholar-hub/internal/scoring"
	"scholar-hub/internal/utils"
)

const (
	defaultRepairConcurrency = 8

	// maxReconcilePasses bounds re-reads when live votes keep moving the counters.
	maxReconcilePasses = 3
)

// RepairReport summarizes one RepairAll pass.
type RepairReport struct {
	Type     models.VoteContentType `json:"targetType"`
	Checked  int                    `json:"checked"`
	Repaired int                    `json:"repaired"`
	Failed   int                    `json:"failed"`
	Duration time.Duration          `json:"duration"`
}

// RecomputeCountsFromLedger rebuilds a target's counters and cached score
// from its ledger entries. It reports whether the stored values had drifted.
// The write only lands while the counters still hold what was read, so a vote
// applied mid-pass triggers a fresh pass instead of being overwritten.
// Author karma is not rebuilt.
func (s *Service) RecomputeCountsFromLedger(ctx context.Context, ref models.TargetRef) (models.VoteCounts, bool, error) {
	var (
		counts  models.VoteCounts
		drifted bool
	)

	for pass := 1; pass <= maxReconcilePasses; pass++ {
		written := true
		err := dbretry.NoResult(ctx, s.retry, func(ctx context.Context) error {
			return s.store.WithinTx(ctx, func(ctx context.Context) error {
				target, err := s.store.GetTarget(ctx, ref)
				if err != nil {
					return targetError(ref, err)
				}

				counts, err = s.store.CountVotes(ctx, ref)
				if err != nil {
					return fmt.Errorf("failed to count ledger for %s: %w", ref, err)
				}

				stored := target.Counts()
				score := scoring.CachedScore(ref.Type, counts.Upvotes, counts.Downvotes, target.CreatedAt)
				drifted = counts != stored
				if !drifted && math.Abs(score-target.CachedScore) < 1e-9 {
					return nil
				}

				if drifted {
					s.logger.Warn("Vote counters drifted from ledger",
						zap.String("target", ref.String()),
						zap.Int("storedUpvotes", stored.Upvotes),
						zap.Int("storedDownvotes", stored.Downvotes),
						zap.Int("ledgerUpvotes", counts.Upvotes),
						zap.Int("ledgerDownvotes", counts.Downvotes))
				}
				written, err = s.store.SetVoteCounts(ctx, ref, stored, counts, score)
				return err
			})
		})
		if err != nil {
			return counts, false, toAppError(err, "failed to reconcile target")
		}
		if written {
			return counts, drifted, nil
		}
		s.logger.Debug("Counters moved during reconciliation, re-reading",
			zap.String("target", ref.String()),
			zap.Int("pass", pass))
	}
	return counts, false, utils.NewAppError(utils.ErrDatabase, "counters kept moving during reconciliation", nil)
}

// RepairAll reconciles every target of a type, including soft-deleted ones,
// with at most concurrency targets in flight.
func (s *Service) RepairAll(ctx context.Context, targetType models.VoteContentType, concurrency int) (*RepairReport, error) {
	if !targetType.Valid() {
		return nil, fmt.Errorf("invalid target type %q", targetType)
	}
	if concurrency <= 0 {
		concurrency = defaultRepairConcurrency
	}

	start := time.Now()
	ids, err := dbretry.Operation(ctx, s.retry, func(ctx context.Context) ([]uuid.UUID, error) {
		return s.store.ListTargetIDs(ctx, targetType)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ids: %w", targetType, err)
	}

	var repaired, failed atomic.Int64
	p := pool.New().WithContext(ctx).WithMaxGoroutines(concurrency)
	for _, id := range ids {
		id := id
		p.Go(func(ctx context.Context) error {
			ref := models.TargetRef{Type: targetType, ID: id}
			_, drifted, err := s.RecomputeCountsFromLedger(ctx, ref)
			if err != nil {
				failed.Add(1)
				return fmt.Errorf("%s: %w", ref, err)
			}
			if drifted {
				repaired.Add(1)
			}
			return nil
		})
	}
	poolErr := p.Wait()

	report := &RepairReport{
		Type:     targetType,
		Checked:  len(ids),
		Repaired: int(repaired.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	s.logger.Info("Reconciliation finished",
		zap.String("targetType", string(targetType)),
		zap.Int("checked", report.Checked),
		zap.Int("repaired", report.Repaired),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))

	if poolErr != nil && !errors.Is(poolErr, context.Canceled) {
		return report, poolErr
	}
	return report, ctx.Err()
}
