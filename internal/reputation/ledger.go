// Package reputation applies karma to content authors and keeps their rank tier in step.
package reputation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scholar-hub/internal/models"
	"scholar-hub/internal/store"
)

var thresholds = []struct {
	below int
	rank  models.Rank
}{
	{100, models.RankNoob},
	{1000, models.RankScholar},
	{5000, models.RankExpert},
	{10000, models.RankGuru},
}

// RankFor maps karma to its tier. It is a pure step function.
func RankFor(karma int) models.Rank {
	for _, t := range thresholds {
		if karma < t.below {
			return t.rank
		}
	}
	return models.RankLegend
}

// Ledger applies karma deltas through a UserStore.
type Ledger struct {
	users  store.UserStore
	logger *zap.Logger
}

func NewLedger(users store.UserStore, logger *zap.Logger) *Ledger {
	return &Ledger{
		users:  users,
		logger: logger.Named("reputation"),
	}
}

// ApplyKarmaDelta atomically adds delta to the user's karma and persists
// the rank only when the tier changed. A zero delta is a no-op.
func (l *Ledger) ApplyKarmaDelta(ctx context.Context, userID uuid.UUID, delta int) (*models.User, error) {
	if delta == 0 {
		return l.users.GetUser(ctx, userID)
	}

	user, err := l.users.IncrementKarma(ctx, userID, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to apply karma to %s: %w", userID, err)
	}

	rank := RankFor(user.Karma)
	if rank == user.Rank {
		return user, nil
	}

	written, err := l.users.SetRank(ctx, userID, user.Karma, rank)
	if err != nil {
		return nil, fmt.Errorf("failed to update rank of %s: %w", userID, err)
	}
	if !written {
		// A concurrent delta moved karma on; its own pass sets the rank.
		l.logger.Debug("Skipped stale rank update",
			zap.String("userID", userID.String()),
			zap.Int("karma", user.Karma))
		return user, nil
	}

	l.logger.Info("Rank changed",
		zap.String("userID", userID.String()),
		zap.String("from", string(user.Rank)),
		zap.String("to", string(rank)),
		zap.Int("karma", user.Karma))
	user.Rank = rank
	return user, nil
}
