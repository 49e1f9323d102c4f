package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"scholar-hub/internal/models"
)

// SortMode is a caller-selected ordering for posts or comments.
type SortMode string

const (
	SortHot           SortMode = "hot"
	SortBest          SortMode = "best"
	SortNew           SortMode = "new"
	SortOld           SortMode = "old"
	SortTop           SortMode = "top"
	SortControversial SortMode = "controversial"
	SortRising        SortMode = "rising"
)

var (
	postModes    = []SortMode{SortHot, SortNew, SortTop, SortControversial, SortRising}
	commentModes = []SortMode{SortBest, SortTop, SortNew, SortOld, SortControversial}
)

// OrderField names a stored field a mode can be served from.
type OrderField string

const (
	OrderByCachedScore OrderField = "cached_score"
	OrderByCreatedAt   OrderField = "created_at"
	OrderByNetVotes    OrderField = "net_votes"
)

// StoreOrder is the storage projection backing a cached-field mode.
type StoreOrder struct {
	Field      OrderField
	Descending bool
}

// ParseSortMode validates raw against the modes allowed for targetType.
// An empty string selects the default: hot for posts, best for comments.
func ParseSortMode(targetType models.VoteContentType, raw string) (SortMode, error) {
	modes := postModes
	def := SortHot
	if targetType == models.CommentVote {
		modes = commentModes
		def = SortBest
	}

	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return def, nil
	}
	for _, m := range modes {
		if string(m) == raw {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported sort %q for %s", raw, targetType)
}

// Computed reports whether the mode has no cached field and must be computed
// at query time over a bounded candidate window.
func (m SortMode) Computed() bool {
	return m == SortControversial || m == SortRising
}

// StoreOrder returns how storage should order candidates for this mode.
// Computed modes fetch the most recent window and sort in memory.
func (m SortMode) StoreOrder() StoreOrder {
	switch m {
	case SortHot, SortBest:
		return StoreOrder{Field: OrderByCachedScore, Descending: true}
	case SortTop:
		return StoreOrder{Field: OrderByNetVotes, Descending: true}
	case SortOld:
		return StoreOrder{Field: OrderByCreatedAt, Descending: false}
	default:
		return StoreOrder{Field: OrderByCreatedAt, Descending: true}
	}
}

// Key returns the score t ranks by under mode; larger sorts first. The
// time-ordered modes return 0 and are compared on CreatedAt instead.
func (m SortMode) Key(t *models.Target, now time.Time) float64 {
	switch m {
	case SortHot, SortBest:
		return t.CachedScore
	case SortTop:
		return float64(t.Upvotes - t.Downvotes)
	case SortControversial:
		return Controversial(t.Upvotes, t.Downvotes)
	case SortRising:
		return Rising(t.Upvotes, t.Downvotes, t.CreatedAt, now)
	default:
		return 0
	}
}

// Sort orders targets in place under mode. Ties fall back to newest first,
// then to ID, so the result is deterministic.
func Sort(mode SortMode, targets []*models.Target, now time.Time) {
	keys := make(map[*models.Target]float64, len(targets))
	for _, t := range targets {
		keys[t] = mode.Key(t, now)
	}

	sort.SliceStable(targets, func(i, j int) bool {
		a, b := targets[i], targets[j]
		if mode == SortOld && !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if ka, kb := keys[a], keys[b]; ka != kb {
			return ka > kb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
