// Package scoring holds the ranking formulas for posts and comments and the
// sort policies built on them. Every function here is pure.
package scoring

import (
	"math"
	"time"

	"scholar-hub/internal/models"
)

// Epoch is the fixed reference instant for Hot scores (2005-12-08T07:46:43Z).
// Hot scores computed against different epochs must never be compared.
var Epoch = time.Unix(1134028003, 0).UTC()

const (
	// hotDecaySeconds is how many seconds of age are worth one order of magnitude of votes.
	hotDecaySeconds = 45000.0

	// DefaultWilsonZ is the z-value for a 95% confidence interval.
	DefaultWilsonZ = 1.96

	controversialMinVotes = 5
	risingWindowHours     = 24.0
	risingMinAgeHours     = 0.1
)

// Hot returns the log-scaled, epoch-relative rank key for a post.
// The result does not depend on the current time: newer posts get a larger
// time term, so values are only meaningful relative to each other.
func Hot(up, down int, createdAt time.Time) float64 {
	score := up - down

	order := math.Log10(math.Max(math.Abs(float64(score)), 1))

	var sign float64
	switch {
	case score > 0:
		sign = 1
	case score < 0:
		sign = -1
	}

	ageSeconds := float64(createdAt.UnixMilli()-Epoch.UnixMilli()) / 1000
	return sign*order + ageSeconds/hotDecaySeconds
}

// Wilson returns the lower bound of the Wilson score interval at 95% confidence.
func Wilson(up, down int) float64 {
	return WilsonZ(up, down, DefaultWilsonZ)
}

// WilsonZ returns the lower bound of the Wilson score interval for the given z.
// The result is in [0, 1]; zero votes yields 0.
func WilsonZ(up, down int, z float64) float64 {
	n := float64(up + down)
	if n <= 0 {
		return 0
	}
	phat := float64(up) / n
	z2 := z * z
	return (phat + z2/(2*n) - z*math.Sqrt((phat*(1-phat)+z2/(4*n))/n)) / (1 + z2/n)
}

// Controversial favours targets with many votes split evenly between directions.
// Fewer than five votes always score 0; exactly five is scored.
func Controversial(up, down int) float64 {
	total := up + down
	if total < controversialMinVotes {
		return 0
	}
	hi := math.Max(float64(up), float64(down))
	lo := math.Min(float64(up), float64(down))
	if hi == 0 {
		return 0
	}
	return float64(total) * lo / hi
}

// Rising scores net votes per hour for targets younger than a day, fading
// linearly to zero at 24 hours.
func Rising(up, down int, createdAt, now time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	if ageHours > risingWindowHours {
		return 0
	}
	recency := math.Max(0, 1-ageHours/risingWindowHours)
	return (float64(up-down) / math.Max(ageHours, risingMinAgeHours)) * recency
}

// CachedScore is the score stored on a target: Hot for posts, Wilson for comments.
func CachedScore(targetType models.VoteContentType, up, down int, createdAt time.Time) float64 {
	if targetType == models.CommentVote {
		return Wilson(up, down)
	}
	return Hot(up, down, createdAt)
}
