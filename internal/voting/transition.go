// Package voting applies vote intents against the ledger and keeps the
// derived counters, cached scores and author karma consistent with it.
package voting

import "scholar-hub/internal/models"

// Transition names how a vote intent changes the (voter, target) state.
type Transition string

const (
	TransitionCreate    Transition = "create"
	TransitionToggleOff Transition = "toggle_off"
	TransitionSwitch    Transition = "switch"
	TransitionRemove    Transition = "remove"
)

// Delta is the change a transition applies to the target counters and to
// the author's karma.
type Delta struct {
	Upvotes   int
	Downvotes int
	Karma     int
}

// creationDelta is the effect of a fresh vote in direction d.
func creationDelta(d models.VoteDirection) Delta {
	if d == models.VoteUp {
		return Delta{Upvotes: 1, Karma: 1}
	}
	return Delta{Downvotes: 1, Karma: -1}
}

func (d Delta) inverse() Delta {
	return Delta{Upvotes: -d.Upvotes, Downvotes: -d.Downvotes, Karma: -d.Karma}
}

func (d Delta) plus(o Delta) Delta {
	return Delta{Upvotes: d.Upvotes + o.Upvotes, Downvotes: d.Downvotes + o.Downvotes, Karma: d.Karma + o.Karma}
}

// Plan decides the transition for intent given the voter's existing vote,
// which is nil when there is none. Re-casting the same direction toggles the
// vote off; the opposite direction switches it with double-magnitude karma.
// The returned direction is the voter's vote after the transition.
func Plan(existing *models.Vote, intent models.VoteDirection) (Transition, Delta, models.VoteDirection) {
	switch {
	case existing == nil:
		return TransitionCreate, creationDelta(intent), intent
	case existing.Direction == intent:
		return TransitionToggleOff, creationDelta(intent).inverse(), models.VoteNone
	default:
		return TransitionSwitch, creationDelta(existing.Direction).inverse().plus(creationDelta(intent)), intent
	}
}

// PlanRemoval is the explicit unvote of an existing vote.
func PlanRemoval(existing *models.Vote) (Transition, Delta) {
	return TransitionRemove, creationDelta(existing.Direction).inverse()
}
