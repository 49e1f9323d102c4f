package models

import (
	"time"

	"github.com/google/uuid"
)

// TargetRef identifies a votable post or comment.
type TargetRef struct {
	Type VoteContentType `json:"targetType"`
	ID   uuid.UUID       `json:"targetId"`
}

func (r TargetRef) String() string {
	return string(r.Type) + ":" + r.ID.String()
}

// VoteCounts are the denormalized counters stored on a target.
type VoteCounts struct {
	Upvotes   int `json:"upvotes" db:"upvotes"`
	Downvotes int `json:"downvotes" db:"downvotes"`
}

// Net returns upvotes minus downvotes.
func (c VoteCounts) Net() int {
	return c.Upvotes - c.Downvotes
}

// Underflowed reports whether either counter went below zero.
func (c VoteCounts) Underflowed() bool {
	return c.Upvotes < 0 || c.Downvotes < 0
}

// Target is the uniform view of a Post or Comment used by the voting core.
// CachedScore is Hot for posts and Wilson for comments.
type Target struct {
	Type        VoteContentType `json:"targetType"`
	ID          uuid.UUID       `json:"id"`
	PostID      uuid.UUID       `json:"postId,omitempty"` // comments only
	AuthorID    uuid.UUID       `json:"authorId"`
	Upvotes     int             `json:"upvotes"`
	Downvotes   int             `json:"downvotes"`
	CachedScore float64         `json:"cachedScore"`
	CreatedAt   time.Time       `json:"createdAt"`
	IsAnonymous bool            `json:"isAnonymous"`
	IsDeleted   bool            `json:"isDeleted"`
}

func (t *Target) Ref() TargetRef {
	return TargetRef{Type: t.Type, ID: t.ID}
}

func (t *Target) Counts() VoteCounts {
	return VoteCounts{Upvotes: t.Upvotes, Downvotes: t.Downvotes}
}
