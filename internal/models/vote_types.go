package models

import (
	"time"

	"github.com/google/uuid"
)

// VoteContentType represents the type of content being voted on.
type VoteContentType string

const (
	PostVote    VoteContentType = "post"
	CommentVote VoteContentType = "comment"
)

// Valid reports whether t names a votable collection.
func (t VoteContentType) Valid() bool {
	return t == PostVote || t == CommentVote
}

// VoteDirection represents the direction of a vote.
type VoteDirection int

const (
	VoteDown VoteDirection = -1
	VoteNone VoteDirection = 0 // Used to indicate vote removal
	VoteUp   VoteDirection = 1
)

// Valid reports whether d is a castable direction. VoteNone is not castable.
func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// Vote is one ledger entry. At most one exists per (VoterID, TargetType, TargetID).
type Vote struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	VoterID    uuid.UUID       `json:"voterId" db:"voter_id"`
	TargetType VoteContentType `json:"targetType" db:"target_type"`
	TargetID   uuid.UUID       `json:"targetId" db:"target_id"`
	Direction  VoteDirection   `json:"voteType" db:"vote_type"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

// VoteTally is the public result of a vote operation.
type VoteTally struct {
	Upvotes   int           `json:"upvotes"`
	Downvotes int           `json:"downvotes"`
	Score     int           `json:"score"`
	UserVote  VoteDirection `json:"userVote"`
}

// NewVoteTally builds a tally from counts and the caller's current vote.
func NewVoteTally(counts VoteCounts, userVote VoteDirection) *VoteTally {
	return &VoteTally{
		Upvotes:   counts.Upvotes,
		Downvotes: counts.Downvotes,
		Score:     counts.Upvotes - counts.Downvotes,
		UserVote:  userVote,
	}
}
