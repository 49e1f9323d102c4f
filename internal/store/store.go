// Package store declares the persistence contract the voting core consumes.
// Implementations live in internal/database (MongoDB) and internal/store/sqlite.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"scholar-hub/internal/models"
	"scholar-hub/internal/scoring"
)

var (
	// ErrNotFound is returned when a target, vote or user does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateVote is returned by CreateVote when the unique
	// (voter, target type, target id) index rejects the insert.
	ErrDuplicateVote = errors.New("store: duplicate vote")
)

// TargetListOpts selects targets for a listing.
type TargetListOpts struct {
	Type   models.VoteContentType
	PostID *uuid.UUID // comments of one post; nil lists every target of Type
	Order  scoring.StoreOrder
	Limit  int
}

// TargetStore holds posts and comments and their denormalized vote counters.
type TargetStore interface {
	SavePost(ctx context.Context, post *models.Post) error
	SaveComment(ctx context.Context, comment *models.Comment) error
	SoftDeletePost(ctx context.Context, id uuid.UUID) error
	SoftDeleteComment(ctx context.Context, id uuid.UUID) error

	// GetTarget returns the votable projection of a post or comment,
	// including soft-deleted ones.
	GetTarget(ctx context.Context, ref models.TargetRef) (*models.Target, error)

	// IncrementVoteCounts atomically adds the deltas and returns the counts
	// after the increment, which may be negative if the counters drifted.
	IncrementVoteCounts(ctx context.Context, ref models.TargetRef, upDelta, downDelta int) (models.VoteCounts, error)

	// ClampVoteCounts raises negative counters back to zero and returns the result.
	ClampVoteCounts(ctx context.Context, ref models.TargetRef) (models.VoteCounts, error)

	// SetVoteCounts overwrites counters and cached score only if the target
	// still holds expected. It reports whether the write happened.
	// Reconciliation only.
	SetVoteCounts(ctx context.Context, ref models.TargetRef, expected, counts models.VoteCounts, score float64) (bool, error)

	// UpdateCachedScore writes score only if the target still holds counts.
	// It reports whether the write happened.
	UpdateCachedScore(ctx context.Context, ref models.TargetRef, counts models.VoteCounts, score float64) (bool, error)

	ListTargets(ctx context.Context, opts TargetListOpts) ([]*models.Target, error)
	ListTargetIDs(ctx context.Context, targetType models.VoteContentType) ([]uuid.UUID, error)
}

// VoteStore is the authoritative vote ledger.
type VoteStore interface {
	FindVote(ctx context.Context, voterID uuid.UUID, ref models.TargetRef) (*models.Vote, error)
	CreateVote(ctx context.Context, vote *models.Vote) error
	UpdateVote(ctx context.Context, vote *models.Vote, direction models.VoteDirection) error
	DeleteVote(ctx context.Context, vote *models.Vote) error
	FindVotesByVoter(ctx context.Context, voterID uuid.UUID, targetType models.VoteContentType, targetIDs []uuid.UUID) ([]*models.Vote, error)
	CountVotes(ctx context.Context, ref models.TargetRef) (models.VoteCounts, error)
}

// UserStore holds the reputation subset of user accounts.
type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	// IncrementKarma atomically adds delta and returns the updated user.
	IncrementKarma(ctx context.Context, id uuid.UUID, delta int) (*models.User, error)

	// SetRank writes rank only if the user still has karma. It reports
	// whether the write happened.
	SetRank(ctx context.Context, id uuid.UUID, karma int, rank models.Rank) (bool, error)
}

// Store is everything the voting core needs from persistence.
type Store interface {
	TargetStore
	VoteStore
	UserStore

	// WithinTx runs fn so that its writes commit together when the backend
	// supports transactions. Backends without them run fn directly and the
	// caller orders its writes ledger first.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Transactional reports whether WithinTx provides atomic commit.
	Transactional() bool

	Close(ctx context.Context) error
}
