package voting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scholar-hub/internal/dbretry"
	"scholar-hub/internal/models"
	"scholar-hub/internal/reputation"
	"scholar-hub/internal/scoring"
	"scholar-hub/internal/store"
	"scholar-hub/internal/utils"
)

const (
	// maxDuplicateAttempts bounds how often a vote is re-run after losing
	// a unique-index race to a concurrent request from the same voter.
	maxDuplicateAttempts = 3

	defaultCandidateWindow = 500
	defaultListLimit       = 25
	maxListLimit           = 100
	maxLookupIDs           = 500
)

// errLedgerNotReversed marks a counter failure whose ledger write could not
// be reversed, so the ledger already holds the new vote.
var errLedgerNotReversed = errors.New("ledger write not reversed")

// Limiter throttles votes per voter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Options are the optional collaborators and tunables of a Service.
type Options struct {
	Limiter         Limiter
	Metrics         *utils.MetricsCollector
	CandidateWindow int
	Retry           *dbretry.Options
	Now             func() time.Time
}

// Service is the vote state machine and ranking entry point.
type Service struct {
	store           store.Store
	reputation      *reputation.Ledger
	limiter         Limiter
	metrics         *utils.MetricsCollector
	candidateWindow int
	retry           dbretry.Options
	now             func() time.Time
	logger          *zap.Logger
}

func NewService(st store.Store, logger *zap.Logger, opts Options) *Service {
	s := &Service{
		store:           st,
		reputation:      reputation.NewLedger(st, logger),
		limiter:         opts.Limiter,
		metrics:         opts.Metrics,
		candidateWindow: opts.CandidateWindow,
		retry:           dbretry.DefaultOptions(),
		now:             opts.Now,
		logger:          logger.Named("vote_service"),
	}
	if opts.Retry != nil {
		s.retry = *opts.Retry
	}
	if s.candidateWindow <= 0 {
		s.candidateWindow = defaultCandidateWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = utils.NewMetricsCollector(nil)
	}
	return s
}

// CastVote applies intent from actorID to the target and returns the new tally.
// Casting the same direction twice cancels the vote.
func (s *Service) CastVote(ctx context.Context, actorID uuid.UUID, targetType models.VoteContentType, targetID uuid.UUID, intent models.VoteDirection) (*models.VoteTally, error) {
	start := time.Now()
	defer func() { s.metrics.AddOperationLatency("cast_vote", time.Since(start)) }()

	if err := validateActor(actorID); err != nil {
		return nil, err
	}
	if !targetType.Valid() {
		return nil, utils.NewValidationError("invalid targetType %q", targetType)
	}
	if !intent.Valid() {
		return nil, utils.NewValidationError("voteType must be 1 or -1, got %d", intent)
	}
	if err := s.checkRateLimit(ctx, actorID); err != nil {
		return nil, err
	}

	ref := models.TargetRef{Type: targetType, ID: targetID}
	afterDuplicate := false
	var pending *ledgerWrite
	for attempt := 1; attempt <= maxDuplicateAttempts; attempt++ {
		tally, err := dbretry.Operation(ctx, s.retry, func(ctx context.Context) (*models.VoteTally, error) {
			return s.apply(ctx, actorID, ref, intent, afterDuplicate, &pending)
		})
		if errors.Is(err, store.ErrDuplicateVote) {
			s.logger.Debug("Concurrent vote detected, re-reading ledger",
				zap.String("target", ref.String()),
				zap.String("voterID", actorID.String()),
				zap.Int("attempt", attempt))
			afterDuplicate = true
			continue
		}
		if err != nil {
			return nil, toAppError(err, "failed to apply vote")
		}
		return tally, nil
	}

	return nil, utils.NewAppError(utils.ErrDatabase, "vote kept conflicting with concurrent requests", store.ErrDuplicateVote)
}

// apply runs one attempt of the state machine. afterDuplicate is set when a
// previous attempt lost the unique-index race: if the winner already holds
// the requested direction the request collapses into it. pending carries a
// ledger write from an earlier attempt that still needs its counters.
func (s *Service) apply(ctx context.Context, actorID uuid.UUID, ref models.TargetRef, intent models.VoteDirection, afterDuplicate bool, pending **ledgerWrite) (*models.VoteTally, error) {
	var tally *models.VoteTally

	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		target, err := s.store.GetTarget(ctx, ref)
		if err != nil {
			return targetError(ref, err)
		}
		if target.IsDeleted && *pending == nil {
			return utils.NewNotFoundError(string(ref.Type), nil)
		}
		if target.AuthorID == actorID {
			return utils.NewSelfVoteError()
		}

		existing, err := s.findVote(ctx, actorID, ref)
		if err != nil {
			return err
		}

		if afterDuplicate && *pending == nil && existing != nil && existing.Direction == intent {
			tally = models.NewVoteTally(target.Counts(), intent)
			return nil
		}

		w, counts, err := s.commit(ctx, target, actorID, existing, pending, func(existing *models.Vote) (Transition, Delta, models.VoteDirection, error) {
			transition, delta, after := Plan(existing, intent)
			return transition, delta, after, nil
		})
		if err != nil {
			return err
		}

		s.metrics.RecordTransition(string(ref.Type), string(w.transition))
		s.logger.Info("Vote applied",
			zap.String("target", ref.String()),
			zap.String("voterID", actorID.String()),
			zap.String("transition", string(w.transition)),
			zap.Int("upvotes", counts.Upvotes),
			zap.Int("downvotes", counts.Downvotes))

		tally = models.NewVoteTally(counts, w.after)
		return nil
	})
	return tally, err
}

// RemoveVote deletes the actor's vote on the target. Votes on soft-deleted
// targets can still be removed.
func (s *Service) RemoveVote(ctx context.Context, actorID uuid.UUID, targetType models.VoteContentType, targetID uuid.UUID) error {
	start := time.Now()
	defer func() { s.metrics.AddOperationLatency("remove_vote", time.Since(start)) }()

	if err := validateActor(actorID); err != nil {
		return err
	}
	if !targetType.Valid() {
		return utils.NewValidationError("invalid targetType %q", targetType)
	}

	ref := models.TargetRef{Type: targetType, ID: targetID}
	var pending *ledgerWrite
	err := dbretry.NoResult(ctx, s.retry, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context) error {
			target, err := s.store.GetTarget(ctx, ref)
			if err != nil {
				return targetError(ref, err)
			}

			existing, err := s.findVote(ctx, actorID, ref)
			if err != nil {
				return err
			}

			w, _, err := s.commit(ctx, target, actorID, existing, &pending, func(existing *models.Vote) (Transition, Delta, models.VoteDirection, error) {
				if existing == nil {
					return "", Delta{}, models.VoteNone, utils.NewNotFoundError("vote", nil)
				}
				transition, delta := PlanRemoval(existing)
				return transition, delta, models.VoteNone, nil
			})
			if err != nil {
				return err
			}

			s.metrics.RecordTransition(string(ref.Type), string(w.transition))
			s.logger.Info("Vote removed",
				zap.String("target", ref.String()),
				zap.String("voterID", actorID.String()))
			return nil
		})
	})
	if err != nil {
		return toAppError(err, "failed to remove vote")
	}
	return nil
}

// GetUserVotes returns the actor's current direction on each of targetIDs
// that they voted on. Targets without a vote are absent from the map.
func (s *Service) GetUserVotes(ctx context.Context, actorID uuid.UUID, targetType models.VoteContentType, targetIDs []uuid.UUID) (map[uuid.UUID]models.VoteDirection, error) {
	if err := validateActor(actorID); err != nil {
		return nil, err
	}
	if !targetType.Valid() {
		return nil, utils.NewValidationError("invalid targetType %q", targetType)
	}
	if len(targetIDs) > maxLookupIDs {
		return nil, utils.NewValidationError("at most %d ids per lookup", maxLookupIDs)
	}

	votes, err := dbretry.Operation(ctx, s.retry, func(ctx context.Context) ([]*models.Vote, error) {
		return s.store.FindVotesByVoter(ctx, actorID, targetType, targetIDs)
	})
	if err != nil {
		return nil, toAppError(err, "failed to load votes")
	}

	result := make(map[uuid.UUID]models.VoteDirection, len(votes))
	for _, v := range votes {
		result[v.TargetID] = v.Direction
	}
	return result, nil
}

// SortTargets returns a sorted copy of candidates.
func (s *Service) SortTargets(mode scoring.SortMode, candidates []*models.Target, now time.Time) []*models.Target {
	sorted := make([]*models.Target, len(candidates))
	copy(sorted, candidates)
	scoring.Sort(mode, sorted, now)
	return sorted
}

// ListTargets returns live targets ordered by the sort mode. Cached-field
// modes are served by storage; controversial and rising are computed over
// the most recent candidate window only.
func (s *Service) ListTargets(ctx context.Context, targetType models.VoteContentType, postID *uuid.UUID, rawMode string, limit int) ([]*models.Target, error) {
	start := time.Now()
	defer func() { s.metrics.AddOperationLatency("list_targets", time.Since(start)) }()

	if !targetType.Valid() {
		return nil, utils.NewValidationError("invalid targetType %q", targetType)
	}
	if targetType == models.CommentVote && postID == nil {
		return nil, utils.NewValidationError("postId is required to list comments")
	}
	mode, err := scoring.ParseSortMode(targetType, rawMode)
	if err != nil {
		return nil, utils.NewValidationError("%v", err)
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	opts := store.TargetListOpts{Type: targetType, PostID: postID, Order: mode.StoreOrder(), Limit: limit}
	if mode.Computed() {
		opts.Limit = s.candidateWindow
	}

	targets, err := dbretry.Operation(ctx, s.retry, func(ctx context.Context) ([]*models.Target, error) {
		return s.store.ListTargets(ctx, opts)
	})
	if err != nil {
		return nil, toAppError(err, "failed to list targets")
	}

	if mode.Computed() {
		targets = s.SortTargets(mode, targets, s.now())
		if len(targets) > limit {
			targets = targets[:limit]
		}
	}
	return targets, nil
}

// CreatePost stores a new post with zeroed counters and its initial hot score.
func (s *Service) CreatePost(ctx context.Context, post *models.Post) error {
	if err := validateActor(post.AuthorID); err != nil {
		return err
	}
	if strings.TrimSpace(post.Title) == "" {
		return utils.NewValidationError("title is required")
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = s.now()
	}
	post.Upvotes, post.Downvotes, post.IsDeleted = 0, 0, false
	post.HotScore = scoring.Hot(0, 0, post.CreatedAt)

	if err := s.store.SavePost(ctx, post); err != nil {
		return toAppError(err, "failed to save post")
	}
	s.logger.Info("Post created", zap.String("postID", post.ID.String()))
	return nil
}

// CreateComment stores a new comment on an existing, live post.
func (s *Service) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := validateActor(comment.AuthorID); err != nil {
		return err
	}
	if strings.TrimSpace(comment.Content) == "" {
		return utils.NewValidationError("content is required")
	}

	postRef := models.TargetRef{Type: models.PostVote, ID: comment.PostID}
	post, err := s.store.GetTarget(ctx, postRef)
	if err != nil {
		return toAppError(targetError(postRef, err), "failed to load post")
	}
	if post.IsDeleted {
		return utils.NewNotFoundError("post", nil)
	}
	if comment.ParentID != nil {
		parentRef := models.TargetRef{Type: models.CommentVote, ID: *comment.ParentID}
		parent, err := s.store.GetTarget(ctx, parentRef)
		if err != nil {
			return toAppError(targetError(parentRef, err), "failed to load parent comment")
		}
		if parent.PostID != comment.PostID {
			return utils.NewValidationError("parent comment belongs to another post")
		}
	}

	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = s.now()
	}
	comment.Upvotes, comment.Downvotes, comment.IsDeleted = 0, 0, false
	comment.BestScore = scoring.Wilson(0, 0)

	if err := s.store.SaveComment(ctx, comment); err != nil {
		return toAppError(err, "failed to save comment")
	}
	s.logger.Info("Comment created",
		zap.String("commentID", comment.ID.String()),
		zap.String("postID", comment.PostID.String()))
	return nil
}

// DeleteTarget soft-deletes a post or comment on behalf of its author. Its
// votes and counters are kept; it stops accepting new votes. Deleting twice
// is a no-op.
func (s *Service) DeleteTarget(ctx context.Context, actorID uuid.UUID, ref models.TargetRef) error {
	if err := validateActor(actorID); err != nil {
		return err
	}
	if !ref.Type.Valid() {
		return utils.NewValidationError("invalid targetType %q", ref.Type)
	}

	target, err := s.store.GetTarget(ctx, ref)
	if err != nil {
		return toAppError(targetError(ref, err), "failed to load target")
	}
	if target.AuthorID != actorID {
		return utils.NewForbiddenError("only the author can delete this " + string(ref.Type))
	}
	if target.IsDeleted {
		return nil
	}

	if ref.Type == models.PostVote {
		err = s.store.SoftDeletePost(ctx, ref.ID)
	} else {
		err = s.store.SoftDeleteComment(ctx, ref.ID)
	}
	if err != nil {
		return toAppError(targetError(ref, err), "failed to delete target")
	}
	s.logger.Info("Target soft-deleted", zap.String("target", ref.String()))
	return nil
}

func (s *Service) checkRateLimit(ctx context.Context, actorID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, actorID.String())
	if err != nil {
		s.logger.Warn("Rate limiter unavailable, allowing vote", zap.Error(err))
	}
	if !ok {
		return utils.NewAppError(utils.ErrTooManyRequests, "Too many votes, slow down", nil)
	}
	return nil
}

func (s *Service) findVote(ctx context.Context, actorID uuid.UUID, ref models.TargetRef) (*models.Vote, error) {
	vote, err := s.store.FindVote(ctx, actorID, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return vote, err
}

// ledgerWrite is a planned transition whose ledger half has been written.
type ledgerWrite struct {
	transition Transition
	delta      Delta
	after      models.VoteDirection
	undo       func(context.Context) error
}

// heldBy reports whether the ledger still shows this write.
func (w *ledgerWrite) heldBy(existing *models.Vote) bool {
	if w.after == models.VoteNone {
		return existing == nil
	}
	return existing != nil && existing.Direction == w.after
}

// commit plans a transition against existing, writes the ledger and moves
// the counters. When an earlier attempt left its ledger write in place and
// the ledger still shows it, only the counter half is run again.
func (s *Service) commit(ctx context.Context, target *models.Target, actorID uuid.UUID, existing *models.Vote, pending **ledgerWrite, plan func(*models.Vote) (Transition, Delta, models.VoteDirection, error)) (*ledgerWrite, models.VoteCounts, error) {
	ref := target.Ref()
	w := *pending
	*pending = nil

	if w != nil && w.heldBy(existing) {
		s.logger.Warn("Finishing vote whose ledger write was not reversed",
			zap.String("target", ref.String()),
			zap.String("voterID", actorID.String()),
			zap.String("transition", string(w.transition)))
	} else {
		if w != nil {
			s.logger.Error("Ledger changed after an unreversed write, counters left to reconciliation",
				zap.String("target", ref.String()),
				zap.String("voterID", actorID.String()))
		}
		transition, delta, after, err := plan(existing)
		if err != nil {
			return nil, models.VoteCounts{}, err
		}
		undo, err := s.writeLedger(ctx, transition, existing, actorID, ref, after)
		if err != nil {
			return nil, models.VoteCounts{}, err
		}
		w = &ledgerWrite{transition: transition, delta: delta, after: after, undo: undo}
	}

	counts, err := s.applyDelta(ctx, target, w.delta, w.undo)
	if errors.Is(err, errLedgerNotReversed) {
		*pending = w
	}
	return w, counts, err
}

// writeLedger performs the ledger half of a transition and returns the write
// that reverses it, used when the store cannot roll back.
func (s *Service) writeLedger(ctx context.Context, transition Transition, existing *models.Vote, actorID uuid.UUID, ref models.TargetRef, intent models.VoteDirection) (func(context.Context) error, error) {
	switch transition {
	case TransitionCreate:
		vote := &models.Vote{VoterID: actorID, TargetType: ref.Type, TargetID: ref.ID, Direction: intent}
		if err := s.store.CreateVote(ctx, vote); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error { return s.store.DeleteVote(ctx, vote) }, nil

	case TransitionSwitch:
		previous := existing.Direction
		if err := s.store.UpdateVote(ctx, existing, intent); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error { return s.store.UpdateVote(ctx, existing, previous) }, nil

	default: // toggle-off and remove
		if err := s.store.DeleteVote(ctx, existing); err != nil {
			return nil, err
		}
		restored := *existing
		return func(ctx context.Context) error { return s.store.CreateVote(ctx, &restored) }, nil
	}
}

// applyDelta moves the target counters, refreshes the cached score and
// credits the author. Without transactions, a failed counter write reverses
// the ledger write and later failures are logged rather than returned, since
// the ledger and counters already reflect the vote.
func (s *Service) applyDelta(ctx context.Context, target *models.Target, delta Delta, undo func(context.Context) error) (models.VoteCounts, error) {
	ref := target.Ref()
	atomic := s.store.Transactional()

	counts, err := s.store.IncrementVoteCounts(ctx, ref, delta.Upvotes, delta.Downvotes)
	if err != nil {
		if !atomic {
			if undoErr := undo(ctx); undoErr != nil {
				s.logger.Error("Failed to reverse ledger write after counter failure",
					zap.String("target", ref.String()),
					zap.Error(undoErr))
				return counts, fmt.Errorf("%w: %w", errLedgerNotReversed, err)
			}
		}
		return counts, err
	}

	if counts.Underflowed() {
		s.metrics.RecordUnderflow(string(ref.Type))
		s.logger.Error("Vote counter underflow, clamping to zero",
			zap.String("code", utils.ErrCounterUnderflow),
			zap.String("target", ref.String()),
			zap.Int("upvotes", counts.Upvotes),
			zap.Int("downvotes", counts.Downvotes),
			zap.Int("upDelta", delta.Upvotes),
			zap.Int("downDelta", delta.Downvotes))

		counts, err = s.store.ClampVoteCounts(ctx, ref)
		if err != nil {
			return counts, err
		}
	}

	score := scoring.CachedScore(ref.Type, counts.Upvotes, counts.Downvotes, target.CreatedAt)
	written, err := s.store.UpdateCachedScore(ctx, ref, counts, score)
	if err != nil {
		if atomic {
			return counts, err
		}
		s.logger.Error("Failed to refresh cached score", zap.String("target", ref.String()), zap.Error(err))
	} else if !written {
		s.logger.Debug("Skipped stale cached score", zap.String("target", ref.String()))
	}

	if target.IsAnonymous || delta.Karma == 0 {
		return counts, nil
	}

	if _, err := s.reputation.ApplyKarmaDelta(ctx, target.AuthorID, delta.Karma); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("Author not found, skipping karma",
				zap.String("target", ref.String()),
				zap.String("authorID", target.AuthorID.String()))
			return counts, nil
		}
		if atomic {
			return counts, err
		}
		s.logger.Error("Failed to apply karma",
			zap.String("authorID", target.AuthorID.String()),
			zap.Int("delta", delta.Karma),
			zap.Error(err))
	}
	return counts, nil
}

func validateActor(actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return utils.NewUnauthorizedError("missing caller identity")
	}
	return nil
}

func targetError(ref models.TargetRef, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return utils.NewNotFoundError(string(ref.Type), err)
	}
	return err
}

// toAppError passes AppErrors through and wraps everything else as a database error.
func toAppError(err error, message string) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, store.ErrNotFound) {
		return utils.NewNotFoundError("resource", err)
	}
	return utils.NewAppError(utils.ErrDatabase, message, err)
}
