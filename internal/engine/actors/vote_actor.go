package actors

import (
	stdctx "context"
	"errors"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"scholar-hub/internal/models"
	"scholar-hub/internal/utils"
	"scholar-hub/internal/voting"
)

// Message types for vote operations. Each one carries the key the
// consistent-hash router uses to pick a routee.
type (
	CastVoteMsg struct {
		ActorID    uuid.UUID
		TargetType models.VoteContentType
		TargetID   uuid.UUID
		Direction  models.VoteDirection
	}

	RemoveVoteMsg struct {
		ActorID    uuid.UUID
		TargetType models.VoteContentType
		TargetID   uuid.UUID
	}

	GetUserVotesMsg struct {
		ActorID    uuid.UUID
		TargetType models.VoteContentType
		TargetIDs  []uuid.UUID
	}

	DeleteTargetMsg struct {
		ActorID uuid.UUID
		Ref     models.TargetRef
	}
)

// Votes on one target always land on the same routee.
func (m *CastVoteMsg) Hash() string {
	return models.TargetRef{Type: m.TargetType, ID: m.TargetID}.String()
}

func (m *RemoveVoteMsg) Hash() string {
	return models.TargetRef{Type: m.TargetType, ID: m.TargetID}.String()
}

func (m *GetUserVotesMsg) Hash() string {
	return m.ActorID.String()
}

func (m *DeleteTargetMsg) Hash() string {
	return m.Ref.String()
}

// VoteActor serializes writes for the targets hashed to it and forwards
// them to the voting service. Reads bypass the pool.
type VoteActor struct {
	service   *voting.Service
	metrics   *utils.MetricsCollector
	opTimeout time.Duration
	logger    *zap.Logger
}

func NewVoteActor(service *voting.Service, metrics *utils.MetricsCollector, opTimeout time.Duration, logger *zap.Logger) actor.Actor {
	return &VoteActor{
		service:   service,
		metrics:   metrics,
		opTimeout: opTimeout,
		logger:    logger.Named("vote_actor"),
	}
}

func (a *VoteActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.logger.Debug("Vote actor started", zap.String("pid", context.Self().String()))

	case *CastVoteMsg:
		startTime := time.Now()
		a.handleCastVote(context, msg)
		a.metrics.AddOperationLatency("actor_cast_vote", time.Since(startTime))

	case *RemoveVoteMsg:
		startTime := time.Now()
		a.handleRemoveVote(context, msg)
		a.metrics.AddOperationLatency("actor_remove_vote", time.Since(startTime))

	case *GetUserVotesMsg:
		a.handleGetUserVotes(context, msg)

	case *DeleteTargetMsg:
		a.handleDeleteTarget(context, msg)

	case *actor.Stopping, *actor.Stopped, *actor.Restarting:

	default:
		a.logger.Warn("Unknown message type", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (a *VoteActor) handleCastVote(context actor.Context, msg *CastVoteMsg) {
	ctx, cancel := a.opContext()
	defer cancel()

	tally, err := a.service.CastVote(ctx, msg.ActorID, msg.TargetType, msg.TargetID, msg.Direction)
	if err != nil {
		context.Respond(asAppError(err))
		return
	}
	context.Respond(tally)
}

func (a *VoteActor) handleRemoveVote(context actor.Context, msg *RemoveVoteMsg) {
	ctx, cancel := a.opContext()
	defer cancel()

	if err := a.service.RemoveVote(ctx, msg.ActorID, msg.TargetType, msg.TargetID); err != nil {
		context.Respond(asAppError(err))
		return
	}
	context.Respond(true)
}

func (a *VoteActor) handleGetUserVotes(context actor.Context, msg *GetUserVotesMsg) {
	ctx, cancel := a.opContext()
	defer cancel()

	votes, err := a.service.GetUserVotes(ctx, msg.ActorID, msg.TargetType, msg.TargetIDs)
	if err != nil {
		context.Respond(asAppError(err))
		return
	}
	context.Respond(votes)
}

func (a *VoteActor) handleDeleteTarget(context actor.Context, msg *DeleteTargetMsg) {
	ctx, cancel := a.opContext()
	defer cancel()

	if err := a.service.DeleteTarget(ctx, msg.ActorID, msg.Ref); err != nil {
		context.Respond(asAppError(err))
		return
	}
	context.Respond(true)
}

func (a *VoteActor) opContext() (stdctx.Context, stdctx.CancelFunc) {
	if a.opTimeout <= 0 {
		return stdctx.WithCancel(stdctx.Background())
	}
	return stdctx.WithTimeout(stdctx.Background(), a.opTimeout)
}

func asAppError(err error) *utils.AppError {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return utils.NewAppError(utils.ErrDatabase, "vote operation failed", err)
}
