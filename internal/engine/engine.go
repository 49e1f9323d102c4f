// Package engine runs the vote actors and exposes a blocking API over them.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/router"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"scholar-hub/internal/engine/actors"
	"scholar-hub/internal/models"
	"scholar-hub/internal/utils"
	"scholar-hub/internal/voting"
)

const (
	defaultPoolSize       = 8
	defaultRequestTimeout = 5 * time.Second
)

// Options tune the vote actor pool.
type Options struct {
	PoolSize       int
	RequestTimeout time.Duration
}

// Engine owns the consistent-hash pool of vote actors. Writes that touch an
// existing target go through the pool; reads and creates call the service.
type Engine struct {
	system  *actor.ActorSystem
	votes   *actor.PID
	service *voting.Service
	timeout time.Duration
	logger  *zap.Logger
}

// NewEngine spawns the vote actor pool on system.
func NewEngine(system *actor.ActorSystem, service *voting.Service, metrics *utils.MetricsCollector, logger *zap.Logger, opts Options) *Engine {
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	props := router.NewConsistentHashPool(opts.PoolSize, actor.WithProducer(func() actor.Actor {
		return actors.NewVoteActor(service, metrics, opts.RequestTimeout, logger)
	}))

	e := &Engine{
		system:  system,
		votes:   system.Root.Spawn(props),
		service: service,
		timeout: opts.RequestTimeout,
		logger:  logger.Named("engine"),
	}
	e.logger.Info("Vote actor pool started", zap.Int("poolSize", opts.PoolSize))
	return e
}

func (e *Engine) CastVote(ctx context.Context, actorID uuid.UUID, targetType models.VoteContentType, targetID uuid.UUID, direction models.VoteDirection) (*models.VoteTally, error) {
	result, err := e.request(ctx, &actors.CastVoteMsg{
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
		Direction:  direction,
	})
	if err != nil {
		return nil, err
	}
	return expect[*models.VoteTally](result)
}

func (e *Engine) RemoveVote(ctx context.Context, actorID uuid.UUID, targetType models.VoteContentType, targetID uuid.UUID) error {
	_, err := e.request(ctx, &actors.RemoveVoteMsg{
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
	})
	return err
}

func (e *Engine) GetUserVotes(ctx context.Context, actorID uuid.UUID, targetType models.VoteContentType, targetIDs []uuid.UUID) (map[uuid.UUID]models.VoteDirection, error) {
	result, err := e.request(ctx, &actors.GetUserVotesMsg{
		ActorID:    actorID,
		TargetType: targetType,
		TargetIDs:  targetIDs,
	})
	if err != nil {
		return nil, err
	}
	return expect[map[uuid.UUID]models.VoteDirection](result)
}

func (e *Engine) ListTargets(ctx context.Context, targetType models.VoteContentType, postID *uuid.UUID, sort string, limit int) ([]*models.Target, error) {
	return e.service.ListTargets(ctx, targetType, postID, sort, limit)
}

func (e *Engine) CreatePost(ctx context.Context, post *models.Post) error {
	return e.service.CreatePost(ctx, post)
}

func (e *Engine) CreateComment(ctx context.Context, comment *models.Comment) error {
	return e.service.CreateComment(ctx, comment)
}

// DeleteTarget soft-deletes on the routee that serializes the target's votes.
func (e *Engine) DeleteTarget(ctx context.Context, actorID uuid.UUID, ref models.TargetRef) error {
	_, err := e.request(ctx, &actors.DeleteTargetMsg{ActorID: actorID, Ref: ref})
	return err
}

// Stop stops the pool and waits for in-flight messages to drain.
func (e *Engine) Stop() {
	if err := e.system.Root.StopFuture(e.votes).Wait(); err != nil {
		e.logger.Warn("Vote actor pool did not stop cleanly", zap.Error(err))
	}
}

// request sends msg to the pool and unwraps an *utils.AppError reply.
// The wait is bounded by the engine timeout or the ctx deadline, whichever is sooner.
func (e *Engine) request(ctx context.Context, msg interface{}) (interface{}, error) {
	timeout := e.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, utils.NewActorTimeoutError("vote", ctx.Err())
	}

	future := e.system.Root.RequestFuture(e.votes, msg, timeout)
	result, err := future.Result()
	if err != nil {
		e.logger.Warn("Vote actor request failed",
			zap.String("message", fmt.Sprintf("%T", msg)),
			zap.Error(err))
		return nil, utils.NewActorTimeoutError("vote", err)
	}

	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}

func expect[T any](result interface{}) (T, error) {
	v, ok := result.(T)
	if !ok {
		var zero T
		return zero, utils.NewAppError(utils.ErrDatabase, fmt.Sprintf("unexpected actor response %T", result), nil)
	}
	return v, nil
}
