package actors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scholar-hub/internal/models"
	"scholar-hub/internal/store/sqlite"
	"scholar-hub/internal/utils"
	"scholar-hub/internal/voting"
)

func newVoteActor(t *testing.T) (*actor.ActorSystem, *actor.PID, *sqlite.Store, *voting.Service) {
	t.Helper()
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	logger := zaptest.NewLogger(t)
	metrics := utils.NewMetricsCollector(nil)
	svc := voting.NewService(st, logger, voting.Options{Metrics: metrics})

	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewVoteActor(svc, metrics, 5*time.Second, logger)
	})
	return system, system.Root.Spawn(props), st, svc
}

func TestVoteActor(t *testing.T) {
	system, pid, st, svc := newVoteActor(t)
	ctx := context.Background()

	author := &models.User{ID: uuid.New(), Username: "ada"}
	require.NoError(t, st.SaveUser(ctx, author))
	post := &models.Post{Title: "Midterm study group", AuthorID: author.ID}
	require.NoError(t, svc.CreatePost(ctx, post))
	voter := uuid.New()

	// Cast an upvote
	future := system.Root.RequestFuture(pid, &CastVoteMsg{
		ActorID:    voter,
		TargetType: models.PostVote,
		TargetID:   post.ID,
		Direction:  models.VoteUp,
	}, 5*time.Second)
	result, err := future.Result()
	require.NoError(t, err)

	tally := result.(*models.VoteTally)
	assert.Equal(t, 1, tally.Upvotes)
	assert.Equal(t, models.VoteUp, tally.UserVote)

	// Look the vote up again
	future = system.Root.RequestFuture(pid, &GetUserVotesMsg{
		ActorID:    voter,
		TargetType: models.PostVote,
		TargetIDs:  []uuid.UUID{post.ID, uuid.New()},
	}, 5*time.Second)
	result, err = future.Result()
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]models.VoteDirection{post.ID: models.VoteUp}, result)

	// Remove it
	future = system.Root.RequestFuture(pid, &RemoveVoteMsg{
		ActorID:    voter,
		TargetType: models.PostVote,
		TargetID:   post.ID,
	}, 5*time.Second)
	result, err = future.Result()
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Counters reflect the removal
	target, err := st.GetTarget(ctx, models.TargetRef{Type: models.PostVote, ID: post.ID})
	require.NoError(t, err)
	assert.Zero(t, target.Upvotes)
}

func TestVoteActorRespondsWithAppError(t *testing.T) {
	system, pid, st, svc := newVoteActor(t)
	ctx := context.Background()

	author := &models.User{ID: uuid.New(), Username: "grace"}
	require.NoError(t, st.SaveUser(ctx, author))
	post := &models.Post{Title: "Office hours moved", AuthorID: author.ID}
	require.NoError(t, svc.CreatePost(ctx, post))

	future := system.Root.RequestFuture(pid, &CastVoteMsg{
		ActorID:    author.ID,
		TargetType: models.PostVote,
		TargetID:   post.ID,
		Direction:  models.VoteUp,
	}, 5*time.Second)
	result, err := future.Result()
	require.NoError(t, err)

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrSelfVote, appErr.Code)

	// Only the author may delete
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	future = system.Root.RequestFuture(pid, &DeleteTargetMsg{ActorID: uuid.New(), Ref: ref}, 5*time.Second)
	result, err = future.Result()
	require.NoError(t, err)
	assert.Equal(t, utils.ErrForbidden, result.(*utils.AppError).Code)

	// Deleting then voting reports not found
	future = system.Root.RequestFuture(pid, &DeleteTargetMsg{ActorID: author.ID, Ref: ref}, 5*time.Second)
	result, err = future.Result()
	require.NoError(t, err)
	assert.Equal(t, true, result)

	future = system.Root.RequestFuture(pid, &CastVoteMsg{
		ActorID:    uuid.New(),
		TargetType: models.PostVote,
		TargetID:   post.ID,
		Direction:  models.VoteDown,
	}, 5*time.Second)
	result, err = future.Result()
	require.NoError(t, err)
	assert.Equal(t, utils.ErrNotFound, result.(*utils.AppError).Code)
}

func TestMessageHashes(t *testing.T) {
	target := uuid.New()
	a := &CastVoteMsg{ActorID: uuid.New(), TargetType: models.CommentVote, TargetID: target}
	b := &RemoveVoteMsg{ActorID: uuid.New(), TargetType: models.CommentVote, TargetID: target}

	assert.Equal(t, "comment:"+target.String(), a.Hash())
	assert.Equal(t, a.Hash(), b.Hash())

	d := &DeleteTargetMsg{ActorID: uuid.New(), Ref: models.TargetRef{Type: models.CommentVote, ID: target}}
	assert.Equal(t, a.Hash(), d.Hash(), "deletes queue behind votes on the same target")
}
