package voting

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar-hub/internal/models"
	"scholar-hub/internal/scoring"
	"scholar-hub/internal/utils"
)

func TestRecomputeCountsFromLedger(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	post := f.post(t, f.user(t, 0), 10, 2, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}

	voter := uuid.New()
	require.NoError(t, f.store.CreateVote(f.ctx, &models.Vote{VoterID: voter, TargetType: ref.Type, TargetID: ref.ID, Direction: models.VoteDown}))

	counts, drifted, err := f.svc.RecomputeCountsFromLedger(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, drifted)
	assert.Equal(t, models.VoteCounts{Downvotes: 1}, counts)

	got := f.target(t, ref)
	assert.Equal(t, counts, got.Counts())
	assert.InDelta(t, scoring.Hot(0, 1, post.CreatedAt), got.CachedScore, 1e-9)

	// A second pass finds nothing to fix.
	_, drifted, err = f.svc.RecomputeCountsFromLedger(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, drifted)
}

func TestRecomputeDoesNotLoseConcurrentVote(t *testing.T) {
	loose := &looseStore{Store: openStore(t)}
	f := newFixture(t, loose, Options{})
	post := f.post(t, f.user(t, 0), 0, 0, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}

	// The ledger holds a vote the counters never saw.
	require.NoError(t, f.store.CreateVote(f.ctx, &models.Vote{VoterID: uuid.New(), TargetType: ref.Type, TargetID: ref.ID, Direction: models.VoteUp}))

	// Another vote lands between counting the ledger and writing the counters.
	loose.afterCount = func(ctx context.Context) {
		_, err := f.svc.CastVote(ctx, uuid.New(), ref.Type, ref.ID, models.VoteUp)
		require.NoError(t, err)
	}

	counts, drifted, err := f.svc.RecomputeCountsFromLedger(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, drifted)
	assert.Equal(t, models.VoteCounts{Upvotes: 2}, counts)

	ledger, err := f.store.CountVotes(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, ledger, f.target(t, ref).Counts())
}

func TestRecomputeCountsMissingTarget(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})

	_, _, err := f.svc.RecomputeCountsFromLedger(f.ctx, models.TargetRef{Type: models.CommentVote, ID: uuid.New()})
	assertCode(t, err, utils.ErrNotFound)
}

func TestRepairAll(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 0)

	drifted := f.post(t, author, 7, 0, false)
	clean := &models.Post{Title: "Lecture notes week 3", AuthorID: author.ID}
	require.NoError(t, f.svc.CreatePost(f.ctx, clean))
	for i := 0; i < 3; i++ {
		_, err := f.svc.CastVote(f.ctx, uuid.New(), models.PostVote, clean.ID, models.VoteUp)
		require.NoError(t, err)
	}

	deleted := f.post(t, author, 4, 4, false)
	require.NoError(t, f.svc.DeleteTarget(f.ctx, author.ID, models.TargetRef{Type: models.PostVote, ID: deleted.ID}))

	report, err := f.svc.RepairAll(f.ctx, models.PostVote, 2)
	require.NoError(t, err)
	assert.Equal(t, models.PostVote, report.Type)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Repaired)
	assert.Zero(t, report.Failed)

	assert.Equal(t, models.VoteCounts{}, f.target(t, models.TargetRef{Type: models.PostVote, ID: drifted.ID}).Counts())
	assert.Equal(t, models.VoteCounts{Upvotes: 3}, f.target(t, models.TargetRef{Type: models.PostVote, ID: clean.ID}).Counts())
	assert.Equal(t, models.VoteCounts{}, f.target(t, models.TargetRef{Type: models.PostVote, ID: deleted.ID}).Counts())
}

func TestRepairAllRejectsUnknownType(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})

	_, err := f.svc.RepairAll(f.ctx, models.VoteContentType("subreddit"), 1)
	assert.Error(t, err)
}
