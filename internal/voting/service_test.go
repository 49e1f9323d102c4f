package voting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scholar-hub/internal/dbretry"
	"scholar-hub/internal/models"
	"scholar-hub/internal/scoring"
	"scholar-hub/internal/store"
	"scholar-hub/internal/store/sqlite"
	"scholar-hub/internal/utils"
)

var testRetry = &dbretry.Options{
	MaxElapsedTime:  time.Second,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	MaxRetries:      2,
}

// looseStore drops transactions so the ordered-writes path is exercised,
// and lets tests inject failures and concurrent writers.
type looseStore struct {
	*sqlite.Store
	beforeCreate func(ctx context.Context, vote *models.Vote) error
	afterCount   func(ctx context.Context)
	incrementErr error

	// transient failures for the next N calls
	failIncrements int
	failDeletes    int
}

var errConnRefused = errors.New("dial tcp 10.0.0.7:27017: connection refused")

func (l *looseStore) Transactional() bool { return false }

func (l *looseStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (l *looseStore) CreateVote(ctx context.Context, vote *models.Vote) error {
	if hook := l.beforeCreate; hook != nil {
		l.beforeCreate = nil
		if err := hook(ctx, vote); err != nil {
			return err
		}
	}
	return l.Store.CreateVote(ctx, vote)
}

func (l *looseStore) IncrementVoteCounts(ctx context.Context, ref models.TargetRef, up, down int) (models.VoteCounts, error) {
	if l.incrementErr != nil {
		return models.VoteCounts{}, l.incrementErr
	}
	if l.failIncrements > 0 {
		l.failIncrements--
		return models.VoteCounts{}, errConnRefused
	}
	return l.Store.IncrementVoteCounts(ctx, ref, up, down)
}

func (l *looseStore) CountVotes(ctx context.Context, ref models.TargetRef) (models.VoteCounts, error) {
	counts, err := l.Store.CountVotes(ctx, ref)
	if hook := l.afterCount; hook != nil {
		l.afterCount = nil
		hook(ctx)
	}
	return counts, err
}

func (l *looseStore) DeleteVote(ctx context.Context, vote *models.Vote) error {
	if l.failDeletes > 0 {
		l.failDeletes--
		return errConnRefused
	}
	return l.Store.DeleteVote(ctx, vote)
}

type fixture struct {
	ctx      context.Context
	store    *sqlite.Store
	svc      *Service
	registry *prometheus.Registry
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func newFixture(t *testing.T, st store.Store, opts Options) *fixture {
	t.Helper()
	sq, ok := st.(*sqlite.Store)
	if !ok {
		sq = st.(*looseStore).Store
	}

	reg := prometheus.NewRegistry()
	opts.Metrics = utils.NewMetricsCollector(reg)
	opts.Retry = testRetry

	return &fixture{
		ctx:      context.Background(),
		store:    sq,
		svc:      NewService(st, zaptest.NewLogger(t), opts),
		registry: reg,
	}
}

func (f *fixture) user(t *testing.T, karma int) *models.User {
	t.Helper()
	u := &models.User{ID: uuid.New(), Username: "u-" + uuid.NewString()[:8], Karma: karma}
	require.NoError(t, f.store.SaveUser(f.ctx, u))
	return u
}

func (f *fixture) post(t *testing.T, author *models.User, up, down int, anonymous bool) *models.Post {
	t.Helper()
	created := time.Now().Add(-time.Hour)
	p := &models.Post{
		ID:          uuid.New(),
		Title:       "Past papers for organic chemistry",
		Content:     "Has anyone mapped the recurring questions?",
		AuthorID:    author.ID,
		CreatedAt:   created,
		Upvotes:     up,
		Downvotes:   down,
		HotScore:    scoring.Hot(up, down, created),
		IsAnonymous: anonymous,
	}
	require.NoError(t, f.store.SavePost(f.ctx, p))
	return p
}

func (f *fixture) target(t *testing.T, ref models.TargetRef) *models.Target {
	t.Helper()
	target, err := f.store.GetTarget(f.ctx, ref)
	require.NoError(t, err)
	return target
}

func (f *fixture) karma(t *testing.T, u *models.User) int {
	t.Helper()
	got, err := f.store.GetUser(f.ctx, u.ID)
	require.NoError(t, err)
	return got.Karma
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, code), "want %s, got %v", code, err)
}

func TestCastVoteScenario(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 50)
	post := f.post(t, author, 10, 2, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}

	// The second voter's earlier downvote is one of the two downvotes.
	second := uuid.New()
	require.NoError(t, f.store.CreateVote(f.ctx, &models.Vote{VoterID: second, TargetType: ref.Type, TargetID: ref.ID, Direction: models.VoteDown}))

	tally, err := f.svc.CastVote(f.ctx, uuid.New(), models.PostVote, post.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, &models.VoteTally{Upvotes: 11, Downvotes: 2, Score: 9, UserVote: models.VoteUp}, tally)
	assert.Equal(t, 51, f.karma(t, author))

	tally, err = f.svc.CastVote(f.ctx, second, models.PostVote, post.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, &models.VoteTally{Upvotes: 12, Downvotes: 1, Score: 11, UserVote: models.VoteUp}, tally)
	assert.Equal(t, 53, f.karma(t, author), "a switch is worth two karma")

	target := f.target(t, ref)
	assert.InDelta(t, scoring.Hot(12, 1, target.CreatedAt), target.CachedScore, 1e-9)
}

func TestToggleLaw(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 10)
	post := f.post(t, author, 4, 1, false)
	voter := uuid.New()

	_, err := f.svc.CastVote(f.ctx, voter, models.PostVote, post.ID, models.VoteUp)
	require.NoError(t, err)

	tally, err := f.svc.CastVote(f.ctx, voter, models.PostVote, post.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, &models.VoteTally{Upvotes: 4, Downvotes: 1, Score: 3, UserVote: models.VoteNone}, tally)
	assert.Equal(t, 10, f.karma(t, author))

	_, err = f.store.FindVote(f.ctx, voter, models.TargetRef{Type: models.PostVote, ID: post.ID})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSwitchLaw(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 10)
	post := f.post(t, author, 4, 1, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	voter := uuid.New()

	_, err := f.svc.CastVote(f.ctx, voter, ref.Type, ref.ID, models.VoteUp)
	require.NoError(t, err)
	tally, err := f.svc.CastVote(f.ctx, voter, ref.Type, ref.ID, models.VoteDown)
	require.NoError(t, err)

	assert.Equal(t, 4, tally.Upvotes, "upvotes-1 relative to the state after the first vote")
	assert.Equal(t, 2, tally.Downvotes)
	assert.Equal(t, models.VoteDown, tally.UserVote)
	assert.Equal(t, 9, f.karma(t, author))

	counts, err := f.store.CountVotes(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, models.VoteCounts{Upvotes: 0, Downvotes: 1}, counts)
}

func TestSelfVoteForbidden(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 10)
	post := f.post(t, author, 3, 0, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}

	for _, d := range []models.VoteDirection{models.VoteUp, models.VoteDown} {
		_, err := f.svc.CastVote(f.ctx, author.ID, ref.Type, ref.ID, d)
		assertCode(t, err, utils.ErrSelfVote)
	}

	assert.Equal(t, models.VoteCounts{Upvotes: 3}, f.target(t, ref).Counts())
	assert.Equal(t, 10, f.karma(t, author))
	_, err := f.store.FindVote(f.ctx, author.ID, ref)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnonymousTargetSkipsKarma(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 10)
	post := f.post(t, author, 0, 0, true)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	before := f.target(t, ref).CachedScore

	for i := 0; i < 3; i++ {
		_, err := f.svc.CastVote(f.ctx, uuid.New(), ref.Type, ref.ID, models.VoteUp)
		require.NoError(t, err)
	}

	target := f.target(t, ref)
	assert.Equal(t, 3, target.Upvotes)
	assert.Greater(t, target.CachedScore, before)
	assert.Equal(t, 10, f.karma(t, author))
}

func TestCommentScoreIsWilson(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 0)
	post := f.post(t, f.user(t, 0), 0, 0, false)
	comment := &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "Try the 2019 paper first."}
	require.NoError(t, f.svc.CreateComment(f.ctx, comment))

	_, err := f.svc.CastVote(f.ctx, uuid.New(), models.CommentVote, comment.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = f.svc.CastVote(f.ctx, uuid.New(), models.CommentVote, comment.ID, models.VoteDown)
	require.NoError(t, err)

	target := f.target(t, models.TargetRef{Type: models.CommentVote, ID: comment.ID})
	assert.InDelta(t, scoring.Wilson(1, 1), target.CachedScore, 1e-12)
	assert.Equal(t, 0, f.karma(t, author))
}

func TestCreateRequiresContent(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 0)

	err := f.svc.CreatePost(f.ctx, &models.Post{AuthorID: author.ID, Title: "  "})
	assertCode(t, err, utils.ErrInvalidInput)

	err = f.svc.CreatePost(f.ctx, &models.Post{Title: "Anonymous caller"})
	assertCode(t, err, utils.ErrUnauthorized)

	post := f.post(t, author, 0, 0, false)
	err = f.svc.CreateComment(f.ctx, &models.Comment{PostID: post.ID, AuthorID: author.ID})
	assertCode(t, err, utils.ErrInvalidInput)

	err = f.svc.CreateComment(f.ctx, &models.Comment{PostID: uuid.New(), AuthorID: author.ID, Content: "orphan"})
	assertCode(t, err, utils.ErrNotFound)
}

func TestDeleteTargetIsAuthorOnly(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 0)
	post := f.post(t, author, 3, 1, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}

	err := f.svc.DeleteTarget(f.ctx, uuid.New(), ref)
	assertCode(t, err, utils.ErrForbidden)
	assert.False(t, f.target(t, ref).IsDeleted)

	require.NoError(t, f.svc.DeleteTarget(f.ctx, author.ID, ref))
	require.NoError(t, f.svc.DeleteTarget(f.ctx, author.ID, ref), "deleting twice is a no-op")
	assert.True(t, f.target(t, ref).IsDeleted)
	assert.Equal(t, models.VoteCounts{Upvotes: 3, Downvotes: 1}, f.target(t, ref).Counts())

	err = f.svc.DeleteTarget(f.ctx, author.ID, models.TargetRef{Type: models.CommentVote, ID: uuid.New()})
	assertCode(t, err, utils.ErrNotFound)

	// Comments cannot be added to a deleted post.
	err = f.svc.CreateComment(f.ctx, &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "late"})
	assertCode(t, err, utils.ErrNotFound)
}

func TestRankFollowsKarma(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 99)
	post := f.post(t, author, 0, 0, false)

	_, err := f.svc.CastVote(f.ctx, uuid.New(), models.PostVote, post.ID, models.VoteUp)
	require.NoError(t, err)

	got, err := f.store.GetUser(f.ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Karma)
	assert.Equal(t, models.RankScholar, got.Rank)
}

func TestCastVoteRejections(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 0)
	post := f.post(t, author, 0, 0, false)
	voter := uuid.New()

	_, err := f.svc.CastVote(f.ctx, voter, "poll", post.ID, models.VoteUp)
	assertCode(t, err, utils.ErrInvalidInput)

	_, err = f.svc.CastVote(f.ctx, voter, models.PostVote, post.ID, models.VoteNone)
	assertCode(t, err, utils.ErrInvalidInput)

	_, err = f.svc.CastVote(f.ctx, voter, models.PostVote, post.ID, models.VoteDirection(2))
	assertCode(t, err, utils.ErrInvalidInput)

	_, err = f.svc.CastVote(f.ctx, uuid.Nil, models.PostVote, post.ID, models.VoteUp)
	assertCode(t, err, utils.ErrUnauthorized)

	_, err = f.svc.CastVote(f.ctx, voter, models.PostVote, uuid.New(), models.VoteUp)
	assertCode(t, err, utils.ErrNotFound)

	require.NoError(t, f.svc.DeleteTarget(f.ctx, author.ID, models.TargetRef{Type: models.PostVote, ID: post.ID}))
	_, err = f.svc.CastVote(f.ctx, voter, models.PostVote, post.ID, models.VoteUp)
	assertCode(t, err, utils.ErrNotFound)
}

func TestRemoveVote(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 5)
	post := f.post(t, author, 2, 2, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	voter := uuid.New()

	err := f.svc.RemoveVote(f.ctx, voter, ref.Type, ref.ID)
	assertCode(t, err, utils.ErrNotFound)

	_, err = f.svc.CastVote(f.ctx, voter, ref.Type, ref.ID, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, 4, f.karma(t, author))

	// Removal still works once the post is deleted.
	require.NoError(t, f.svc.DeleteTarget(f.ctx, author.ID, ref))
	require.NoError(t, f.svc.RemoveVote(f.ctx, voter, ref.Type, ref.ID))

	assert.Equal(t, models.VoteCounts{Upvotes: 2, Downvotes: 2}, f.target(t, ref).Counts())
	assert.Equal(t, 5, f.karma(t, author))

	err = f.svc.RemoveVote(f.ctx, voter, ref.Type, ref.ID)
	assertCode(t, err, utils.ErrNotFound)

	err = f.svc.RemoveVote(f.ctx, voter, models.PostVote, uuid.New())
	assertCode(t, err, utils.ErrNotFound)
}

func TestGetUserVotes(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 0)
	a := f.post(t, author, 0, 0, false)
	b := f.post(t, author, 0, 0, false)
	c := f.post(t, author, 0, 0, false)
	voter := uuid.New()

	_, err := f.svc.CastVote(f.ctx, voter, models.PostVote, a.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = f.svc.CastVote(f.ctx, voter, models.PostVote, b.ID, models.VoteDown)
	require.NoError(t, err)

	votes, err := f.svc.GetUserVotes(f.ctx, voter, models.PostVote, []uuid.UUID{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]models.VoteDirection{a.ID: models.VoteUp, b.ID: models.VoteDown}, votes)

	votes, err = f.svc.GetUserVotes(f.ctx, voter, models.CommentVote, []uuid.UUID{a.ID})
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestDuplicateCollapsesIntoConcurrentVote(t *testing.T) {
	loose := &looseStore{Store: openStore(t)}
	f := newFixture(t, loose, Options{})
	author := f.user(t, 0)
	post := f.post(t, author, 10, 2, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	voter := uuid.New()

	// A concurrent request from the same voter wins the insert.
	loose.beforeCreate = func(ctx context.Context, vote *models.Vote) error {
		winner := *vote
		winner.ID = uuid.Nil
		require.NoError(t, loose.Store.CreateVote(ctx, &winner))
		_, err := loose.Store.IncrementVoteCounts(ctx, ref, 1, 0)
		require.NoError(t, err)
		return store.ErrDuplicateVote
	}

	tally, err := f.svc.CastVote(f.ctx, voter, ref.Type, ref.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, &models.VoteTally{Upvotes: 11, Downvotes: 2, Score: 9, UserVote: models.VoteUp}, tally)

	counts, err := f.store.CountVotes(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Upvotes, "exactly one ledger entry")
}

func TestDuplicateWithOppositeDirectionSwitches(t *testing.T) {
	loose := &looseStore{Store: openStore(t)}
	f := newFixture(t, loose, Options{})
	author := f.user(t, 0)
	post := f.post(t, author, 10, 2, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	voter := uuid.New()

	loose.beforeCreate = func(ctx context.Context, vote *models.Vote) error {
		winner := *vote
		winner.ID = uuid.Nil
		winner.Direction = models.VoteDown
		require.NoError(t, loose.Store.CreateVote(ctx, &winner))
		_, err := loose.Store.IncrementVoteCounts(ctx, ref, 0, 1)
		require.NoError(t, err)
		return store.ErrDuplicateVote
	}

	tally, err := f.svc.CastVote(f.ctx, voter, ref.Type, ref.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, &models.VoteTally{Upvotes: 11, Downvotes: 2, Score: 9, UserVote: models.VoteUp}, tally)

	vote, err := f.store.FindVote(f.ctx, voter, ref)
	require.NoError(t, err)
	assert.Equal(t, models.VoteUp, vote.Direction)
}

func TestCounterFailureReversesLedgerWithoutTransactions(t *testing.T) {
	loose := &looseStore{Store: openStore(t), incrementErr: errors.New("disk quota exceeded")}
	f := newFixture(t, loose, Options{})
	author := f.user(t, 0)
	post := f.post(t, author, 1, 0, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	voter := uuid.New()

	_, err := f.svc.CastVote(f.ctx, voter, ref.Type, ref.ID, models.VoteUp)
	assertCode(t, err, utils.ErrDatabase)

	_, err = f.store.FindVote(f.ctx, voter, ref)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, f.karma(t, author))
}

func TestRetryFinishesUnreversedVote(t *testing.T) {
	loose := &looseStore{Store: openStore(t), failIncrements: 1, failDeletes: 1}
	f := newFixture(t, loose, Options{})
	author := f.user(t, 0)
	post := f.post(t, author, 5, 0, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	voter := uuid.New()

	// The counter write fails and so does reversing the ledger insert; the
	// retry must complete the upvote rather than toggle it off.
	tally, err := f.svc.CastVote(f.ctx, voter, ref.Type, ref.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, &models.VoteTally{Upvotes: 6, Score: 6, UserVote: models.VoteUp}, tally)

	assert.Equal(t, models.VoteCounts{Upvotes: 6}, f.target(t, ref).Counts())
	assert.Equal(t, 1, f.karma(t, author))
	vote, err := f.store.FindVote(f.ctx, voter, ref)
	require.NoError(t, err)
	assert.Equal(t, models.VoteUp, vote.Direction)
}

func TestRetryFinishesUnreversedRemoval(t *testing.T) {
	loose := &looseStore{Store: openStore(t)}
	f := newFixture(t, loose, Options{})
	author := f.user(t, 0)
	post := f.post(t, author, 5, 0, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	voter := uuid.New()

	_, err := f.svc.CastVote(f.ctx, voter, ref.Type, ref.ID, models.VoteUp)
	require.NoError(t, err)

	// The counter write fails and re-inserting the removed vote fails too.
	loose.failIncrements = 1
	loose.beforeCreate = func(context.Context, *models.Vote) error { return errConnRefused }

	require.NoError(t, f.svc.RemoveVote(f.ctx, voter, ref.Type, ref.ID))
	assert.Equal(t, models.VoteCounts{Upvotes: 5}, f.target(t, ref).Counts())
	assert.Equal(t, 0, f.karma(t, author))
	_, err = f.store.FindVote(f.ctx, voter, ref)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCounterUnderflowIsClamped(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	author := f.user(t, 0)
	post := f.post(t, author, 0, 0, false)
	ref := models.TargetRef{Type: models.PostVote, ID: post.ID}
	voter := uuid.New()

	// Ledger says +1 but the counters never saw it.
	require.NoError(t, f.store.CreateVote(f.ctx, &models.Vote{VoterID: voter, TargetType: ref.Type, TargetID: ref.ID, Direction: models.VoteUp}))

	tally, err := f.svc.CastVote(f.ctx, voter, ref.Type, ref.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, &models.VoteTally{UserVote: models.VoteNone}, tally)
	assert.Equal(t, models.VoteCounts{}, f.target(t, ref).Counts())

	n, err := testutil.GatherAndCount(f.registry, "scholar_counter_underflows_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func TestRateLimitedVote(t *testing.T) {
	f := newFixture(t, openStore(t), Options{Limiter: denyAll{}})
	post := f.post(t, f.user(t, 0), 0, 0, false)

	_, err := f.svc.CastVote(f.ctx, uuid.New(), models.PostVote, post.ID, models.VoteUp)
	assertCode(t, err, utils.ErrTooManyRequests)
	assert.Zero(t, f.target(t, models.TargetRef{Type: models.PostVote, ID: post.ID}).Upvotes)
}

func TestListTargets(t *testing.T) {
	now := time.Now()
	f := newFixture(t, openStore(t), Options{CandidateWindow: 50, Now: func() time.Time { return now }})
	author := f.user(t, 0)

	old := &models.Post{Title: "old", AuthorID: author.ID, CreatedAt: now.Add(-48 * time.Hour)}
	fresh := &models.Post{Title: "fresh", AuthorID: author.ID, CreatedAt: now.Add(-30 * time.Minute)}
	require.NoError(t, f.svc.CreatePost(f.ctx, old))
	require.NoError(t, f.svc.CreatePost(f.ctx, fresh))

	for i := 0; i < 5; i++ {
		_, err := f.svc.CastVote(f.ctx, uuid.New(), models.PostVote, old.ID, models.VoteUp)
		require.NoError(t, err)
	}
	_, err := f.svc.CastVote(f.ctx, uuid.New(), models.PostVote, fresh.ID, models.VoteUp)
	require.NoError(t, err)

	top, err := f.svc.ListTargets(f.ctx, models.PostVote, nil, "top", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, old.ID, top[0].ID)

	rising, err := f.svc.ListTargets(f.ctx, models.PostVote, nil, "rising", 1)
	require.NoError(t, err)
	require.Len(t, rising, 1)
	assert.Equal(t, fresh.ID, rising[0].ID)

	_, err = f.svc.ListTargets(f.ctx, models.PostVote, nil, "best", 10)
	assertCode(t, err, utils.ErrInvalidInput)

	_, err = f.svc.ListTargets(f.ctx, models.CommentVote, nil, "", 10)
	assertCode(t, err, utils.ErrInvalidInput)

	comments, err := f.svc.ListTargets(f.ctx, models.CommentVote, &fresh.ID, "", 10)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestSortTargetsDoesNotMutateInput(t *testing.T) {
	f := newFixture(t, openStore(t), Options{})
	now := time.Now()
	a := &models.Target{ID: uuid.New(), Upvotes: 1, CreatedAt: now}
	b := &models.Target{ID: uuid.New(), Upvotes: 9, CreatedAt: now}
	in := []*models.Target{a, b}

	out := f.svc.SortTargets(scoring.SortTop, in, now)
	assert.Equal(t, []*models.Target{b, a}, out)
	assert.Equal(t, []*models.Target{a, b}, in)
}
