package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scholar-hub/internal/models"
	"scholar-hub/internal/store"
)

type voteRow struct {
	ID         uuid.UUID `db:"id"`
	VoterID    uuid.UUID `db:"voter_id"`
	TargetType string    `db:"target_type"`
	TargetID   uuid.UUID `db:"target_id"`
	VoteType   int       `db:"vote_type"`
	CreatedAt  int64     `db:"created_at"`
	UpdatedAt  int64     `db:"updated_at"`
}

func (r *voteRow) toModel() *models.Vote {
	return &models.Vote{
		ID:         r.ID,
		VoterID:    r.VoterID,
		TargetType: models.VoteContentType(r.TargetType),
		TargetID:   r.TargetID,
		Direction:  models.VoteDirection(r.VoteType),
		CreatedAt:  fromMillis(r.CreatedAt),
		UpdatedAt:  fromMillis(r.UpdatedAt),
	}
}

const voteColumns = "id, voter_id, target_type, target_id, vote_type, created_at, updated_at"

func (s *Store) FindVote(ctx context.Context, voterID uuid.UUID, ref models.TargetRef) (*models.Vote, error) {
	var row voteRow
	err := s.conn(ctx).GetContext(ctx, &row,
		`SELECT `+voteColumns+` FROM votes WHERE voter_id = ? AND target_type = ? AND target_id = ?`,
		voterID, string(ref.Type), ref.ID)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

// CreateVote inserts a ledger entry. A second entry for the same voter and
// target fails with store.ErrDuplicateVote.
func (s *Store) CreateVote(ctx context.Context, vote *models.Vote) error {
	now := time.Now()
	if vote.ID == uuid.Nil {
		vote.ID = uuid.New()
	}
	vote.CreatedAt = now
	vote.UpdatedAt = now

	_, err := s.conn(ctx).ExecContext(ctx, `
INSERT INTO votes (id, voter_id, target_type, target_id, vote_type, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, vote.ID, vote.VoterID, string(vote.TargetType), vote.TargetID, int(vote.Direction), millis(now), millis(now))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateVote
		}
		return err
	}
	return nil
}

func (s *Store) UpdateVote(ctx context.Context, vote *models.Vote, direction models.VoteDirection) error {
	now := time.Now()
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE votes SET vote_type = ?, updated_at = ? WHERE id = ?`,
		int(direction), millis(now), vote.ID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	vote.Direction = direction
	vote.UpdatedAt = now
	return nil
}

func (s *Store) DeleteVote(ctx context.Context, vote *models.Vote) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM votes WHERE id = ?`, vote.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) FindVotesByVoter(ctx context.Context, voterID uuid.UUID, targetType models.VoteContentType, targetIDs []uuid.UUID) ([]*models.Vote, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(targetIDs))
	for i, id := range targetIDs {
		ids[i] = id.String()
	}

	query, args, err := sqlx.In(
		`SELECT `+voteColumns+` FROM votes WHERE voter_id = ? AND target_type = ? AND target_id IN (?)`,
		voterID.String(), string(targetType), ids)
	if err != nil {
		return nil, err
	}

	q := s.conn(ctx)
	var rows []voteRow
	if err := q.SelectContext(ctx, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}

	votes := make([]*models.Vote, 0, len(rows))
	for i := range rows {
		votes = append(votes, rows[i].toModel())
	}
	return votes, nil
}

// CountVotes aggregates the ledger for one target.
func (s *Store) CountVotes(ctx context.Context, ref models.TargetRef) (models.VoteCounts, error) {
	var counts models.VoteCounts
	err := s.conn(ctx).GetContext(ctx, &counts, `
SELECT
	COALESCE(SUM(CASE WHEN vote_type = 1 THEN 1 ELSE 0 END), 0) AS upvotes,
	COALESCE(SUM(CASE WHEN vote_type = -1 THEN 1 ELSE 0 END), 0) AS downvotes
FROM votes
WHERE target_type = ? AND target_id = ?
`, string(ref.Type), ref.ID)
	return counts, err
}
