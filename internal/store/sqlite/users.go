package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"scholar-hub/internal/models"
)

type userRow struct {
	ID        uuid.UUID `db:"id"`
	Username  string    `db:"username"`
	Karma     int       `db:"karma"`
	Rank      string    `db:"rank_tier"`
	CreatedAt int64     `db:"created_at"`
	UpdatedAt int64     `db:"updated_at"`
}

func (r *userRow) toModel() *models.User {
	return &models.User{
		ID:        r.ID,
		Username:  r.Username,
		Karma:     r.Karma,
		Rank:      models.Rank(r.Rank),
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

const userColumns = "id, username, karma, rank_tier, created_at, updated_at"

// SaveUser creates or replaces a user.
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.Rank == "" {
		user.Rank = models.RankNoob
	}

	_, err := s.conn(ctx).ExecContext(ctx, `
INSERT INTO users (id, username, karma, rank_tier, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	username = excluded.username,
	karma = excluded.karma,
	rank_tier = excluded.rank_tier,
	updated_at = excluded.updated_at
`, user.ID, user.Username, user.Karma, string(user.Rank), millis(user.CreatedAt), millis(user.UpdatedAt))
	return err
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var row userRow
	err := s.conn(ctx).GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (s *Store) IncrementKarma(ctx context.Context, id uuid.UUID, delta int) (*models.User, error) {
	var row userRow
	err := s.conn(ctx).QueryRowxContext(ctx,
		`UPDATE users SET karma = karma + ?, updated_at = ? WHERE id = ? RETURNING `+userColumns,
		delta, millis(time.Now()), id).StructScan(&row)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (s *Store) SetRank(ctx context.Context, id uuid.UUID, karma int, rank models.Rank) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET rank_tier = ?, updated_at = ? WHERE id = ? AND karma = ?`,
		string(rank), millis(time.Now()), id, karma)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
