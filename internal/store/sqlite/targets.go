package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scholar-hub/internal/models"
	"scholar-hub/internal/scoring"
	"scholar-hub/internal/store"
)

const redacted = "[deleted]"

type targetRow struct {
	ID          uuid.UUID `db:"id"`
	AuthorID    uuid.UUID `db:"author_id"`
	PostID      uuid.UUID `db:"post_id"`
	Upvotes     int       `db:"upvotes"`
	Downvotes   int       `db:"downvotes"`
	CachedScore float64   `db:"cached_score"`
	CreatedAt   int64     `db:"created_at"`
	IsAnonymous bool      `db:"is_anonymous"`
	IsDeleted   bool      `db:"is_deleted"`
}

func (r *targetRow) toModel(t models.VoteContentType) *models.Target {
	return &models.Target{
		Type:        t,
		ID:          r.ID,
		PostID:      r.PostID,
		AuthorID:    r.AuthorID,
		Upvotes:     r.Upvotes,
		Downvotes:   r.Downvotes,
		CachedScore: r.CachedScore,
		CreatedAt:   fromMillis(r.CreatedAt),
		IsAnonymous: r.IsAnonymous,
		IsDeleted:   r.IsDeleted,
	}
}

func tableFor(t models.VoteContentType) (string, error) {
	switch t {
	case models.PostVote:
		return "posts", nil
	case models.CommentVote:
		return "comments", nil
	}
	return "", fmt.Errorf("unknown target type %q", t)
}

func targetColumns(t models.VoteContentType) string {
	postID := "NULL AS post_id"
	if t == models.CommentVote {
		postID = "post_id"
	}
	return "id, author_id, " + postID + ", upvotes, downvotes, cached_score, created_at, is_anonymous, is_deleted"
}

func orderClause(o scoring.StoreOrder) string {
	var col string
	switch o.Field {
	case scoring.OrderByCachedScore:
		col = "cached_score"
	case scoring.OrderByNetVotes:
		col = "(upvotes - downvotes)"
	default:
		col = "created_at"
	}
	dir := "ASC"
	if o.Descending {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, created_at DESC, id ASC", col, dir)
}

// SavePost creates or replaces a post.
func (s *Store) SavePost(ctx context.Context, post *models.Post) error {
	now := time.Now()
	post.UpdatedAt = now
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}

	_, err := s.conn(ctx).ExecContext(ctx, `
INSERT INTO posts (id, title, content, author_id, upvotes, downvotes, cached_score, is_anonymous, is_deleted, comment_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	content = excluded.content,
	upvotes = excluded.upvotes,
	downvotes = excluded.downvotes,
	cached_score = excluded.cached_score,
	is_anonymous = excluded.is_anonymous,
	is_deleted = excluded.is_deleted,
	comment_count = excluded.comment_count,
	updated_at = excluded.updated_at
`, post.ID, post.Title, post.Content, post.AuthorID, post.Upvotes, post.Downvotes, post.HotScore,
		boolToInt(post.IsAnonymous), boolToInt(post.IsDeleted), post.CommentCount,
		millis(post.CreatedAt), millis(post.UpdatedAt))
	return err
}

// SaveComment creates or replaces a comment.
func (s *Store) SaveComment(ctx context.Context, comment *models.Comment) error {
	now := time.Now()
	comment.UpdatedAt = now
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now
	}

	var parentID any
	if comment.ParentID != nil {
		parentID = comment.ParentID.String()
	}

	_, err := s.conn(ctx).ExecContext(ctx, `
INSERT INTO comments (id, post_id, parent_id, content, author_id, upvotes, downvotes, cached_score, is_anonymous, is_deleted, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	content = excluded.content,
	upvotes = excluded.upvotes,
	downvotes = excluded.downvotes,
	cached_score = excluded.cached_score,
	is_anonymous = excluded.is_anonymous,
	is_deleted = excluded.is_deleted,
	updated_at = excluded.updated_at
`, comment.ID, comment.PostID, parentID, comment.Content, comment.AuthorID, comment.Upvotes, comment.Downvotes,
		comment.BestScore, boolToInt(comment.IsAnonymous), boolToInt(comment.IsDeleted),
		millis(comment.CreatedAt), millis(comment.UpdatedAt))
	return err
}

func (s *Store) SoftDeletePost(ctx context.Context, id uuid.UUID) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE posts SET title = ?, content = ?, is_deleted = 1, updated_at = ? WHERE id = ?`,
		redacted, redacted, millis(time.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) SoftDeleteComment(ctx context.Context, id uuid.UUID) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE comments SET content = ?, is_deleted = 1, updated_at = ? WHERE id = ?`,
		redacted, millis(time.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) GetTarget(ctx context.Context, ref models.TargetRef) (*models.Target, error) {
	table, err := tableFor(ref.Type)
	if err != nil {
		return nil, err
	}

	var row targetRow
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", targetColumns(ref.Type), table)
	if err := s.conn(ctx).GetContext(ctx, &row, query, ref.ID); err != nil {
		return nil, notFound(err)
	}
	return row.toModel(ref.Type), nil
}

func (s *Store) IncrementVoteCounts(ctx context.Context, ref models.TargetRef, upDelta, downDelta int) (models.VoteCounts, error) {
	var counts models.VoteCounts
	table, err := tableFor(ref.Type)
	if err != nil {
		return counts, err
	}

	query := fmt.Sprintf(`UPDATE %s SET upvotes = upvotes + ?, downvotes = downvotes + ?, updated_at = ?
WHERE id = ? RETURNING upvotes, downvotes`, table)
	err = s.conn(ctx).QueryRowxContext(ctx, query, upDelta, downDelta, millis(time.Now()), ref.ID).
		Scan(&counts.Upvotes, &counts.Downvotes)
	return counts, notFound(err)
}

func (s *Store) ClampVoteCounts(ctx context.Context, ref models.TargetRef) (models.VoteCounts, error) {
	var counts models.VoteCounts
	table, err := tableFor(ref.Type)
	if err != nil {
		return counts, err
	}

	query := fmt.Sprintf(`UPDATE %s SET upvotes = MAX(upvotes, 0), downvotes = MAX(downvotes, 0)
WHERE id = ? RETURNING upvotes, downvotes`, table)
	err = s.conn(ctx).QueryRowxContext(ctx, query, ref.ID).Scan(&counts.Upvotes, &counts.Downvotes)
	return counts, notFound(err)
}

func (s *Store) SetVoteCounts(ctx context.Context, ref models.TargetRef, expected, counts models.VoteCounts, score float64) (bool, error) {
	table, err := tableFor(ref.Type)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %s SET upvotes = ?, downvotes = ?, cached_score = ?, updated_at = ?
WHERE id = ? AND upvotes = ? AND downvotes = ?`, table)
	res, err := s.conn(ctx).ExecContext(ctx, query,
		counts.Upvotes, counts.Downvotes, score, millis(time.Now()),
		ref.ID, expected.Upvotes, expected.Downvotes)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) UpdateCachedScore(ctx context.Context, ref models.TargetRef, counts models.VoteCounts, score float64) (bool, error) {
	table, err := tableFor(ref.Type)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %s SET cached_score = ? WHERE id = ? AND upvotes = ? AND downvotes = ?`, table)
	res, err := s.conn(ctx).ExecContext(ctx, query, score, ref.ID, counts.Upvotes, counts.Downvotes)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListTargets returns live (not soft-deleted) targets in storage order.
func (s *Store) ListTargets(ctx context.Context, opts store.TargetListOpts) ([]*models.Target, error) {
	table, err := tableFor(opts.Type)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE is_deleted = 0", targetColumns(opts.Type), table)
	var args []any
	if opts.PostID != nil && opts.Type == models.CommentVote {
		query += " AND post_id = ?"
		args = append(args, *opts.PostID)
	}
	query += " ORDER BY " + orderClause(opts.Order)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []targetRow
	if err := s.conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	targets := make([]*models.Target, 0, len(rows))
	for i := range rows {
		targets = append(targets, rows[i].toModel(opts.Type))
	}
	return targets, nil
}

// ListTargetIDs returns every target id of a type, deleted ones included.
func (s *Store) ListTargetIDs(ctx context.Context, targetType models.VoteContentType) ([]uuid.UUID, error) {
	table, err := tableFor(targetType)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	err = s.conn(ctx).SelectContext(ctx, &ids, fmt.Sprintf("SELECT id FROM %s ORDER BY created_at", table))
	return ids, err
}
