package models

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Content     string     `json:"content" db:"content"`
	AuthorID    uuid.UUID  `json:"authorId" db:"author_id"`
	PostID      uuid.UUID  `json:"postId" db:"post_id"`
	ParentID    *uuid.UUID `json:"parentId,omitempty" db:"parent_id"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	Upvotes     int        `json:"upvotes" db:"upvotes"`
	Downvotes   int        `json:"downvotes" db:"downvotes"`
	BestScore   float64    `json:"bestScore" db:"cached_score"` // Wilson lower bound
	IsAnonymous bool       `json:"isAnonymous" db:"is_anonymous"`
	IsDeleted   bool       `json:"isDeleted" db:"is_deleted"`
}

// Target returns the votable projection of the comment.
func (c *Comment) Target() *Target {
	return &Target{
		Type:        CommentVote,
		ID:          c.ID,
		PostID:      c.PostID,
		AuthorID:    c.AuthorID,
		Upvotes:     c.Upvotes,
		Downvotes:   c.Downvotes,
		CachedScore: c.BestScore,
		CreatedAt:   c.CreatedAt,
		IsAnonymous: c.IsAnonymous,
		IsDeleted:   c.IsDeleted,
	}
}
