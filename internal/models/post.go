package models

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Content      string    `json:"content" db:"content"`
	AuthorID     uuid.UUID `json:"authorId" db:"author_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
	Upvotes      int       `json:"upvotes" db:"upvotes"`
	Downvotes    int       `json:"downvotes" db:"downvotes"`
	HotScore     float64   `json:"hotScore" db:"cached_score"` // Hot rank key, refreshed on every vote
	IsAnonymous  bool      `json:"isAnonymous" db:"is_anonymous"`
	IsDeleted    bool      `json:"isDeleted" db:"is_deleted"`
	CommentCount int       `json:"commentCount" db:"comment_count"`
}

// Target returns the votable projection of the post.
func (p *Post) Target() *Target {
	return &Target{
		Type:        PostVote,
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		Upvotes:     p.Upvotes,
		Downvotes:   p.Downvotes,
		CachedScore: p.HotScore,
		CreatedAt:   p.CreatedAt,
		IsAnonymous: p.IsAnonymous,
		IsDeleted:   p.IsDeleted,
	}
}
