package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Karma     int       `json:"karma" db:"karma"`
	Rank      Rank      `json:"rank" db:"rank"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Rank is the karma bracket shown as a user badge.
type Rank string

const (
	RankNoob    Rank = "Noob"
	RankScholar Rank = "Scholar"
	RankExpert  Rank = "Expert"
	RankGuru    Rank = "Guru"
	RankLegend  Rank = "Legend"
)
