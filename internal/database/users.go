package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scholar-hub/internal/models"
)

// UserDocument represents the reputation fields of a user.
type UserDocument struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Karma     int       `bson:"karma"`
	Rank      string    `bson:"rank"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func documentToUser(doc *UserDocument) (*models.User, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %w", err)
	}
	return &models.User{
		ID:        id,
		Username:  doc.Username,
		Karma:     doc.Karma,
		Rank:      models.Rank(doc.Rank),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// SaveUser creates or updates a user in MongoDB
func (m *MongoDB) SaveUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.Rank == "" {
		user.Rank = models.RankNoob
	}

	doc := UserDocument{
		ID:        user.ID.String(),
		Username:  user.Username,
		Karma:     user.Karma,
		Rank:      string(user.Rank),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.Users.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts)
	return err
}

// GetUser retrieves a user from MongoDB by their ID
func (m *MongoDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc UserDocument
	if err := m.Users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return documentToUser(&doc)
}

// IncrementKarma applies delta with $inc and returns the updated user.
func (m *MongoDB) IncrementKarma(ctx context.Context, id uuid.UUID, delta int) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$inc": bson.M{"karma": delta},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	var doc UserDocument
	if err := m.Users.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, update, opts).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return documentToUser(&doc)
}

// SetRank writes rank only while the user still has the karma it was derived from.
func (m *MongoDB) SetRank(ctx context.Context, id uuid.UUID, karma int, rank models.Rank) (bool, error) {
	result, err := m.Users.UpdateOne(ctx,
		bson.M{"_id": id.String(), "karma": karma},
		bson.M{"$set": bson.M{"rank": string(rank), "updatedAt": time.Now()}})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}
