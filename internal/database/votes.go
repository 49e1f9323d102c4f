package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"scholar-hub/internal/models"
	"scholar-hub/internal/store"
)

// VoteDocument represents one ledger entry. The (voterId, targetType,
// targetId) triple is unique.
type VoteDocument struct {
	ID         string    `bson:"_id"`
	VoterID    string    `bson:"voterId"`
	TargetType string    `bson:"targetType"`
	TargetID   string    `bson:"targetId"`
	VoteType   int       `bson:"voteType"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func voteToDocument(vote *models.Vote) *VoteDocument {
	return &VoteDocument{
		ID:         vote.ID.String(),
		VoterID:    vote.VoterID.String(),
		TargetType: string(vote.TargetType),
		TargetID:   vote.TargetID.String(),
		VoteType:   int(vote.Direction),
		CreatedAt:  vote.CreatedAt,
		UpdatedAt:  vote.UpdatedAt,
	}
}

func documentToVote(doc *VoteDocument) (*models.Vote, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid vote ID: %w", err)
	}
	voterID, err := uuid.Parse(doc.VoterID)
	if err != nil {
		return nil, fmt.Errorf("invalid voter ID: %w", err)
	}
	targetID, err := uuid.Parse(doc.TargetID)
	if err != nil {
		return nil, fmt.Errorf("invalid target ID: %w", err)
	}

	return &models.Vote{
		ID:         id,
		VoterID:    voterID,
		TargetType: models.VoteContentType(doc.TargetType),
		TargetID:   targetID,
		Direction:  models.VoteDirection(doc.VoteType),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

// mapWriteError turns a unique-index violation into store.ErrDuplicateVote.
func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicateVote
	}
	return err
}

func voteFilter(voterID uuid.UUID, ref models.TargetRef) bson.M {
	return bson.M{
		"voterId":    voterID.String(),
		"targetType": string(ref.Type),
		"targetId":   ref.ID.String(),
	}
}

func (m *MongoDB) FindVote(ctx context.Context, voterID uuid.UUID, ref models.TargetRef) (*models.Vote, error) {
	var doc VoteDocument
	if err := m.Votes.FindOne(ctx, voteFilter(voterID, ref)).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return documentToVote(&doc)
}

func (m *MongoDB) CreateVote(ctx context.Context, vote *models.Vote) error {
	now := time.Now()
	if vote.ID == uuid.Nil {
		vote.ID = uuid.New()
	}
	vote.CreatedAt = now
	vote.UpdatedAt = now

	_, err := m.Votes.InsertOne(ctx, voteToDocument(vote))
	return mapWriteError(err)
}

func (m *MongoDB) UpdateVote(ctx context.Context, vote *models.Vote, direction models.VoteDirection) error {
	now := time.Now()
	result, err := m.Votes.UpdateOne(ctx, bson.M{"_id": vote.ID.String()}, bson.M{
		"$set": bson.M{"voteType": int(direction), "updatedAt": now},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	vote.Direction = direction
	vote.UpdatedAt = now
	return nil
}

func (m *MongoDB) DeleteVote(ctx context.Context, vote *models.Vote) error {
	result, err := m.Votes.DeleteOne(ctx, bson.M{"_id": vote.ID.String()})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (m *MongoDB) FindVotesByVoter(ctx context.Context, voterID uuid.UUID, targetType models.VoteContentType, targetIDs []uuid.UUID) ([]*models.Vote, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(targetIDs))
	for i, id := range targetIDs {
		ids[i] = id.String()
	}

	cursor, err := m.Votes.Find(ctx, bson.M{
		"voterId":    voterID.String(),
		"targetType": string(targetType),
		"targetId":   bson.M{"$in": ids},
	})
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	defer cursor.Close(ctx)

	var votes []*models.Vote
	for cursor.Next(ctx) {
		var doc VoteDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		vote, err := documentToVote(&doc)
		if err != nil {
			return nil, err
		}
		votes = append(votes, vote)
	}
	return votes, cursor.Err()
}

// CountVotes aggregates the ledger for one target.
func (m *MongoDB) CountVotes(ctx context.Context, ref models.TargetRef) (models.VoteCounts, error) {
	var counts models.VoteCounts

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"targetType": string(ref.Type), "targetId": ref.ID.String()}}},
		{{Key: "$group", Value: bson.M{"_id": "$voteType", "n": bson.M{"$sum": 1}}}},
	}
	cursor, err := m.Votes.Aggregate(ctx, pipeline)
	if err != nil {
		return counts, fmt.Errorf("failed to aggregate votes: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var group struct {
			VoteType int `bson:"_id"`
			N        int `bson:"n"`
		}
		if err := cursor.Decode(&group); err != nil {
			return counts, err
		}
		switch models.VoteDirection(group.VoteType) {
		case models.VoteUp:
			counts.Upvotes = group.N
		case models.VoteDown:
			counts.Downvotes = group.N
		}
	}
	return counts, cursor.Err()
}
