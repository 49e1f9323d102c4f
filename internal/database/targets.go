package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"scholar-hub/internal/models"
	"scholar-hub/internal/scoring"
	"scholar-hub/internal/store"
)

const redacted = "[deleted]"

// PostDocument represents the MongoDB schema for a post.
type PostDocument struct {
	ID           string    `bson:"_id"`
	Title        string    `bson:"title"`
	Content      string    `bson:"content"`
	AuthorID     string    `bson:"authorId"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
	Upvotes      int       `bson:"upvotes"`
	Downvotes    int       `bson:"downvotes"`
	NetVotes     int       `bson:"netVotes"` // upvotes - downvotes, kept for "top" ordering
	CachedScore  float64   `bson:"cachedScore"`
	IsAnonymous  bool      `bson:"isAnonymous"`
	IsDeleted    bool      `bson:"isDeleted"`
	CommentCount int       `bson:"commentCount"`
}

// CommentDocument represents the MongoDB schema for a comment.
type CommentDocument struct {
	ID          string    `bson:"_id"`
	Content     string    `bson:"content"`
	AuthorID    string    `bson:"authorId"`
	PostID      string    `bson:"postId"`
	ParentID    *string   `bson:"parentId,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
	Upvotes     int       `bson:"upvotes"`
	Downvotes   int       `bson:"downvotes"`
	NetVotes    int       `bson:"netVotes"`
	CachedScore float64   `bson:"cachedScore"`
	IsAnonymous bool      `bson:"isAnonymous"`
	IsDeleted   bool      `bson:"isDeleted"`
}

// targetDocument decodes the fields posts and comments share.
type targetDocument struct {
	ID          string    `bson:"_id"`
	AuthorID    string    `bson:"authorId"`
	PostID      string    `bson:"postId,omitempty"`
	Upvotes     int       `bson:"upvotes"`
	Downvotes   int       `bson:"downvotes"`
	CachedScore float64   `bson:"cachedScore"`
	CreatedAt   time.Time `bson:"createdAt"`
	IsAnonymous bool      `bson:"isAnonymous"`
	IsDeleted   bool      `bson:"isDeleted"`
}

type countsDocument struct {
	Upvotes   int `bson:"upvotes"`
	Downvotes int `bson:"downvotes"`
}

func postToDocument(post *models.Post) *PostDocument {
	return &PostDocument{
		ID:           post.ID.String(),
		Title:        post.Title,
		Content:      post.Content,
		AuthorID:     post.AuthorID.String(),
		CreatedAt:    post.CreatedAt,
		UpdatedAt:    post.UpdatedAt,
		Upvotes:      post.Upvotes,
		Downvotes:    post.Downvotes,
		NetVotes:     post.Upvotes - post.Downvotes,
		CachedScore:  post.HotScore,
		IsAnonymous:  post.IsAnonymous,
		IsDeleted:    post.IsDeleted,
		CommentCount: post.CommentCount,
	}
}

func commentToDocument(comment *models.Comment) *CommentDocument {
	doc := &CommentDocument{
		ID:          comment.ID.String(),
		Content:     comment.Content,
		AuthorID:    comment.AuthorID.String(),
		PostID:      comment.PostID.String(),
		CreatedAt:   comment.CreatedAt,
		UpdatedAt:   comment.UpdatedAt,
		Upvotes:     comment.Upvotes,
		Downvotes:   comment.Downvotes,
		NetVotes:    comment.Upvotes - comment.Downvotes,
		CachedScore: comment.BestScore,
		IsAnonymous: comment.IsAnonymous,
		IsDeleted:   comment.IsDeleted,
	}
	if comment.ParentID != nil {
		parent := comment.ParentID.String()
		doc.ParentID = &parent
	}
	return doc
}

// documentToTarget converts a stored post or comment to its votable projection.
func documentToTarget(t models.VoteContentType, doc *targetDocument) (*models.Target, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid %s ID: %w", t, err)
	}

	authorID, err := uuid.Parse(doc.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID: %w", err)
	}

	var postID uuid.UUID
	if t == models.CommentVote {
		if postID, err = uuid.Parse(doc.PostID); err != nil {
			return nil, fmt.Errorf("invalid post ID: %w", err)
		}
	}

	return &models.Target{
		Type:        t,
		ID:          id,
		PostID:      postID,
		AuthorID:    authorID,
		Upvotes:     doc.Upvotes,
		Downvotes:   doc.Downvotes,
		CachedScore: doc.CachedScore,
		CreatedAt:   doc.CreatedAt,
		IsAnonymous: doc.IsAnonymous,
		IsDeleted:   doc.IsDeleted,
	}, nil
}

// sortFor maps a storage order to a Mongo sort document with stable tie-breaks.
func sortFor(o scoring.StoreOrder) bson.D {
	field := "createdAt"
	switch o.Field {
	case scoring.OrderByCachedScore:
		field = "cachedScore"
	case scoring.OrderByNetVotes:
		field = "netVotes"
	}
	dir := 1
	if o.Descending {
		dir = -1
	}

	sort := bson.D{{Key: field, Value: dir}}
	if field != "createdAt" {
		sort = append(sort, bson.E{Key: "createdAt", Value: -1})
	}
	return append(sort, bson.E{Key: "_id", Value: 1})
}

// SavePost creates or updates a post in MongoDB.
func (m *MongoDB) SavePost(ctx context.Context, post *models.Post) error {
	now := time.Now()
	post.UpdatedAt = now
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": post.ID.String()}
	update := bson.M{"$set": postToDocument(post)}

	_, err := m.Posts.UpdateOne(ctx, filter, update, opts)
	return err
}

// SaveComment creates or updates a comment in MongoDB.
func (m *MongoDB) SaveComment(ctx context.Context, comment *models.Comment) error {
	now := time.Now()
	comment.UpdatedAt = now
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": comment.ID.String()}
	update := bson.M{"$set": commentToDocument(comment)}

	_, err := m.Comments.UpdateOne(ctx, filter, update, opts)
	return err
}

func (m *MongoDB) SoftDeletePost(ctx context.Context, id uuid.UUID) error {
	return m.softDelete(ctx, m.Posts, id, bson.M{"title": redacted, "content": redacted})
}

func (m *MongoDB) SoftDeleteComment(ctx context.Context, id uuid.UUID) error {
	return m.softDelete(ctx, m.Comments, id, bson.M{"content": redacted})
}

func (m *MongoDB) softDelete(ctx context.Context, coll *mongo.Collection, id uuid.UUID, redact bson.M) error {
	redact["isDeleted"] = true
	redact["updatedAt"] = time.Now()

	result, err := coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": redact})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (m *MongoDB) GetTarget(ctx context.Context, ref models.TargetRef) (*models.Target, error) {
	coll, err := m.collectionFor(ref.Type)
	if err != nil {
		return nil, err
	}

	var doc targetDocument
	if err := coll.FindOne(ctx, bson.M{"_id": ref.ID.String()}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return documentToTarget(ref.Type, &doc)
}

// IncrementVoteCounts applies the deltas with a single $inc and returns the
// document as it is after the update.
func (m *MongoDB) IncrementVoteCounts(ctx context.Context, ref models.TargetRef, upDelta, downDelta int) (models.VoteCounts, error) {
	return m.updateCounts(ctx, ref, bson.M{
		"$inc": bson.M{
			"upvotes":   upDelta,
			"downvotes": downDelta,
			"netVotes":  upDelta - downDelta,
		},
		"$set": bson.M{"updatedAt": time.Now()},
	})
}

func (m *MongoDB) ClampVoteCounts(ctx context.Context, ref models.TargetRef) (models.VoteCounts, error) {
	counts, err := m.updateCounts(ctx, ref, bson.M{
		"$max": bson.M{"upvotes": 0, "downvotes": 0},
	})
	if err != nil {
		return counts, err
	}

	// netVotes is derived; rewrite it from the clamped counters.
	coll, _ := m.collectionFor(ref.Type)
	_, err = coll.UpdateOne(ctx,
		bson.M{"_id": ref.ID.String(), "upvotes": counts.Upvotes, "downvotes": counts.Downvotes},
		bson.M{"$set": bson.M{"netVotes": counts.Net()}})
	return counts, err
}

func (m *MongoDB) updateCounts(ctx context.Context, ref models.TargetRef, update bson.M) (models.VoteCounts, error) {
	coll, err := m.collectionFor(ref.Type)
	if err != nil {
		return models.VoteCounts{}, err
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"upvotes": 1, "downvotes": 1})

	var doc countsDocument
	if err := coll.FindOneAndUpdate(ctx, bson.M{"_id": ref.ID.String()}, update, opts).Decode(&doc); err != nil {
		return models.VoteCounts{}, notFound(err)
	}
	return models.VoteCounts{Upvotes: doc.Upvotes, Downvotes: doc.Downvotes}, nil
}

// SetVoteCounts overwrites the counters while the document still holds
// expected, so increments landing mid-reconciliation are not lost.
func (m *MongoDB) SetVoteCounts(ctx context.Context, ref models.TargetRef, expected, counts models.VoteCounts, score float64) (bool, error) {
	coll, err := m.collectionFor(ref.Type)
	if err != nil {
		return false, err
	}

	filter := bson.M{
		"_id":       ref.ID.String(),
		"upvotes":   expected.Upvotes,
		"downvotes": expected.Downvotes,
	}
	result, err := coll.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"upvotes":     counts.Upvotes,
			"downvotes":   counts.Downvotes,
			"netVotes":    counts.Net(),
			"cachedScore": score,
			"updatedAt":   time.Now(),
		},
	})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// UpdateCachedScore writes score only while the document still holds the
// counts it was computed from.
func (m *MongoDB) UpdateCachedScore(ctx context.Context, ref models.TargetRef, counts models.VoteCounts, score float64) (bool, error) {
	coll, err := m.collectionFor(ref.Type)
	if err != nil {
		return false, err
	}

	filter := bson.M{
		"_id":       ref.ID.String(),
		"upvotes":   counts.Upvotes,
		"downvotes": counts.Downvotes,
	}
	result, err := coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"cachedScore": score}})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// ListTargets returns live targets in storage order.
func (m *MongoDB) ListTargets(ctx context.Context, opts store.TargetListOpts) ([]*models.Target, error) {
	coll, err := m.collectionFor(opts.Type)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"isDeleted": false}
	if opts.PostID != nil && opts.Type == models.CommentVote {
		filter["postId"] = opts.PostID.String()
	}

	findOpts := options.Find().SetSort(sortFor(opts.Order))
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	defer cursor.Close(ctx)

	var targets []*models.Target
	for cursor.Next(ctx) {
		var doc targetDocument
		if err := cursor.Decode(&doc); err != nil {
			m.logger.Warn("Skipping undecodable target", zap.Error(err))
			continue
		}
		target, err := documentToTarget(opts.Type, &doc)
		if err != nil {
			m.logger.Warn("Skipping malformed target", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		targets = append(targets, target)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration failed: %w", err)
	}
	return targets, nil
}

// ListTargetIDs returns every id of a type, soft-deleted ones included.
func (m *MongoDB) ListTargetIDs(ctx context.Context, targetType models.VoteContentType) ([]uuid.UUID, error) {
	coll, err := m.collectionFor(targetType)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []uuid.UUID
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			m.logger.Warn("Skipping malformed target id", zap.String("id", doc.ID))
			continue
		}
		ids = append(ids, id)
	}
	return ids, cursor.Err()
}
