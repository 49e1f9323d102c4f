// Package database is the MongoDB backend for the voting core.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"scholar-hub/internal/models"
	"scholar-hub/internal/store"
)

type MongoDB struct {
	Client   *mongo.Client
	Users    *mongo.Collection
	Posts    *mongo.Collection
	Comments *mongo.Collection
	Votes    *mongo.Collection

	// transactions enables multi-document transactions; it needs a replica set.
	transactions bool
	logger       *zap.Logger
}

var _ store.Store = (*MongoDB)(nil)

func NewMongoDB(ctx context.Context, uri, dbName string, transactions bool, logger *zap.Logger) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger = logger.Named("mongodb")
	logger.Info("Successfully connected to MongoDB",
		zap.String("database", dbName),
		zap.Bool("transactions", transactions))

	db := client.Database(dbName)
	m := &MongoDB{
		Client:       client,
		Users:        db.Collection("users"),
		Posts:        db.Collection("posts"),
		Comments:     db.Collection("comments"),
		Votes:        db.Collection("votes"),
		transactions: transactions,
		logger:       logger,
	}

	if err := m.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

// EnsureIndexes creates the unique ledger index and the listing indexes.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := m.Votes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "voterId", Value: 1},
				{Key: "targetType", Value: 1},
				{Key: "targetId", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_voter_target"),
		},
		{
			Keys: bson.D{{Key: "targetType", Value: 1}, {Key: "targetId", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create vote indexes: %w", err)
	}

	listing := []mongo.IndexModel{
		{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "cachedScore", Value: -1}}},
		{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "netVotes", Value: -1}}},
	}
	if _, err := m.Posts.Indexes().CreateMany(ctx, listing); err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}

	_, err = m.Comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "cachedScore", Value: -1}}},
		{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create comment indexes: %w", err)
	}
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Transactional() bool {
	return m.transactions
}

// WithinTx runs fn in a session transaction when transactions are enabled,
// and directly otherwise. Nested calls join the outer session.
func (m *MongoDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := m.Client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (m *MongoDB) collectionFor(t models.VoteContentType) (*mongo.Collection, error) {
	switch t {
	case models.PostVote:
		return m.Posts, nil
	case models.CommentVote:
		return m.Comments, nil
	}
	return nil, fmt.Errorf("unknown target type %q", t)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}
