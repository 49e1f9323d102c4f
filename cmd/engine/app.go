package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"scholar-hub/internal/config"
	"scholar-hub/internal/database"
	"scholar-hub/internal/ratelimit"
	"scholar-hub/internal/store"
	"scholar-hub/internal/store/sqlite"
	"scholar-hub/internal/utils"
	"scholar-hub/internal/voting"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *utils.MetricsCollector
	store    store.Store
	redis    rueidis.Client
	service  *voting.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := utils.NewMetricsCollector(registry)

	st, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		store:    st,
	}

	opts := voting.Options{
		Metrics:         metrics,
		CandidateWindow: cfg.Voting.CandidateWindow,
	}
	if cfg.Redis.Addr != "" && cfg.Voting.VotesPerMinute > 0 {
		client, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress: []string{cfg.Redis.Addr},
			Username:    cfg.Redis.Username,
			Password:    cfg.Redis.Password,
			SelectDB:    cfg.Redis.DB,
			ClientName:  "scholar-hub",
		})
		if err != nil {
			_ = st.Close(ctx)
			return nil, fmt.Errorf("failed to create Redis client: %w", err)
		}
		a.redis = client
		opts.Limiter = ratelimit.New(client, cfg.Voting.VotesPerMinute, time.Minute)
		logger.Info("Vote rate limit enabled", zap.Int("votesPerMinute", cfg.Voting.VotesPerMinute))
	}

	a.service = voting.NewService(st, logger, opts)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (store.Store, error) {
	switch cfg.Type {
	case config.DatabaseMongo:
		db, err := database.NewMongoDB(ctx, cfg.URI, cfg.Name, cfg.Transactions, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DatabaseSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database %s: %w", cfg.SQLitePath, err)
		}
		logger.Info("Opened SQLite store", zap.String("path", cfg.SQLitePath))
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

func (a *app) Close(ctx context.Context) {
	if a.redis != nil {
		a.redis.Close()
	}
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn("Failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
