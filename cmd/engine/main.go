package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"scholar-hub/internal/config"
	"scholar-hub/internal/engine"
	"scholar-hub/internal/handlers"
	"scholar-hub/internal/logging"
	"scholar-hub/internal/middleware"
	"scholar-hub/internal/models"
	"scholar-hub/internal/scheduler"
	"scholar-hub/internal/scoring"
)

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "engine",
		Usage: "Forum voting and ranking engine",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API, the vote actors and scheduled reconciliation",
				Action: serve,
			},
			{
				Name:  "reconcile",
				Usage: "Rebuild vote counters and cached scores from the vote ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Value: "all",
						Usage: "Target type to repair: post, comment or all",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Targets repaired in parallel (defaults to reconcile.concurrency)",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return reconcile(ctx, c, out)
				},
			},
			{
				Name:  "score",
				Usage: "Print every ranking score for a vote count and age",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "up", Usage: "Upvotes"},
					&cli.IntFlag{Name: "down", Usage: "Downvotes"},
					&cli.DurationFlag{Name: "age", Value: time.Hour, Usage: "Age of the target"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Int("up") < 0 || c.Int("down") < 0 || c.Duration("age") < 0 {
						return errors.New("votes and age must not be negative")
					}
					printScores(out, int(c.Int("up")), int(c.Int("down")), c.Duration("age"), time.Now())
					return nil
				},
			},
		},
	}
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger)
}

func serve(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if a.cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required to serve")
	}

	// Initialize actor system and vote engine
	system := actor.NewActorSystem()
	defer system.Shutdown()
	voteEngine := engine.NewEngine(system, a.service, a.metrics, a.logger, engine.Options{
		PoolSize:       a.cfg.Voting.ActorPoolSize,
		RequestTimeout: a.cfg.RequestTimeout(),
	})
	defer voteEngine.Stop()

	if a.cfg.Reconcile.Schedule != "" {
		sched, err := scheduler.New(a.service, a.cfg.Reconcile.Schedule, a.cfg.Reconcile.Concurrency, a.logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	server := handlers.NewServer(voteEngine, a.metrics, a.cfg.RequestTimeout(), a.logger)
	var gatherer prometheus.Gatherer
	if a.cfg.Server.MetricsEnabled {
		gatherer = a.registry
	}
	router := server.NewRouter(
		middleware.NewAuthenticator(a.cfg.Auth.JWTSecret, a.logger),
		middleware.DefaultCORSConfig(a.cfg.AllowedOrigins),
		gatherer,
	)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting server", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}
	return nil
}

func reconcile(ctx context.Context, c *cli.Command, out io.Writer) error {
	var types []models.VoteContentType
	switch raw := c.String("type"); raw {
	case "all":
		types = []models.VoteContentType{models.PostVote, models.CommentVote}
	default:
		targetType := models.VoteContentType(raw)
		if !targetType.Valid() {
			return fmt.Errorf("unknown target type %q", raw)
		}
		types = []models.VoteContentType{targetType}
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	concurrency := int(c.Int("concurrency"))
	if concurrency <= 0 {
		concurrency = a.cfg.Reconcile.Concurrency
	}

	var failed int
	for _, targetType := range types {
		report, err := a.service.RepairAll(ctx, targetType, concurrency)
		if report != nil {
			fmt.Fprintf(out, "%s: checked=%d repaired=%d failed=%d duration=%s\n",
				report.Type, report.Checked, report.Repaired, report.Failed, report.Duration.Round(time.Millisecond))
			failed += report.Failed
		}
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", targetType, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d targets could not be reconciled", failed)
	}
	return nil
}

func printScores(w io.Writer, up, down int, age time.Duration, now time.Time) {
	createdAt := now.Add(-age)
	fmt.Fprintf(w, "hot:           %.7f\n", scoring.Hot(up, down, createdAt))
	fmt.Fprintf(w, "best:          %.7f\n", scoring.Wilson(up, down))
	fmt.Fprintf(w, "controversial: %.7f\n", scoring.Controversial(up, down))
	fmt.Fprintf(w, "rising:        %.7f\n", scoring.Rising(up, down, createdAt, now))
}
