package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"scholar-hub/internal/models"
	"scholar-hub/internal/voting"
)

// Repairer rebuilds vote counters from the ledger.
type Repairer interface {
	RepairAll(ctx context.Context, targetType models.VoteContentType, concurrency int) (*voting.RepairReport, error)
}

// Scheduler runs counter reconciliation on a cron schedule
type Scheduler struct {
	cron        *cron.Cron
	repairer    Repairer
	concurrency int
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger
}

// New creates a scheduler that reconciles posts then comments on the cron schedule.
// Overlapping runs are skipped.
func New(repairer Repairer, spec string, concurrency int, logger *zap.Logger) (*Scheduler, error) {
	logger = logger.Named("scheduler")
	cronLogger := zapCronLogger{logger.Sugar()}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:        cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger))),
		repairer:    repairer,
		concurrency: concurrency,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}

	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	return s, nil
}

// RunOnce reconciles every target type and returns the reports.
// A failing type is logged and does not stop the next one.
func (s *Scheduler) RunOnce(ctx context.Context) []*voting.RepairReport {
	var reports []*voting.RepairReport
	for _, targetType := range []models.VoteContentType{models.PostVote, models.CommentVote} {
		report, err := s.repairer.RepairAll(ctx, targetType, s.concurrency)
		if err != nil {
			s.logger.Error("Reconciliation failed",
				zap.String("targetType", string(targetType)),
				zap.Error(err))
		}
		if report != nil {
			reports = append(reports, report)
		}
	}
	return reports
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels a running job and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
