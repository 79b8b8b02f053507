package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DataSourceVerifier re-checks every data source.
type DataSourceVerifier interface {
	VerifyAll(ctx context.Context) (int, error)
}

// Scheduler runs the service's background jobs.
type Scheduler struct {
	cronRunner *cron.Cron
	verifier   DataSourceVerifier
	logger     *zap.Logger
	jobTimeout time.Duration
}

// New creates a Scheduler. Jobs are not registered until Start.
func New(verifier DataSourceVerifier, logger *zap.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		verifier:   verifier,
		logger:     logger,
		jobTimeout: 5 * time.Minute,
		cronRunner: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		)),
	}
}

// Start registers the data source verification job on spec (a cron
// expression or descriptor such as "@every 30m") and starts the runner. An
// empty spec disables the job.
func (s *Scheduler) Start(spec string) error {
	if spec != "" {
		if _, err := s.cronRunner.AddFunc(spec, s.verifyDataSources); err != nil {
			return fmt.Errorf("invalid data source verification schedule %q: %w", spec, err)
		}
		s.logger.Info("Scheduled data source verification", zap.String("schedule", spec))
	}
	s.cronRunner.Start()
	return nil
}

// Stop stops the runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cronRunner.Stop().Done()
}

func (s *Scheduler) verifyDataSources() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.verifier.VerifyAll(ctx)
	if err != nil {
		s.logger.Error("Data source verification failed", zap.Error(err))
		return
	}
	s.logger.Info("Data source verification finished",
		zap.Int("verified", n),
		zap.Duration("took", time.Since(start)))
}
