package services

import (
	"context"
	"time"

	"enrollment-service/models"
	aws_pkg "enrollment-service/pkg/aws"
	"enrollment-service/repository"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reconcileRunTimeout = 5 * time.Minute

type ReconcileSummary struct {
	Checked   int
	Completed int
	Failed    int
	Errors    int
}

// ReconcileJob settles pending enrollments whose notification never
// arrived by asking the gateway for the session state.
type ReconcileJob struct {
	repo           repository.EnrollmentRepository
	gateway        PaymentGateway
	settlement     *Settlement
	staleAfter     time.Duration
	batch          int
	gatewayTimeout time.Duration
	metrics        MetricsRecorder
	logger         *zap.Logger
	cron           *cron.Cron
	now            func() time.Time
}

func NewReconcileJob(
	repo repository.EnrollmentRepository,
	gateway PaymentGateway,
	settlement *Settlement,
	staleAfter time.Duration,
	batch int,
	gatewayTimeout time.Duration,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *ReconcileJob {
	return &ReconcileJob{
		repo:           repo,
		gateway:        gateway,
		settlement:     settlement,
		staleAfter:     staleAfter,
		batch:          batch,
		gatewayTimeout: gatewayTimeout,
		metrics:        metrics,
		logger:         logger,
		cron:           cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(logger))))),
		now:            time.Now,
	}
}

// Start schedules Run on the given cron spec.
func (j *ReconcileJob) Start(schedule string) error {
	_, err := j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileRunTimeout)
		defer cancel()
		j.Run(ctx)
	})
	if err != nil {
		return err
	}
	j.logger.Info("Scheduled stale session reconciliation", zap.String("schedule", schedule))
	j.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done when a running
// job finishes.
func (j *ReconcileJob) Stop() context.Context {
	return j.cron.Stop()
}

func (j *ReconcileJob) Run(ctx context.Context) ReconcileSummary {
	var summary ReconcileSummary

	cutoff := j.now().Add(-j.staleAfter)
	stale, err := j.repo.ListStalePending(ctx, cutoff, j.batch)
	if err != nil {
		j.logger.Error("Failed to list stale enrollments", zap.Error(err))
		summary.Errors++
		return summary
	}

	for i := range stale {
		if ctx.Err() != nil {
			break
		}
		enrollment := &stale[i]
		summary.Checked++

		status, err := j.retrieve(ctx, enrollment.ExternalSessionID)
		if err != nil {
			j.logger.Warn("Failed to retrieve session during reconciliation",
				zap.String("session_id", enrollment.ExternalSessionID),
				zap.Error(err),
			)
			summary.Errors++
			continue
		}

		switch {
		case status.Settled():
			changed, err := j.settlement.Complete(ctx, enrollment, status.PaymentID, models.SourceSweep)
			if err != nil {
				j.logger.Error("Failed to complete stale enrollment", zap.String("session_id", enrollment.ExternalSessionID), zap.Error(err))
				summary.Errors++
			} else if changed {
				summary.Completed++
			}
		case status.Expired():
			changed, err := j.settlement.Fail(ctx, enrollment, models.SourceSweep)
			if err != nil {
				j.logger.Error("Failed to fail expired enrollment", zap.String("session_id", enrollment.ExternalSessionID), zap.Error(err))
				summary.Errors++
			} else if changed {
				summary.Failed++
			}
		}
	}

	if j.metrics != nil && summary.Checked > 0 {
		_ = j.metrics.RecordCount(ctx, aws_pkg.MetricStaleSessionsChecked, nil)
	}
	j.logger.Info("Stale session reconciliation finished",
		zap.Int("checked", summary.Checked),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("errors", summary.Errors),
	)
	return summary
}

func (j *ReconcileJob) retrieve(ctx context.Context, sessionID string) (*SessionStatus, error) {
	gwCtx, cancel := context.WithTimeout(ctx, j.gatewayTimeout)
	defer cancel()
	return j.gateway.RetrieveSession(gwCtx, sessionID)
}
