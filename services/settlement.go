package services

import (
	"context"
	"time"

	"enrollment-service/models"
	aws_pkg "enrollment-service/pkg/aws"
	"enrollment-service/repository"

	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Settlement is the only write path for enrollment state changes. Webhook,
// verify and the sweeper all go through it so they agree on the outcome.
type Settlement struct {
	repo      repository.EnrollmentRepository
	publisher EventPublisher
	metrics   MetricsRecorder
	logger    *zap.Logger
}

// NewSettlement builds the shared state machine writer. publisher and
// metrics may be nil.
func NewSettlement(repo repository.EnrollmentRepository, publisher EventPublisher, metrics MetricsRecorder, logger *zap.Logger) *Settlement {
	return &Settlement{repo: repo, publisher: publisher, metrics: metrics, logger: logger}
}

// Complete marks e completed with paymentID. It reports false when the
// enrollment was already completed, which callers treat as success.
func (s *Settlement) Complete(ctx context.Context, e *models.Enrollment, paymentID, source string) (bool, error) {
	changed, err := s.repo.MarkCompleted(ctx, e.ID, paymentID)
	if err != nil {
		return false, err
	}
	if !changed {
		s.logger.Info("Enrollment already completed",
			zap.String("enrollment_id", e.ID.String()),
			zap.String("session_id", e.ExternalSessionID),
			zap.String("source", source),
		)
		return false, nil
	}

	from := e.Status
	e.Status = models.EnrollmentStatusCompleted
	if paymentID != "" {
		e.ExternalPaymentID = &paymentID
	}

	s.logger.Info("Enrollment completed",
		zap.String("enrollment_id", e.ID.String()),
		zap.String("identity_id", e.IdentityID),
		zap.String("product_id", e.ProductID),
		zap.String("payment_id", paymentID),
		zap.String("from", string(from)),
		zap.String("source", source),
	)
	s.record(ctx, aws_pkg.MetricEnrollmentCompleted, source)
	s.publish(ctx, models.NewEnrollmentEvent(models.EventEnrollmentCompleted, e, source))
	return true, nil
}

// Fail marks a pending enrollment failed. Completed enrollments are left
// untouched and reported as unchanged.
func (s *Settlement) Fail(ctx context.Context, e *models.Enrollment, source string) (bool, error) {
	if e.Status == models.EnrollmentStatusCompleted {
		return false, nil
	}

	changed, err := s.repo.MarkFailed(ctx, e.ID)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	e.Status = models.EnrollmentStatusFailed
	s.logger.Info("Enrollment failed",
		zap.String("enrollment_id", e.ID.String()),
		zap.String("session_id", e.ExternalSessionID),
		zap.String("source", source),
	)
	s.record(ctx, aws_pkg.MetricEnrollmentFailed, source)
	s.publish(ctx, models.NewEnrollmentEvent(models.EventEnrollmentFailed, e, source))
	return true, nil
}

func (s *Settlement) publish(ctx context.Context, event models.EnrollmentEvent) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishEnrollmentEvent(pubCtx, event); err != nil {
		s.logger.Warn("Failed to publish enrollment event",
			zap.String("type", event.Type),
			zap.String("enrollment_id", event.EnrollmentID),
			zap.Error(err),
		)
	}
}

func (s *Settlement) record(ctx context.Context, metric, source string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordCount(ctx, metric, map[string]string{"Source": source}); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}
