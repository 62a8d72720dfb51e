package services

import (
	"context"
	"errors"

	"enrollment-service/models"
	aws_pkg "enrollment-service/pkg/aws"
	"enrollment-service/repository"

	"go.uber.org/zap"
)

// WebhookService reconciles gateway notifications with enrollments.
type WebhookService interface {
	// HandleNotification returns nil when the notification should be
	// acknowledged. Only storage faults ask the gateway to redeliver.
	HandleNotification(ctx context.Context, payload []byte, signature string) *ServiceError
}

type webhookServiceImpl struct {
	gateway    PaymentGateway
	repo       repository.EnrollmentRepository
	settlement *Settlement
	dedupe     repository.NotificationDedupe
	metrics    MetricsRecorder
	logger     *zap.Logger
}

// NewWebhookService creates a WebhookService. dedupe and metrics may be nil.
func NewWebhookService(
	gateway PaymentGateway,
	repo repository.EnrollmentRepository,
	settlement *Settlement,
	dedupe repository.NotificationDedupe,
	metrics MetricsRecorder,
	logger *zap.Logger,
) WebhookService {
	return &webhookServiceImpl{
		gateway:    gateway,
		repo:       repo,
		settlement: settlement,
		dedupe:     dedupe,
		metrics:    metrics,
		logger:     logger,
	}
}

func (s *webhookServiceImpl) HandleNotification(ctx context.Context, payload []byte, signature string) *ServiceError {
	n, err := s.gateway.ParseNotification(payload, signature)
	if err != nil {
		if s.metrics != nil {
			_ = s.metrics.RecordCount(ctx, aws_pkg.MetricWebhookRejected, nil)
		}
		if errors.Is(err, ErrInvalidSignature) {
			s.logger.Warn("Webhook signature verification failed", zap.Error(err))
			return newServiceError(KindInvalidSignature, "Invalid signature", err)
		}
		s.logger.Warn("Malformed webhook payload", zap.Error(err))
		return newServiceError(KindInvalidRequest, "Malformed notification", err)
	}

	log := s.logger.With(
		zap.String("event_id", n.EventID),
		zap.String("event_type", n.Type),
		zap.String("session_id", n.SessionID),
		zap.String("payment_id", n.PaymentID),
	)

	if s.alreadyProcessed(ctx, n.EventID, log) {
		log.Info("Skipping already processed webhook event")
		return nil
	}

	var svcErr *ServiceError
	switch n.Kind {
	case NotificationCheckoutSettled:
		svcErr = s.handleSettled(ctx, n, log)
	case NotificationPaymentFailed:
		svcErr = s.handleFailed(ctx, n, log)
	case NotificationPaymentSucceeded:
		log.Info("Payment progress notification, no state change")
	default:
		log.Debug("Unhandled webhook event type")
	}
	if svcErr != nil {
		return svcErr
	}

	s.markProcessed(ctx, n.EventID, log)
	return nil
}

func (s *webhookServiceImpl) handleSettled(ctx context.Context, n *Notification, log *zap.Logger) *ServiceError {
	enrollment, svcErr := s.lookup(ctx, n, log)
	if enrollment == nil || svcErr != nil {
		return svcErr
	}
	if metadataMismatch(enrollment, n.Metadata) {
		log.Error("Notification metadata does not match enrollment",
			zap.String("enrollment_id", enrollment.ID.String()),
			zap.Any("metadata", n.Metadata),
		)
		return nil
	}

	if _, err := s.settlement.Complete(ctx, enrollment, n.PaymentID, models.SourceNotification); err != nil {
		log.Error("Failed to complete enrollment", zap.String("enrollment_id", enrollment.ID.String()), zap.Error(err))
		return newServiceError(KindStorageFault, "Failed to update enrollment", err)
	}
	return nil
}

func (s *webhookServiceImpl) handleFailed(ctx context.Context, n *Notification, log *zap.Logger) *ServiceError {
	enrollment, svcErr := s.lookup(ctx, n, log)
	if enrollment == nil || svcErr != nil {
		return svcErr
	}
	if enrollment.Status == models.EnrollmentStatusCompleted {
		log.Info("Ignoring failure for completed enrollment", zap.String("enrollment_id", enrollment.ID.String()))
		return nil
	}
	if metadataMismatch(enrollment, n.Metadata) {
		log.Error("Notification metadata does not match enrollment",
			zap.String("enrollment_id", enrollment.ID.String()),
			zap.Any("metadata", n.Metadata),
		)
		return nil
	}

	if _, err := s.settlement.Fail(ctx, enrollment, models.SourceNotification); err != nil {
		log.Error("Failed to mark enrollment failed", zap.String("enrollment_id", enrollment.ID.String()), zap.Error(err))
		return newServiceError(KindStorageFault, "Failed to update enrollment", err)
	}
	return nil
}

// lookup resolves the enrollment by session id, falling back to payment id.
// A missing enrollment is logged and yields (nil, nil) so the notification
// is acknowledged.
func (s *webhookServiceImpl) lookup(ctx context.Context, n *Notification, log *zap.Logger) (*models.Enrollment, *ServiceError) {
	var (
		enrollment *models.Enrollment
		err        error
	)
	switch {
	case n.SessionID != "":
		enrollment, err = s.repo.FindBySessionID(ctx, n.SessionID)
	case n.PaymentID != "":
		enrollment, err = s.repo.FindByPaymentID(ctx, n.PaymentID)
	default:
		log.Warn("Notification carries no session or payment reference")
		return nil, nil
	}

	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("No enrollment for notification")
		return nil, nil
	}
	if err != nil {
		log.Error("Failed to load enrollment for notification", zap.Error(err))
		return nil, newServiceError(KindStorageFault, "Failed to load enrollment", err)
	}
	return enrollment, nil
}

func (s *webhookServiceImpl) alreadyProcessed(ctx context.Context, eventID string, log *zap.Logger) bool {
	if s.dedupe == nil {
		return false
	}
	seen, err := s.dedupe.Seen(ctx, eventID)
	if err != nil {
		log.Warn("Dedupe lookup failed", zap.Error(err))
		return false
	}
	return seen
}

func (s *webhookServiceImpl) markProcessed(ctx context.Context, eventID string, log *zap.Logger) {
	if s.dedupe == nil {
		return
	}
	if err := s.dedupe.MarkProcessed(ctx, eventID); err != nil {
		log.Warn("Failed to record processed webhook event", zap.Error(err))
	}
}

// metadataMismatch reports whether the session metadata names a different
// identity or product than the stored enrollment. Absent keys match.
func metadataMismatch(e *models.Enrollment, metadata map[string]string) bool {
	if v := metadata[MetadataIdentityID]; v != "" && v != e.IdentityID {
		return true
	}
	if v := metadata[MetadataProductID]; v != "" && v != e.ProductID {
		return true
	}
	return false
}
