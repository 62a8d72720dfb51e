package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"enrollment-service/models"
	"enrollment-service/repository"

	"go.uber.org/zap"
)

// SessionVerifier lets a returning client confirm its payment when the
// webhook has not arrived yet.
type SessionVerifier interface {
	Verify(ctx context.Context, identityID, sessionID string) (*EnrollmentView, *ServiceError)
}

type sessionVerifierImpl struct {
	repo           repository.EnrollmentRepository
	gateway        PaymentGateway
	settlement     *Settlement
	gatewayTimeout time.Duration
	logger         *zap.Logger
}

func NewSessionVerifier(
	repo repository.EnrollmentRepository,
	gateway PaymentGateway,
	settlement *Settlement,
	gatewayTimeout time.Duration,
	logger *zap.Logger,
) SessionVerifier {
	return &sessionVerifierImpl{
		repo:           repo,
		gateway:        gateway,
		settlement:     settlement,
		gatewayTimeout: gatewayTimeout,
		logger:         logger,
	}
}

func (s *sessionVerifierImpl) Verify(ctx context.Context, identityID, sessionID string) (*EnrollmentView, *ServiceError) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, newServiceError(KindInvalidRequest, "Session ID is required", nil)
	}

	// Unknown sessions and sessions owned by someone else are
	// indistinguishable to the caller.
	enrollment, err := s.repo.FindBySessionIDForIdentity(ctx, sessionID, identityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newServiceError(KindNotFound, "Enrollment not found", nil)
	}
	if err != nil {
		s.logger.Error("Failed to load enrollment", zap.String("session_id", sessionID), zap.Error(err))
		return nil, newServiceError(KindStorageFault, "Failed to load enrollment", err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	status, err := s.gateway.RetrieveSession(gwCtx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to retrieve checkout session", zap.String("session_id", sessionID), zap.Error(err))
		return nil, newServiceError(KindGatewayUnavailable, "Payment provider unavailable, please try again", err)
	}

	if status.Settled() && enrollment.Status != models.EnrollmentStatusCompleted {
		changed, err := s.settlement.Complete(ctx, enrollment, status.PaymentID, models.SourceVerify)
		if err != nil {
			s.logger.Error("Failed to complete enrollment", zap.String("session_id", sessionID), zap.Error(err))
			return nil, newServiceError(KindStorageFault, "Failed to update enrollment", err)
		}
		if !changed {
			// Lost the race to the webhook; report what it wrote.
			if fresh, err := s.repo.FindBySessionID(ctx, sessionID); err == nil {
				enrollment = fresh
			} else {
				enrollment.Status = models.EnrollmentStatusCompleted
			}
		}
	}

	view := toView(enrollment)
	view.PaymentStatus = status.PaymentStatus
	return &view, nil
}
