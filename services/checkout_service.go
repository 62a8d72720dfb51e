package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"enrollment-service/catalog"
	"enrollment-service/models"
	aws_pkg "enrollment-service/pkg/aws"
	"enrollment-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CheckoutResult struct {
	ExternalSessionID string `json:"session_id"`
	RedirectURL       string `json:"url"`
}

// CheckoutService starts a hosted checkout for a catalog product.
type CheckoutService interface {
	InitiateCheckout(ctx context.Context, identityID, productID string) (*CheckoutResult, *ServiceError)
}

type checkoutServiceImpl struct {
	catalog        *catalog.Catalog
	repo           repository.EnrollmentRepository
	gateway        PaymentGateway
	gatewayTimeout time.Duration
	metrics        MetricsRecorder
	logger         *zap.Logger
}

func NewCheckoutService(
	cat *catalog.Catalog,
	repo repository.EnrollmentRepository,
	gateway PaymentGateway,
	gatewayTimeout time.Duration,
	metrics MetricsRecorder,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		catalog:        cat,
		repo:           repo,
		gateway:        gateway,
		gatewayTimeout: gatewayTimeout,
		metrics:        metrics,
		logger:         logger,
	}
}

func (s *checkoutServiceImpl) InitiateCheckout(ctx context.Context, identityID, productID string) (*CheckoutResult, *ServiceError) {
	if strings.TrimSpace(identityID) == "" {
		return nil, newServiceError(KindInvalidRequest, "Missing identity", nil)
	}

	product, err := s.catalog.Lookup(strings.TrimSpace(productID))
	if err != nil {
		return nil, newServiceError(KindInvalidProduct, "Invalid course selected", err)
	}

	enrolled, err := s.repo.HasCompleted(ctx, identityID, product.ID)
	if err != nil {
		s.logger.Error("Failed to check existing enrollment",
			zap.String("identity_id", identityID),
			zap.String("product_id", product.ID),
			zap.Error(err),
		)
		return nil, newServiceError(KindStorageFault, "Failed to check enrollment", err)
	}
	if enrolled {
		return nil, newServiceError(KindAlreadyEnrolled, "You are already enrolled in this course", nil)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	session, err := s.gateway.CreateCheckoutSession(gwCtx, CheckoutRequest{
		IdentityID:       identityID,
		ProductID:        product.ID,
		ProductName:      product.DisplayName,
		AmountMinorUnits: product.PriceMinorUnits,
		Currency:         product.Currency,
	})
	if err != nil {
		s.logger.Warn("Checkout session creation failed",
			zap.String("identity_id", identityID),
			zap.String("product_id", product.ID),
			zap.Bool("timeout", errors.Is(gwCtx.Err(), context.DeadlineExceeded)),
			zap.Error(err),
		)
		return nil, newServiceError(KindGatewayUnavailable, "Payment provider unavailable, please try again", err)
	}

	enrollment := &models.Enrollment{
		ID:                uuid.New(),
		IdentityID:        identityID,
		ProductID:         product.ID,
		ProductName:       product.DisplayName,
		ExternalSessionID: session.ID,
		AmountMinorUnits:  product.PriceMinorUnits,
		Currency:          product.Currency,
		Status:            models.EnrollmentStatusPending,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		// The session exists at the gateway without a local row. Verify and
		// the sweeper cannot see it, so keep enough to recover by hand.
		s.logger.Error("Failed to persist enrollment for created session",
			zap.String("session_id", session.ID),
			zap.String("identity_id", identityID),
			zap.String("product_id", product.ID),
			zap.Error(err),
		)
		return nil, newServiceError(KindStorageFault, "Failed to record enrollment", err)
	}

	s.logger.Info("Checkout session created",
		zap.String("enrollment_id", enrollment.ID.String()),
		zap.String("session_id", session.ID),
		zap.String("identity_id", identityID),
		zap.String("product_id", product.ID),
		zap.Int64("amount", product.PriceMinorUnits),
	)
	if s.metrics != nil {
		_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCheckoutStarted, map[string]string{"Product": product.ID})
	}

	return &CheckoutResult{ExternalSessionID: session.ID, RedirectURL: session.RedirectURL}, nil
}
