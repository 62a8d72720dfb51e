package services

import (
	"context"
	"strings"

	"enrollment-service/models"
	"enrollment-service/repository"

	"go.uber.org/zap"
)

type EnrollmentPage struct {
	Enrollments []EnrollmentView
	Total       int64
	Page        int
	Limit       int
}

// EnrollmentReader serves read-only enrollment listings.
type EnrollmentReader interface {
	ListCompletedForIdentity(ctx context.Context, identityID string) ([]EnrollmentView, *ServiceError)
	ListAllEnrollments(ctx context.Context, page, limit int, status string) (*EnrollmentPage, *ServiceError)
}

type enrollmentReaderImpl struct {
	repo   repository.EnrollmentRepository
	logger *zap.Logger
}

func NewEnrollmentReader(repo repository.EnrollmentRepository, logger *zap.Logger) EnrollmentReader {
	return &enrollmentReaderImpl{repo: repo, logger: logger}
}

func (s *enrollmentReaderImpl) ListCompletedForIdentity(ctx context.Context, identityID string) ([]EnrollmentView, *ServiceError) {
	enrollments, err := s.repo.ListCompletedByIdentity(ctx, identityID)
	if err != nil {
		s.logger.Error("Failed to list user enrollments", zap.String("identity_id", identityID), zap.Error(err))
		return nil, newServiceError(KindStorageFault, "Failed to fetch courses", err)
	}
	return toViews(enrollments), nil
}

func (s *enrollmentReaderImpl) ListAllEnrollments(ctx context.Context, page, limit int, status string) (*EnrollmentPage, *ServiceError) {
	filter := models.EnrollmentStatus(strings.ToLower(strings.TrimSpace(status)))
	if filter != "" && !filter.IsValid() {
		return nil, newServiceError(KindInvalidRequest, "Invalid status filter", nil)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	enrollments, total, err := s.repo.ListAll(ctx, page, limit, filter)
	if err != nil {
		s.logger.Error("Failed to list enrollments", zap.Error(err))
		return nil, newServiceError(KindStorageFault, "Failed to fetch enrollments", err)
	}
	return &EnrollmentPage{
		Enrollments: toViews(enrollments),
		Total:       total,
		Page:        page,
		Limit:       limit,
	}, nil
}
