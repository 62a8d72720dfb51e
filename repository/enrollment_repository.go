package repository

import (
	"context"
	"errors"
	"time"

	"enrollment-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("enrollment not found")

type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.Enrollment, error)
	FindBySessionIDForIdentity(ctx context.Context, sessionID, identityID string) (*models.Enrollment, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Enrollment, error)
	HasCompleted(ctx context.Context, identityID, productID string) (bool, error)
	// MarkCompleted moves a non-completed enrollment to completed. The
	// returned bool is false when the row was already completed.
	MarkCompleted(ctx context.Context, id uuid.UUID, paymentID string) (bool, error)
	// MarkFailed moves a pending enrollment to failed.
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	ListCompletedByIdentity(ctx context.Context, identityID string) ([]models.Enrollment, error)
	ListAll(ctx context.Context, page, limit int, status models.EnrollmentStatus) ([]models.Enrollment, int64, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Enrollment, error)
}

type gormEnrollmentRepo struct {
	db *gorm.DB
}

func NewGormEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &gormEnrollmentRepo{db: db}
}

func (r *gormEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	return r.db.WithContext(ctx).Create(enrollment).Error
}

func (r *gormEnrollmentRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Enrollment, error) {
	return r.first(ctx, "external_session_id = ?", sessionID)
}

func (r *gormEnrollmentRepo) FindBySessionIDForIdentity(ctx context.Context, sessionID, identityID string) (*models.Enrollment, error) {
	return r.first(ctx, "external_session_id = ? AND identity_id = ?", sessionID, identityID)
}

func (r *gormEnrollmentRepo) FindByPaymentID(ctx context.Context, paymentID string) (*models.Enrollment, error) {
	return r.first(ctx, "external_payment_id = ?", paymentID)
}

func (r *gormEnrollmentRepo) first(ctx context.Context, query string, args ...interface{}) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).Where(query, args...).First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &enrollment, nil
}

func (r *gormEnrollmentRepo) HasCompleted(ctx context.Context, identityID, productID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("identity_id = ? AND product_id = ? AND status = ?", identityID, productID, models.EnrollmentStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

func (r *gormEnrollmentRepo) MarkCompleted(ctx context.Context, id uuid.UUID, paymentID string) (bool, error) {
	updates := map[string]interface{}{
		"status":     models.EnrollmentStatusCompleted,
		"updated_at": time.Now().UTC(),
	}
	if paymentID != "" {
		updates["external_payment_id"] = paymentID
	}
	res := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ? AND status <> ?", id, models.EnrollmentStatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormEnrollmentRepo) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ? AND status = ?", id, models.EnrollmentStatusPending).
		Updates(map[string]interface{}{
			"status":     models.EnrollmentStatusFailed,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormEnrollmentRepo) ListCompletedByIdentity(ctx context.Context, identityID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.WithContext(ctx).
		Where("identity_id = ? AND status = ?", identityID, models.EnrollmentStatusCompleted).
		Order("created_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *gormEnrollmentRepo) ListAll(ctx context.Context, page, limit int, status models.EnrollmentStatus) ([]models.Enrollment, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Enrollment{})
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var enrollments []models.Enrollment
	err := scoped().
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&enrollments).Error
	if err != nil {
		return nil, 0, err
	}
	return enrollments, total, nil
}

func (r *gormEnrollmentRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.EnrollmentStatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&enrollments).Error
	return enrollments, err
}
