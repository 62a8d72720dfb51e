package services

import (
	"time"

	"enrollment-service/models"
)

// EnrollmentView is the client-facing projection of an enrollment.
type EnrollmentView struct {
	ID                string                  `json:"id"`
	IdentityID        string                  `json:"identity_id"`
	ProductID         string                  `json:"product_id"`
	ProductName       string                  `json:"product_name"`
	AmountMinorUnits  int64                   `json:"amount_minor_units"`
	Currency          string                  `json:"currency"`
	Status            models.EnrollmentStatus `json:"status"`
	ExternalSessionID string                  `json:"session_id"`
	ExternalPaymentID string                  `json:"payment_id,omitempty"`
	PaymentStatus     string                  `json:"payment_status,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}

func toView(e *models.Enrollment) EnrollmentView {
	return EnrollmentView{
		ID:                e.ID.String(),
		IdentityID:        e.IdentityID,
		ProductID:         e.ProductID,
		ProductName:       e.ProductName,
		AmountMinorUnits:  e.AmountMinorUnits,
		Currency:          e.Currency,
		Status:            e.Status,
		ExternalSessionID: e.ExternalSessionID,
		ExternalPaymentID: e.PaymentID(),
		CreatedAt:         e.CreatedAt,
	}
}

func toViews(enrollments []models.Enrollment) []EnrollmentView {
	views := make([]EnrollmentView, 0, len(enrollments))
	for i := range enrollments {
		views = append(views, toView(&enrollments[i]))
	}
	return views
}
