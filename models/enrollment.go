package models

import (
	"time"

	"github.com/google/uuid"
)

type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
)

func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusCompleted, EnrollmentStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether s may move to next. Completed is
// absorbing; a failed enrollment can still complete when a late settlement
// arrives.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusPending:
		return next == EnrollmentStatusCompleted || next == EnrollmentStatusFailed
	case EnrollmentStatusFailed:
		return next == EnrollmentStatusCompleted
	}
	return false
}

// Enrollment links an identity to a purchased course through one checkout
// session. Product name, amount and currency are snapshots taken at
// checkout and never recomputed.
type Enrollment struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	IdentityID        string           `gorm:"type:varchar(128);not null;index:idx_enrollment_identity_product" json:"identity_id"`
	ProductID         string           `gorm:"type:varchar(64);not null;index:idx_enrollment_identity_product" json:"product_id"`
	ProductName       string           `gorm:"type:varchar(255);not null" json:"product_name"`
	ExternalSessionID string           `gorm:"type:varchar(255);not null;uniqueIndex" json:"external_session_id"`
	ExternalPaymentID *string          `gorm:"type:varchar(255);index" json:"external_payment_id,omitempty"`
	AmountMinorUnits  int64            `gorm:"not null" json:"amount_minor_units"`
	Currency          string           `gorm:"type:varchar(10);not null" json:"currency"`
	Status            EnrollmentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Enrollment) PaymentID() string {
	if e.ExternalPaymentID == nil {
		return ""
	}
	return *e.ExternalPaymentID
}
