package models

import "time"

const (
	EventEnrollmentCompleted = "enrollment_completed"
	EventEnrollmentFailed    = "enrollment_failed"
)

// Sources of a state transition.
const (
	SourceNotification = "notification"
	SourceVerify       = "verify"
	SourceSweep        = "sweep"
)

// EnrollmentEvent is published after an enrollment changes state.
type EnrollmentEvent struct {
	Type              string    `json:"type"`
	EnrollmentID      string    `json:"enrollment_id"`
	IdentityID        string    `json:"identity_id"`
	ProductID         string    `json:"product_id"`
	ProductName       string    `json:"product_name"`
	AmountMinorUnits  int64     `json:"amount_minor_units"`
	Currency          string    `json:"currency"`
	ExternalSessionID string    `json:"external_session_id"`
	ExternalPaymentID string    `json:"external_payment_id,omitempty"`
	Source            string    `json:"source"`
	Timestamp         time.Time `json:"timestamp"`
}

func NewEnrollmentEvent(eventType string, e *Enrollment, source string) EnrollmentEvent {
	return EnrollmentEvent{
		Type:              eventType,
		EnrollmentID:      e.ID.String(),
		IdentityID:        e.IdentityID,
		ProductID:         e.ProductID,
		ProductName:       e.ProductName,
		AmountMinorUnits:  e.AmountMinorUnits,
		Currency:          e.Currency,
		ExternalSessionID: e.ExternalSessionID,
		ExternalPaymentID: e.PaymentID(),
		Source:            source,
		Timestamp:         time.Now().UTC(),
	}
}
