package models_test

import (
	"testing"

	"enrollment-service/models"

	"github.com/stretchr/testify/assert"
)

func TestEnrollmentStatus_CanTransitionTo(t *testing.T) {
	pending := models.EnrollmentStatusPending
	completed := models.EnrollmentStatusCompleted
	failed := models.EnrollmentStatusFailed

	assert.True(t, pending.CanTransitionTo(completed))
	assert.True(t, pending.CanTransitionTo(failed))
	assert.True(t, failed.CanTransitionTo(completed))

	assert.False(t, completed.CanTransitionTo(failed))
	assert.False(t, completed.CanTransitionTo(pending))
	assert.False(t, completed.CanTransitionTo(completed))
	assert.False(t, failed.CanTransitionTo(pending))
	assert.False(t, failed.CanTransitionTo(failed))
	assert.False(t, pending.CanTransitionTo(pending))
}

func TestEnrollmentStatus_IsValid(t *testing.T) {
	assert.True(t, models.EnrollmentStatusFailed.IsValid())
	assert.False(t, models.EnrollmentStatus("refunded").IsValid())
}

func TestNewEnrollmentEvent(t *testing.T) {
	pi := "pi_123"
	e := &models.Enrollment{
		IdentityID:        "U7",
		ProductID:         "beginner",
		ProductName:       "Beginner Course",
		ExternalSessionID: "cs_1",
		ExternalPaymentID: &pi,
		AmountMinorUnits:  4900,
		Currency:          "usd",
		Status:            models.EnrollmentStatusCompleted,
	}

	ev := models.NewEnrollmentEvent(models.EventEnrollmentCompleted, e, models.SourceNotification)
	assert.Equal(t, "enrollment_completed", ev.Type)
	assert.Equal(t, "pi_123", ev.ExternalPaymentID)
	assert.Equal(t, int64(4900), ev.AmountMinorUnits)
	assert.Equal(t, "notification", ev.Source)
	assert.False(t, ev.Timestamp.IsZero())
}
