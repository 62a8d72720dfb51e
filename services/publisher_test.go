package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"enrollment-service/models"
	"enrollment-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	topic   string
	message []byte
}

func (f *fakeSNS) Publish(_ context.Context, topicArn string, message []byte) error {
	f.topic = topicArn
	f.message = message
	return nil
}

func TestSNSEventPublisher(t *testing.T) {
	sns := &fakeSNS{}
	p := services.NewSNSEventPublisher(sns, "arn:aws:sns:us-east-1:000000000000:enrollment-events")

	err := p.PublishEnrollmentEvent(context.Background(), models.EnrollmentEvent{
		Type:         models.EventEnrollmentFailed,
		EnrollmentID: "e-1",
		Source:       models.SourceSweep,
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:enrollment-events", sns.topic)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(sns.message, &decoded))
	assert.Equal(t, "enrollment_failed", decoded["type"])
	assert.Equal(t, "sweep", decoded["source"])
}
