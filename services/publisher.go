package services

import (
	"context"
	"encoding/json"

	"enrollment-service/models"
	aws_pkg "enrollment-service/pkg/aws"
)

// EventPublisher delivers enrollment lifecycle events to downstream
// consumers.
type EventPublisher interface {
	PublishEnrollmentEvent(ctx context.Context, event models.EnrollmentEvent) error
}

// MetricsRecorder is satisfied by *aws_pkg.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

type SNSEventPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) PublishEnrollmentEvent(ctx context.Context, event models.EnrollmentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topicArn, data)
}
