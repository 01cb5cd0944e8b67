// Package queue wraps the SQS work queue used to hand evaluations and
// report jobs to the asynchronous workers.
package queue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
)

// Publisher enqueues a JSON payload for asynchronous processing.
type Publisher interface {
	Publish(ctx context.Context, payload interface{}) error
}

// SQSSendAPI is the subset of the SQS client used by the publisher.
type SQSSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher publishes payloads to a single SQS queue.
type SQSPublisher struct {
	client   SQSSendAPI
	queueURL string
}

func NewSQSPublisher(client SQSSendAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Publish(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshalling queue payload")
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return errors.Wrap(err, "sending queue message")
}
