package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SQSReceiveAPI is the subset of the SQS client used by the polling server.
type SQSReceiveAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Handler processes one queue message. Returning an error leaves the message
// on the queue so the queue's own redelivery policy governs the retry; the
// server never retries a message itself.
type Handler func(ctx context.Context, msg *types.Message) error

// Server polls an SQS queue and dispatches messages to a pool of workers.
type Server struct {
	log         *zap.SugaredLogger
	client      SQSReceiveAPI
	queueURL    string
	workerCount int
	handler     Handler

	cancel context.CancelFunc
}

// ServerConfig configures a polling Server.
type ServerConfig struct {
	Log      *zap.SugaredLogger
	Client   SQSReceiveAPI
	QueueURL string
	// WorkerCount defaults to 10 when zero.
	WorkerCount int
	Handler     Handler
}

func NewServer(cfg *ServerConfig) *Server {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 10
	}
	return &Server{
		log:         cfg.Log,
		client:      cfg.Client,
		queueURL:    cfg.QueueURL,
		workerCount: workers,
		handler:     cfg.Handler,
	}
}

// Start begins polling the queue in a separate goroutine.
func (s *Server) Start(ctx context.Context) {
	jobs := make(chan *types.Message)
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for w := 1; w <= s.workerCount; w++ {
		go s.worker(ctx, w, jobs)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			default:
				out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
					QueueUrl:            aws.String(s.queueURL),
					MaxNumberOfMessages: 10,
					WaitTimeSeconds:     20,
				})
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						s.log.With(zap.Error(err)).Error("error receiving SQS message, retrying in 10s")
						time.Sleep(10 * time.Second)
					}
					continue
				}
				for i := range out.Messages {
					jobs <- &out.Messages[i]
				}
			}
		}
	}()
}

// Shutdown stops the polling loop and the workers.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) QueueURL() string {
	return s.queueURL
}

func (s *Server) worker(ctx context.Context, id int, messages <-chan *types.Message) {
	for m := range messages {
		err := s.handler(ctx, m)
		if err != nil {
			// leave the message on the queue for redelivery
			s.log.With(zap.Error(err)).Error("error handling message")
			continue
		}
		_, err = s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(s.queueURL),
			ReceiptHandle: m.ReceiptHandle,
		})
		if err != nil {
			s.log.With(zap.Error(err)).Error("error deleting message")
		}
	}
}
