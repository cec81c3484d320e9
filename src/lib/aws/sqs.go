package aws

import (
	"context"
	"encoding/json"
	"eventix/src/types"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func NewSQSClient(cfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(cfg)
}

type queue struct {
	client SQSAPI
	name   string
	mu     sync.Mutex
	url    *string
}

func (q *queue) resolve(ctx context.Context) (*string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.url != nil {
		return q.url, nil
	}
	out, err := q.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(q.name)})
	if err != nil {
		zap.L().Error("failed to retrieve queue URL", zap.String("queue", q.name), zap.Error(err))
		return nil, err
	}
	q.url = out.QueueUrl
	return q.url, nil
}

// SQSPublisher sends each message to one queue, tagging it with its topic.
type SQSPublisher struct {
	queue *queue
}

func NewSQSPublisher(client SQSAPI, queueName string) *SQSPublisher {
	return &SQSPublisher{queue: &queue{client: client, name: queueName}}
}

func (p *SQSPublisher) Publish(ctx context.Context, topic string, payload types.JSONB) error {
	url, err := p.queue.resolve(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.queue.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    url,
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"topic": {DataType: aws.String("String"), StringValue: aws.String(topic)},
		},
	})
	return err
}

type SQSConsumer struct {
	Name    string
	queue   *queue
	handler types.Handler
}

func NewSQSConsumer(client SQSAPI, queueName string, handler types.Handler) *SQSConsumer {
	return &SQSConsumer{
		Name:    queueName,
		queue:   &queue{client: client, name: queueName},
		handler: handler,
	}
}

// Listen long-polls the queue until ctx is done. Messages whose handler
// fails stay on the queue and are redelivered after the visibility timeout.
func (s *SQSConsumer) Listen(ctx context.Context) {
	logger := zap.L().With(zap.String("queue", s.Name))
	url, err := s.queue.resolve(ctx)
	if err != nil {
		return
	}
	logger.Info("listening for messages")
	for ctx.Err() == nil {
		output, err := s.queue.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            url,
			WaitTimeSeconds:     20,
			MaxNumberOfMessages: 10,
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("error receiving messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, m := range output.Messages {
			if err := s.handler(ctx, aws.ToString(m.Body)); err != nil {
				logger.Warn("error handling message", zap.String("message_id", aws.ToString(m.MessageId)), zap.Error(err))
				continue
			}
			s.delete(ctx, url, m)
		}
	}
	logger.Info("stopped listening")
}

func (s *SQSConsumer) delete(ctx context.Context, url *string, m sqstypes.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_, err := s.queue.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      url,
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		zap.L().Warn("error deleting message", zap.String("queue", s.Name), zap.Error(err))
	}
}
