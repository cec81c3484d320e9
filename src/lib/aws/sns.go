package aws

import (
	"context"
	"encoding/json"
	"eventix/src/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher fans lifecycle events out through a single topic. Subscribers
// filter on the "event" message attribute.
type SNSPublisher struct {
	client   SNSAPI
	topicArn string
}

func NewSNSPublisher(client SNSAPI, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func NewSNSPublisherFromConfig(cfg aws.Config, topicArn string) *SNSPublisher {
	return NewSNSPublisher(sns.NewFromConfig(cfg), topicArn)
}

func (p *SNSPublisher) Publish(ctx context.Context, topic string, payload types.JSONB) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicArn),
		Subject:  aws.String(topic),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(topic)},
		},
	})
	return err
}
