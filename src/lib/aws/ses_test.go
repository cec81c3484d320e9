package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailer(t *testing.T) {
	client := &fakeSES{}
	m := NewSESMailer(client, "no-reply@eventix.local", "Eventix")

	require.NoError(t, m.Send(context.Background(), "dina@example.com", "Complete your payment", "<p>hi</p>"))
	require.NotNil(t, client.input)
	assert.Equal(t, "Eventix <no-reply@eventix.local>", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"dina@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Complete your payment", aws.ToString(client.input.Message.Subject.Data))
	assert.Equal(t, "<p>hi</p>", aws.ToString(client.input.Message.Body.Html.Data))
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	return &sns.PublishOutput{}, nil
}

func TestSNSPublisher(t *testing.T) {
	client := &fakeSNS{}
	p := NewSNSPublisher(client, "arn:aws:sns:ap-southeast-1:000000000000:transactions")

	require.NoError(t, p.Publish(context.Background(), "transactions.rejected", map[string]any{"id": "abc"}))
	assert.Equal(t, "transactions.rejected", aws.ToString(client.input.MessageAttributes["event"].StringValue))
	assert.Equal(t, "abc", gjson.Get(aws.ToString(client.input.Message), "id").String())
}
