package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"
)

type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESMailer struct {
	client SESAPI
	source string
}

func NewSESMailer(client SESAPI, from string, fromName string) *SESMailer {
	source := from
	if fromName != "" {
		source = fmt.Sprintf("%s <%s>", fromName, from)
	}
	return &SESMailer{client: client, source: source}
}

func NewSESMailerFromConfig(cfg aws.Config, from string, fromName string) *SESMailer {
	return NewSESMailer(ses.NewFromConfig(cfg), from, fromName)
}

func (m *SESMailer) Send(ctx context.Context, to string, subject string, html string) error {
	out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.source),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return err
	}
	zap.L().Debug("sent email", zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
