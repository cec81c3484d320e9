package mailer

import (
	"context"
	"encoding/json"
	"eventix/src/config"
	"eventix/src/lib"
	awslib "eventix/src/lib/aws"
	"eventix/src/types"
	"fmt"

	"go.uber.org/zap"
)

const EmailTopic = "emails"

type Mailer interface {
	Send(ctx context.Context, to string, subject string, html string) error
}

type publisher interface {
	Publish(ctx context.Context, topic string, payload types.JSONB) error
}

type queuedMail struct {
	From     string   `json:"from"`
	FromName string   `json:"from-name"`
	To       []string `json:"to"`
	Cc       []string `json:"cc"`
	Bcc      []string `json:"bcc"`
	ReplyTo  string   `json:"reply-to"`
	Body     string   `json:"body"`
	Html     bool     `json:"html"`
	Subject  string   `json:"subject"`
}

func NewMailerMessage(input *lib.SendMailInput) types.JSONB {
	return types.JSONB{
		"from":      input.From,
		"from-name": input.FromName,
		"to":        input.To,
		"cc":        input.Cc,
		"bcc":       input.Bcc,
		"reply-to":  input.ReplyTo,
		"body":      input.Body,
		"html":      input.Html,
		"subject":   input.Subject,
	}
}

func DecodeMailerMessage(payload string) (*lib.SendMailInput, error) {
	var m queuedMail
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("error decoding queued mail: %w", err)
	}
	return &lib.SendMailInput{
		From:     m.From,
		FromName: m.FromName,
		To:       m.To,
		Cc:       m.Cc,
		Bcc:      m.Bcc,
		ReplyTo:  m.ReplyTo,
		Subject:  m.Subject,
		Body:     m.Body,
		Html:     m.Html,
	}, nil
}

// QueueMailer defers delivery to a worker consuming the email queue.
type QueueMailer struct {
	queue    publisher
	from     string
	fromName string
}

func NewQueueMailer(queue publisher, from string, fromName string) *QueueMailer {
	return &QueueMailer{queue: queue, from: from, fromName: fromName}
}

func (q *QueueMailer) Send(ctx context.Context, to string, subject string, html string) error {
	msg := NewMailerMessage(&lib.SendMailInput{
		From:     q.from,
		FromName: q.fromName,
		To:       []string{to},
		Subject:  subject,
		Body:     html,
		Html:     true,
	})
	if err := q.queue.Publish(ctx, EmailTopic, msg); err != nil {
		return fmt.Errorf("error sending message to queue: %w", err)
	}
	return nil
}

type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(ctx context.Context, to string, subject string, html string) error {
	l.logger.Info("mail", zap.String("to", to), zap.String("subject", subject), zap.Int("bytes", len(html)))
	return nil
}

type sender interface {
	SendMail(ctx context.Context, input *lib.SendMailInput) error
}

// Worker delivers queued mail through SMTP.
func Worker(s sender) types.Handler {
	return func(ctx context.Context, payload string) error {
		input, err := DecodeMailerMessage(payload)
		if err != nil {
			return err
		}
		return s.SendMail(ctx, input)
	}
}

// New picks the mail transport named by MAIL_DRIVER.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Mailer, error) {
	switch cfg.MailDriver {
	case "smtp":
		m, err := lib.NewSMTPMailer(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "ses":
		awsCfg, err := awslib.LoadConfig(ctx, cfg.AWSRoleArn)
		if err != nil {
			return nil, err
		}
		return awslib.NewSESMailerFromConfig(awsCfg, cfg.MailFrom, cfg.MailFromName), nil
	case "queue":
		awsCfg, err := awslib.LoadConfig(ctx, cfg.AWSRoleArn)
		if err != nil {
			return nil, err
		}
		queue := awslib.NewSQSPublisher(awslib.NewSQSClient(awsCfg), cfg.EmailQueue)
		return NewQueueMailer(queue, cfg.MailFrom, cfg.MailFromName), nil
	case "log", "":
		return NewLogMailer(logger), nil
	}
	return nil, fmt.Errorf("unknown mail driver %q", cfg.MailDriver)
}
