package lib

import (
	"context"
	"eventix/src/config"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type SendMailInput struct {
	From     string
	FromName string
	To       []string
	Cc       []string
	Bcc      []string
	ReplyTo  string
	Subject  string
	Body     string
	Html     bool
}

func GetSMTPClient(cfg *config.Config) (*mail.Client, error) {
	c, err := mail.NewClient(
		cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUsername),
		mail.WithPassword(cfg.SMTPPassword),
	)
	if err != nil {
		zap.L().Error("could not initialize smtp client", zap.Error(err))
		return nil, err
	}
	return c, nil
}

func NewMailMessage(input *SendMailInput) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(input.FromName, input.From); err != nil {
		return nil, fmt.Errorf("failed to set From address: %w", err)
	}
	if err := msg.To(input.To...); err != nil {
		return nil, fmt.Errorf("failed to set To address: %w", err)
	}
	if input.ReplyTo != "" {
		if err := msg.ReplyTo(input.ReplyTo); err != nil {
			return nil, fmt.Errorf("failed to set Reply-To address: %w", err)
		}
	}
	if len(input.Cc) > 0 {
		if err := msg.Cc(input.Cc...); err != nil {
			return nil, fmt.Errorf("failed to set Cc address: %w", err)
		}
	}
	if len(input.Bcc) > 0 {
		if err := msg.Bcc(input.Bcc...); err != nil {
			return nil, fmt.Errorf("failed to set Bcc address: %w", err)
		}
	}
	msg.Subject(input.Subject)
	if input.Html {
		msg.SetBodyString(mail.TypeTextHTML, input.Body)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, input.Body)
	}
	return msg, nil
}

type SMTPMailer struct {
	client   *mail.Client
	from     string
	fromName string
}

func NewSMTPMailer(cfg *config.Config) (*SMTPMailer, error) {
	c, err := GetSMTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &SMTPMailer{client: c, from: cfg.MailFrom, fromName: cfg.MailFromName}, nil
}

func (m *SMTPMailer) SendMail(ctx context.Context, input *SendMailInput) error {
	msg, err := NewMailMessage(input)
	if err != nil {
		return err
	}
	return m.client.DialAndSendWithContext(ctx, msg)
}

func (m *SMTPMailer) Send(ctx context.Context, to string, subject string, html string) error {
	return m.SendMail(ctx, &SendMailInput{
		From:     m.from,
		FromName: m.fromName,
		To:       []string{to},
		Subject:  subject,
		Body:     html,
		Html:     true,
	})
}
