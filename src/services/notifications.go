package services

import (
	"bytes"
	"context"
	"eventix/src/lib/metrics"
	"eventix/src/models"
	"eventix/src/types"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"
)

const notifyTimeout = 30 * time.Second

var mailTemplate = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>{{.Heading}}</h2>
<p>Hi {{.Name}},</p>
<p>{{.Body}}</p>
<table>
<tr><td>Transaction</td><td>{{.Transaction.ID}}</td></tr>
<tr><td>Quantity</td><td>{{.Transaction.Quantity}}</td></tr>
<tr><td>Total</td><td>{{.Transaction.TotalPayAmount.StringFixed 2}}</td></tr>
{{- if .Transaction.ExpiresAt}}
<tr><td>Pay before</td><td>{{.Transaction.ExpiresAt.Format "2006-01-02 15:04 MST"}}</td></tr>
{{- end}}
</table>
{{- if .Tickets}}
<h3>Your tickets</h3>
<ul>
{{- range .Tickets}}
<li>{{.TicketCode}}</li>
{{- end}}
</ul>
{{- end}}
</body>
</html>`))

type mailContent struct {
	Subject string
	Heading string
	Body    string
}

var mailContents = map[types.TransactionStatus]mailContent{
	types.TRANSACTION_PENDING_PAYMENT: {
		Subject: "Complete your payment",
		Heading: "Your seats are on hold",
		Body:    "Upload your payment proof before the deadline below to keep your seats.",
	},
	types.TRANSACTION_WAITING_CONFIRMATION: {
		Subject: "Payment proof received",
		Heading: "We received your payment proof",
		Body:    "The organizer will review your payment shortly.",
	},
	types.TRANSACTION_CONFIRMED: {
		Subject: "Your tickets are confirmed",
		Heading: "See you at the event",
		Body:    "Your transaction has been confirmed.",
	},
	types.TRANSACTION_REJECTED: {
		Subject: "Your transaction was rejected",
		Heading: "Payment not accepted",
		Body:    "The organizer rejected your payment. Your seats and discounts have been released.",
	},
	types.TRANSACTION_EXPIRED: {
		Subject: "Your transaction has expired",
		Heading: "Payment window closed",
		Body:    "No payment proof was received in time.",
	},
	types.TRANSACTION_CANCELED: {
		Subject: "Your transaction was canceled",
		Heading: "Transaction canceled",
		Body:    "The organizer did not review your payment in time. Your seats and discounts have been released.",
	},
}

func renderNotification(recipient *models.User, txn *models.Transaction, tickets []models.Ticket) (string, string, error) {
	content, ok := mailContents[txn.Status]
	if !ok {
		return "", "", fmt.Errorf("no notification for status %s", txn.Status)
	}
	var buf bytes.Buffer
	err := mailTemplate.Execute(&buf, map[string]any{
		"Heading":     content.Heading,
		"Body":        content.Body,
		"Name":        recipient.Name,
		"Transaction": txn,
		"Tickets":     tickets,
	})
	if err != nil {
		return "", "", err
	}
	return content.Subject, buf.String(), nil
}

func lifecyclePayload(txn *models.Transaction) types.JSONB {
	return types.JSONB{
		"id":               txn.ID.String(),
		"user_id":          txn.UserID.String(),
		"event_id":         txn.EventID.String(),
		"status":           string(txn.Status),
		"quantity":         txn.Quantity,
		"total_pay_amount": txn.TotalPayAmount.String(),
	}
}

// afterCommit reports a committed transition. Delivery failures are logged
// and never surface to the caller.
func (s *TransactionService) afterCommit(recipient *models.User, txn models.Transaction, tickets []models.Ticket) {
	metrics.ObserveTransition(string(txn.Status))
	s.logger.Info("transaction transitioned",
		zap.String("id", txn.ID.String()),
		zap.String("status", string(txn.Status)))

	if s.publisher == nil && (s.mailer == nil || recipient == nil) {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if s.publisher != nil {
			topic := fmt.Sprintf("transactions.%s", txn.Status)
			if err := s.publisher.Publish(ctx, topic, lifecyclePayload(&txn)); err != nil {
				s.logger.Warn("error publishing lifecycle event",
					zap.String("id", txn.ID.String()), zap.String("topic", topic), zap.Error(err))
			}
		}
		if s.mailer == nil || recipient == nil || recipient.Email == "" {
			return
		}
		subject, html, err := renderNotification(recipient, &txn, tickets)
		if err != nil {
			s.logger.Warn("error rendering notification", zap.String("id", txn.ID.String()), zap.Error(err))
			return
		}
		if err := s.mailer.Send(ctx, recipient.Email, subject, html); err != nil {
			s.logger.Warn("error sending notification",
				zap.String("id", txn.ID.String()), zap.String("to", recipient.Email), zap.Error(err))
		}
	}()
}
