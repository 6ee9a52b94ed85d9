// Package mail sends transactional emails.
package mail

import (
	"context"
	"fmt"
	"log/slog"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// Log writes messages to the log instead of delivering them.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Send(ctx context.Context, m Message) error {
	lg := l.Logger
	if lg == nil {
		lg = slog.Default()
	}

	lg.InfoContext(ctx, "mail: message not delivered, no provider configured",
		"to", m.To,
		"subject", m.Subject,
		"text", m.Text,
	)
	return nil
}

// EnrollmentApproved is sent when an admin verifies a payment.
func EnrollmentApproved(to, name, course, courseURL string) Message {
	return Message{
		To:      to,
		ToName:  name,
		Subject: fmt.Sprintf("Enrollment approved: %s", course),
		Text: fmt.Sprintf("Hi %s,\n\nYour payment has been verified and you are now enrolled in %s.\n"+
			"Start learning at /courses/%s.\n", name, course, courseURL),
		HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your payment has been verified and you are now enrolled in <b>%s</b>.</p>"+
			"<p><a href=\"/courses/%s\">Start learning</a></p>", name, course, courseURL),
	}
}

// EnrollmentRejected is sent when an admin could not verify a payment.
func EnrollmentRejected(to, name, course, utr string) Message {
	return Message{
		To:      to,
		ToName:  name,
		Subject: fmt.Sprintf("Enrollment request rejected: %s", course),
		Text: fmt.Sprintf("Hi %s,\n\nWe could not verify the payment with UTR %s for %s.\n"+
			"Please contact support if you believe this is a mistake.\n", name, utr, course),
	}
}
