// Package email sends publication notifications and digests through AWS SES.
package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

const charset = "UTF-8"

// Config holds the SES sender settings.
type Config struct {
	Region     string
	From       string
	Recipients []string
}

// Sender publishes content notifications over SES.
type Sender struct {
	ses        sesiface.SESAPI
	from       string
	recipients []string
	log        logger.Logger
}

// NewSender creates an SES-backed sender.
func NewSender(cfg Config, log logger.Logger) (*Sender, error) {
	if cfg.From == "" {
		return nil, errors.New("email sender address is required")
	}
	if len(cfg.Recipients) == 0 {
		return nil, errors.New("email recipients are required")
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return &Sender{
		ses:        ses.New(sess),
		from:       cfg.From,
		recipients: cfg.Recipients,
		log:        log,
	}, nil
}

// NewSenderWithClient creates a sender over an existing SES client.
func NewSenderWithClient(client sesiface.SESAPI, from string, recipients []string, log logger.Logger) *Sender {
	return &Sender{
		ses:        client,
		from:       from,
		recipients: recipients,
		log:        log,
	}
}

// Name implements channels.Channel.
func (s *Sender) Name() string { return "email" }

// Publish sends a notification email for one outbox entry.
func (s *Sender) Publish(ctx context.Context, entry *domain.OutboxEntry) error {
	subject := fmt.Sprintf("[%s] New %s: %s", entry.SiteID, entry.ContentType, entry.Title)
	body := renderEntry(entry)

	return s.send(ctx, subject, body)
}

// SendDigest sends one email summarising several entries.
func (s *Sender) SendDigest(ctx context.Context, siteID string, entries []domain.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}

	subject := fmt.Sprintf("[%s] Content digest: %d new items", siteID, len(entries))

	var b strings.Builder
	b.WriteString("<h2>New content</h2><ul>")
	for i := range entries {
		b.WriteString("<li>")
		b.WriteString(renderEntry(&entries[i]))
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")

	return s.send(ctx, subject, b.String())
}

func (s *Sender) send(ctx context.Context, subject, htmlBody string) error {
	to := make([]*string, len(s.recipients))
	for i, r := range s.recipients {
		to[i] = aws.String(r)
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &ses.Destination{ToAddresses: to},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String(charset), Data: aws.String(subject)},
			Body: &ses.Body{
				Html: &ses.Content{Charset: aws.String(charset), Data: aws.String(htmlBody)},
			},
		},
	}

	out, err := s.ses.SendEmailWithContext(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	s.log.Info("email sent",
		logger.String("subject", subject),
		logger.String("message_id", aws.StringValue(out.MessageId)),
		logger.Int("recipients", len(s.recipients)))

	return nil
}

func renderEntry(entry *domain.OutboxEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, `<a href="%s">%s</a>`,
		html.EscapeString(entry.URL), html.EscapeString(entry.Title))

	if entry.Summary != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(entry.Summary))
	}

	return b.String()
}
