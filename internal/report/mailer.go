// Package report e-mails a plain-text summary of a finished run through
// Amazon SES v2.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/pkg/logger"
)

// SESAPI is the subset of the SES v2 client used by Mailer.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mailer sends run summaries.
type Mailer struct {
	client SESAPI
	from   string
	to     []string
}

// NewMailer creates a Mailer. to is a comma separated list of recipients.
func NewMailer(client SESAPI, from, to string) *Mailer {
	var recipients []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return &Mailer{client: client, from: from, to: recipients}
}

// Subject returns the e-mail subject for s.
func Subject(s domain.RunSummary) string {
	state := "completed"
	switch {
	case s.Reason != "":
		state = "aborted"
	case s.Interrupted:
		state = "interrupted"
	}
	return fmt.Sprintf("Lead dispatch %s: %d sent, %d failed", state, s.Sent, s.Failed)
}

// Body renders the plain-text summary.
func Body(s domain.RunSummary, tableID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:        %s\n", s.RunID)
	fmt.Fprintf(&b, "Table:      %s\n", tableID)
	fmt.Fprintf(&b, "Started:    %s\n", s.StartedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Duration:   %s\n", s.Duration.Round(time.Second))
	fmt.Fprintf(&b, "\nRows seen:  %d\n", s.Seen)
	fmt.Fprintf(&b, "Eligible:   %d\n", s.Eligible)
	fmt.Fprintf(&b, "Sent:       %d\n", s.Sent)
	fmt.Fprintf(&b, "Failed:     %d\n", s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped:    %d\n", s.Skipped)
	}
	if s.Interrupted {
		b.WriteString("\nThe run was interrupted; skipped rows are still marked new and will be picked up next time.\n")
	}
	if s.Reason != "" {
		fmt.Fprintf(&b, "\nNothing was sent: %s\n", s.Reason)
	}
	return b.String()
}

// Send e-mails the summary of s.
func (m *Mailer) Send(ctx context.Context, s domain.RunSummary, tableID string) error {
	if len(m.to) == 0 {
		return fmt.Errorf("no report recipients configured")
	}

	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination:      &types.Destination{ToAddresses: m.to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(Subject(s)), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(Body(s, tableID)), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("run_id"), Value: aws.String(s.RunID)},
		},
	})
	if err != nil {
		return fmt.Errorf("sending report e-mail: %w", err)
	}

	logger.Info("report e-mail sent", "run_id", s.RunID, "message_id", aws.ToString(out.MessageId), "recipients", len(m.to))
	return nil
}
