package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

type ResendEmailSender struct {
	From string

	send func(*resend.SendEmailRequest) error
}

// NewResendEmailSender returns nil when either the API key or the sender
// address is missing, leaving the service without email delivery.
func NewResendEmailSender(apiKey string, from string) *ResendEmailSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return nil
	}
	client := resend.NewClient(apiKey)
	return &ResendEmailSender{
		From: from,
		send: func(request *resend.SendEmailRequest) error {
			_, err := client.Emails.Send(request)
			return err
		},
	}
}

func (s *ResendEmailSender) SendMagicLink(ctx context.Context, email string, url string, expiresAt time.Time) error {
	if s == nil || s.send == nil {
		return ErrEmailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	request := buildMagicLinkEmail(s.From, email, url, expiresAt)
	if err := s.send(request); err != nil {
		return fmt.Errorf("resend magic link email: %w", err)
	}
	return nil
}

func buildMagicLinkEmail(from string, to string, url string, expiresAt time.Time) *resend.SendEmailRequest {
	expiry := expiresAt.UTC().Format("15:04 MST, Jan 2")
	escaped := html.EscapeString(url)
	return &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: "Your sign-in link",
		Html: fmt.Sprintf(
			"<p>Click to sign in:</p><p><a href=\"%s\">Sign in</a></p><p>The link works once and expires at %s.</p>",
			escaped, expiry,
		),
		Text: fmt.Sprintf("Sign in: %s\nThe link works once and expires at %s.", url, expiry),
	}
}
