package services

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/HammerMeetNail/fitchat/internal/config"
	"github.com/HammerMeetNail/fitchat/internal/logging"
)

const emailSendTimeout = 10 * time.Second

type EmailServiceInterface interface {
	SendNotificationEmail(ctx context.Context, toEmail, subject, html, text string) error
}

// resendSender is the slice of the resend client the email service calls.
type resendSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailService struct {
	provider    string
	fromAddress string
	fromName    string
	sender      resendSender
}

var newResendClient = func(apiKey string) resendSender {
	return resend.NewClient(apiKey).Emails
}

func NewEmailService(cfg config.EmailConfig) *EmailService {
	svc := &EmailService{
		provider:    cfg.Provider,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
	}
	if cfg.Provider == "resend" {
		svc.sender = newResendClient(cfg.ResendAPIKey)
	}
	return svc
}

func (s *EmailService) SendNotificationEmail(ctx context.Context, toEmail, subject, htmlBody, text string) error {
	if s.sender == nil {
		logging.Info("Email (console provider)", map[string]interface{}{
			"to":      toEmail,
			"subject": subject,
			"text":    text,
		})
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, emailSendTimeout)
	defer cancel()

	_, err := s.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		To:      []string{toEmail},
		Subject: subject,
		Html:    htmlBody,
		Text:    text,
	})
	if err != nil {
		return downstreamError("resend", err)
	}
	return nil
}

func templateEscape(s string) string {
	return html.EscapeString(s)
}
