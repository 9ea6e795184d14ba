// Package email provides the email client for sending notification emails.
package email

import (
	"fmt"
	"os"

	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/email/templates"
	"github.com/AtRiskMedia/formrelay-go/pkg/config"
	"github.com/resendlabs/resend-go"
)

// Service defines the interface for sending emails, allowing for mock implementations in tests.
type Service interface {
	SendApprovalPendingEmail(toEmail, kind, requestID string) error
}

// ResendClient is the concrete implementation of the email Service using the Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
}

// NewService creates a new email service client, returning the Service interface.
func NewService() (Service, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}

	fromEmail := os.Getenv("NOTIFY_EMAIL_FROM")
	if fromEmail == "" {
		fromEmail = "noreply@formrelay.local"
	}

	fromName := os.Getenv("NOTIFY_EMAIL_FROM_NAME")
	if fromName == "" {
		fromName = "Form Relay"
	}

	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendApprovalPendingEmail composes and sends the pending-approval notice.
func (c *ResendClient) SendApprovalPendingEmail(toEmail, kind, requestID string) error {
	subject := fmt.Sprintf("Approval required: %s checkpoint pending", kind)

	htmlContent := templates.GetApprovalNoticeContent(templates.ApprovalNoticeProps{
		Kind:      kind,
		RequestID: requestID,
		Timeout:   fmt.Sprintf("%d seconds", config.ApprovalTimeoutSeconds),
	})

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{toEmail},
		Subject: subject,
		Html:    htmlContent,
	}

	_, err := c.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send approval notice via Resend: %w", err)
	}

	return nil
}
