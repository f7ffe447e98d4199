// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/licensecore/internal/config"
)

// Notifier is the outbound notification contract. Failures are non-fatal
// to the caller: the core logs them and never rolls back state because an
// email did not go out.
type Notifier interface {
	Send(ctx context.Context, templateName string, recipients []string, data map[string]interface{}) (deliveryID string, err error)
}

// NotificationService renders and dispatches transactional email. Dispatch
// is throttled so a large sweep batch cannot flood the SMTP relay.
type NotificationService struct {
	config  *config.Config
	limiter *rate.Limiter
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Email.RatePerSecond), cfg.Email.Burst),
	}
}

func (s *NotificationService) Send(ctx context.Context, templateName string, recipients []string, data map[string]interface{}) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("notification dispatch throttled: %w", err)
	}

	tmpl := s.getEmailTemplate(templateName)

	subject, err := s.renderTemplate(tmpl.Subject, data)
	if err != nil {
		return "", fmt.Errorf("failed to render email subject: %w", err)
	}
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}

	deliveryID := uuid.NewString()
	for _, to := range recipients {
		if err := s.sendEmail(to, subject, body); err != nil {
			return "", fmt.Errorf("failed to send %q to %s: %w", templateName, to, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"template":    templateName,
		"recipients":  len(recipients),
		"delivery_id": deliveryID,
	}).Info("Notification dispatched")

	return deliveryID, nil
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email delivery skipped (SMTP not configured)")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"license_status_changed": {
			Subject: "License {{.ReferenceNumber}} is now {{.NewStatus}}",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>License Status Update</h2>
	<p>License {{.ReferenceNumber}} moved from {{.OldStatus}} to {{.NewStatus}}.</p>
	{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
</body>
</html>`,
		},
		"amendment_requested": {
			Subject: "Approval needed: amendment on license {{.ReferenceNumber}}",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Amendment Requested</h2>
	<p>An amendment has been proposed on license {{.ReferenceNumber}}.</p>
	<p>Justification: {{.Justification}}</p>
	<p>Please record your decision before {{.Deadline}}.</p>
</body>
</html>`,
		},
		"amendment_resolved": {
			Subject: "Amendment on license {{.ReferenceNumber}}: {{.Outcome}}",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Amendment {{.Outcome}}</h2>
	<p>The amendment on license {{.ReferenceNumber}} has been resolved: {{.Outcome}}.</p>
</body>
</html>`,
		},
		"extension_requested": {
			Subject: "Approval needed: {{.ExtensionDays}}-day extension on license {{.ReferenceNumber}}",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Extension Requested</h2>
	<p>A {{.ExtensionDays}}-day extension has been proposed on license {{.ReferenceNumber}}.</p>
	<p>Pro-rated fee: {{.ProRatedFee}} cents. Decide before {{.Deadline}}.</p>
</body>
</html>`,
		},
		"renewal_offer": {
			Subject: "Renewal offer for license {{.ReferenceNumber}}",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Your license expires on {{.EndDate}}</h2>
	<p>A renewal offer for license {{.ReferenceNumber}} is ready: {{.FeeCents}} cents for {{.DurationDays}} days.</p>
	<p>The offer expires on {{.OfferExpiresAt}}.</p>
</body>
</html>`,
		},
		"first_reminder": {
			Subject: "Reminder: license {{.ReferenceNumber}} expires on {{.EndDate}}",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>License {{.ReferenceNumber}} expires on {{.EndDate}}. Renew to keep your usage rights.</p>
</body>
</html>`,
		},
		"second_reminder": {
			Subject: "Action needed: license {{.ReferenceNumber}} expires in 30 days",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p><strong>License {{.ReferenceNumber}} expires on {{.EndDate}}.</strong> Usage rights lapse at expiry unless renewed.</p>
</body>
</html>`,
		},
		"final_notice": {
			Subject: "Final notice: license {{.ReferenceNumber}} expires in 7 days",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p><strong>Final notice.</strong> License {{.ReferenceNumber}} expires on {{.EndDate}}. After expiry all granted usage must stop.</p>
</body>
</html>`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
