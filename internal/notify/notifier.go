package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"dca-trade-bot-go/internal/config"
	"go.uber.org/zap"
)

// Sender delivers a plain-text message to a recipient.
type Sender interface {
	Send(recipient, subject, body string) error
}

// SMTPNotifier sends email over SMTP with STARTTLS and plain auth.
type SMTPNotifier struct {
	host     string
	port     int
	sender   string
	password string
	logger   *zap.Logger
}

var _ Sender = (*SMTPNotifier)(nil)

// NewSMTPNotifier creates a notifier from the notifier config section.
func NewSMTPNotifier(cfg *config.Notifier, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		sender:   cfg.Sender,
		password: cfg.Password,
		logger:   logger,
	}
}

// Send delivers one email.
func (n *SMTPNotifier) Send(recipient, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.sender, n.password, n.host)

	msg := strings.Join([]string{
		"From: " + n.sender,
		"To: " + recipient,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, n.sender, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", recipient, err)
	}

	n.logger.Info("Email sent", zap.String("recipient", recipient), zap.String("subject", subject))
	return nil
}
