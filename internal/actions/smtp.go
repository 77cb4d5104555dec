// internal/actions/smtp.go
package actions

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/validation"
)

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	UseTLS      bool
	DefaultFrom string
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

type SMTPEmailSender struct {
	config SMTPConfig
	logger logger.Logger
	send   sendFunc
	now    func() time.Time
}

func NewSMTPEmailSender(cfg SMTPConfig, log logger.Logger) *SMTPEmailSender {
	s := &SMTPEmailSender{config: cfg, logger: log, now: time.Now}
	s.send = smtp.SendMail
	if cfg.UseTLS {
		s.send = s.sendWithTLS
	}
	return s
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled before sending email: %w", err)
	}
	if msg.From == "" {
		msg.From = s.config.DefaultFrom
	}
	if !validation.ValidateEmail(strings.TrimSpace(msg.To)) {
		stdErr := errors.NewNotificationSendFailedError("email", fmt.Errorf("invalid 'to' email address: %s", msg.To))
		stdErr.Retryable = false
		return "", stdErr
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	messageID := s.generateMessageID(msg.To)
	if err := s.send(addr, auth, msg.From, []string{msg.To}, []byte(buildMessage(msg, messageID))); err != nil {
		return "", errors.NewNotificationSendFailedError("email", err)
	}

	s.logger.Info("Email sent via SMTP", map[string]interface{}{
		"leadId":    msg.LeadID,
		"template":  msg.TemplateID,
		"messageId": messageID,
	})
	return messageID, nil
}

func buildMessage(msg EmailMessage, messageID string) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	builder.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	builder.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTMLBody != "" {
		builder.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		builder.WriteString("\r\n")
		builder.WriteString(msg.HTMLBody)
	} else {
		builder.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		builder.WriteString("\r\n")
		builder.WriteString(msg.Body)
	}

	return builder.String()
}

func (s *SMTPEmailSender) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range to {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

func (s *SMTPEmailSender) generateMessageID(to string) string {
	return fmt.Sprintf("<%d.%s@%s>", s.now().UnixNano(), sanitizeLocalPart(to), s.config.Host)
}

func sanitizeLocalPart(email string) string {
	local := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, strings.SplitN(email, "@", 2)[0])

	if len(local) > 10 {
		local = local[:10]
	}
	if local == "" {
		return "lead"
	}
	return local
}

