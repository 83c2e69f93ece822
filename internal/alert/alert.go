package alert

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/coop-lending/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Mailer sends operator alerts via SMTP
type Mailer struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewMailer creates a new alert mailer
func NewMailer(cfg *config.Config, logger *logrus.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Alert mails subject and body to the configured alert address.
// It does nothing when SMTP is not configured.
func (m *Mailer) Alert(subject, body string) error {
	if !m.cfg.AlertingEnabled() {
		m.logger.Debugf("Alerting disabled, dropping alert: %s", subject)
		return nil
	}

	e := email.NewEmail()
	e.From = m.cfg.SenderEmail
	e.To = []string{m.cfg.AlertEmail}
	e.Subject = fmt.Sprintf("[coop-lending] %s", subject)
	e.Text = []byte(fmt.Sprintf("%s\n\nRaised at: %s\n", body, time.Now().UTC().Format(time.RFC3339)))

	addr := fmt.Sprintf("%s:%s", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}
	if err := m.send(e, addr, auth); err != nil {
		m.logger.Errorf("Failed to send alert to %s: %v", m.cfg.AlertEmail, err)
		return fmt.Errorf("failed to send alert: %w", err)
	}

	m.logger.Infof("Alert sent to %s: %s", m.cfg.AlertEmail, e.Subject)
	return nil
}
