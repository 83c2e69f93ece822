package alert

import (
	"errors"
	"io"
	"net/smtp"
	"strings"
	"testing"

	"github.com/Dan9191/coop-lending/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestAlertDisabledWithoutSMTP(t *testing.T) {
	m := NewMailer(&config.Config{}, quietLogger())
	m.send = func(*email.Email, string, smtp.Auth) error {
		t.Fatal("send must not be called")
		return nil
	}
	assert.NoError(t, m.Alert("subject", "body"))
}

func TestAlertSendsMail(t *testing.T) {
	cfg := &config.Config{
		SMTPHost:    "smtp.example.org",
		SMTPPort:    "2525",
		SenderEmail: "noreply@example.org",
		AlertEmail:  "ops@example.org",
	}
	m := NewMailer(cfg, quietLogger())

	var (
		sent *email.Email
		addr string
	)
	m.send = func(e *email.Email, a string, auth smtp.Auth) error {
		sent, addr = e, a
		assert.Nil(t, auth)
		return nil
	}

	require.NoError(t, m.Alert("Constraint violation", "loan_guarantees_loan_guarantor_key"))
	require.NotNil(t, sent)
	assert.Equal(t, "smtp.example.org:2525", addr)
	assert.Equal(t, []string{"ops@example.org"}, sent.To)
	assert.Equal(t, "[coop-lending] Constraint violation", sent.Subject)
	assert.True(t, strings.HasPrefix(string(sent.Text), "loan_guarantees_loan_guarantor_key"))
}

func TestAlertSendFailure(t *testing.T) {
	cfg := &config.Config{SMTPHost: "smtp.example.org", SMTPPort: "25", SenderEmail: "a@example.org", AlertEmail: "b@example.org"}
	m := NewMailer(cfg, quietLogger())
	m.send = func(*email.Email, string, smtp.Auth) error { return errors.New("connection refused") }

	assert.Error(t, m.Alert("subject", "body"))
}
