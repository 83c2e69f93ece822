package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Port              string
	DBConn            string
	LogLevel          string
	JWTSecret         string
	RunMigrations     bool
	ReconcileSchedule string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	AlertEmail   string
}

var defaults = map[string]any{
	"PORT":               "8080",
	"DB_CONN":            "host=localhost port=5436 user=test password=test dbname=coop sslmode=disable",
	"LOG_LEVEL":          "INFO",
	"JWT_SECRET":         "secret",
	"RUN_MIGRATIONS":     true,
	"RECONCILE_SCHEDULE": "@every 1m",
	"SMTP_HOST":          "",
	"SMTP_PORT":          "587",
	"SMTP_USERNAME":      "",
	"SMTP_PASSWORD":      "",
	"SENDER_EMAIL":       "",
	"ALERT_EMAIL":        "",
}

// NewConfig loads configuration from environment variables and an optional .env file
func NewConfig() (*Config, error) {
	return Load(".env")
}

// Load reads configuration from the environment, falling back to envFile and
// then to defaults. A missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
			}
		}
	}

	cfg := &Config{
		Port:              v.GetString("PORT"),
		DBConn:            v.GetString("DB_CONN"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		RunMigrations:     v.GetBool("RUN_MIGRATIONS"),
		ReconcileSchedule: v.GetString("RECONCILE_SCHEDULE"),
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetString("SMTP_PORT"),
		SMTPUsername:      v.GetString("SMTP_USERNAME"),
		SMTPPassword:      v.GetString("SMTP_PASSWORD"),
		SenderEmail:       v.GetString("SENDER_EMAIL"),
		AlertEmail:        v.GetString("ALERT_EMAIL"),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.SMTPHost != "" && (cfg.SenderEmail == "" || cfg.AlertEmail == "") {
		return nil, fmt.Errorf("SENDER_EMAIL and ALERT_EMAIL are required when SMTP_HOST is set")
	}

	return cfg, nil
}

// AlertingEnabled reports whether constraint alerts should be mailed
func (c *Config) AlertingEnabled() bool {
	return c.SMTPHost != ""
}
