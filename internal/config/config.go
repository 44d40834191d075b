package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vdavid/mailmate/internal/logger"
)

const (
	TransportHTTP = "http"
	TransportSMTP = "smtp"

	FormatMultipart = "multipart"
	FormatJSON      = "json"
	FormatAuto      = "auto"

	DefaultEndpointURL = "https://mailmate-server.vercel.app/api/send-email"
)

type Config struct {
	Environment        string
	EndpointURL        string
	Transport          string
	PayloadFormat      string
	APIKey             string
	HTTPTimeout        time.Duration
	AttachmentsEnabled bool
	SubjectEnabled     bool
	ClearOnSuccess     bool
	MaxAttachmentBytes int64
	DefaultSubject     string
	NotifyAddr         string
	LogFile            string
	SMTPAddr           string
	SMTPUsername       string
	SMTPPassword       string
	SMTPFrom           string
	SMTPTimeout        time.Duration
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILMATE_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("Config: .env file not found, using environment variables")
		}
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("MAILMATE_HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("MAILMATE_HTTP_TIMEOUT is invalid: %w", err)
	}

	smtpTimeout, err := time.ParseDuration(getEnvOrDefault("MAILMATE_SMTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("MAILMATE_SMTP_TIMEOUT is invalid: %w", err)
	}

	maxBytes, err := strconv.ParseInt(getEnvOrDefault("MAILMATE_MAX_ATTACHMENT_BYTES", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("MAILMATE_MAX_ATTACHMENT_BYTES is invalid: %w", err)
	}

	config := &Config{
		Environment:        env,
		EndpointURL:        getEnvOrDefault("MAILMATE_ENDPOINT_URL", DefaultEndpointURL),
		Transport:          strings.ToLower(getEnvOrDefault("MAILMATE_TRANSPORT", TransportHTTP)),
		PayloadFormat:      strings.ToLower(getEnvOrDefault("MAILMATE_PAYLOAD_FORMAT", FormatMultipart)),
		APIKey:             os.Getenv("MAILMATE_API_KEY"),
		HTTPTimeout:        timeout,
		AttachmentsEnabled: getBoolOrDefault("MAILMATE_ATTACHMENTS", true),
		SubjectEnabled:     getBoolOrDefault("MAILMATE_CUSTOM_SUBJECT", true),
		ClearOnSuccess:     getBoolOrDefault("MAILMATE_CLEAR_ON_SUCCESS", true),
		MaxAttachmentBytes: maxBytes,
		DefaultSubject:     getEnvOrDefault("MAILMATE_DEFAULT_SUBJECT", "Message from MailMate"),
		NotifyAddr:         os.Getenv("MAILMATE_NOTIFY_ADDR"),
		LogFile:            os.Getenv("MAILMATE_LOG_FILE"),
		SMTPAddr:           os.Getenv("MAILMATE_SMTP_ADDR"),
		SMTPUsername:       os.Getenv("MAILMATE_SMTP_USER"),
		SMTPPassword:       os.Getenv("MAILMATE_SMTP_PASSWORD"),
		SMTPFrom:           os.Getenv("MAILMATE_SMTP_FROM"),
		SMTPTimeout:        smtpTimeout,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch c.Transport {
	case TransportHTTP:
		if c.EndpointURL == "" {
			return fmt.Errorf("MAILMATE_ENDPOINT_URL is required")
		}
		u, err := url.Parse(c.EndpointURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("MAILMATE_ENDPOINT_URL must be an absolute http(s) URL")
		}
	case TransportSMTP:
		if c.SMTPAddr == "" {
			return fmt.Errorf("MAILMATE_SMTP_ADDR is required for the smtp transport")
		}
		if c.SMTPFrom == "" {
			return fmt.Errorf("MAILMATE_SMTP_FROM is required for the smtp transport")
		}
		if c.SMTPTimeout <= 0 {
			return fmt.Errorf("MAILMATE_SMTP_TIMEOUT must be positive")
		}
	default:
		return fmt.Errorf("MAILMATE_TRANSPORT must be one of http, smtp")
	}

	switch c.PayloadFormat {
	case FormatMultipart, FormatJSON, FormatAuto:
	default:
		return fmt.Errorf("MAILMATE_PAYLOAD_FORMAT must be one of multipart, json, auto")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("MAILMATE_HTTP_TIMEOUT must be positive")
	}

	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("MAILMATE_MAX_ATTACHMENT_BYTES must be positive")
	}

	return nil
}

// RelayTwinConfig holds the relay twin's settings. The twin ignores the
// client settings so a client env cannot stop it from starting.
type RelayTwinConfig struct {
	Environment string
	Port        string
	APIKey      string
}

func NewRelayTwinConfig() (*RelayTwinConfig, error) {
	env := os.Getenv("MAILMATE_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("Config: .env file not found, using environment variables")
		}
	}

	config := &RelayTwinConfig{
		Environment: env,
		Port:        getEnvOrDefault("RELAY_TWIN_PORT", "8025"),
		APIKey:      os.Getenv("RELAY_TWIN_API_KEY"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *RelayTwinConfig) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("RELAY_TWIN_PORT must be a port number between 1 and 65535")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logger.Warn("Config: ignoring invalid boolean %s=%q", key, value)
		return defaultValue
	}
	return parsed
}
