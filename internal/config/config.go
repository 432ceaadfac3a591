package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrMissingConfiguration is matched by every MissingConfigurationError.
var ErrMissingConfiguration = errors.New("missing configuration")

// MissingConfigurationError lists the environment variables that were
// required but absent or empty.
type MissingConfigurationError struct {
	Vars []string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s must be set", strings.Join(e.Vars, ", "))
}

// Is reports whether target is ErrMissingConfiguration.
func (e *MissingConfigurationError) Is(target error) bool {
	return target == ErrMissingConfiguration
}

// Environment variable names
const (
	EnvMailUsername     = "MAIL_USERNAME"
	EnvMailPassword     = "MAIL_PASSWORD"
	EnvMailTo           = "MAIL_TO"
	EnvMailHost         = "MAIL_HOST"
	EnvMailPort         = "MAIL_PORT"
	EnvMailProvider     = "MAIL_PROVIDER"
	EnvGmailCredentials = "GMAIL_CREDENTIALS_JSON"
	EnvApplicationID    = "APPLICATION_ID"
	EnvPrivateKey       = "PRIVATE_KEY"
	EnvSpreadsheetID    = "SPREADSHEET_ID"
	EnvServiceAccount   = "SERVICE_ACCOUNT_JSON"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFormat        = "LOG_FORMAT"
)

// Mail providers
const (
	ProviderSMTP  = "smtp"
	ProviderGmail = "gmail"
)

// Config holds all configuration for the application
type Config struct {
	Mail  MailConfig  `mapstructure:"mail"`
	Token TokenConfig `mapstructure:"token"`
	Sheet SheetConfig `mapstructure:"sheet"`
	Log   LogConfig   `mapstructure:"log"`
}

// MailConfig holds the notification mail settings
type MailConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	To       string `mapstructure:"to"`
	// Host and Port locate the SMTP submission endpoint
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Provider is "smtp" or "gmail"
	Provider string `mapstructure:"provider"`
	// GmailCredentialsJSON is the service account JSON used by the gmail provider
	GmailCredentialsJSON string `mapstructure:"gmail_credentials_json"`
}

// Validate checks that the credentials and recipient are present.
func (c MailConfig) Validate() error {
	return requireAll(
		EnvMailUsername, c.Username,
		EnvMailPassword, c.Password,
		EnvMailTo, c.To,
	)
}

// TokenConfig holds Vonage application settings used to sign the JWT
type TokenConfig struct {
	ApplicationID string `mapstructure:"application_id"`
	PrivateKey    string `mapstructure:"private_key"`
}

// Validate checks that the application ID and private key are present.
func (c TokenConfig) Validate() error {
	return requireAll(
		EnvApplicationID, c.ApplicationID,
		EnvPrivateKey, c.PrivateKey,
	)
}

// SheetConfig holds Google Sheets settings. Both fields are optional.
type SheetConfig struct {
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

// Enabled reports whether both sheet settings are present.
func (c SheetConfig) Enabled() bool {
	return c.SpreadsheetID != "" && c.ServiceAccountJSON != ""
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// bindings maps config keys to the environment variable names they are read from.
var bindings = map[string]string{
	"mail.username":               EnvMailUsername,
	"mail.password":               EnvMailPassword,
	"mail.to":                     EnvMailTo,
	"mail.host":                   EnvMailHost,
	"mail.port":                   EnvMailPort,
	"mail.provider":               EnvMailProvider,
	"mail.gmail_credentials_json": EnvGmailCredentials,
	"token.application_id":        EnvApplicationID,
	"token.private_key":           EnvPrivateKey,
	"sheet.spreadsheet_id":        EnvSpreadsheetID,
	"sheet.service_account_json":  EnvServiceAccount,
	"log.level":                   EnvLogLevel,
	"log.format":                  EnvLogFormat,
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Mail.Provider = strings.ToLower(strings.TrimSpace(cfg.Mail.Provider))
	switch cfg.Mail.Provider {
	case ProviderSMTP, ProviderGmail:
	default:
		return nil, fmt.Errorf("unsupported %s %q", EnvMailProvider, cfg.Mail.Provider)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Mail defaults
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.provider", ProviderSMTP)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// requireAll takes name/value pairs and reports every name whose value is blank.
func requireAll(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return &MissingConfigurationError{Vars: missing}
	}
	return nil
}
