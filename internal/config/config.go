package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/phone"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Table backends.
const (
	BackendSheets = "sheets"
	BackendCSV    = "csv"
	BackendS3     = "s3"
)

// Messaging channels.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelTwilio   = "twilio"
	ChannelSNS      = "sns"
	ChannelDryRun   = "dryrun"
)

// DefaultMessage is sent when MSG_TEXT is not configured.
const DefaultMessage = "Hello, I found your business online."

// Config holds all configuration for a dispatch run
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Table    TableConfig    `yaml:"table"`
	Channel  ChannelConfig  `yaml:"channel"`
	AWS      AWSConfig      `yaml:"aws"`
	Lock     LockConfig     `yaml:"lock"`
	Events   EventsConfig   `yaml:"events"`
	Status   StatusConfig   `yaml:"status"`
	Audit    AuditConfig    `yaml:"audit"`
	Report   ReportConfig   `yaml:"report"`
}

// DispatchConfig holds the run-level pipeline settings
type DispatchConfig struct {
	MessageText     string `yaml:"message_text"`
	SenderName      string `yaml:"sender_name"`
	MinDelaySec     int    `yaml:"min_delay_sec"`
	MaxDelaySec     int    `yaml:"max_delay_sec"`
	DefaultCountry  string `yaml:"default_country"`
	FallbackPrefix  string `yaml:"fallback_dial_prefix"`
	SendAttempts    int    `yaml:"send_attempts"`
	RetryBackoffSec int    `yaml:"retry_backoff_sec"`
	PhoneColumn     string `yaml:"phone_column"`
	StatusColumn    string `yaml:"status_column"`
}

// RetryBackoff returns the per-attempt send backoff as a duration
func (c DispatchConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSec) * time.Second
}

// TableConfig selects and configures the lead table backend
type TableConfig struct {
	Backend         string `yaml:"backend"`
	SheetID         string `yaml:"sheet_id"`
	SheetName       string `yaml:"sheet_name"`
	CredentialsFile string `yaml:"credentials_file"`
	SheetsBaseURL   string `yaml:"sheets_base_url"`
	CSVPath         string `yaml:"csv_path"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Key           string `yaml:"s3_key"`
}

// ID names the table for locking and logging
func (c TableConfig) ID() string {
	switch c.Backend {
	case BackendCSV:
		return "csv:" + c.CSVPath
	case BackendS3:
		return "s3://" + c.S3Bucket + "/" + c.S3Key
	default:
		return "sheets:" + c.SheetID + "/" + c.SheetName
	}
}

// ChannelConfig selects and configures the messaging channel
type ChannelConfig struct {
	Provider              string `yaml:"provider"`
	TimeoutSeconds        int    `yaml:"timeout_seconds"`
	HTTPRetries           int    `yaml:"http_retries"`
	WhatsAppToken         string `yaml:"whatsapp_token"`
	WhatsAppPhoneNumberID string `yaml:"whatsapp_phone_number_id"`
	WhatsAppBaseURL       string `yaml:"whatsapp_base_url"`
	TwilioAccountSID      string `yaml:"twilio_account_sid"`
	TwilioAuthToken       string `yaml:"twilio_auth_token"`
	TwilioFromNumber      string `yaml:"twilio_from_number"`
	TwilioWhatsApp        bool   `yaml:"twilio_whatsapp"`
	TwilioBaseURL         string `yaml:"twilio_base_url"`
	SNSSenderID           string `yaml:"sns_sender_id"`
}

// Timeout returns the configured timeout as a duration
func (c ChannelConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AWSConfig holds credentials shared by the S3 table and the SNS channel
type AWSConfig struct {
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
}

// LockConfig holds the single-writer run lock backends
type LockConfig struct {
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	TTLSeconds  int    `yaml:"ttl_seconds"`
}

// TTL returns the lock expiry as a duration
func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// EventsConfig holds the outcome event publisher settings
type EventsConfig struct {
	AMQPURL    string `yaml:"amqp_url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// StatusConfig holds the optional status endpoint settings
type StatusConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuditConfig holds the DynamoDB run ledger settings
type AuditConfig struct {
	Table   string `yaml:"table"`
	TTLDays int    `yaml:"ttl_days"`
}

// TTL returns how long ledger items are kept
func (c AuditConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// ReportConfig holds the end-of-run summary e-mail settings
type ReportConfig struct {
	From string `yaml:"email_from"`
	To   string `yaml:"email_to"`
}

// Enabled reports whether a summary e-mail should be sent
func (c ReportConfig) Enabled() bool {
	return c.From != "" && c.To != ""
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Dispatch: DispatchConfig{
			MessageText:     DefaultMessage,
			MinDelaySec:     4,
			MaxDelaySec:     9,
			DefaultCountry:  "IN",
			FallbackPrefix:  phone.DefaultFallbackPrefix,
			SendAttempts:    1,
			RetryBackoffSec: 1,
			PhoneColumn:     domain.DefaultPhoneColumn,
			StatusColumn:    domain.DefaultStatusColumn,
		},
		Table: TableConfig{
			Backend:   BackendSheets,
			SheetName: "Sheet1",
		},
		Channel: ChannelConfig{
			Provider:       ChannelWhatsApp,
			TimeoutSeconds: 30,
			HTTPRetries:    2,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Lock: LockConfig{
			TTLSeconds: 300,
		},
		Events: EventsConfig{
			Exchange:   "lead.dispatch",
			RoutingKey: "lead.dispatch.outcome",
		},
		Audit: AuditConfig{
			TTLDays: 30,
		},
	}
}

// Load reads and parses the configuration file on top of the defaults.
// Keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", dispatch.ErrConfiguration, path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first so secrets can live in .env
// locally and in real environment variables in production. An empty path or
// a missing file means defaults plus environment only.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	var problems []string

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s=%q is not an integer", key, v))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s=%q is not a boolean", key, v))
			return
		}
		*dst = b
	}

	str("LOG_LEVEL", &cfg.LogLevel)

	str("MSG_TEXT", &cfg.Dispatch.MessageText)
	str("SENDER_NAME", &cfg.Dispatch.SenderName)
	num("MIN_DELAY_SEC", &cfg.Dispatch.MinDelaySec)
	num("MAX_DELAY_SEC", &cfg.Dispatch.MaxDelaySec)
	str("DEFAULT_COUNTRY", &cfg.Dispatch.DefaultCountry)
	str("FALLBACK_DIAL_PREFIX", &cfg.Dispatch.FallbackPrefix)
	num("SEND_ATTEMPTS", &cfg.Dispatch.SendAttempts)
	num("RETRY_BACKOFF_SEC", &cfg.Dispatch.RetryBackoffSec)
	str("PHONE_COLUMN", &cfg.Dispatch.PhoneColumn)
	str("STATUS_COLUMN", &cfg.Dispatch.StatusColumn)

	str("TABLE_BACKEND", &cfg.Table.Backend)
	str("SHEET_ID", &cfg.Table.SheetID)
	str("SHEET_NAME", &cfg.Table.SheetName)
	str("GOOGLE_APPLICATION_CREDENTIALS", &cfg.Table.CredentialsFile)
	str("CSV_PATH", &cfg.Table.CSVPath)
	str("S3_BUCKET", &cfg.Table.S3Bucket)
	str("S3_KEY", &cfg.Table.S3Key)

	str("CHANNEL", &cfg.Channel.Provider)
	num("CHANNEL_TIMEOUT_SEC", &cfg.Channel.TimeoutSeconds)
	str("WHATSAPP_TOKEN", &cfg.Channel.WhatsAppToken)
	str("WHATSAPP_PHONE_NUMBER_ID", &cfg.Channel.WhatsAppPhoneNumberID)
	str("TWILIO_ACCOUNT_SID", &cfg.Channel.TwilioAccountSID)
	str("TWILIO_AUTH_TOKEN", &cfg.Channel.TwilioAuthToken)
	str("TWILIO_FROM_NUMBER", &cfg.Channel.TwilioFromNumber)
	flag("TWILIO_WHATSAPP", &cfg.Channel.TwilioWhatsApp)
	str("SNS_SENDER_ID", &cfg.Channel.SNSSenderID)

	str("AWS_REGION", &cfg.AWS.Region)
	str("AWS_PROFILE", &cfg.AWS.Profile)
	str("AWS_ACCESS_KEY_ID", &cfg.AWS.AccessKeyID)
	str("AWS_SECRET_ACCESS_KEY", &cfg.AWS.SecretAccessKey)
	str("AWS_ENDPOINT", &cfg.AWS.Endpoint)

	str("REDIS_URL", &cfg.Lock.RedisURL)
	str("DATABASE_URL", &cfg.Lock.DatabaseURL)
	num("LOCK_TTL_SEC", &cfg.Lock.TTLSeconds)

	str("AMQP_URL", &cfg.Events.AMQPURL)
	str("EVENTS_EXCHANGE", &cfg.Events.Exchange)
	str("EVENTS_ROUTING_KEY", &cfg.Events.RoutingKey)

	str("STATUS_ADDR", &cfg.Status.Addr)
	if v := os.Getenv("STATUS_ALLOWED_ORIGINS"); v != "" {
		cfg.Status.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Status.AllowedOrigins = append(cfg.Status.AllowedOrigins, o)
			}
		}
	}

	str("AUDIT_TABLE", &cfg.Audit.Table)
	num("AUDIT_TTL_DAYS", &cfg.Audit.TTLDays)
	str("REPORT_EMAIL_FROM", &cfg.Report.From)
	str("REPORT_EMAIL_TO", &cfg.Report.To)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", dispatch.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// Validate reports every problem that would make a run misbehave. The
// returned error wraps dispatch.ErrConfiguration.
func (cfg *Config) Validate() error {
	var problems []string
	d := cfg.Dispatch

	if d.MinDelaySec < 0 || d.MaxDelaySec < 0 {
		problems = append(problems, "delay bounds must not be negative")
	}
	if d.MinDelaySec > d.MaxDelaySec {
		problems = append(problems, fmt.Sprintf("MIN_DELAY_SEC (%d) exceeds MAX_DELAY_SEC (%d)", d.MinDelaySec, d.MaxDelaySec))
	}
	if d.SendAttempts < 1 {
		problems = append(problems, "SEND_ATTEMPTS must be at least 1")
	}
	if strings.TrimSpace(d.MessageText) == "" {
		problems = append(problems, "MSG_TEXT must not be empty")
	}
	if err := phone.ValidatePrefix(d.FallbackPrefix); err != nil {
		problems = append(problems, "FALLBACK_DIAL_PREFIX: "+err.Error())
	}
	if d.PhoneColumn == "" || d.StatusColumn == "" {
		problems = append(problems, "phone and status column names must not be empty")
	}

	switch cfg.Table.Backend {
	case BackendSheets:
		if cfg.Table.SheetID == "" {
			problems = append(problems, "SHEET_ID is required for the sheets backend")
		}
		if cfg.Table.CredentialsFile == "" {
			problems = append(problems, "GOOGLE_APPLICATION_CREDENTIALS is required for the sheets backend")
		}
	case BackendCSV:
		if cfg.Table.CSVPath == "" {
			problems = append(problems, "CSV_PATH is required for the csv backend")
		}
	case BackendS3:
		if cfg.Table.S3Bucket == "" || cfg.Table.S3Key == "" {
			problems = append(problems, "S3_BUCKET and S3_KEY are required for the s3 backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown table backend %q", cfg.Table.Backend))
	}

	switch cfg.Channel.Provider {
	case ChannelWhatsApp:
		if cfg.Channel.WhatsAppToken == "" || cfg.Channel.WhatsAppPhoneNumberID == "" {
			problems = append(problems, "WHATSAPP_TOKEN and WHATSAPP_PHONE_NUMBER_ID are required for the whatsapp channel")
		}
	case ChannelTwilio:
		if cfg.Channel.TwilioAccountSID == "" || cfg.Channel.TwilioAuthToken == "" || cfg.Channel.TwilioFromNumber == "" {
			problems = append(problems, "TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER are required for the twilio channel")
		}
	case ChannelSNS, ChannelDryRun:
	default:
		problems = append(problems, fmt.Sprintf("unknown channel %q", cfg.Channel.Provider))
	}

	if cfg.Lock.RedisURL != "" && cfg.Lock.TTLSeconds <= 0 {
		problems = append(problems, "LOCK_TTL_SEC must be positive when REDIS_URL is set")
	}

	if cfg.Audit.Table != "" && cfg.Audit.TTLDays < 0 {
		problems = append(problems, "AUDIT_TTL_DAYS must not be negative")
	}
	if (cfg.Report.From == "") != (cfg.Report.To == "") {
		problems = append(problems, "REPORT_EMAIL_FROM and REPORT_EMAIL_TO must be set together")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", dispatch.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// RunConfig turns the dispatch section into the value threaded through a
// run. message is the already rendered body.
func (cfg *Config) RunConfig(runID, message string) dispatch.RunConfig {
	return dispatch.RunConfig{
		RunID:          runID,
		Message:        message,
		PhoneColumn:    cfg.Dispatch.PhoneColumn,
		StatusColumn:   cfg.Dispatch.StatusColumn,
		DialPrefix:     phone.DialPrefix(cfg.Dispatch.DefaultCountry),
		FallbackPrefix: cfg.Dispatch.FallbackPrefix,
		SendAttempts:   cfg.Dispatch.SendAttempts,
		RetryBackoff:   cfg.Dispatch.RetryBackoff(),
	}
}
