package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	MailProviderSMTP   = "smtp"
	MailProviderResend = "resend"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	Port               int      `mapstructure:"port"`
	StaticDir          string   `mapstructure:"static_dir"`
	UploadsDir         string   `mapstructure:"uploads_dir"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	AcceptedEmailSuffixes []string `mapstructure:"accepted_email_suffixes"`

	FetchTimeoutSeconds    int64         `mapstructure:"fetch_timeout_seconds"`
	DeliveryTimeoutSeconds int64         `mapstructure:"delivery_timeout_seconds"`
	FetchTimeout           time.Duration `mapstructure:"-"`
	DeliveryTimeout        time.Duration `mapstructure:"-"`

	MailProvider     string `mapstructure:"mail_provider"`
	GmailUser        string `mapstructure:"gmail_user"`
	GmailAppPassword string `mapstructure:"gmail_app_password" json:"-"`
	SMTPHost         string `mapstructure:"smtp_host"`
	SMTPPort         int    `mapstructure:"smtp_port"`
	MailFrom         string `mapstructure:"mail_from"`
	ResendAPIKey     string `mapstructure:"resend_api_key" json:"-"`

	PublishersFile string `mapstructure:"publishers_file"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// IsDevelopment reports whether detailed error output may be exposed to callers.
func (c *Config) IsDevelopment() bool {
	return c != nil && strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

// HasMailCredentials reports whether the selected mail provider has what it needs to authenticate.
func (c *Config) HasMailCredentials() bool {
	if c == nil {
		return false
	}
	if c.MailProvider == MailProviderResend {
		return c.ResendAPIKey != "" && c.MailFrom != ""
	}
	return c.GmailUser != "" && c.GmailAppPassword != ""
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-kindle-courier")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 3000)
	v.SetDefault("static_dir", "public")
	v.SetDefault("uploads_dir", "uploads")
	v.SetDefault("rate_limit_per_minute", 30)
	v.SetDefault("cors_allowed_origins", []string{"*"})
	v.SetDefault("accepted_email_suffixes", []string{"@kindle.com"})
	v.SetDefault("fetch_timeout_seconds", 30)
	v.SetDefault("delivery_timeout_seconds", 60)
	v.SetDefault("mail_provider", MailProviderSMTP)
	v.SetDefault("gmail_user", "")
	v.SetDefault("gmail_app_password", "")
	v.SetDefault("smtp_host", "smtp.gmail.com")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("mail_from", "")
	v.SetDefault("resend_api_key", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/deliveries.db")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid fetch_timeout_seconds (must be positive seconds)")
	}
	if c.DeliveryTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid delivery_timeout_seconds (must be positive seconds)")
	}
	c.FetchTimeout = time.Duration(c.FetchTimeoutSeconds) * time.Second
	c.DeliveryTimeout = time.Duration(c.DeliveryTimeoutSeconds) * time.Second

	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	c.MailProvider = strings.ToLower(strings.TrimSpace(c.MailProvider))
	switch c.MailProvider {
	case MailProviderSMTP, MailProviderResend:
	default:
		return fmt.Errorf("unsupported mail_provider %q", c.MailProvider)
	}
	if strings.TrimSpace(c.MailFrom) == "" {
		c.MailFrom = c.GmailUser
	}

	c.AcceptedEmailSuffixes = splitList(c.AcceptedEmailSuffixes)
	if len(c.AcceptedEmailSuffixes) == 0 {
		return fmt.Errorf("accepted_email_suffixes must not be empty")
	}
	c.CORSAllowedOrigins = splitList(c.CORSAllowedOrigins)
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("invalid rate_limit_per_minute (must not be negative)")
	}
	return nil
}

// splitList accepts both real slices and single comma separated env values.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
