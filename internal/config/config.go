package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	defaultLanguage        = "portuguese"
	defaultThreshold       = 0.7
	defaultMode            = "fuzzy"
	defaultIntervalMinutes = 5
	defaultFallback        = "Obrigado pelo seu contato! Recebemos sua mensagem e responderemos em breve."
	defaultSignature       = "Atenciosamente,\nEquipe de Atendimento"
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Mailbox MailboxConfig `yaml:"mailbox"`
	Email   EmailConfig   `yaml:"email"`
	Engine  EngineConfig  `yaml:"engine"`
	Options Options       `yaml:"options"`
}

// MailboxConfig holds IMAP settings for the monitored inbox
type MailboxConfig struct {
	Provider string `yaml:"provider"` // "gmail", "outlook", "imap"
	Server   string `yaml:"server"`   // e.g., "imap.gmail.com"
	Port     int    `yaml:"port"`     // e.g., 993
	Email    string `yaml:"email"`
	Password string `yaml:"password"` // App password (not main password)
	Folder   string `yaml:"folder"`   // Folder to monitor (default: "INBOX")
}

type EmailConfig struct {
	Provider       string     `yaml:"provider"` // "smtp", "sendgrid", "resend"
	From           string     `yaml:"from"`
	SMTP           SMTPConfig `yaml:"smtp,omitempty"`
	SendGridAPIKey string     `yaml:"sendgrid_api_key,omitempty"`
	ResendAPIKey   string     `yaml:"resend_api_key,omitempty"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
}

// EngineConfig controls how incoming text is matched to rules
type EngineConfig struct {
	Language  string  `yaml:"language"`  // stopword/stemmer language
	Threshold float64 `yaml:"threshold"` // fuzzy score cutoff in [0,1]
	Mode      string  `yaml:"mode"`      // "fuzzy" or "exact"
	Fallback  string  `yaml:"fallback"`  // reply when nothing matches
	Signature string  `yaml:"signature"`
}

type Options struct {
	IntervalMinutes int  `yaml:"interval_minutes"` // poll interval for watch mode
	DryRun          bool `yaml:"dry_run"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".replyforge", "config.yaml")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.Language == "" {
		c.Engine.Language = defaultLanguage
	}
	if c.Engine.Threshold == 0 {
		c.Engine.Threshold = defaultThreshold
	}
	if c.Engine.Mode == "" {
		c.Engine.Mode = defaultMode
	}
	if c.Engine.Fallback == "" {
		c.Engine.Fallback = defaultFallback
	}
	if c.Engine.Signature == "" {
		c.Engine.Signature = defaultSignature
	}
	if c.Options.IntervalMinutes == 0 {
		c.Options.IntervalMinutes = defaultIntervalMinutes
	}

	if c.Mailbox.Folder == "" {
		c.Mailbox.Folder = "INBOX"
	}
	if c.Mailbox.Provider == "gmail" && c.Mailbox.Server == "" {
		c.Mailbox.Server = "imap.gmail.com"
		c.Mailbox.Port = 993
	}
	if c.Mailbox.Provider == "outlook" && c.Mailbox.Server == "" {
		c.Mailbox.Server = "outlook.office365.com"
		c.Mailbox.Port = 993
	}
}

// Default returns a config with every default applied, for first-run setup.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	switch c.Email.Provider {
	case "", "smtp":
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp: host is required")
		}
		if c.Email.SMTP.Port == 0 {
			return fmt.Errorf("email.smtp: port is required")
		}
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			return fmt.Errorf("email: sendgrid_api_key is required")
		}
	case "resend":
		if c.Email.ResendAPIKey == "" {
			return fmt.Errorf("email: resend_api_key is required")
		}
	default:
		return fmt.Errorf("email: unknown provider %q", c.Email.Provider)
	}

	if c.Email.From == "" {
		return fmt.Errorf("email: from address is required")
	}

	return c.ValidateEngine()
}

// ValidateEngine validates the matching settings on their own, for flows
// that never send mail (dry runs, settings edits).
func (c *Config) ValidateEngine() error {
	if c.Engine.Threshold < 0 || c.Engine.Threshold > 1 {
		return fmt.Errorf("engine: threshold must be between 0 and 1")
	}
	if c.Engine.Mode != "fuzzy" && c.Engine.Mode != "exact" {
		return fmt.Errorf("engine: unknown mode %q (use fuzzy or exact)", c.Engine.Mode)
	}
	return nil
}

// ValidateMailbox validates IMAP settings (only needed when the inbox is
// actually polled)
func (c *Config) ValidateMailbox() error {
	if c.Mailbox.Email == "" {
		return fmt.Errorf("mailbox: email address is required")
	}
	if c.Mailbox.Password == "" {
		return fmt.Errorf("mailbox: password (app password) is required")
	}
	if c.Mailbox.Server == "" {
		return fmt.Errorf("mailbox: IMAP server is required")
	}
	if c.Mailbox.Port == 0 {
		return fmt.Errorf("mailbox: IMAP port is required")
	}
	return nil
}
