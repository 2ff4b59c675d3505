package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	envPasswordPrefix = "IMAPVAULT_PASSWORD_"
	envS3Key          = "IMAPVAULT_S3_KEY"
	envS3Secret       = "IMAPVAULT_S3_SECRET"
	envOTelHeaders    = "IMAPVAULT_OTEL_HEADERS"
	envWebhookURL     = "IMAPVAULT_WEBHOOK_URL"

	defaultBackupDir  = "backups"
	defaultPort       = 993
	defaultBatchSize  = 1
	defaultStatusAddr = "127.0.0.1:8080"
	defaultExporter   = "otlp"
)

// Config holds non-secret configuration loaded from YAML.
type Config struct {
	BackupDir string    `yaml:"backup_dir"`
	Accounts  []Account `yaml:"accounts"`
	Mirrors   []Mirror  `yaml:"mirrors"`
	Archive   *Archive  `yaml:"archive"`
	Telemetry Telemetry `yaml:"telemetry"`
	Log       Log       `yaml:"log"`
	Status    Status    `yaml:"status"`
	Report    Report    `yaml:"report"`
}

// Account is one IMAP login.
type Account struct {
	Name     string `yaml:"name"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	// PasswordEnv names the variable holding the password. Defaults to
	// IMAPVAULT_PASSWORD_<NAME>.
	PasswordEnv        string   `yaml:"password_env"`
	Folders            []string `yaml:"folders"`
	BatchSize          int      `yaml:"batch_size"`
	ResetSeen          bool     `yaml:"reset_seen"`
	MirrorMode         bool     `yaml:"mirror_mode"`
	RefreshFlags       bool     `yaml:"refresh_flags"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
}

// Mirror keeps the destination account in line with the local backup of
// the source account.
type Mirror struct {
	Source      string   `yaml:"source"`
	Destination string   `yaml:"destination"`
	Folders     []string `yaml:"folders"`
}

// Archive configures S3 snapshots. Credentials come from the environment.
type Archive struct {
	Endpoint   string   `yaml:"endpoint"`
	Region     string   `yaml:"region"`
	Bucket     string   `yaml:"bucket"`
	Prefix     string   `yaml:"prefix"`
	Recipients []string `yaml:"age_recipients"`
}

type Telemetry struct {
	Enabled         bool   `yaml:"enabled"`
	Exporter        string `yaml:"exporter"`
	Endpoint        string `yaml:"endpoint"`
	MetricsEndpoint string `yaml:"metrics_endpoint"`
	Insecure        bool   `yaml:"insecure"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Status struct {
	Addr string `yaml:"addr"`
}

// Report posts job results to a webhook.
type Report struct {
	WebhookURL string `yaml:"webhook_url"`
}

// S3Credentials holds the archive key pair from the environment.
type S3Credentials struct {
	Key    string
	Secret string
}

// Load reads configuration from a YAML file and fills in defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.BackupDir) == "" {
		cfg.BackupDir = defaultBackupDir
	}
	for i := range cfg.Accounts {
		acct := &cfg.Accounts[i]
		if acct.Port == 0 {
			acct.Port = defaultPort
		}
		if acct.BatchSize == 0 {
			acct.BatchSize = defaultBatchSize
		}
	}
	if cfg.Telemetry.Exporter == "" {
		cfg.Telemetry.Exporter = defaultExporter
	}
	if cfg.Status.Addr == "" {
		cfg.Status.Addr = defaultStatusAddr
	}
}

// Validate performs basic validation on non-secret config.
func Validate(cfg Config) error {
	if len(cfg.Accounts) == 0 {
		return errors.New("config must define at least one account")
	}
	seen := map[string]bool{}
	for i, acct := range cfg.Accounts {
		if strings.TrimSpace(acct.Name) == "" {
			return fmt.Errorf("account %d must define name", i+1)
		}
		if seen[acct.Name] {
			return fmt.Errorf("account %q is defined twice", acct.Name)
		}
		seen[acct.Name] = true
		if strings.TrimSpace(acct.Server) == "" {
			return fmt.Errorf("account %q must define server", acct.Name)
		}
		if strings.TrimSpace(acct.Username) == "" {
			return fmt.Errorf("account %q must define username", acct.Name)
		}
		if acct.Port < 1 || acct.Port > 65535 {
			return fmt.Errorf("account %q has invalid port %d", acct.Name, acct.Port)
		}
		if acct.BatchSize < 1 {
			return fmt.Errorf("account %q has invalid batch_size %d", acct.Name, acct.BatchSize)
		}
	}
	for i, m := range cfg.Mirrors {
		if !seen[m.Source] {
			return fmt.Errorf("mirror %d: unknown source account %q", i+1, m.Source)
		}
		if !seen[m.Destination] {
			return fmt.Errorf("mirror %d: unknown destination account %q", i+1, m.Destination)
		}
		if m.Source == m.Destination {
			return fmt.Errorf("mirror %d: source and destination are the same account", i+1)
		}
	}
	if cfg.Archive != nil && strings.TrimSpace(cfg.Archive.Bucket) == "" {
		return errors.New("archive must define bucket")
	}
	switch cfg.Telemetry.Exporter {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("unsupported telemetry exporter %q", cfg.Telemetry.Exporter)
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Exporter == "otlp" && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		return errors.New("telemetry.endpoint is required for the otlp exporter")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	return nil
}

// Account returns the account called name.
func (c Config) Account(name string) (Account, bool) {
	for _, acct := range c.Accounts {
		if acct.Name == name {
			return acct, true
		}
	}
	return Account{}, false
}

// AccountDir is where the backups of acct are stored.
func (c Config) AccountDir(acct Account) string {
	return filepath.Join(c.BackupDir, acct.Name)
}

func (a Account) Addr() string {
	return fmt.Sprintf("%s:%d", a.Server, a.Port)
}

// ID identifies the account in mirror maps.
func (a Account) ID() string {
	return fmt.Sprintf("%s@%s", a.Username, a.Server)
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// PasswordVar returns the environment variable holding the password.
func (a Account) PasswordVar() string {
	if strings.TrimSpace(a.PasswordEnv) != "" {
		return a.PasswordEnv
	}
	return envPasswordPrefix + strings.Trim(nonAlnum.ReplaceAllString(strings.ToUpper(a.Name), "_"), "_")
}

// Password looks the password up in the environment. ok is false when the
// variable is unset or empty.
func (a Account) Password() (string, bool) {
	pass := os.Getenv(a.PasswordVar())
	return pass, pass != ""
}

// WebhookURL returns the report webhook. The environment overrides the
// config file.
func (c Config) WebhookURL() string {
	if url := strings.TrimSpace(os.Getenv(envWebhookURL)); url != "" {
		return url
	}
	return strings.TrimSpace(c.Report.WebhookURL)
}

// S3CredentialsFromEnv loads the archive credentials. Both may be empty, in
// which case the SDK's own credential chain applies.
func S3CredentialsFromEnv() (S3Credentials, error) {
	creds := S3Credentials{
		Key:    strings.TrimSpace(os.Getenv(envS3Key)),
		Secret: strings.TrimSpace(os.Getenv(envS3Secret)),
	}
	if (creds.Key == "") != (creds.Secret == "") {
		return S3Credentials{}, fmt.Errorf("set both %s and %s or neither", envS3Key, envS3Secret)
	}
	return creds, nil
}

// OTelHeaders parses "key=value,key2=value2" from the environment.
func OTelHeaders() (map[string]string, error) {
	raw := strings.TrimSpace(os.Getenv(envOTelHeaders))
	headers := map[string]string{}
	if raw == "" {
		return headers, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid %s entry %q", envOTelHeaders, pair)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// ParseLevel maps a config level name to a slog level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}

// Summary returns a concise config summary for validation runs.
func Summary(cfg Config) string {
	names := make([]string, 0, len(cfg.Accounts))
	missing := []string{}
	for _, acct := range cfg.Accounts {
		names = append(names, acct.Name)
		if _, ok := acct.Password(); !ok {
			missing = append(missing, acct.PasswordVar())
		}
	}
	sort.Strings(missing)

	archiveStatus := "disabled"
	if cfg.Archive != nil {
		archiveStatus = "s3://" + cfg.Archive.Bucket
		if len(cfg.Archive.Recipients) > 0 {
			archiveStatus += " (encrypted)"
		}
	}
	reportStatus := "disabled"
	if cfg.WebhookURL() != "" {
		reportStatus = "webhook"
	}
	telemetryStatus := "disabled"
	if cfg.Telemetry.Enabled {
		telemetryStatus = cfg.Telemetry.Exporter
	}
	return fmt.Sprintf(
		"Config summary\n"+
			"- backup dir: %s\n"+
			"- accounts: %s\n"+
			"- mirrors: %d\n"+
			"- archive: %s\n"+
			"- telemetry: %s\n"+
			"- reports: %s\n"+
			"- passwords not in environment: %s",
		cfg.BackupDir,
		defaultIfEmpty(strings.Join(names, ", "), "(none)"),
		len(cfg.Mirrors),
		archiveStatus,
		telemetryStatus,
		reportStatus,
		defaultIfEmpty(strings.Join(missing, ", "), "(none)"),
	)
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
