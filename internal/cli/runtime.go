package cli

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aaronromeo/imapvault/internal/announcer"
	"github.com/aaronromeo/imapvault/internal/backup"
	"github.com/aaronromeo/imapvault/internal/config"
	"github.com/aaronromeo/imapvault/internal/imap"
	"github.com/aaronromeo/imapvault/internal/imap/sessionmanager"
	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/telemetry"
	"github.com/aaronromeo/imapvault/internal/watchrunner"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const configEnvVar = "IMAPVAULT_CONFIG"
const defaultEnvFile = ".env"

// accountClient is a logged-in account.
type accountClient interface {
	remote.Account
	Reconnect(ctx context.Context) error
	Close() error
}

// dialAccount logs in to acct. Tests replace it with an in-memory account.
var dialAccount = func(_ context.Context, acct config.Account, password string, logger *slog.Logger) (accountClient, error) {
	client := imap.New(
		sessionmanager.WithAddr(acct.Addr()),
		sessionmanager.WithCreds(acct.Username, password),
		sessionmanager.WithTLSConfig(&tls.Config{ServerName: acct.Server, InsecureSkipVerify: acct.InsecureSkipVerify}), //nolint:gosec
		sessionmanager.WithLogger(logger),
	)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", acct.Name, err)
	}
	return client, nil
}

// promptPassword asks on the terminal for a password missing from the
// environment.
var promptPassword = func(acct config.Account) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password for account %q is not set; export %s", acct.Name, acct.PasswordVar())
	}
	fmt.Fprintf(os.Stderr, "Password for %s (%s): ", acct.Name, acct.Username)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

// runtime is what every command needs after start-up.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	counters *telemetry.Counters
	reporter *announcer.Announcer
	out      io.Writer
	shutdown func(context.Context) error
}

func setup(cmd *cobra.Command) (*runtime, error) {
	cfgPath, err := resolveConfigPath(cmd)
	if err != nil {
		return nil, err
	}
	if err := loadEnvFile(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		cfg.Log.Level = override
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		out:      cmd.OutOrStdout(),
		shutdown: func(context.Context) error { return nil },
	}
	if cfg.Telemetry.Enabled {
		headers, err := config.OTelHeaders()
		if err != nil {
			return nil, err
		}
		shutdown, err := telemetry.SetupOTelSDK(cmd.Context(), telemetry.Settings{
			Exporter:        cfg.Telemetry.Exporter,
			Endpoint:        cfg.Telemetry.Endpoint,
			MetricsEndpoint: cfg.Telemetry.MetricsEndpoint,
			Headers:         headers,
			Insecure:        cfg.Telemetry.Insecure,
		})
		if err != nil {
			return nil, err
		}
		rt.shutdown = shutdown
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger, runID := telemetry.NewLogger(cmd.ErrOrStderr(), telemetry.LoggerOptions{
		Level: level,
		Text:  cfg.Log.Format == "text",
		OTel:  cfg.Telemetry.Enabled,
	})
	rt.logger = logger.With("command", cmd.Name())
	rt.counters = telemetry.NewCounters()
	rt.reporter = announcer.New(announcer.WithWebhookURL(cfg.WebhookURL()))
	rt.logger.Debug("starting", "run_id", runID, "config", cfgPath)
	return rt, nil
}

func (rt *runtime) close(ctx context.Context) {
	if err := rt.shutdown(context.WithoutCancel(ctx)); err != nil {
		rt.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// connect logs in to the named account.
func (rt *runtime) connect(ctx context.Context, name string) (accountClient, config.Account, error) {
	acct, ok := rt.cfg.Account(name)
	if !ok {
		return nil, config.Account{}, fmt.Errorf("unknown account %q", name)
	}
	password, ok := acct.Password()
	if !ok {
		var err error
		if password, err = promptPassword(acct); err != nil {
			return nil, acct, err
		}
	}
	client, err := dialAccount(ctx, acct, password, rt.logger.With("account", acct.Name))
	return client, acct, err
}

// accounts returns the configured accounts named in names, or all of them.
func (rt *runtime) accounts(names []string) ([]config.Account, error) {
	if len(names) == 0 {
		return rt.cfg.Accounts, nil
	}
	out := make([]config.Account, 0, len(names))
	for _, name := range names {
		acct, ok := rt.cfg.Account(name)
		if !ok {
			return nil, fmt.Errorf("unknown account %q", name)
		}
		out = append(out, acct)
	}
	return out, nil
}

func closeClient(logger *slog.Logger, client accountClient) {
	if err := client.Close(); err != nil {
		logger.Warn("closing connection failed", "error", err)
	}
}

func resolveConfigPath(cmd *cobra.Command) (string, error) {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfgPath) == "" {
		cfgPath = os.Getenv(configEnvVar)
	}
	if strings.TrimSpace(cfgPath) == "" {
		return "", errors.New("config path is required via --config or " + configEnvVar)
	}
	return cfgPath, nil
}

func loadEnvFile() error {
	if _, err := os.Stat(defaultEnvFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(defaultEnvFile)
}

// job adapts a function to backup.Job.
type job struct {
	name string
	run  func(ctx context.Context) error
}

func (j job) Name() string {
	return j.name
}

func (j job) Run(ctx context.Context) error {
	return j.run(ctx)
}

// runJobs runs jobs once, or every interval until the command is
// interrupted when interval is positive. Each job result is reported to
// the webhook when one is configured.
func (rt *runtime) runJobs(ctx context.Context, command string, interval time.Duration, jobs []backup.Job) error {
	reported := make([]backup.Job, 0, len(jobs))
	for _, j := range jobs {
		j := j
		reported = append(reported, job{name: j.Name(), run: func(ctx context.Context) error {
			err := j.Run(ctx)
			if reportErr := rt.reporter.Do(context.WithoutCancel(ctx), command, j.Name(), err); reportErr != nil {
				rt.logger.Warn("report failed", "job", j.Name(), "error", reportErr)
			}
			return err
		}})
	}
	runner := backup.NewRunner(rt.logger)
	if interval <= 0 {
		return runner.Run(ctx, reported...)
	}
	return watchrunner.Run(ctx, watchrunner.Deps{Interval: interval, Log: rt.logger}, func(ctx context.Context) error {
		return runner.Run(ctx, reported...)
	})
}
