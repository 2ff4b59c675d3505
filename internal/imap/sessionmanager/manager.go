package sessionmanager

import (
	"context"
	"crypto/tls"
	"log/slog"
	"strings"

	"github.com/aaronromeo/imapvault/internal/imap/base"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
	"github.com/pkg/errors"
)

type Option func(*IMAPConnector)

type ServerConnector interface {
	Connect() error
	Reconnect(ctx context.Context) error
	Close() error

	IMAPClient() *giimapclient.Client
}

type IMAPConnector struct {
	Addr      string
	Username  string
	Password  string
	TLSConfig *tls.Config
	Logger    *slog.Logger

	base.State
}

func WithAddr(a string) Option {
	return func(c *IMAPConnector) {
		c.Addr = a
	}
}

func WithCreds(username string, password string) Option {
	return func(c *IMAPConnector) {
		c.Username = username
		c.Password = password
	}
}

func WithTLSConfig(config *tls.Config) Option {
	return func(state *IMAPConnector) {
		state.TLSConfig = config
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(state *IMAPConnector) {
		state.Logger = logger
	}
}

func NewServerConnector(opts ...Option) *IMAPConnector {
	c := &IMAPConnector{Logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *IMAPConnector) IMAPClient() *giimapclient.Client {
	return c.Client
}

// Connect establishes the IMAP connection and logs in.
func (c *IMAPConnector) Connect() error {
	if err := validateDeps(c); err != nil {
		return err
	}

	var options *giimapclient.Options
	if c.TLSConfig != nil {
		options = &giimapclient.Options{
			TLSConfig: c.TLSConfig,
		}
	}

	client, err := giimapclient.DialTLS(c.Addr, options)
	if err != nil {
		return errors.Wrapf(err, "dial %s", c.Addr)
	}

	if err := client.Login(c.Username, c.Password).Wait(); err != nil {
		_ = client.Close()
		return errors.Wrapf(err, "login as %s", c.Username)
	}

	c.Client = client
	c.Logger.Debug("connected", "addr", c.Addr, "username", c.Username)
	return nil
}

// Reconnect drops the current connection, without waiting for a clean
// logout, and opens a new one.
func (c *IMAPConnector) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Client != nil {
		_ = c.Client.Close()
		c.Client = nil
	}
	c.Logger.Info("reconnecting", "addr", c.Addr, "username", c.Username)
	return c.Connect()
}

// Close logs out and clears the connection.
func (c *IMAPConnector) Close() error {
	if c.Client == nil {
		return nil
	}
	err := c.Client.Logout().Wait()
	_ = c.Client.Close()
	c.Client = nil
	return err
}

func validateDeps(state *IMAPConnector) error {
	if strings.TrimSpace(state.Addr) == "" {
		return errors.New("IMAP address is required")
	}
	if strings.TrimSpace(state.Username) == "" || strings.TrimSpace(state.Password) == "" {
		return errors.New("IMAP credentials are required")
	}

	return nil
}
