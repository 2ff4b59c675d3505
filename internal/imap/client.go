package imap

import (
	"context"
	"log/slog"

	"github.com/aaronromeo/imapvault/internal/imap/actions"
	"github.com/aaronromeo/imapvault/internal/imap/searches"
	"github.com/aaronromeo/imapvault/internal/imap/selectors"
	"github.com/aaronromeo/imapvault/internal/imap/sessionmanager"
	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/retry"
	"github.com/emersion/go-imap/v2"
)

// Client encapsulates one IMAP login and hands out remote folders on it.
type Client struct {
	*sessionmanager.IMAPConnector
	*searches.IMAPSearchManager
	*actions.IMAPActionManager
	*selectors.IMAPSelectorManager
}

func New(opts ...sessionmanager.Option) *Client {
	session := sessionmanager.NewServerConnector(opts...)
	client := &Client{
		session,
		searches.New(session),
		actions.New(session),
		selectors.New(session),
	}
	return client
}

func (c *Client) logger() *slog.Logger {
	return c.IMAPConnector.Logger
}

// ListFolders returns the selectable mailboxes of the account.
func (c *Client) ListFolders(ctx context.Context) ([]string, error) {
	return retry.Value(ctx, func() ([]string, error) {
		return c.ListMailboxes(ctx)
	}, c.transientPolicy("list")...)
}

// Folder returns a handle on the named mailbox. The mailbox need not exist.
func (c *Client) Folder(name string) remote.Folder {
	return &Folder{client: c, name: name}
}

// transientPolicy retries connection failures, reconnecting in between.
func (c *Client) transientPolicy(operation string) []retry.Option {
	return []retry.Option{
		retry.WithLimit(retry.DefaultLimit),
		retry.On(IsTransient),
		retry.Between(func(ctx context.Context, _ int, _ error) error {
			return c.Reconnect(ctx)
		}),
		retry.WithLogger(c.logger(), operation),
	}
}

func (c *Client) hasUIDPlus() bool {
	client := c.IMAPClient()
	return client != nil && client.Caps().Has(imap.CapUIDPlus)
}
