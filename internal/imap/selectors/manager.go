package selectors

import (
	"context"
	"io"
	"sort"

	"github.com/aaronromeo/imapvault/internal/imap/base"
	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
	"github.com/pkg/errors"
)

type ClientSelectors interface {
	SelectMailbox(ctx context.Context, mailbox string, readOnly bool) (*imap.SelectData, error)
	MailboxStatus(ctx context.Context, mailbox string) (*imap.StatusData, error)
	ListMailboxes(ctx context.Context) ([]string, error)
	FetchMessages(ctx context.Context, mailbox string, uids []uint32, attrs remote.FetchAttrs) ([]remote.FetchedMessage, error)
}

type IMAPSelectorManager struct {
	provider func() *giimapclient.Client
}

func New(provider base.ClientProvider) *IMAPSelectorManager {
	return &IMAPSelectorManager{provider: provider.IMAPClient}
}

// SelectMailbox selects a mailbox and returns its metadata. A read-only
// selection uses EXAMINE.
func (c *IMAPSelectorManager) SelectMailbox(ctx context.Context, mailbox string, readOnly bool) (*imap.SelectData, error) {
	client, err := base.Client(c.provider)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := base.RequireMailbox(mailbox); err != nil {
		return nil, err
	}
	return client.Select(mailbox, &imap.SelectOptions{ReadOnly: readOnly}).Wait()
}

// MailboxStatus returns the UID validity, next UID and message count of a
// mailbox without selecting it.
func (c *IMAPSelectorManager) MailboxStatus(ctx context.Context, mailbox string) (*imap.StatusData, error) {
	client, err := base.Client(c.provider)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := base.RequireMailbox(mailbox); err != nil {
		return nil, err
	}
	return client.Status(mailbox, &imap.StatusOptions{
		NumMessages: true,
		UIDNext:     true,
		UIDValidity: true,
	}).Wait()
}

// ListMailboxes returns every selectable mailbox, sorted by name.
func (c *IMAPSelectorManager) ListMailboxes(ctx context.Context) ([]string, error) {
	client, err := base.Client(c.provider)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(data))
	for _, mbox := range data {
		if !selectable(mbox) {
			continue
		}
		names = append(names, mbox.Mailbox)
	}
	sort.Strings(names)
	return names, nil
}

func selectable(mbox *imap.ListData) bool {
	for _, attr := range mbox.Attrs {
		if attr == imap.MailboxAttrNoSelect || attr == imap.MailboxAttrNonExistent {
			return false
		}
	}
	return true
}

// FetchMessages returns UID, flags and the requested attributes for the
// provided UIDs. Bodies are fetched with BODY.PEEK so \Seen is left alone.
func (c *IMAPSelectorManager) FetchMessages(ctx context.Context, mailbox string, uids []uint32, attrs remote.FetchAttrs) ([]remote.FetchedMessage, error) {
	if len(uids) == 0 {
		return []remote.FetchedMessage{}, nil
	}
	if _, err := c.SelectMailbox(ctx, mailbox, true); err != nil {
		return nil, err
	}
	client, err := base.Client(c.provider)
	if err != nil {
		return nil, err
	}

	fetchOptions := &imap.FetchOptions{
		UID:          true,
		Flags:        true,
		InternalDate: attrs.InternalDate,
	}
	if attrs.Body {
		fetchOptions.BodySection = []*imap.FetchItemBodySection{{Peek: true}}
	}

	fetchCmd := client.Fetch(base.UIDSet(uids), fetchOptions)
	rows := make([]remote.FetchedMessage, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			_ = fetchCmd.Close()
			return nil, err
		}

		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		row := remote.FetchedMessage{Flags: []imap.Flag{}}
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			switch data := item.(type) {
			case giimapclient.FetchItemDataUID:
				row.UID = uint32(data.UID)
			case giimapclient.FetchItemDataFlags:
				row.Flags = append(row.Flags, data.Flags...)
			case giimapclient.FetchItemDataInternalDate:
				row.InternalDate = data.Time
			case giimapclient.FetchItemDataBodySection:
				if data.Literal == nil {
					continue
				}
				body, err := io.ReadAll(data.Literal)
				if err != nil {
					_ = fetchCmd.Close()
					return nil, errors.Wrapf(err, "read body of uid %d", row.UID)
				}
				row.Body = body
			}
		}
		rows = append(rows, row)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, err
	}

	return rows, nil
}
