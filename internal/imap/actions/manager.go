package actions

import (
	"context"
	"strings"

	"github.com/aaronromeo/imapvault/internal/imap/base"
	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
	"github.com/pkg/errors"
)

type Actions interface {
	CreateMailbox(ctx context.Context, mailbox string) error
	AppendMessage(ctx context.Context, mailbox string, msg remote.AppendMessage) (uint32, error)
	StoreFlags(ctx context.Context, mailbox string, uids []uint32, op imap.StoreFlagsOp, flags []imap.Flag) error
	DeleteUIDs(ctx context.Context, mailbox string, uids []uint32) error
	ClearMailbox(ctx context.Context, mailbox string) error
}

type IMAPActionManager struct {
	provider func() *giimapclient.Client
}

func New(provider base.ClientProvider) *IMAPActionManager {
	return &IMAPActionManager{provider: provider.IMAPClient}
}

// CreateMailbox creates a mailbox.
func (c *IMAPActionManager) CreateMailbox(ctx context.Context, mailbox string) error {
	client, err := base.Client(c.provider)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := base.RequireMailbox(mailbox); err != nil {
		return err
	}
	return client.Create(mailbox, nil).Wait()
}

// AppendMessage uploads a message. The returned UID is zero when the server
// does not report it (no UIDPLUS).
func (c *IMAPActionManager) AppendMessage(ctx context.Context, mailbox string, msg remote.AppendMessage) (uint32, error) {
	client, err := base.Client(c.provider)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := base.RequireMailbox(mailbox); err != nil {
		return 0, err
	}

	options := &imap.AppendOptions{
		Flags: remote.WithoutRecent(msg.Flags),
		Time:  msg.Date,
	}
	cmd := client.Append(mailbox, int64(len(msg.Body)), options)
	if _, err := cmd.Write(msg.Body); err != nil {
		_ = cmd.Close()
		return 0, errors.Wrap(err, "write message literal")
	}
	if err := cmd.Close(); err != nil {
		return 0, err
	}
	data, err := cmd.Wait()
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, nil
	}
	return uint32(data.UID), nil
}

// StoreFlags changes the flags of the messages. op selects between
// replacing, adding and removing.
func (c *IMAPActionManager) StoreFlags(ctx context.Context, mailbox string, uids []uint32, op imap.StoreFlagsOp, flags []imap.Flag) error {
	if len(uids) == 0 {
		return nil
	}
	client, err := c.selectMailbox(ctx, mailbox)
	if err != nil {
		return err
	}

	store := imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  remote.WithoutRecent(flags),
	}
	if err := client.Store(base.UIDSet(uids), &store, nil).Close(); err != nil {
		return err
	}
	return ctx.Err()
}

// DeleteUIDs marks messages as deleted and expunges them.
func (c *IMAPActionManager) DeleteUIDs(ctx context.Context, mailbox string, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	client, err := c.selectMailbox(ctx, mailbox)
	if err != nil {
		return err
	}

	uidSet := base.UIDSet(uids)
	store := imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}
	if err := client.Store(uidSet, &store, nil).Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if client.Caps().Has(imap.CapUIDPlus) {
		_, err := client.UIDExpunge(uidSet).Collect()
		return err
	}

	_, err = client.Expunge().Collect()
	return err
}

// ClearMailbox deletes every message in the mailbox.
func (c *IMAPActionManager) ClearMailbox(ctx context.Context, mailbox string) error {
	client, err := base.Client(c.provider)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(mailbox) == "" {
		return errors.New("mailbox is required")
	}

	data, err := client.Select(mailbox, nil).Wait()
	if err != nil {
		return err
	}
	if data.NumMessages == 0 {
		return nil
	}

	var all imap.SeqSet
	all.AddRange(1, 0)
	store := imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}
	if err := client.Store(all, &store, nil).Close(); err != nil {
		return err
	}
	_, err = client.Expunge().Collect()
	return err
}

func (c *IMAPActionManager) selectMailbox(ctx context.Context, mailbox string) (*giimapclient.Client, error) {
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
	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, err
	}
	return client, nil
}
