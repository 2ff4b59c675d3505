package imap

import (
	"context"
	"sort"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/retry"
	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
)

// appendRejectLimit bounds the attempts for appends the server answers
// with NO or BAD.
const appendRejectLimit = 3

// Folder implements remote.Folder on top of a Client.
type Folder struct {
	client *Client
	name   string
}

func (f *Folder) Name() string {
	return f.name
}

func (f *Folder) do(ctx context.Context, operation string, fn func() error) error {
	err := retry.Do(ctx, fn, f.client.transientPolicy(operation)...)
	return translate(err, f.name)
}

func (f *Folder) Exists(ctx context.Context) (bool, error) {
	_, err := f.status(ctx)
	if errors.Is(err, remote.ErrFolderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *Folder) Create(ctx context.Context) error {
	return f.do(ctx, "create", func() error {
		return f.client.CreateMailbox(ctx, f.name)
	})
}

func (f *Folder) status(ctx context.Context) (*imap.StatusData, error) {
	var data *imap.StatusData
	err := f.do(ctx, "status", func() error {
		var err error
		data, err = f.client.MailboxStatus(ctx, f.name)
		return err
	})
	return data, err
}

func (f *Folder) UIDValidity(ctx context.Context) (uint32, error) {
	data, err := f.status(ctx)
	if err != nil {
		return 0, err
	}
	return data.UIDValidity, nil
}

func (f *Folder) UIDs(ctx context.Context) ([]uint32, error) {
	var uids []uint32
	err := f.do(ctx, "search", func() error {
		var err error
		uids, err = f.client.SearchAllUIDs(ctx, f.name)
		return err
	})
	return uids, err
}

func (f *Folder) FetchMulti(ctx context.Context, uids []uint32, attrs remote.FetchAttrs) ([]remote.FetchedMessage, error) {
	var rows []remote.FetchedMessage
	err := f.do(ctx, "fetch", func() error {
		var err error
		rows, err = f.client.FetchMessages(ctx, f.name, uids, attrs)
		return err
	})
	return rows, err
}

// Append uploads msg. Connection failures are retried with a reconnect,
// NO and BAD answers a few times without one. When the server does not
// report the new UID it is looked up among the UIDs assigned since the
// append started.
func (f *Folder) Append(ctx context.Context, msg remote.AppendMessage) (uint32, error) {
	var uidNext uint32
	if !f.client.hasUIDPlus() {
		data, err := f.status(ctx)
		if err != nil {
			return 0, err
		}
		uidNext = uint32(data.UIDNext)
	}

	rejections := 0
	var uid uint32
	err := retry.Do(ctx, func() error {
		var err error
		uid, err = f.client.AppendMessage(ctx, f.name, msg)
		return err
	},
		retry.WithLimit(retry.DefaultLimit),
		retry.On(func(err error) bool {
			if IsRejected(err) {
				rejections++
				return rejections < appendRejectLimit
			}
			return IsTransient(err)
		}),
		retry.Between(func(ctx context.Context, _ int, err error) error {
			if IsTransient(err) {
				return f.client.Reconnect(ctx)
			}
			return nil
		}),
		retry.WithLogger(f.client.logger(), "append"),
	)
	if err != nil {
		if IsRejected(err) {
			return 0, errors.Wrapf(remote.ErrAppendRejected, "folder %q: %v", f.name, err)
		}
		return 0, translate(err, f.name)
	}
	if uid != 0 {
		return uid, nil
	}

	var assigned []uint32
	err = f.do(ctx, "search", func() error {
		var err error
		assigned, err = f.client.SearchUIDsFrom(ctx, f.name, uidNext)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(assigned) == 0 {
		return 0, errors.Errorf("folder %q: appended message UID not found", f.name)
	}
	sort.Slice(assigned, func(i, j int) bool { return assigned[i] > assigned[j] })
	return assigned[0], nil
}

func (f *Folder) SetFlags(ctx context.Context, uids []uint32, flags []imap.Flag) error {
	return f.storeFlags(ctx, uids, imap.StoreFlagsSet, flags)
}

func (f *Folder) AddFlags(ctx context.Context, uids []uint32, flags []imap.Flag) error {
	return f.storeFlags(ctx, uids, imap.StoreFlagsAdd, flags)
}

func (f *Folder) RemoveFlags(ctx context.Context, uids []uint32, flags []imap.Flag) error {
	return f.storeFlags(ctx, uids, imap.StoreFlagsDel, flags)
}

func (f *Folder) storeFlags(ctx context.Context, uids []uint32, op imap.StoreFlagsOp, flags []imap.Flag) error {
	return f.do(ctx, "store", func() error {
		return f.client.StoreFlags(ctx, f.name, uids, op, flags)
	})
}

func (f *Folder) DeleteMulti(ctx context.Context, uids []uint32) error {
	return f.do(ctx, "delete", func() error {
		return f.client.DeleteUIDs(ctx, f.name, uids)
	})
}

func (f *Folder) Clear(ctx context.Context) error {
	return f.do(ctx, "clear", func() error {
		return f.client.ClearMailbox(ctx, f.name)
	})
}

func (f *Folder) Unseen(ctx context.Context, uids []uint32) ([]uint32, error) {
	var unseen []uint32
	err := f.do(ctx, "search", func() error {
		var err error
		unseen, err = f.client.SearchUnseenUIDs(ctx, f.name, uids)
		return err
	})
	return unseen, err
}
