package backup

import (
	"context"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/retry"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/aaronromeo/imapvault/internal/telemetry"
	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
)

// Downloader copies messages that exist on the server but not in the
// local store.
type Downloader struct {
	folder remote.Folder
	store  *store.FolderStore
	opts   options
}

func NewDownloader(folder remote.Folder, st *store.FolderStore, opts ...Option) *Downloader {
	return &Downloader{folder: folder, store: st, opts: newOptions(opts)}
}

// Run downloads every missing message, oldest UID first, and returns how
// many were stored. A batch that cannot be fetched is retried one message
// at a time; a message that still fails is logged and skipped.
func (d *Downloader) Run(ctx context.Context) (int, error) {
	logger := d.opts.logger.With("folder", d.folder.Name())

	remoteUIDs, err := d.folder.UIDs(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "listing messages in %s", d.folder.Name())
	}
	missing := ascending(missingFrom(remoteUIDs, d.store.UIDs()))
	if len(missing) == 0 {
		logger.Debug("no new messages")
		return 0, nil
	}
	logger.Info("downloading messages", "count", len(missing), "batch_size", d.opts.batchSize)

	var unseen map[uint32]struct{}
	if d.opts.resetSeen {
		before, err := d.unseen(ctx, missing)
		if err != nil {
			return 0, err
		}
		unseen = toSet(before)
	}

	downloaded := 0
	for _, batch := range remote.Chunk(missing, d.opts.batchSize) {
		if err := ctx.Err(); err != nil {
			return downloaded, err
		}
		n, err := d.downloadBatch(ctx, batch, unseen)
		downloaded += n
		if err != nil {
			return downloaded, err
		}
	}

	if d.opts.resetSeen {
		if err := d.restoreUnseen(ctx, missing, unseen); err != nil {
			return downloaded, err
		}
	}

	telemetry.Add(ctx, d.opts.counters.Downloaded, downloaded, d.folder.Name())
	logger.Info("download finished", "downloaded", downloaded, "skipped", len(missing)-downloaded)
	return downloaded, nil
}

func (d *Downloader) downloadBatch(ctx context.Context, batch []uint32, unseen map[uint32]struct{}) (int, error) {
	messages, err := d.fetch(ctx, batch)
	if err == nil {
		return d.save(messages, unseen), nil
	}
	if fatal(ctx, err) {
		return 0, err
	}

	logger := d.opts.logger.With("folder", d.folder.Name())
	if len(batch) > 1 {
		logger.Warn("batch fetch failed, fetching one at a time", "uids", batch, "error", err)
	}
	saved := 0
	for _, uid := range batch {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		messages, err := d.fetch(ctx, []uint32{uid})
		if err != nil {
			if fatal(ctx, err) {
				return saved, err
			}
			logger.Error("fetch failed, skipping message", "uid", uid, "error", err)
			continue
		}
		saved += d.save(messages, unseen)
	}
	return saved, nil
}

// fetch reconnects and repeats the request when the session has expired.
func (d *Downloader) fetch(ctx context.Context, uids []uint32) ([]remote.FetchedMessage, error) {
	attrs := remote.FetchAttrs{Body: true, InternalDate: true}
	opts := []retry.Option{
		retry.WithLimit(1),
		retry.WithLogger(d.opts.logger, "fetch"),
	}
	if d.opts.reconnect != nil {
		opts = append(opts,
			retry.WithLimit(sessionRetries),
			retry.On(func(err error) bool { return errors.Is(err, remote.ErrSessionExpired) }),
			retry.Between(func(ctx context.Context, _ int, _ error) error { return d.opts.reconnect(ctx) }),
		)
	}
	return retry.Value(ctx, func() ([]remote.FetchedMessage, error) {
		return d.folder.FetchMulti(ctx, uids, attrs)
	}, opts...)
}

func (d *Downloader) save(messages []remote.FetchedMessage, unseen map[uint32]struct{}) int {
	logger := d.opts.logger.With("folder", d.folder.Name())
	saved := 0
	for _, msg := range messages {
		if msg.UID == 0 || msg.Body == nil {
			logger.Warn("server returned an incomplete message, skipping", "uid", msg.UID, "has_body", msg.Body != nil)
			continue
		}
		flags := remote.WithoutRecent(msg.Flags)
		if _, ok := unseen[msg.UID]; ok {
			flags = store.WithoutFlag(flags, imap.FlagSeen)
		}
		if err := d.store.Append(msg.UID, msg.Body, flags); err != nil {
			logger.Error("storing message failed, skipping", "uid", msg.UID, "error", err)
			continue
		}
		saved++
	}
	return saved
}

func (d *Downloader) unseen(ctx context.Context, uids []uint32) ([]uint32, error) {
	out, err := d.folder.Unseen(ctx, uids)
	return out, errors.Wrapf(err, "reading unseen messages in %s", d.folder.Name())
}

// restoreUnseen clears \Seen on messages that were unseen before the
// download and are seen now.
func (d *Downloader) restoreUnseen(ctx context.Context, uids []uint32, before map[uint32]struct{}) error {
	if len(before) == 0 {
		return nil
	}
	after, err := d.unseen(ctx, uids)
	if err != nil {
		return err
	}
	still := toSet(after)
	var marked []uint32
	for _, uid := range uids {
		_, wasUnseen := before[uid]
		_, isUnseen := still[uid]
		if wasUnseen && !isUnseen {
			marked = append(marked, uid)
		}
	}
	if len(marked) == 0 {
		return nil
	}
	d.opts.logger.Info("resetting seen flags", "folder", d.folder.Name(), "count", len(marked))
	return errors.Wrapf(d.folder.RemoveFlags(ctx, marked, []imap.Flag{imap.FlagSeen}),
		"resetting seen flags in %s", d.folder.Name())
}

// fatal reports errors that end the download instead of being skipped.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, remote.ErrSessionExpired)
}

func toSet(uids []uint32) map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(uids))
	for _, uid := range uids {
		set[uid] = struct{}{}
	}
	return set
}
