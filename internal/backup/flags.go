package backup

import (
	"context"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/aaronromeo/imapvault/internal/telemetry"
	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
)

// FlagRefresher copies the server's current flags onto stored messages.
type FlagRefresher struct {
	folder remote.Folder
	store  *store.FolderStore
	opts   options
}

func NewFlagRefresher(folder remote.Folder, st *store.FolderStore, opts ...Option) *FlagRefresher {
	return &FlagRefresher{folder: folder, store: st, opts: newOptions(opts)}
}

// Run returns the number of records whose flags changed. All updates are
// written in one store transaction.
func (r *FlagRefresher) Run(ctx context.Context) (int, error) {
	current := map[uint32][]imap.Flag{}
	for _, chunk := range remote.Chunk(r.store.UIDs(), flagChunkSize) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		messages, err := r.folder.FetchMulti(ctx, chunk, remote.FetchAttrs{})
		if err != nil {
			return 0, errors.Wrapf(err, "fetching flags in %s", r.folder.Name())
		}
		for _, msg := range messages {
			current[msg.UID] = remote.WithoutRecent(msg.Flags)
		}
	}

	changed := 0
	err := r.store.Transaction(func() error {
		for _, rec := range r.store.Records() {
			flags, ok := current[rec.UID]
			if !ok || remote.FlagsEqual(flags, rec.Flags) {
				continue
			}
			if err := r.store.UpdateFlags(rec.UID, flags); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		r.opts.logger.Info("refreshed flags", "folder", r.folder.Name(), "count", changed)
		telemetry.Add(ctx, r.opts.counters.FlagsChanged, changed, r.folder.Name())
	}
	return changed, nil
}
