package backup

import (
	"context"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/aaronromeo/imapvault/internal/telemetry"
	"github.com/pkg/errors"
)

// Migrator pushes every local message to a destination folder, usually on
// another server. Local UIDs are left untouched.
type Migrator struct {
	store  *store.FolderStore
	folder remote.Folder
	opts   options
}

func NewMigrator(st *store.FolderStore, folder remote.Folder, opts ...Option) *Migrator {
	return &Migrator{store: st, folder: folder, opts: newOptions(opts)}
}

func (m *Migrator) Run(ctx context.Context) (int, error) {
	name := m.folder.Name()
	logger := m.opts.logger.With("folder", name, "store", m.store.Folder())

	uids, err := m.folder.UIDs(ctx)
	switch {
	case errors.Is(err, remote.ErrFolderNotFound):
		if err := m.folder.Create(ctx); err != nil {
			return 0, errors.Wrapf(err, "creating %s", name)
		}
	case err != nil:
		return 0, errors.Wrapf(err, "listing messages in %s", name)
	}
	if len(uids) > 0 {
		if !m.opts.reset {
			return 0, errors.Wrapf(ErrDestinationNotEmpty, "%s holds %d messages", name, len(uids))
		}
		logger.Warn("clearing destination folder", "messages", len(uids))
		if err := m.folder.Clear(ctx); err != nil {
			return 0, errors.Wrapf(err, "clearing %s", name)
		}
	}

	migrated := 0
	err = m.store.Each(nil, func(msg store.Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := m.folder.Append(ctx, appendMessage(msg)); err != nil {
			logger.Error("append failed, skipping message", "uid", msg.UID, "summary", store.Summarize(msg.Body).String(), "error", err)
			return nil
		}
		migrated++
		return nil
	})
	telemetry.Add(ctx, m.opts.counters.Uploaded, migrated, name)
	logger.Info("migration finished", "migrated", migrated, "total", m.store.Len())
	return migrated, err
}
