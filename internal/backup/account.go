package backup

import (
	"context"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/aaronromeo/imapvault/internal/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AccountBackup backs up the folders of one account into dir.
type AccountBackup struct {
	name    string
	account remote.Account
	dir     string
	folders []string
	opts    options
}

// NewAccountBackup backs up folders, or every folder on the server when
// folders is empty.
func NewAccountBackup(name string, account remote.Account, dir string, folders []string, opts ...Option) *AccountBackup {
	return &AccountBackup{
		name:    name,
		account: account,
		dir:     dir,
		folders: folders,
		opts:    newOptions(opts),
	}
}

func (b *AccountBackup) Name() string {
	return b.name
}

func (b *AccountBackup) Run(ctx context.Context) error {
	ctx, span := telemetry.Tracer().Start(ctx, "backup.account",
		trace.WithAttributes(attribute.String("account", b.name)))
	defer span.End()

	err := b.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (b *AccountBackup) run(ctx context.Context) error {
	logger := b.opts.logger.With("account", b.name)

	folders := b.folders
	var serverFolders []string
	if len(folders) == 0 || b.opts.mirror {
		listed, err := b.account.ListFolders(ctx)
		if err != nil {
			return errors.Wrap(err, "listing folders")
		}
		serverFolders = listed
		if len(folders) == 0 {
			folders = listed
		}
	}

	for _, name := range folders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.backupFolder(ctx, name); err != nil {
			return errors.Wrapf(err, "backing up %s", name)
		}
	}

	if b.opts.mirror {
		if err := b.pruneFolders(serverFolders); err != nil {
			return err
		}
	}
	logger.Info("account backup finished", "folders", len(folders))
	return nil
}

func (b *AccountBackup) backupFolder(ctx context.Context, name string) error {
	ctx, span := telemetry.Tracer().Start(ctx, "backup.folder",
		trace.WithAttributes(attribute.String("folder", name)))
	defer span.End()

	logger := b.opts.logger.With("account", b.name, "folder", name)
	folder := b.account.Folder(name)

	validity, err := folder.UIDValidity(ctx)
	if errors.Is(err, remote.ErrFolderNotFound) {
		logger.Warn("folder not found on server, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	st := store.Open(b.dir, name, store.WithLogger(logger))
	if newName, renamed, err := st.ApplyUIDValidity(validity); err != nil {
		return err
	} else if renamed {
		logger.Warn("uid validity changed, downloading folder again", "previous_backup", newName)
	}

	opts := []Option{
		WithLogger(logger),
		WithCounters(b.opts.counters),
		WithBatchSize(b.opts.batchSize),
		WithResetSeen(b.opts.resetSeen),
		WithReconnect(b.opts.reconnect),
	}
	downloaded, err := NewDownloader(folder, st, opts...).Run(ctx)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("downloaded", downloaded))

	if b.opts.refreshFlags {
		if _, err := NewFlagRefresher(folder, st, opts...).Run(ctx); err != nil {
			return err
		}
	}
	if b.opts.mirror {
		return b.pruneMessages(ctx, folder, st)
	}
	return nil
}

// pruneMessages drops stored messages that are no longer on the server.
func (b *AccountBackup) pruneMessages(ctx context.Context, folder remote.Folder, st *store.FolderStore) error {
	remoteUIDs, err := folder.UIDs(ctx)
	if err != nil {
		return errors.Wrapf(err, "listing messages in %s", folder.Name())
	}
	gone := missingFrom(st.UIDs(), remoteUIDs)
	if len(gone) == 0 {
		return nil
	}
	present := toSet(remoteUIDs)
	b.opts.logger.Info("removing messages deleted on the server", "account", b.name, "folder", folder.Name(), "count", len(gone))
	return st.Filter(func(msg store.Message) bool {
		_, ok := present[msg.UID]
		return ok
	})
}

// pruneFolders deletes local stores whose folder is gone from the server.
func (b *AccountBackup) pruneFolders(serverFolders []string) error {
	local, err := store.LocalFolders(b.dir)
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(serverFolders))
	for _, name := range serverFolders {
		present[name] = struct{}{}
	}
	for _, name := range local {
		if _, ok := present[name]; ok {
			continue
		}
		b.opts.logger.Info("removing folder deleted on the server", "account", b.name, "folder", name)
		if err := store.Open(b.dir, name, store.WithLogger(b.opts.logger)).Delete(); err != nil {
			return err
		}
	}
	return nil
}
