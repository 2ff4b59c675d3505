package backup

import (
	"context"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/pkg/errors"
)

// Restorer uploads a local folder store back to an account.
type Restorer struct {
	account remote.Account
	store   *store.FolderStore
	opts    options
}

func NewRestorer(account remote.Account, st *store.FolderStore, opts ...Option) *Restorer {
	return &Restorer{account: account, store: st, opts: newOptions(opts)}
}

// Run restores into the folder of the same name. When that folder already
// holds messages under a different UID validity, the local store is moved
// aside first and restored into a new folder named after the move.
// It returns the name of the remote folder that received the messages.
func (r *Restorer) Run(ctx context.Context) (string, int, error) {
	name := r.store.Folder()
	dest := r.account.Folder(name)
	logger := r.opts.logger.With("folder", name)

	uids, err := dest.UIDs(ctx)
	switch {
	case errors.Is(err, remote.ErrFolderNotFound):
		if err := dest.Create(ctx); err != nil {
			return "", 0, errors.Wrapf(err, "creating %s", name)
		}
	case err != nil:
		return "", 0, errors.Wrapf(err, "listing messages in %s", name)
	}

	if len(uids) == 0 {
		if err := r.adopt(ctx, dest, r.store); err != nil {
			return "", 0, err
		}
		n, err := NewUploader(dest, r.store, r.with()...).Run(ctx)
		return name, n, err
	}

	validity, err := dest.UIDValidity(ctx)
	if err != nil {
		return "", 0, errors.Wrapf(err, "reading uid validity of %s", name)
	}
	newName, renamed, err := r.store.ApplyUIDValidity(validity)
	if err != nil {
		return "", 0, err
	}
	if !renamed {
		n, err := NewUploader(dest, r.store, r.with()...).Run(ctx)
		return name, n, err
	}

	logger.Info("destination holds other messages, restoring into a new folder", "restore_to", newName)
	moved := store.Open(r.store.Dir(), newName, store.WithLogger(r.opts.logger))
	target := r.account.Folder(newName)
	if err := target.Create(ctx); err != nil {
		return "", 0, errors.Wrapf(err, "creating %s", newName)
	}
	if err := r.adopt(ctx, target, moved); err != nil {
		return "", 0, err
	}
	n, err := NewUploader(target, moved, r.with()...).Run(ctx)
	return newName, n, err
}

// adopt stamps st with the UID validity of a freshly created folder.
func (r *Restorer) adopt(ctx context.Context, folder remote.Folder, st *store.FolderStore) error {
	validity, err := folder.UIDValidity(ctx)
	if err != nil {
		return errors.Wrapf(err, "reading uid validity of %s", folder.Name())
	}
	return st.ForceUIDValidity(validity)
}

func (r *Restorer) with() []Option {
	return []Option{WithLogger(r.opts.logger), WithCounters(r.opts.counters)}
}
