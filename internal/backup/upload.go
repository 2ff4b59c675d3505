package backup

import (
	"context"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/aaronromeo/imapvault/internal/telemetry"
	"github.com/pkg/errors"
)

// Uploader pushes local messages missing from a remote folder and records
// the UIDs the server assigns.
type Uploader struct {
	folder remote.Folder
	store  *store.FolderStore
	opts   options
}

func NewUploader(folder remote.Folder, st *store.FolderStore, opts ...Option) *Uploader {
	return &Uploader{folder: folder, store: st, opts: newOptions(opts)}
}

// Run uploads in local order. A message that fails to upload is logged and
// skipped.
func (u *Uploader) Run(ctx context.Context) (int, error) {
	existing, err := u.folder.UIDs(ctx)
	if err != nil && !errors.Is(err, remote.ErrFolderNotFound) {
		return 0, errors.Wrapf(err, "listing messages in %s", u.folder.Name())
	}
	missing := missingFrom(u.store.UIDs(), existing)
	logger := u.opts.logger.With("folder", u.folder.Name(), "store", u.store.Folder())
	if len(missing) == 0 {
		logger.Debug("nothing to upload")
		return 0, nil
	}
	logger.Info("uploading messages", "count", len(missing))

	uploaded := 0
	assigned := map[uint32]uint32{}
	err = u.store.Each(missing, func(msg store.Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		uid, err := u.folder.Append(ctx, appendMessage(msg))
		if err != nil {
			logger.Error("upload failed, skipping message", "uid", msg.UID, "summary", store.Summarize(msg.Body).String(), "error", err)
			return nil
		}
		uploaded++
		if uid == 0 {
			logger.Warn("server did not report the new uid", "uid", msg.UID)
			return nil
		}
		if uid != msg.UID {
			assigned[msg.UID] = uid
		}
		return nil
	})
	// Assigned uids may swap with local ones not yet rewritten, so they are
	// recorded together.
	if len(assigned) > 0 {
		skipped, remapErr := u.store.RemapUIDs(assigned)
		for _, uid := range skipped {
			logger.Error("new uid is held by another local message, keeping the old one", "uid", uid, "new_uid", assigned[uid])
		}
		if remapErr != nil && err == nil {
			err = errors.Wrap(remapErr, "recording new uids")
		}
	}
	telemetry.Add(ctx, u.opts.counters.Uploaded, uploaded, u.folder.Name())
	logger.Info("upload finished", "uploaded", uploaded, "skipped", len(missing)-uploaded)
	return uploaded, err
}

func appendMessage(msg store.Message) remote.AppendMessage {
	return remote.AppendMessage{
		Body:  msg.Body,
		Flags: remote.WithoutRecent(msg.Flags),
		Date:  msg.Date(),
	}
}
