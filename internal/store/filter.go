package store

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Filter rewrites the store keeping only the messages for which keep
// returns true. The new files are built under a temporary name; the
// originals are moved aside until the new ones are in place.
func (s *FolderStore) Filter(keep func(Message) bool) error {
	if s.InTransaction() {
		return ErrNestedTransaction
	}
	v, ok := s.index.UIDValidity()
	if !ok {
		return errors.Wrapf(ErrUIDValidityUnset, "folder %q", s.folder)
	}

	tmp := Open(s.dir, s.folder+"-"+uuid.NewString(), WithLogger(s.logger))
	if err := tmp.ForceUIDValidity(v); err != nil {
		return err
	}

	kept, dropped := 0, 0
	err := tmp.Transaction(func() error {
		for _, rec := range s.index.Records() {
			raw, err := s.log.Read(rec.Offset, rec.Length)
			if err != nil {
				return errors.Wrapf(err, "folder %q: uid %d", s.folder, rec.UID)
			}
			body, err := Unframe(raw)
			if err != nil {
				return errors.Wrapf(err, "folder %q: uid %d", s.folder, rec.UID)
			}
			if !keep(Message{Record: rec, Body: body}) {
				dropped++
				continue
			}
			if err := tmp.appendFramed(rec.UID, raw, rec.Flags, Summarize(body)); err != nil {
				return err
			}
			kept++
		}
		return nil
	})
	if err != nil {
		_ = tmp.Delete()
		return err
	}

	old := Open(s.dir, s.folder, WithLogger(s.logger))
	if err := old.Rename(s.folder + "-" + uuid.NewString()); err != nil {
		_ = tmp.Delete()
		return err
	}
	if err := tmp.Rename(s.folder); err != nil {
		if undo := old.Rename(s.folder); undo != nil {
			s.logger.Error("restoring folder after failed filter", "folder", s.folder, "kept_at", old.Folder(), "error", undo)
		}
		return err
	}
	if err := old.Delete(); err != nil {
		s.logger.Warn("removing replaced folder files failed", "folder", s.folder, "path", old.BasePath(), "error", err)
	}
	s.reset()
	s.logger.Debug("folder filtered", "folder", s.folder, "kept", kept, "dropped", dropped)
	return nil
}
