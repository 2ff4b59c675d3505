package store

import (
	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
)

// Append stores body under uid. A uid that is already stored is skipped.
// Outside a transaction the append is its own transaction and is on disk
// when Append returns.
func (s *FolderStore) Append(uid uint32, body []byte, flags []imap.Flag) error {
	if _, ok := s.index.UIDValidity(); !ok {
		return errors.Wrapf(ErrUIDValidityUnset, "folder %q", s.folder)
	}
	if _, found := s.index.Get(uid); found {
		s.logger.Info("message already downloaded - skipping", "folder", s.folder, "uid", uid)
		return nil
	}

	summary := Summarize(body)
	framed := Frame(body, summary)
	if s.InTransaction() {
		return s.appendFramed(uid, framed, flags, summary)
	}
	return s.Transaction(func() error {
		return s.appendFramed(uid, framed, flags, summary)
	})
}

// appendFramed writes an already framed message to the log and then the
// index. A failure or panic between the two writes undoes both.
func (s *FolderStore) appendFramed(uid uint32, framed []byte, flags []imap.Flag, summary Summary) error {
	initial, _, err := s.log.Length()
	if err != nil {
		return err
	}
	count := s.index.Len()

	defer func() {
		if r := recover(); r != nil {
			s.undoAppend(initial, count)
			panic(r)
		}
	}()

	if err := s.log.Append(framed); err != nil {
		s.undoAppend(initial, count)
		return errors.Wrapf(err, "folder %q: uid %d %s", s.folder, uid, summary)
	}
	if _, err := s.index.Append(uid, int64(len(framed)), flags); err != nil {
		s.undoAppend(initial, count)
		return errors.Wrapf(err, "folder %q: uid %d %s", s.folder, uid, summary)
	}
	return nil
}

func (s *FolderStore) undoAppend(logLength int64, records int) {
	s.index.truncate(records)
	if !s.log.Exists() {
		return
	}
	if err := s.log.Rewind(logLength); err != nil {
		s.logger.Error("message log rewind failed", "folder", s.folder, "path", s.log.Path(), "error", err)
	}
}
