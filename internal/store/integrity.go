package store

import (
	"github.com/pkg/errors"
)

// CheckIntegrity verifies that the index and the message log agree. Checks
// run in a fixed order and the first failure is returned.
func (s *FolderStore) CheckIntegrity() error {
	if !s.index.Exists() {
		return errors.Wrapf(ErrMissingIndex, "folder %q: %s", s.folder, s.index.Path())
	}
	length, exists, err := s.log.Length()
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(ErrMissingLog, "folder %q: %s", s.folder, s.log.Path())
	}

	records := s.index.Records()
	if len(records) == 0 {
		if length > 0 {
			return errors.Wrapf(ErrEmptyIndexNonEmptyLog, "folder %q: %s has %d bytes", s.folder, s.log.Path(), length)
		}
		return nil
	}

	var expected int64
	for i, rec := range records {
		if rec.Offset != expected || rec.Length <= 0 {
			return errors.Wrapf(ErrOffsetsOutOfOrder, "folder %q: %s: record %d (uid %d) at offset %d, expected %d",
				s.folder, s.index.Path(), i, rec.UID, rec.Offset, expected)
		}
		expected = rec.Offset + rec.Length
	}

	if length < expected {
		return errors.Wrapf(ErrLogShorterThanExpected, "folder %q: %s is %d bytes, expected %d",
			s.folder, s.log.Path(), length, expected)
	}
	if length > expected {
		return errors.Wrapf(ErrLogLongerThanExpected, "folder %q: %s is %d bytes, expected %d",
			s.folder, s.log.Path(), length, expected)
	}

	for _, rec := range records {
		head, err := s.log.Read(rec.Offset, int64(len(Sentinel)))
		if err != nil || string(head) != Sentinel {
			return &MessageOffsetError{
				Folder: s.folder,
				Path:   s.log.Path(),
				UID:    rec.UID,
				Offset: rec.Offset,
			}
		}
	}
	return nil
}
