package store

import (
	"fmt"
)

// ApplyUIDValidity makes the store follow the server's UID validity v.
//
// An unusable pair (see Validate) is discarded first. When the store has
// no validity, v is recorded. When it differs from
// the stored one, the existing files are moved aside under a free
// "{folder}-{old}" (then "-1", "-2", ...) name and an empty store with
// validity v takes the original name. newName and renamed describe that
// move.
func (s *FolderStore) ApplyUIDValidity(v uint32) (newName string, renamed bool, err error) {
	if _, err := s.Validate(); err != nil {
		return "", false, err
	}
	current, ok := s.index.UIDValidity()
	if !ok {
		return "", false, s.initUIDValidity(v)
	}
	if current == v {
		return "", false, nil
	}

	newName, err = s.freeName(current)
	if err != nil {
		return "", false, err
	}
	dst := Open(s.dir, newName)
	if err := s.index.Rename(dst.IndexPath()); err != nil {
		return "", false, err
	}
	if err := s.log.Rename(dst.LogPath()); err != nil {
		return "", false, err
	}
	s.logger.Info("uid validity changed, backup moved aside",
		"folder", s.folder, "renamed_to", newName, "old_uid_validity", current, "uid_validity", v)

	s.reset()
	if err := s.initUIDValidity(v); err != nil {
		return "", false, err
	}
	return newName, true, nil
}

// ForceUIDValidity records v regardless of the current value.
func (s *FolderStore) ForceUIDValidity(v uint32) error {
	return s.initUIDValidity(v)
}

func (s *FolderStore) initUIDValidity(v uint32) error {
	if err := s.index.SetUIDValidity(v); err != nil {
		return err
	}
	return s.log.Touch()
}

func (s *FolderStore) freeName(old uint32) (string, error) {
	base := fmt.Sprintf("%s-%d", s.folder, old)
	candidate := base
	for i := 1; ; i++ {
		ok, err := Open(s.dir, candidate, WithLogger(s.logger)).Validate()
		if err != nil {
			return "", err
		}
		if !ok {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
