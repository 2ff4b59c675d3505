package store

import (
	"log/slog"
	"path/filepath"

	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
)

const (
	IndexExt = ".imap"
	LogExt   = ".mbox"
)

type Option func(*FolderStore)

func WithLogger(logger *slog.Logger) Option {
	return func(s *FolderStore) {
		s.logger = logger
	}
}

// FolderStore is the local backup of a single remote folder: a message log
// plus its metadata index, both named after the folder under dir.
type FolderStore struct {
	dir    string
	folder string
	logger *slog.Logger

	log   *MessageLog
	index *Index

	validated bool
}

// Open returns the store for folder under dir. Nothing is read until the
// store is used.
func Open(dir, folder string, opts ...Option) *FolderStore {
	s := &FolderStore{
		dir:    dir,
		folder: folder,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

func (s *FolderStore) reset() {
	base := s.BasePath()
	s.log = NewMessageLog(base + LogExt)
	s.index = NewIndex(base + IndexExt)
	s.validated = false
}

func (s *FolderStore) Dir() string {
	return s.dir
}

func (s *FolderStore) Folder() string {
	return s.folder
}

// BasePath is the folder path without the file extension.
func (s *FolderStore) BasePath() string {
	return filepath.Join(s.dir, filepath.FromSlash(s.folder))
}

func (s *FolderStore) IndexPath() string {
	return s.index.Path()
}

func (s *FolderStore) LogPath() string {
	return s.log.Path()
}

func (s *FolderStore) Logger() *slog.Logger {
	return s.logger
}

// Validate reports whether both files exist and the index is usable. An
// unusable pair is deleted.
func (s *FolderStore) Validate() (bool, error) {
	if s.validated {
		return true, nil
	}
	if s.index.Valid() && s.log.Exists() {
		s.validated = true
		return true, nil
	}
	if err := s.Delete(); err != nil {
		return false, err
	}
	return false, nil
}

func (s *FolderStore) UIDValidity() (uint32, bool) {
	return s.index.UIDValidity()
}

func (s *FolderStore) UIDs() []uint32 {
	return s.index.UIDs()
}

func (s *FolderStore) Records() []Record {
	return s.index.Records()
}

func (s *FolderStore) Len() int {
	return s.index.Len()
}

func (s *FolderStore) Get(uid uint32) (Record, bool) {
	return s.index.Get(uid)
}

// Message returns the stored message for uid.
func (s *FolderStore) Message(uid uint32) (Message, bool, error) {
	rec, ok := s.index.Get(uid)
	if !ok {
		return Message{}, false, nil
	}
	msg, err := s.read(rec)
	if err != nil {
		return Message{}, true, err
	}
	return msg, true, nil
}

// Each calls fn for every stored message whose uid is in uids, in log
// order. A nil uids visits every message.
func (s *FolderStore) Each(uids []uint32, fn func(Message) error) error {
	var wanted map[uint32]struct{}
	if uids != nil {
		wanted = make(map[uint32]struct{}, len(uids))
		for _, uid := range uids {
			wanted[uid] = struct{}{}
		}
	}
	for _, rec := range s.index.Records() {
		if wanted != nil {
			if _, ok := wanted[rec.UID]; !ok {
				continue
			}
		}
		msg, err := s.read(rec)
		if err != nil {
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *FolderStore) read(rec Record) (Message, error) {
	raw, err := s.log.Read(rec.Offset, rec.Length)
	if err != nil {
		return Message{}, errors.Wrapf(err, "folder %q: uid %d", s.folder, rec.UID)
	}
	body, err := Unframe(raw)
	if err != nil {
		return Message{}, errors.Wrapf(err, "folder %q: uid %d", s.folder, rec.UID)
	}
	return Message{Record: rec, Body: body}, nil
}

// UpdateUID rewrites the uid of a stored message, typically after an
// upload assigned it a new one.
func (s *FolderStore) UpdateUID(oldUID, newUID uint32) error {
	return errors.Wrapf(s.index.UpdateUID(oldUID, newUID), "folder %q", s.folder)
}

// RemapUIDs records several uid changes as one batch. See Index.RemapUIDs.
func (s *FolderStore) RemapUIDs(remap map[uint32]uint32) ([]uint32, error) {
	skipped, err := s.index.RemapUIDs(remap)
	return skipped, errors.Wrapf(err, "folder %q", s.folder)
}

func (s *FolderStore) UpdateFlags(uid uint32, flags []imap.Flag) error {
	return errors.Wrapf(s.index.UpdateFlags(uid, flags), "folder %q", s.folder)
}

func (s *FolderStore) InTransaction() bool {
	return s.index.InTransaction() || s.log.InTransaction()
}

// Transaction runs fn with index writes deferred until it returns. Any
// error or panic from fn restores both files to their state at entry.
func (s *FolderStore) Transaction(fn func() error) error {
	if s.InTransaction() {
		return ErrNestedTransaction
	}
	if err := s.index.Begin(); err != nil {
		return err
	}
	if err := s.log.Begin(); err != nil {
		_ = s.index.Rollback()
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			s.rollback()
			panic(r)
		}
	}()

	if err := fn(); err != nil {
		s.rollback()
		return err
	}
	if err := s.index.Commit(); err != nil {
		s.rollback()
		return errors.Wrapf(err, "folder %q: commit", s.folder)
	}
	s.log.Commit()
	return nil
}

func (s *FolderStore) rollback() {
	if err := s.log.Rollback(); err != nil && !errors.Is(err, ErrNoTransaction) {
		s.logger.Error("message log rollback failed", "folder", s.folder, "path", s.log.Path(), "error", err)
	}
	if err := s.index.Rollback(); err != nil && !errors.Is(err, ErrNoTransaction) {
		s.logger.Error("index rollback failed", "folder", s.folder, "path", s.index.Path(), "error", err)
	}
}

// Rename moves both files so the store lives under folder.
func (s *FolderStore) Rename(folder string) error {
	dst := Open(s.dir, folder)
	if err := s.index.Rename(dst.IndexPath()); err != nil {
		return err
	}
	if err := s.log.Rename(dst.LogPath()); err != nil {
		return err
	}
	s.folder = folder
	return nil
}

// Delete removes both files.
func (s *FolderStore) Delete() error {
	if err := s.index.Delete(); err != nil {
		return err
	}
	if err := s.log.Delete(); err != nil {
		return err
	}
	s.validated = false
	return nil
}
