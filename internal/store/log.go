package store

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// MessageLog is the append-only file holding the framed message bodies of
// one folder.
// renameFile moves store files. Tests replace it to simulate failures.
var renameFile = os.Rename

type MessageLog struct {
	path string

	savepoint *logSavepoint
}

type logSavepoint struct {
	length  int64
	existed bool
}

func NewMessageLog(path string) *MessageLog {
	return &MessageLog{path: path}
}

func (l *MessageLog) Path() string {
	return l.path
}

func (l *MessageLog) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Length returns the size of the log. The second value is false when the
// file does not exist.
func (l *MessageLog) Length() (int64, bool, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, errors.Wrapf(err, "stat %s", l.path)
	}
	return info.Size(), true, nil
}

// Append writes data at the end of the log, creating it if needed.
func (l *MessageLog) Append(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return errors.Wrapf(err, "create directory for %s", l.path)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrapf(err, "open %s", l.path)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", l.path)
	}
	return errors.Wrapf(f.Close(), "close %s", l.path)
}

// Read returns length bytes starting at offset.
func (l *MessageLog) Read(offset, length int64) ([]byte, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", l.path)
	}
	defer f.Close()

	buf := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(f, offset, length), buf); err != nil {
		return nil, errors.Wrapf(err, "read %d bytes at %d from %s", length, offset, l.path)
	}
	return buf, nil
}

// Rewind truncates the log to length bytes.
func (l *MessageLog) Rewind(length int64) error {
	return errors.Wrapf(os.Truncate(l.path, length), "truncate %s", l.path)
}

// Touch creates the log when missing and updates its modification time.
func (l *MessageLog) Touch() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return errors.Wrapf(err, "create directory for %s", l.path)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrapf(err, "touch %s", l.path)
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return errors.Wrapf(os.Chtimes(l.path, now, now), "touch %s", l.path)
}

func (l *MessageLog) Rename(newPath string) error {
	if err := os.MkdirAll(filepath.Dir(newPath), 0o700); err != nil {
		return errors.Wrapf(err, "create directory for %s", newPath)
	}
	if err := renameFile(l.path, newPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "rename %s", l.path)
	}
	l.path = newPath
	return nil
}

func (l *MessageLog) Delete() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %s", l.path)
	}
	return nil
}

// Begin records the current length so that Rollback can restore it.
func (l *MessageLog) Begin() error {
	if l.savepoint != nil {
		return ErrNestedTransaction
	}
	length, existed, err := l.Length()
	if err != nil {
		return err
	}
	l.savepoint = &logSavepoint{length: length, existed: existed}
	return nil
}

func (l *MessageLog) Commit() {
	l.savepoint = nil
}

// Rollback discards everything appended since Begin.
func (l *MessageLog) Rollback() error {
	if l.savepoint == nil {
		return ErrNoTransaction
	}
	sp := l.savepoint
	l.savepoint = nil

	if !sp.existed {
		return l.Delete()
	}
	if !l.Exists() {
		return nil
	}
	return l.Rewind(sp.length)
}

func (l *MessageLog) InTransaction() bool {
	return l.savepoint != nil
}
