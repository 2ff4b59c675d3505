package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
)

// IndexVersion is the only index format version that is read back.
const IndexVersion = 3

// Record locates one message in the log.
type Record struct {
	UID    uint32      `json:"uid"`
	Offset int64       `json:"offset"`
	Length int64       `json:"length"`
	Flags  []imap.Flag `json:"flags"`
}

type indexFile struct {
	Version     int      `json:"version"`
	UIDValidity *uint32  `json:"uid_validity"`
	Messages    []Record `json:"messages"`
}

// Index is the JSON metadata file that sits beside a message log.
type Index struct {
	path string

	loaded      bool
	version     int
	uidValidity *uint32
	records     []Record

	savepoint *indexSavepoint
	dirty     bool

	// write persists the serialized index; swapped in tests.
	write func(path string, data []byte) error
}

type indexSavepoint struct {
	uidValidity *uint32
	records     []Record
}

func NewIndex(path string) *Index {
	return &Index{path: path, write: WriteFileAtomic}
}

func (ix *Index) Path() string {
	return ix.path
}

// Exists reports whether the index file is present on disk.
func (ix *Index) Exists() bool {
	_, err := os.Stat(ix.path)
	return err == nil
}

// load reads the file once. Missing, truncated, malformed or
// version-mismatched files all load as an index without data.
func (ix *Index) load() {
	if ix.loaded {
		return
	}
	ix.loaded = true
	ix.version = 0
	ix.uidValidity = nil
	ix.records = nil

	data, err := os.ReadFile(ix.path)
	if err != nil {
		return
	}
	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return
	}
	if file.Version != IndexVersion {
		return
	}
	ix.version = file.Version
	ix.uidValidity = file.UIDValidity
	ix.records = file.Messages
}

// Valid reports whether the file on disk carries the current version and a
// UID validity.
func (ix *Index) Valid() bool {
	if !ix.Exists() {
		return false
	}
	ix.load()
	return ix.version == IndexVersion && ix.uidValidity != nil
}

func (ix *Index) UIDValidity() (uint32, bool) {
	ix.load()
	if ix.uidValidity == nil {
		return 0, false
	}
	return *ix.uidValidity, true
}

func (ix *Index) SetUIDValidity(v uint32) error {
	ix.load()
	ix.uidValidity = &v
	ix.version = IndexVersion
	return ix.save()
}

func (ix *Index) Len() int {
	ix.load()
	return len(ix.records)
}

// Records returns a copy of the records in log order.
func (ix *Index) Records() []Record {
	ix.load()
	return copyRecords(ix.records)
}

func (ix *Index) UIDs() []uint32 {
	ix.load()
	uids := make([]uint32, 0, len(ix.records))
	for _, r := range ix.records {
		uids = append(uids, r.UID)
	}
	return uids
}

func (ix *Index) Get(uid uint32) (Record, bool) {
	ix.load()
	if i := ix.find(uid); i >= 0 {
		return copyRecord(ix.records[i]), true
	}
	return Record{}, false
}

// Append adds a record positioned right after the last one.
func (ix *Index) Append(uid uint32, length int64, flags []imap.Flag) (Record, error) {
	ix.load()
	if ix.uidValidity == nil {
		return Record{}, ErrUIDValidityUnset
	}
	var offset int64
	if n := len(ix.records); n > 0 {
		last := ix.records[n-1]
		offset = last.Offset + last.Length
	}
	rec := Record{UID: uid, Offset: offset, Length: length, Flags: copyFlags(flags)}
	ix.records = append(ix.records, rec)
	if err := ix.save(); err != nil {
		return Record{}, err
	}
	return copyRecord(rec), nil
}

func (ix *Index) UpdateUID(oldUID, newUID uint32) error {
	skipped, err := ix.RemapUIDs(map[uint32]uint32{oldUID: newUID})
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		return errors.Wrapf(ErrUIDConflict, "uid %d", newUID)
	}
	return nil
}

// RemapUIDs rewrites every uid in remap at once, so a batch may swap or
// rotate uids between records. Entries whose new uid would still be held
// by another record afterwards are left out and returned as skipped.
func (ix *Index) RemapUIDs(remap map[uint32]uint32) (skipped []uint32, err error) {
	ix.load()
	pending := make(map[uint32]uint32, len(remap))
	for oldUID, newUID := range remap {
		if ix.find(oldUID) < 0 {
			return nil, errors.Wrapf(ErrUIDNotFound, "uid %d", oldUID)
		}
		if oldUID != newUID {
			pending[oldUID] = newUID
		}
	}

	for {
		holders := make(map[uint32]int, len(ix.records))
		for _, rec := range ix.records {
			if newUID, ok := pending[rec.UID]; ok {
				holders[newUID]++
			} else {
				holders[rec.UID]++
			}
		}
		clashed := false
		for oldUID, newUID := range pending {
			if holders[newUID] > 1 {
				delete(pending, oldUID)
				skipped = append(skipped, oldUID)
				clashed = true
			}
		}
		if !clashed {
			break
		}
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i] < skipped[j] })
	if len(pending) == 0 {
		return skipped, nil
	}

	for i := range ix.records {
		if newUID, ok := pending[ix.records[i].UID]; ok {
			ix.records[i].UID = newUID
		}
	}
	return skipped, ix.save()
}

func (ix *Index) UpdateFlags(uid uint32, flags []imap.Flag) error {
	ix.load()
	i := ix.find(uid)
	if i < 0 {
		return errors.Wrapf(ErrUIDNotFound, "uid %d", uid)
	}
	ix.records[i].Flags = copyFlags(flags)
	return ix.save()
}

// truncate drops every record after the first n.
func (ix *Index) truncate(n int) {
	ix.load()
	if n < len(ix.records) {
		ix.records = ix.records[:n]
	}
}

func (ix *Index) Begin() error {
	if ix.savepoint != nil {
		return ErrNestedTransaction
	}
	ix.load()
	sp := &indexSavepoint{records: copyRecords(ix.records)}
	if ix.uidValidity != nil {
		v := *ix.uidValidity
		sp.uidValidity = &v
	}
	ix.savepoint = sp
	ix.dirty = false
	return nil
}

// Commit writes any change made during the transaction. The transaction
// stays open when the write fails so the caller can roll back.
func (ix *Index) Commit() error {
	if ix.savepoint == nil {
		return ErrNoTransaction
	}
	if ix.dirty {
		if err := ix.persist(); err != nil {
			return err
		}
	}
	ix.savepoint = nil
	ix.dirty = false
	return nil
}

func (ix *Index) Rollback() error {
	if ix.savepoint == nil {
		return ErrNoTransaction
	}
	ix.records = ix.savepoint.records
	ix.uidValidity = ix.savepoint.uidValidity
	ix.savepoint = nil
	ix.dirty = false
	return nil
}

func (ix *Index) InTransaction() bool {
	return ix.savepoint != nil
}

func (ix *Index) Rename(newPath string) error {
	if err := os.MkdirAll(filepath.Dir(newPath), 0o700); err != nil {
		return errors.Wrapf(err, "create directory for %s", newPath)
	}
	if err := renameFile(ix.path, newPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "rename %s", ix.path)
	}
	ix.path = newPath
	return nil
}

// Delete removes the file and forgets the loaded state.
func (ix *Index) Delete() error {
	if err := os.Remove(ix.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %s", ix.path)
	}
	ix.loaded = false
	ix.version = 0
	ix.uidValidity = nil
	ix.records = nil
	return nil
}

func (ix *Index) save() error {
	if ix.savepoint != nil {
		ix.dirty = true
		return nil
	}
	return ix.persist()
}

func (ix *Index) persist() error {
	file := indexFile{
		Version:     IndexVersion,
		UIDValidity: ix.uidValidity,
		Messages:    ix.records,
	}
	if file.Messages == nil {
		file.Messages = []Record{}
	}
	data, err := json.Marshal(file)
	if err != nil {
		return errors.Wrap(err, "encode index")
	}
	if err := ix.write(ix.path, data); err != nil {
		return errors.Wrapf(err, "write index %s", ix.path)
	}
	ix.version = IndexVersion
	return nil
}

func (ix *Index) find(uid uint32) int {
	for i := range ix.records {
		if ix.records[i].UID == uid {
			return i
		}
	}
	return -1
}

// WriteFileAtomic replaces path with data through a temporary file in the
// same directory.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func copyRecords(in []Record) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = copyRecord(r)
	}
	return out
}

func copyRecord(r Record) Record {
	r.Flags = copyFlags(r.Flags)
	return r
}

func copyFlags(in []imap.Flag) []imap.Flag {
	if in == nil {
		return []imap.Flag{}
	}
	out := make([]imap.Flag, len(in))
	copy(out, in)
	return out
}
