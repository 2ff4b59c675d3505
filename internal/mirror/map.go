// Package mirror keeps a remote folder identical to a local backup.
package mirror

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/pkg/errors"
)

// MapExt is appended to a store's base path to name its mirror map file.
const MapExt = ".mirror"

type mapEntry struct {
	SourceUIDValidity      uint32            `json:"source_uid_validity"`
	DestinationUIDValidity uint32            `json:"destination_uid_validity"`
	Map                    map[uint32]uint32 `json:"map"`
}

// Map translates source UIDs to destination UIDs for one destination. The
// file holds one entry per destination, so several mirrors of the same
// store can share it.
type Map struct {
	path        string
	destination string
	entry       mapEntry
	reverse     map[uint32]uint32
}

// LoadMap reads the entry for destination from path. A missing or
// unreadable file yields an empty map.
func LoadMap(path, destination string) *Map {
	m := &Map{path: path, destination: destination}
	m.entry.Map = map[uint32]uint32{}
	if entries, err := readEntries(path); err == nil {
		if e, ok := entries[destination]; ok && e.Map != nil {
			m.entry = e
		}
	}
	m.index()
	return m
}

func readEntries(path string) (map[string]mapEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entries := map[string]mapEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Map) index() {
	m.reverse = make(map[uint32]uint32, len(m.entry.Map))
	for src, dst := range m.entry.Map {
		m.reverse[dst] = src
	}
}

func (m *Map) Path() string {
	return m.path
}

// Matches reports whether the map was built for this pair of UID
// validities.
func (m *Map) Matches(sourceValidity, destinationValidity uint32) bool {
	return m.entry.SourceUIDValidity == sourceValidity && m.entry.DestinationUIDValidity == destinationValidity
}

// Reset empties the map and stamps it with a new validity pair.
func (m *Map) Reset(sourceValidity, destinationValidity uint32) {
	m.entry = mapEntry{
		SourceUIDValidity:      sourceValidity,
		DestinationUIDValidity: destinationValidity,
		Map:                    map[uint32]uint32{},
	}
	m.index()
}

func (m *Map) Len() int {
	return len(m.entry.Map)
}

func (m *Map) DestinationUID(source uint32) (uint32, bool) {
	dst, ok := m.entry.Map[source]
	return dst, ok
}

func (m *Map) SourceUID(destination uint32) (uint32, bool) {
	src, ok := m.reverse[destination]
	return src, ok
}

func (m *Map) Set(source, destination uint32) {
	if old, ok := m.entry.Map[source]; ok {
		delete(m.reverse, old)
	}
	m.entry.Map[source] = destination
	m.reverse[destination] = source
}

// Forget drops the mapping of a destination UID.
func (m *Map) Forget(destination uint32) {
	if src, ok := m.reverse[destination]; ok {
		delete(m.entry.Map, src)
		delete(m.reverse, destination)
	}
}

// SourceUIDs returns the mapped source UIDs in ascending order.
func (m *Map) SourceUIDs() []uint32 {
	out := make([]uint32, 0, len(m.entry.Map))
	for src := range m.entry.Map {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Save writes the entry back, keeping the entries of other destinations.
func (m *Map) Save() error {
	entries, err := readEntries(m.path)
	if err != nil {
		entries = map[string]mapEntry{}
	}
	entries[m.destination] = m.entry
	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encode mirror map")
	}
	return errors.Wrapf(store.WriteFileAtomic(m.path, data), "write mirror map %s", m.path)
}
