package remote

import (
	"strings"

	"github.com/emersion/go-imap/v2"
)

// WithoutRecent drops \Recent from flags.
func WithoutRecent(flags []imap.Flag) []imap.Flag {
	out := make([]imap.Flag, 0, len(flags))
	for _, f := range flags {
		if !strings.EqualFold(string(f), string(FlagRecent)) {
			out = append(out, f)
		}
	}
	return out
}

// FlagsEqual compares two flag lists as sets. System flags compare
// case-insensitively, \Recent is ignored.
func FlagsEqual(a, b []imap.Flag) bool {
	as := flagSet(a)
	bs := flagSet(b)
	if len(as) != len(bs) {
		return false
	}
	for f := range as {
		if _, ok := bs[f]; !ok {
			return false
		}
	}
	return true
}

func flagSet(flags []imap.Flag) map[string]struct{} {
	set := make(map[string]struct{}, len(flags))
	for _, f := range WithoutRecent(flags) {
		key := string(f)
		if strings.HasPrefix(key, `\`) {
			key = strings.ToLower(key)
		}
		set[key] = struct{}{}
	}
	return set
}

// Chunk splits uids into slices of at most size elements.
func Chunk(uids []uint32, size int) [][]uint32 {
	if size <= 0 {
		size = 1
	}
	var chunks [][]uint32
	for len(uids) > 0 {
		n := size
		if n > len(uids) {
			n = len(uids)
		}
		chunks = append(chunks, uids[:n])
		uids = uids[n:]
	}
	return chunks
}
