package remote

import (
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
)

func TestFlagsEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b []imap.Flag
		want bool
	}{
		{name: "both empty", want: true},
		{name: "same order", a: []imap.Flag{imap.FlagSeen, imap.FlagFlagged}, b: []imap.Flag{imap.FlagSeen, imap.FlagFlagged}, want: true},
		{name: "different order", a: []imap.Flag{imap.FlagFlagged, imap.FlagSeen}, b: []imap.Flag{imap.FlagSeen, imap.FlagFlagged}, want: true},
		{name: "system flag case", a: []imap.Flag{`\SEEN`}, b: []imap.Flag{imap.FlagSeen}, want: true},
		{name: "recent ignored", a: []imap.Flag{imap.FlagSeen, FlagRecent}, b: []imap.Flag{imap.FlagSeen}, want: true},
		{name: "keyword case matters", a: []imap.Flag{"$Label"}, b: []imap.Flag{"$label"}, want: false},
		{name: "missing flag", a: []imap.Flag{imap.FlagSeen}, b: []imap.Flag{imap.FlagSeen, imap.FlagDraft}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FlagsEqual(tc.a, tc.b))
		})
	}
}

func TestWithoutRecent(t *testing.T) {
	assert.Equal(t, []imap.Flag{imap.FlagSeen, "$Work"}, WithoutRecent([]imap.Flag{FlagRecent, imap.FlagSeen, `\recent`, "$Work"}))
	assert.Empty(t, WithoutRecent(nil))
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]uint32{{1, 2}, {3, 4}, {5}}, Chunk([]uint32{1, 2, 3, 4, 5}, 2))
	assert.Nil(t, Chunk(nil, 100))
	assert.Equal(t, [][]uint32{{1}, {2}}, Chunk([]uint32{1, 2}, 0))
}
