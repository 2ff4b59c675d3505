package mock

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"testing"

	gomock "go.uber.org/mock/gomock"
)

// SetupLogger returns a logger that only outputs if the test fails.
func SetupLogger(t *testing.T) *slog.Logger {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	t.Cleanup(func() {
		if t.Failed() {
			os.Stdout.Write(buf.Bytes()) //nolint:errcheck
		}
	})

	return logger
}

// uidsMatcher matches a []uint32 holding the same UIDs in any order.
type uidsMatcher struct {
	uids []uint32
}

func (m uidsMatcher) Matches(x interface{}) bool {
	got, ok := x.([]uint32)
	if !ok || len(got) != len(m.uids) {
		return false
	}
	a := append([]uint32(nil), got...)
	b := append([]uint32(nil), m.uids...)
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m uidsMatcher) String() string {
	return fmt.Sprintf("has UIDs %v in any order", m.uids)
}

// UIDs returns a matcher for a UID list regardless of order.
func UIDs(uids ...uint32) gomock.Matcher {
	return uidsMatcher{uids: uids}
}
