package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aaronromeo/imapvault/internal/mock"
	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/remote/remotetest"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

const destinationID = "backup@imap.example.com"

func message(n uint32) string {
	return fmt.Sprintf("From: sender%d@example.com\r\nSubject: message %d\r\nDate: Tue, 03 Jan 2006 10:00:00 +0000\r\n\r\nbody %d\r\n", n, n, n)
}

func sourceStore(t *testing.T, validity uint32, msgs map[uint32][]imap.Flag, order ...uint32) *store.FolderStore {
	t.Helper()
	st := store.Open(t.TempDir(), "INBOX", store.WithLogger(mock.SetupLogger(t)))
	require.NoError(t, st.ForceUIDValidity(validity))
	for _, uid := range order {
		require.NoError(t, st.Append(uid, []byte(message(uid)), msgs[uid]))
	}
	return st
}

func subjects(msgs []remotetest.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, store.Summarize(m.Body).Subject)
	}
	return out
}

func TestMirrorConverges(t *testing.T) {
	server := remotetest.NewServer()
	src := sourceStore(t, 42, map[uint32][]imap.Flag{1: {imap.FlagSeen}, 2: nil}, 1, 2)
	m := New(src, server.Folder("INBOX"), destinationID, WithLogger(mock.SetupLogger(t)))

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 2, res.Appended)
	assert.Zero(t, res.Failed)

	msgs := server.Messages("INBOX")
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"message 1", "message 2"}, subjects(msgs))
	assert.True(t, remote.FlagsEqual([]imap.Flag{imap.FlagSeen}, msgs[0].Flags))
	assert.Empty(t, msgs[1].Flags)

	uidMap := LoadMap(m.MapPath(), destinationID)
	assert.Equal(t, 2, uidMap.Len())

	res, err = m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Len(t, server.Messages("INBOX"), 2)
}

func TestMirrorScenarioTenAndTwenty(t *testing.T) {
	server := remotetest.NewServer()
	server.CreateFolder("INBOX")
	src := sourceStore(t, 7, map[uint32][]imap.Flag{10: {imap.FlagSeen}, 20: {}}, 10, 20)
	m := New(src, server.Folder("INBOX"), destinationID, WithLogger(mock.SetupLogger(t)))

	_, err := m.Run(context.Background())
	require.NoError(t, err)

	msgs := server.Messages("INBOX")
	require.Len(t, msgs, 2)
	uidMap := LoadMap(m.MapPath(), destinationID)
	d1, ok := uidMap.DestinationUID(10)
	require.True(t, ok)
	d2, ok := uidMap.DestinationUID(20)
	require.True(t, ok)
	assert.Equal(t, msgs[0].UID, d1)
	assert.Equal(t, msgs[1].UID, d2)
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, msgs[0].Flags)
	assert.Empty(t, msgs[1].Flags)
}

func TestMirrorResetsWhenValidityChanges(t *testing.T) {
	tests := []struct {
		name   string
		change func(t *testing.T, server *remotetest.Server, src *store.FolderStore)
	}{
		{
			name: "destination recreated",
			change: func(_ *testing.T, server *remotetest.Server, _ *store.FolderStore) {
				server.RecreateFolder("INBOX")
				server.AddMessage("INBOX", "Subject: stray\r\n\r\nstray\r\n")
			},
		},
		{
			name: "source validity changed",
			change: func(t *testing.T, _ *remotetest.Server, src *store.FolderStore) {
				require.NoError(t, src.ForceUIDValidity(43))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := remotetest.NewServer()
			src := sourceStore(t, 42, nil, 1, 2)
			m := New(src, server.Folder("INBOX"), destinationID, WithLogger(mock.SetupLogger(t)))
			_, err := m.Run(context.Background())
			require.NoError(t, err)

			tt.change(t, server, src)

			res, err := m.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, res.Reset)
			assert.Equal(t, 2, res.Appended)
			assert.Equal(t, []string{"message 1", "message 2"}, subjects(server.Messages("INBOX")))

			uidMap := LoadMap(m.MapPath(), destinationID)
			sourceValidity, _ := src.UIDValidity()
			destinationValidity, err := server.Folder("INBOX").UIDValidity(context.Background())
			require.NoError(t, err)
			assert.True(t, uidMap.Matches(sourceValidity, destinationValidity))
			assert.Equal(t, 2, uidMap.Len())
		})
	}
}

func TestMirrorDeletesAndUpdates(t *testing.T) {
	server := remotetest.NewServer()
	src := sourceStore(t, 42, nil, 1, 2, 3)
	m := New(src, server.Folder("INBOX"), destinationID, WithLogger(mock.SetupLogger(t)), WithChunkSize(2))
	_, err := m.Run(context.Background())
	require.NoError(t, err)

	// Dropped from the backup, flagged in the backup, added on the destination.
	require.NoError(t, src.Filter(func(msg store.Message) bool { return msg.UID != 2 }))
	require.NoError(t, src.UpdateFlags(3, []imap.Flag{imap.FlagFlagged}))
	server.AddMessage("INBOX", "Subject: stray\r\n\r\nstray\r\n")

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, 1, res.FlagsUpdated)
	assert.Zero(t, res.Appended)

	msgs := server.Messages("INBOX")
	assert.Equal(t, []string{"message 1", "message 3"}, subjects(msgs))
	assert.Equal(t, []imap.Flag{imap.FlagFlagged}, msgs[1].Flags)
}

func TestMirrorReappendsMessagesDeletedOnDestination(t *testing.T) {
	server := remotetest.NewServer()
	src := sourceStore(t, 42, nil, 1, 2)
	m := New(src, server.Folder("INBOX"), destinationID, WithLogger(mock.SetupLogger(t)))
	_, err := m.Run(context.Background())
	require.NoError(t, err)

	first := server.Messages("INBOX")[0].UID
	require.NoError(t, server.Folder("INBOX").DeleteMulti(context.Background(), []uint32{first}))

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
	assert.Zero(t, res.Deleted)
	assert.ElementsMatch(t, []string{"message 1", "message 2"}, subjects(server.Messages("INBOX")))
}

func TestMirrorSkipsFailedAppends(t *testing.T) {
	server := remotetest.NewServer()
	server.AppendHook = func(_ string, msg remote.AppendMessage) error {
		if store.Summarize(msg.Body).Subject == "message 1" {
			return remote.ErrAppendRejected
		}
		return nil
	}
	src := sourceStore(t, 42, nil, 1, 2)
	m := New(src, server.Folder("INBOX"), destinationID, WithLogger(mock.SetupLogger(t)))

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
	assert.Equal(t, 1, res.Failed)

	server.AppendHook = nil
	res, err = m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
	assert.Len(t, server.Messages("INBOX"), 2)
}

func TestMirrorSavesMapWhenFlagsFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	folder := mock.NewMockFolder(ctrl)
	src := sourceStore(t, 42, nil, 1)
	boom := errors.New("connection reset")

	folder.EXPECT().Name().Return("INBOX").AnyTimes()
	folder.EXPECT().Exists(gomock.Any()).Return(true, nil)
	folder.EXPECT().UIDValidity(gomock.Any()).Return(uint32(9), nil)
	folder.EXPECT().Clear(gomock.Any()).Return(nil)
	folder.EXPECT().UIDs(gomock.Any()).Return([]uint32{}, nil)
	folder.EXPECT().Append(gomock.Any(), gomock.Any()).Return(uint32(5), nil)

	m := New(src, folder, destinationID, WithLogger(mock.SetupLogger(t)))
	_, err := m.Run(context.Background())
	require.NoError(t, err)

	folder.EXPECT().Exists(gomock.Any()).Return(true, nil)
	folder.EXPECT().UIDValidity(gomock.Any()).Return(uint32(9), nil)
	folder.EXPECT().UIDs(gomock.Any()).Return([]uint32{5}, nil)
	folder.EXPECT().FetchMulti(gomock.Any(), []uint32{5}, remote.FetchAttrs{}).Return(nil, boom)

	_, err = m.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	uidMap := LoadMap(m.MapPath(), destinationID)
	dst, ok := uidMap.DestinationUID(1)
	assert.True(t, ok)
	assert.Equal(t, uint32(5), dst)
}

func TestMirrorRequiresSourceValidity(t *testing.T) {
	server := remotetest.NewServer()
	src := store.Open(t.TempDir(), "INBOX")

	_, err := New(src, server.Folder("INBOX"), destinationID).Run(context.Background())
	assert.ErrorIs(t, err, store.ErrUIDValidityUnset)
}

func TestMapKeepsOtherDestinations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "INBOX.mirror")

	a := LoadMap(path, "a@example.com")
	a.Reset(1, 2)
	a.Set(10, 100)
	require.NoError(t, a.Save())

	b := LoadMap(path, "b@example.com")
	assert.Zero(t, b.Len())
	b.Reset(1, 3)
	b.Set(10, 7)
	require.NoError(t, b.Save())

	a = LoadMap(path, "a@example.com")
	assert.True(t, a.Matches(1, 2))
	src, ok := a.SourceUID(100)
	assert.True(t, ok)
	assert.Equal(t, uint32(10), src)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"a@example.com": {"source_uid_validity": 1, "destination_uid_validity": 2, "map": {"10": 100}},
		"b@example.com": {"source_uid_validity": 1, "destination_uid_validity": 3, "map": {"10": 7}}
	}`, string(data))
}

func TestMapUpdates(t *testing.T) {
	m := LoadMap(filepath.Join(t.TempDir(), "missing.mirror"), destinationID)
	m.Reset(1, 1)
	m.Set(1, 11)
	m.Set(2, 12)
	m.Set(1, 13)

	_, ok := m.SourceUID(11)
	assert.False(t, ok)
	src, ok := m.SourceUID(13)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), src)

	m.Forget(12)
	assert.Equal(t, []uint32{1}, m.SourceUIDs())
	m.Forget(99)
	assert.Equal(t, 1, m.Len())
}

func TestLoadMapToleratesMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "INBOX.mirror")
	require.NoError(t, os.WriteFile(path, []byte(`{"broken`), 0o600))

	m := LoadMap(path, destinationID)
	assert.Zero(t, m.Len())
	assert.False(t, m.Matches(1, 1))

	m.Reset(1, 1)
	require.NoError(t, m.Save())
	assert.True(t, LoadMap(path, destinationID).Matches(1, 1))
}
