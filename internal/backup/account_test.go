package backup

import (
	"context"
	"fmt"
	"testing"

	"github.com/aaronromeo/imapvault/internal/mock"
	"github.com/aaronromeo/imapvault/internal/remote/remotetest"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountBackupAllFolders(t *testing.T) {
	dir := t.TempDir()
	server := remotetest.NewServer()
	server.AddMessage("INBOX", message(1), imap.FlagSeen)
	server.AddMessage("INBOX", message(2))
	server.AddMessage("Archive/2023", message(3))

	backup := NewAccountBackup("personal", server, dir, nil, WithLogger(mock.SetupLogger(t)))
	require.NoError(t, backup.Run(context.Background()))

	folders, err := store.LocalFolders(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Archive/2023", "INBOX"}, folders)

	inbox := store.Open(dir, "INBOX")
	assert.Equal(t, []uint32{1, 2}, inbox.UIDs())
	require.NoError(t, inbox.CheckIntegrity())

	server.AddMessage("INBOX", message(4))
	require.NoError(t, backup.Run(context.Background()))
	assert.Equal(t, []uint32{1, 2, 3}, store.Open(dir, "INBOX").UIDs())
}

func TestAccountBackupSkipsMissingFolders(t *testing.T) {
	dir := t.TempDir()
	server := remotetest.NewServer()
	server.AddMessage("INBOX", message(1))

	backup := NewAccountBackup("work", server, dir, []string{"Gone", "INBOX"}, WithLogger(mock.SetupLogger(t)))
	require.NoError(t, backup.Run(context.Background()))

	folders, err := store.LocalFolders(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX"}, folders)
}

func TestAccountBackupMovesAsideOnUIDValidityChange(t *testing.T) {
	dir := t.TempDir()
	server := remotetest.NewServer()
	old := server.CreateFolder("INBOX")
	server.AddMessage("INBOX", message(1))

	backup := NewAccountBackup("personal", server, dir, []string{"INBOX"}, WithLogger(mock.SetupLogger(t)))
	require.NoError(t, backup.Run(context.Background()))

	current := server.RecreateFolder("INBOX")
	server.AddMessage("INBOX", message(2))
	server.AddMessage("INBOX", message(3))
	require.NoError(t, backup.Run(context.Background()))

	inbox := store.Open(dir, "INBOX")
	validity, _ := inbox.UIDValidity()
	assert.Equal(t, current, validity)
	assert.Equal(t, []uint32{1, 2}, inbox.UIDs())

	moved := store.Open(dir, fmt.Sprintf("INBOX-%d", old))
	validity, _ = moved.UIDValidity()
	assert.Equal(t, old, validity)
	assert.Equal(t, 1, moved.Len())
}

func TestAccountBackupMirrorModePrunes(t *testing.T) {
	dir := t.TempDir()
	server := remotetest.NewServer()
	server.AddMessage("INBOX", message(1))
	drop := server.AddMessage("INBOX", message(2))
	server.AddMessage("INBOX", message(3), imap.FlagFlagged)
	server.AddMessage("Old", message(4))

	opts := []Option{WithLogger(mock.SetupLogger(t)), WithMirrorMode(true), WithRefreshFlags(true)}
	require.NoError(t, NewAccountBackup("personal", server, dir, nil, opts...).Run(context.Background()))

	require.NoError(t, server.Folder("INBOX").DeleteMulti(context.Background(), []uint32{drop}))
	server.SetMessageFlags("INBOX", 1, imap.FlagSeen)
	server.DeleteFolder("Old")
	require.NoError(t, NewAccountBackup("personal", server, dir, nil, opts...).Run(context.Background()))

	folders, err := store.LocalFolders(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX"}, folders)

	inbox := store.Open(dir, "INBOX")
	assert.Equal(t, []uint32{1, 3}, inbox.UIDs())
	require.NoError(t, inbox.CheckIntegrity())
	rec, _ := inbox.Get(1)
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, rec.Flags)
	rec, _ = inbox.Get(3)
	assert.Equal(t, []imap.Flag{imap.FlagFlagged}, rec.Flags)
}

type fakeJob struct {
	name string
	err  error
	ran  bool
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run(context.Context) error {
	j.ran = true
	return j.err
}

func TestRunnerContinuesAfterFailure(t *testing.T) {
	boom := errors.New("login failed")
	first := &fakeJob{name: "personal", err: boom}
	second := &fakeJob{name: "work"}
	third := &fakeJob{name: "shared", err: errors.New("timeout")}

	err := NewRunner(mock.SetupLogger(t)).Run(context.Background(), first, second, third)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "personal: login failed")
	assert.Contains(t, err.Error(), "shared: timeout")
	assert.True(t, second.ran)
	assert.True(t, third.ran)
}

func TestRunnerStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := &fakeJob{name: "personal"}

	err := NewRunner(nil).Run(ctx, job)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, job.ran)
}
