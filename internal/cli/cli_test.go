package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aaronromeo/imapvault/internal/archive"
	"github.com/aaronromeo/imapvault/internal/config"
	"github.com/aaronromeo/imapvault/internal/remote/remotetest"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccount struct {
	*remotetest.Server
}

func (fakeAccount) Reconnect(context.Context) error { return nil }

func (fakeAccount) Close() error { return nil }

type harness struct {
	configPath string
	backupDir  string
	servers    map[string]*remotetest.Server
}

func newHarness(t *testing.T, extra string) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		configPath: filepath.Join(dir, "config.yaml"),
		backupDir:  filepath.Join(dir, "backups"),
		servers: map[string]*remotetest.Server{
			"personal": remotetest.NewServer(),
			"offsite":  remotetest.NewServer(),
		},
	}
	cfg := fmt.Sprintf(`
backup_dir: %s
accounts:
  - name: personal
    server: imap.example.com
    username: me@example.com
    batch_size: 5
  - name: offsite
    server: imap.other.net
    username: copy@other.net
mirrors:
  - source: personal
    destination: offsite
%s`, h.backupDir, extra)
	require.NoError(t, os.WriteFile(h.configPath, []byte(cfg), 0o600))

	t.Setenv("IMAPVAULT_PASSWORD_PERSONAL", "pw1")
	t.Setenv("IMAPVAULT_PASSWORD_OFFSITE", "pw2")
	t.Setenv("IMAPVAULT_WEBHOOK_URL", "")

	origDial := dialAccount
	dialAccount = func(_ context.Context, acct config.Account, password string, _ *slog.Logger) (accountClient, error) {
		if password == "" {
			return nil, errors.New("empty password")
		}
		return fakeAccount{h.servers[acct.Name]}, nil
	}
	t.Cleanup(func() { dialAccount = origDial })
	return h
}

func (h *harness) run(args ...string) (string, error) {
	cmd := NewRootCmd()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(append(args, "--config", h.configPath))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func sample(n int) string {
	return fmt.Sprintf("From: a@example.com\r\nSubject: note %d\r\nDate: Wed, 04 Jan 2006 09:00:00 +0000\r\n\r\nhello %d\r\n", n, n)
}

func TestBackupListAndCheck(t *testing.T) {
	h := newHarness(t, "")
	personal := h.servers["personal"]
	personal.AddMessage("INBOX", sample(1), imap.FlagSeen)
	personal.AddMessage("INBOX", sample(2))
	personal.AddMessage("Work/Projects", sample(3))

	out, err := h.run("backup")
	require.NoError(t, err)
	assert.Contains(t, out, "Config summary")

	out, err = h.run("list", "personal")
	require.NoError(t, err)
	assert.Contains(t, out, "personal\tINBOX\t2 messages")
	assert.Contains(t, out, "personal\tWork/Projects\t1 messages")

	out, err = h.run("list", "--remote", "personal")
	require.NoError(t, err)
	assert.Contains(t, out, "personal\tWork/Projects")

	out, err = h.run("check")
	require.NoError(t, err)
	assert.Contains(t, out, "ok       personal/INBOX (2 messages)")
}

func TestCheckDeleteCorrupt(t *testing.T) {
	h := newHarness(t, "")
	h.servers["personal"].AddMessage("INBOX", sample(1))
	_, err := h.run("backup", "personal")
	require.NoError(t, err)

	st := store.Open(filepath.Join(h.backupDir, "personal"), "INBOX")
	require.NoError(t, os.Truncate(st.LogPath(), 10))

	out, err := h.run("check", "personal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 corrupt folders")
	assert.Contains(t, out, "CORRUPT  personal/INBOX")

	out, err = h.run("check", "personal", "--delete-corrupt")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted  personal/INBOX")

	folders, err := store.LocalFolders(filepath.Join(h.backupDir, "personal"))
	require.NoError(t, err)
	assert.Empty(t, folders)

	_, err = h.run("backup", "personal")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Open(filepath.Join(h.backupDir, "personal"), "INBOX").Len())
}

func TestMirrorCommand(t *testing.T) {
	h := newHarness(t, "")
	h.servers["personal"].AddMessage("INBOX", sample(1), imap.FlagFlagged)
	h.servers["personal"].AddMessage("INBOX", sample(2))
	_, err := h.run("backup")
	require.NoError(t, err)

	out, err := h.run("mirror")
	require.NoError(t, err)
	assert.Contains(t, out, `personal -> offsite "INBOX": appended 2`)

	msgs := h.servers["offsite"].Messages("INBOX")
	require.Len(t, msgs, 2)
	assert.Equal(t, []imap.Flag{imap.FlagFlagged}, msgs[0].Flags)

	_, err = os.Stat(filepath.Join(h.backupDir, "personal", "INBOX.mirror"))
	assert.NoError(t, err)
}

func TestMirrorSkipsMovedAsideBackups(t *testing.T) {
	h := newHarness(t, "")
	personal := h.servers["personal"]
	personal.AddMessage("INBOX", sample(1))
	_, err := h.run("backup", "personal")
	require.NoError(t, err)

	personal.RecreateFolder("INBOX")
	personal.AddMessage("INBOX", sample(2))
	_, err = h.run("backup", "personal")
	require.NoError(t, err)

	local, err := store.LocalFolders(filepath.Join(h.backupDir, "personal"))
	require.NoError(t, err)
	require.Len(t, local, 2)

	_, err = h.run("mirror")
	require.NoError(t, err)

	folders, err := h.servers["offsite"].ListFolders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX"}, folders)
	msgs := h.servers["offsite"].Messages("INBOX")
	require.Len(t, msgs, 1)
	assert.Equal(t, sample(2), string(msgs[0].Body))
}

func TestRestoreCommand(t *testing.T) {
	h := newHarness(t, "")
	personal := h.servers["personal"]
	personal.AddMessage("Archive", sample(1))
	personal.AddMessage("Archive", sample(2))
	_, err := h.run("backup")
	require.NoError(t, err)

	personal.DeleteFolder("Archive")
	out, err := h.run("restore", "personal")
	require.NoError(t, err)
	assert.Contains(t, out, `Restored 2 messages from "Archive" to "Archive"`)
	assert.Len(t, personal.Messages("Archive"), 2)
}

func TestMigrateCommand(t *testing.T) {
	h := newHarness(t, "")
	h.servers["personal"].AddMessage("INBOX", sample(1))
	h.servers["offsite"].AddMessage("INBOX", sample(9))
	_, err := h.run("backup", "personal")
	require.NoError(t, err)

	_, err = h.run("migrate", "--from", "personal", "--to", "offsite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not empty")

	out, err := h.run("migrate", "--from", "personal", "--to", "offsite", "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, `Migrated 1 of 1 messages in "INBOX"`)
	assert.Len(t, h.servers["offsite"].Messages("INBOX"), 1)
}

type fakeUploader struct {
	s3manageriface.UploaderAPI
	keys []string
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if _, err := io.Copy(io.Discard, in.Body); err != nil {
		return nil, err
	}
	f.keys = append(f.keys, aws.StringValue(in.Key))
	return &s3manager.UploadOutput{}, nil
}

func TestArchiveCommand(t *testing.T) {
	h := newHarness(t, "archive:\n  bucket: mail\n  region: us-east-1\n  prefix: vault\n")
	h.servers["personal"].AddMessage("INBOX", sample(1))
	_, err := h.run("backup", "personal")
	require.NoError(t, err)

	uploader := &fakeUploader{}
	origArchiver := newArchiver
	newArchiver = func(settings archive.Settings, rt *runtime) (*archive.Archiver, error) {
		return archive.New(settings, archive.WithUploader(uploader), archive.WithLogger(rt.logger))
	}
	t.Cleanup(func() { newArchiver = origArchiver })

	out, err := h.run("archive", "personal")
	require.NoError(t, err)
	assert.Contains(t, out, "Archived 1 folders of personal")
	require.Len(t, uploader.keys, 3)
	for _, key := range uploader.keys {
		assert.True(t, strings.HasPrefix(key, "vault/personal/"), key)
	}
}

func TestMissingPasswordFailsOnlyThatAccount(t *testing.T) {
	h := newHarness(t, "")
	h.servers["personal"].AddMessage("INBOX", sample(1))
	h.servers["offsite"].AddMessage("INBOX", sample(2))
	t.Setenv("IMAPVAULT_PASSWORD_PERSONAL", "")

	origPrompt := promptPassword
	promptPassword = func(acct config.Account) (string, error) {
		return "", fmt.Errorf("password for account %q is not set", acct.Name)
	}
	t.Cleanup(func() { promptPassword = origPrompt })

	_, err := h.run("backup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `password for account "personal"`)
	assert.Equal(t, 1, store.Open(filepath.Join(h.backupDir, "offsite"), "INBOX").Len())
}

func TestBackupReportsEachAccount(t *testing.T) {
	var mu sync.Mutex
	var messages []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		messages = append(messages, body["message"])
		mu.Unlock()
	}))
	defer hook.Close()

	h := newHarness(t, fmt.Sprintf("report:\n  webhook_url: %s\n", hook.URL))
	h.servers["personal"].AddMessage("INBOX", sample(1))
	t.Setenv("IMAPVAULT_PASSWORD_OFFSITE", "")
	origPrompt := promptPassword
	promptPassword = func(acct config.Account) (string, error) {
		return "", fmt.Errorf("no password for %s", acct.Name)
	}
	t.Cleanup(func() { promptPassword = origPrompt })

	_, err := h.run("backup")
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		`backup: "personal" succeeded`,
		`backup: "offsite" failed: no password for offsite`,
	}, messages)
}

func TestConfigPathRequired(t *testing.T) {
	t.Setenv(configEnvVar, "")
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"check"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path is required")
}
