package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/aaronromeo/imapvault/internal/mock"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fake.mu.Lock()
		fake.objects[r.URL.Path] = body
		fake.mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return fake, srv
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	return keys
}

func seedStore(t *testing.T, dir, folder string) *store.FolderStore {
	t.Helper()
	st := store.Open(dir, folder, store.WithLogger(mock.SetupLogger(t)))
	require.NoError(t, st.ForceUIDValidity(77))
	require.NoError(t, st.Append(1, []byte("Subject: one\r\n\r\nfirst\r\n"), nil))
	require.NoError(t, st.Append(2, []byte("Subject: two\r\n\r\nsecond\r\n"), nil))
	return st
}

func settings(endpoint string) Settings {
	return Settings{
		Endpoint: endpoint,
		Region:   "us-east-1",
		Bucket:   "mail-archive",
		Key:      "key",
		Secret:   "secret",
		Prefix:   "/backups/",
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 8, 7, 6, 0, time.UTC)
}

func TestArchiveUploadsSnapshot(t *testing.T) {
	fake, srv := newFakeS3(t)
	dir := t.TempDir()
	st := seedStore(t, dir, "INBOX")

	a, err := New(settings(srv.URL), WithLogger(mock.SetupLogger(t)), WithClock(fixedClock))
	require.NoError(t, err)

	manifest, err := a.Archive(context.Background(), dir, []string{"INBOX"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(manifest.Snapshot, "20240309T080706Z-"))
	assert.False(t, manifest.Encrypted)
	require.Len(t, manifest.Folders, 1)
	assert.Equal(t, uint32(77), manifest.Folders[0].UIDValidity)
	assert.Equal(t, 2, manifest.Folders[0].Messages)

	prefix := "/mail-archive/backups/" + manifest.Snapshot + "/"
	assert.ElementsMatch(t, []string{prefix + "INBOX.imap", prefix + "INBOX.mbox", prefix + "manifest.json"}, fake.keys())

	mbox, err := os.ReadFile(st.LogPath())
	require.NoError(t, err)
	assert.Equal(t, mbox, fake.objects[prefix+"INBOX.mbox"])

	var uploaded Manifest
	require.NoError(t, json.Unmarshal(fake.objects[prefix+"manifest.json"], &uploaded))
	assert.Equal(t, manifest.Snapshot, uploaded.Snapshot)
	assert.Equal(t, []string{"backups/" + manifest.Snapshot + "/INBOX.imap", "backups/" + manifest.Snapshot + "/INBOX.mbox"}, uploaded.Folders[0].Objects)
}

func TestArchiveEncryptsWithAge(t *testing.T) {
	fake, srv := newFakeS3(t)
	dir := t.TempDir()
	st := seedStore(t, dir, "Archive/2023")

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	cfg := settings(srv.URL)
	cfg.Recipients = []string{identity.Recipient().String()}

	a, err := New(cfg, WithLogger(mock.SetupLogger(t)), WithClock(fixedClock))
	require.NoError(t, err)
	manifest, err := a.Archive(context.Background(), dir, []string{"Archive/2023"})
	require.NoError(t, err)
	assert.True(t, manifest.Encrypted)

	key := "/mail-archive/backups/" + manifest.Snapshot + "/Archive/2023.mbox.age"
	ciphertext, ok := fake.objects[key]
	require.True(t, ok, "missing %s in %v", key, fake.keys())

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	require.NoError(t, err)
	plaintext, err := io.ReadAll(r)
	require.NoError(t, err)
	want, err := os.ReadFile(st.LogPath())
	require.NoError(t, err)
	assert.Equal(t, want, plaintext)
}

func TestArchiveRefusesCorruptStore(t *testing.T) {
	fake, srv := newFakeS3(t)
	dir := t.TempDir()
	st := seedStore(t, dir, "INBOX")
	require.NoError(t, appendBytes(st.LogPath(), []byte("garbage")))

	a, err := New(settings(srv.URL), WithLogger(mock.SetupLogger(t)))
	require.NoError(t, err)
	_, err = a.Archive(context.Background(), dir, []string{"INBOX"})
	assert.ErrorIs(t, err, store.ErrLogLongerThanExpected)
	assert.Empty(t, fake.keys())
}

func TestNewValidatesSettings(t *testing.T) {
	_, err := New(Settings{})
	assert.Error(t, err)

	_, err = New(Settings{Bucket: "b", Region: "us-east-1", Recipients: []string{"not-a-key"}})
	assert.Error(t, err)
}

func appendBytes(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}
