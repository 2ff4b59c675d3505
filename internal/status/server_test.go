package status

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/aaronromeo/imapvault/internal/mock"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	inbox := store.Open(dir, "INBOX", store.WithLogger(mock.SetupLogger(t)))
	require.NoError(t, inbox.ForceUIDValidity(12))
	require.NoError(t, inbox.Append(3, []byte("Subject: hello\r\n\r\nhi\r\n"), []imap.Flag{imap.FlagSeen}))

	broken := store.Open(dir, "Lists/go", store.WithLogger(mock.SetupLogger(t)))
	require.NoError(t, broken.ForceUIDValidity(13))
	require.NoError(t, broken.Append(1, []byte("Subject: x\r\n\r\nx\r\n"), nil))
	require.NoError(t, os.Truncate(broken.LogPath(), 3))
	return dir
}

func get(t *testing.T, s *Server, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestFoldersEndpoint(t *testing.T) {
	s := New(seed(t), WithLogger(mock.SetupLogger(t)))

	resp, body := get(t, s, "/api/folders")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var statuses []FolderStatus
	require.NoError(t, json.Unmarshal(body, &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "INBOX", statuses[0].Folder)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, uint32(12), statuses[0].UIDValidity)
	assert.Equal(t, 1, statuses[0].Messages)
	assert.Equal(t, "Lists/go", statuses[1].Folder)
	assert.False(t, statuses[1].Healthy)
	assert.Contains(t, statuses[1].Error, "shorter")
}

func TestFolderEndpoint(t *testing.T) {
	s := New(seed(t), WithLogger(mock.SetupLogger(t)))

	tests := []struct {
		name       string
		target     string
		wantStatus int
		check      func(t *testing.T, detail FolderDetail)
	}{
		{
			name:       "healthy folder lists messages",
			target:     "/api/folders/INBOX",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, detail FolderDetail) {
				require.Len(t, detail.Records, 1)
				assert.Equal(t, uint32(3), detail.Records[0].UID)
				assert.Equal(t, "hello", detail.Records[0].Subject)
				assert.Equal(t, []imap.Flag{imap.FlagSeen}, detail.Records[0].Flags)
			},
		},
		{
			name:       "nested corrupt folder reports error",
			target:     "/api/folders/Lists%2Fgo",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, detail FolderDetail) {
				assert.False(t, detail.Healthy)
				assert.Empty(t, detail.Records)
			},
		},
		{
			name:       "unknown folder",
			target:     "/api/folders/..%2F..%2Fetc",
			wantStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, s, tt.target)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.check != nil {
				var detail FolderDetail
				require.NoError(t, json.Unmarshal(body, &detail))
				tt.check(t, detail)
			}
		})
	}
}

func TestHomeAndNotFound(t *testing.T) {
	s := New(seed(t), WithLogger(mock.SetupLogger(t)))

	resp, body := get(t, s, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "INBOX")
	assert.Contains(t, string(body), "Lists/go")

	resp, body = get(t, s, "/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "Not found")
}
