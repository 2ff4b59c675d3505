package announcer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoPostsMessage(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/announcements", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body["message"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := New(WithWebhookURL(srv.URL + "/"))
	require.NoError(t, a.Do(context.Background(), "backup", "personal", nil))
	require.NoError(t, a.Do(context.Background(), "mirror", "personal->offsite", errors.New("login failed")))

	assert.Equal(t, []string{
		`backup: "personal" succeeded`,
		`mirror: "personal->offsite" failed: login failed`,
	}, got)
}

func TestDoReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(WithWebhookURL(srv.URL)).Do(context.Background(), "backup", "personal", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestDoWithoutURLIsNoop(t *testing.T) {
	a := New(WithWebhookURL("  "))
	assert.False(t, a.Enabled())
	assert.NoError(t, a.Do(context.Background(), "backup", "personal", errors.New("ignored")))
}
