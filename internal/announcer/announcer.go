// Package announcer posts run reports to a webhook.
package announcer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const webhookAnnouncePath = "/announcements"

type Option func(*Announcer)

func WithWebhookURL(webhookURL string) Option {
	return func(a *Announcer) {
		a.baseURL = strings.TrimSpace(webhookURL)
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *Announcer) {
		a.client = client
	}
}

// Announcer reports the outcome of backup and mirror jobs. Without a
// webhook URL it does nothing.
type Announcer struct {
	baseURL string
	client  *http.Client
}

func New(opts ...Option) *Announcer {
	a := &Announcer{client: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Announcer) Enabled() bool {
	return a.baseURL != ""
}

// Do reports that job finished the command, failing with jobErr when it
// is not nil.
func (a *Announcer) Do(ctx context.Context, command, job string, jobErr error) error {
	if !a.Enabled() {
		return nil
	}
	message := fmt.Sprintf("%s: %q succeeded", command, job)
	if jobErr != nil {
		message = fmt.Sprintf("%s: %q failed: %v", command, job, jobErr)
	}
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}

	url := strings.TrimRight(a.baseURL, "/") + webhookAnnouncePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reporting webhook returned status %s", resp.Status)
	}
	return nil
}
