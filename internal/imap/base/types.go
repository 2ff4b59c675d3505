package base

import (
	"strings"

	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
	"github.com/pkg/errors"
)

var ErrNotConnected = errors.New("IMAP client is not connected")

// ClientProvider hands out the current connection. The client changes
// after a reconnect, so managers ask for it on every call.
type ClientProvider interface {
	IMAPClient() *giimapclient.Client
}

type State struct {
	Client *giimapclient.Client
}

// UIDSet builds a UID set from plain UIDs.
func UIDSet(uids []uint32) imap.UIDSet {
	var set imap.UIDSet
	for _, uid := range uids {
		set.AddNum(imap.UID(uid))
	}
	return set
}

// Client returns the provider's connection or ErrNotConnected.
func Client(provider func() *giimapclient.Client) (*giimapclient.Client, error) {
	if provider == nil {
		return nil, ErrNotConnected
	}
	c := provider()
	if c == nil {
		return nil, ErrNotConnected
	}
	return c, nil
}

// RequireMailbox rejects blank mailbox names.
func RequireMailbox(mailbox string) error {
	if strings.TrimSpace(mailbox) == "" {
		return errors.New("mailbox is required")
	}
	return nil
}
