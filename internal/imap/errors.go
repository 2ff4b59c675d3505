package imap

import (
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
)

// IsTransient reports whether err looks like a dropped or broken
// connection that a reconnect may cure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection reset", "broken pipe", "use of closed network connection", "connection closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsSessionExpired reports whether the server ended the session.
func IsSessionExpired(err error) bool {
	var imapErr *imap.Error
	if errors.As(err, &imapErr) && imapErr.Type == imap.StatusResponseTypeBye {
		return true
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "session expired") || strings.Contains(msg, "session invalid")
}

// IsNotFound reports whether the server said the mailbox does not exist.
func IsNotFound(err error) bool {
	var imapErr *imap.Error
	if !errors.As(err, &imapErr) {
		return false
	}
	if imapErr.Code == imap.ResponseCodeNonExistent || imapErr.Code == imap.ResponseCodeTryCreate {
		return true
	}
	if imapErr.Type != imap.StatusResponseTypeNo {
		return false
	}
	text := strings.ToLower(imapErr.Text)
	return strings.Contains(text, "no such mailbox") ||
		strings.Contains(text, "doesn't exist") ||
		strings.Contains(text, "does not exist") ||
		strings.Contains(text, "unknown mailbox")
}

// IsRejected reports whether the server answered NO or BAD for a reason
// other than a missing mailbox.
func IsRejected(err error) bool {
	var imapErr *imap.Error
	if !errors.As(err, &imapErr) || IsNotFound(err) {
		return false
	}
	return imapErr.Type == imap.StatusResponseTypeNo || imapErr.Type == imap.StatusResponseTypeBad
}

// translate maps go-imap errors onto the remote sentinels.
func translate(err error, mailbox string) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return errors.Wrapf(remote.ErrFolderNotFound, "folder %q: %v", mailbox, err)
	case IsSessionExpired(err):
		return errors.Wrapf(remote.ErrSessionExpired, "folder %q: %v", mailbox, err)
	}
	return errors.Wrapf(err, "folder %q", mailbox)
}
