package store

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/pkg/errors"
)

// Sentinel starts every message in the log.
const Sentinel = "From "

const (
	defaultSender    = "imapvault"
	summaryMaxLength = 60
)

// Message is a stored message read back from the log.
type Message struct {
	Record
	// Body is the message without its log framing.
	Body []byte
}

// Date returns the message date taken from its Date header.
func (m Message) Date() time.Time {
	return Summarize(m.Body).Date
}

// Summary holds the few header fields used for log lines and framing.
type Summary struct {
	Subject string
	Sender  string
	Date    time.Time
}

// Summarize extracts Subject, From and Date from a raw message. Missing or
// unparseable headers are left empty.
func Summarize(body []byte) Summary {
	var s Summary
	hdr, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(body)))
	if err != nil {
		return s
	}
	h := mail.Header{Header: message.Header{Header: hdr}}
	if subject, err := h.Subject(); err == nil {
		s.Subject = subject
	} else {
		s.Subject = h.Get("Subject")
	}
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		s.Sender = addrs[0].Address
	}
	if date, err := h.Date(); err == nil {
		s.Date = date
	}
	return s
}

// String is a short quoted form used in log and error messages.
func (s Summary) String() string {
	subject := s.Subject
	if r := []rune(subject); len(r) > summaryMaxLength {
		subject = string(r[:summaryMaxLength]) + "..."
	}
	return fmt.Sprintf("%q", subject)
}

// Frame wraps body as a single mboxrd message: a "From " line, the body
// with every line matching ">*From " quoted once more, and one trailing
// newline. Line endings inside body are kept as they are.
func Frame(body []byte, summary Summary) []byte {
	sender := strings.TrimSpace(summary.Sender)
	if sender == "" || strings.ContainsAny(sender, " \t\r\n") {
		sender = defaultSender
	}
	date := summary.Date
	if date.IsZero() {
		date = time.Unix(0, 0)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 64)
	fmt.Fprintf(&buf, "%s%s %s\n", Sentinel, sender, date.UTC().Format(time.ANSIC))
	for _, line := range splitLines(body) {
		if isFromLine(line) {
			buf.WriteByte('>')
		}
		buf.Write(line)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Unframe reverses Frame exactly.
func Unframe(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte(Sentinel)) {
		return nil, errors.Wrap(ErrBadFraming, "missing From line")
	}
	i := bytes.IndexByte(data, '\n')
	if i < 0 || data[len(data)-1] != '\n' {
		return nil, errors.Wrap(ErrBadFraming, "missing message terminator")
	}
	content := data[i+1 : len(data)-1]

	body := make([]byte, 0, len(content))
	for _, line := range splitLines(content) {
		if line[0] == '>' && isFromLine(line) {
			line = line[1:]
		}
		body = append(body, line...)
	}
	return body, nil
}

// splitLines cuts b after every '\n'. The last line may lack one.
func splitLines(b []byte) [][]byte {
	var lines [][]byte
	for len(b) > 0 {
		n := len(b)
		if i := bytes.IndexByte(b, '\n'); i >= 0 {
			n = i + 1
		}
		lines = append(lines, b[:n])
		b = b[n:]
	}
	return lines
}

func isFromLine(line []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(line, ">"), []byte(Sentinel))
}

// WithoutFlag returns flags minus every occurrence of flag.
func WithoutFlag(flags []imap.Flag, flag imap.Flag) []imap.Flag {
	out := make([]imap.Flag, 0, len(flags))
	for _, f := range flags {
		if !strings.EqualFold(string(f), string(flag)) {
			out = append(out, f)
		}
	}
	return out
}
