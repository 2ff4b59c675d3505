// Package remotetest provides an in-memory remote.Account for driver tests.
package remotetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
)

// Message is a message held by the fake server.
type Message struct {
	UID   uint32
	Body  []byte
	Flags []imap.Flag
	Date  time.Time
}

type mailbox struct {
	uidValidity uint32
	uidNext     uint32
	messages    []*Message
}

// Server is an in-memory account. Hooks, when set, can fail calls.
type Server struct {
	mu           sync.Mutex
	mailboxes    map[string]*mailbox
	lastValidity uint32

	FetchHook  func(folder string, uids []uint32) error
	AppendHook func(folder string, msg remote.AppendMessage) error
}

func NewServer() *Server {
	return &Server{mailboxes: map[string]*mailbox{}, lastValidity: 100}
}

// CreateFolder creates name with a fresh UID validity.
func (s *Server) CreateFolder(name string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(name)
}

func (s *Server) createLocked(name string) uint32 {
	s.lastValidity++
	s.mailboxes[name] = &mailbox{uidValidity: s.lastValidity, uidNext: 1}
	return s.lastValidity
}

// RecreateFolder deletes and creates name, discarding its messages.
func (s *Server) RecreateFolder(name string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mailboxes, name)
	return s.createLocked(name)
}

func (s *Server) DeleteFolder(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mailboxes, name)
}

// AddMessage stores a message and returns its UID. The folder is created
// when missing.
func (s *Server) AddMessage(folder string, body string, flags ...imap.Flag) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mailboxes[folder] == nil {
		s.createLocked(folder)
	}
	return s.appendLocked(s.mailboxes[folder], []byte(body), flags, time.Now())
}

// AddMessageWithUID stores a message under an explicit UID.
func (s *Server) AddMessageWithUID(folder string, uid uint32, body string, flags ...imap.Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mailboxes[folder] == nil {
		s.createLocked(folder)
	}
	mb := s.mailboxes[folder]
	mb.messages = append(mb.messages, &Message{UID: uid, Body: []byte(body), Flags: append([]imap.Flag(nil), flags...)})
	sort.Slice(mb.messages, func(i, j int) bool { return mb.messages[i].UID < mb.messages[j].UID })
	if uid >= mb.uidNext {
		mb.uidNext = uid + 1
	}
}

func (s *Server) appendLocked(mb *mailbox, body []byte, flags []imap.Flag, date time.Time) uint32 {
	uid := mb.uidNext
	mb.uidNext++
	mb.messages = append(mb.messages, &Message{
		UID:   uid,
		Body:  append([]byte(nil), body...),
		Flags: append([]imap.Flag(nil), flags...),
		Date:  date,
	})
	return uid
}

// Messages returns a copy of the messages in folder in UID order.
func (s *Server) Messages(folder string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb := s.mailboxes[folder]
	if mb == nil {
		return nil
	}
	out := make([]Message, 0, len(mb.messages))
	for _, m := range mb.messages {
		out = append(out, Message{UID: m.UID, Body: append([]byte(nil), m.Body...), Flags: append([]imap.Flag(nil), m.Flags...), Date: m.Date})
	}
	return out
}

// SetMessageFlags replaces the flags of one message.
func (s *Server) SetMessageFlags(folder string, uid uint32, flags ...imap.Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mb := s.mailboxes[folder]; mb != nil {
		for _, m := range mb.messages {
			if m.UID == uid {
				m.Flags = append([]imap.Flag(nil), flags...)
			}
		}
	}
}

func (s *Server) ListFolders(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.mailboxes))
	for name := range s.mailboxes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Server) Folder(name string) remote.Folder {
	return &Folder{server: s, name: name}
}

// Folder is a handle on one mailbox of a Server.
type Folder struct {
	server *Server
	name   string
}

func (f *Folder) Name() string {
	return f.name
}

func (f *Folder) withMailbox(fn func(*mailbox) error) error {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()
	mb := f.server.mailboxes[f.name]
	if mb == nil {
		return errors.Wrapf(remote.ErrFolderNotFound, "folder %q", f.name)
	}
	return fn(mb)
}

func (f *Folder) Exists(context.Context) (bool, error) {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()
	return f.server.mailboxes[f.name] != nil, nil
}

func (f *Folder) Create(context.Context) error {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()
	if f.server.mailboxes[f.name] == nil {
		f.server.createLocked(f.name)
	}
	return nil
}

func (f *Folder) UIDValidity(context.Context) (uint32, error) {
	var v uint32
	err := f.withMailbox(func(mb *mailbox) error {
		v = mb.uidValidity
		return nil
	})
	return v, err
}

func (f *Folder) UIDs(context.Context) ([]uint32, error) {
	var uids []uint32
	err := f.withMailbox(func(mb *mailbox) error {
		uids = make([]uint32, 0, len(mb.messages))
		for i := len(mb.messages) - 1; i >= 0; i-- {
			uids = append(uids, mb.messages[i].UID)
		}
		return nil
	})
	return uids, err
}

func (f *Folder) FetchMulti(_ context.Context, uids []uint32, attrs remote.FetchAttrs) ([]remote.FetchedMessage, error) {
	if hook := f.server.FetchHook; hook != nil {
		if err := hook(f.name, uids); err != nil {
			return nil, err
		}
	}
	var out []remote.FetchedMessage
	err := f.withMailbox(func(mb *mailbox) error {
		wanted := uidSet(uids)
		for _, m := range mb.messages {
			if _, ok := wanted[m.UID]; !ok {
				continue
			}
			fm := remote.FetchedMessage{UID: m.UID, Flags: append([]imap.Flag(nil), m.Flags...)}
			if attrs.Body {
				fm.Body = append([]byte(nil), m.Body...)
			}
			if attrs.InternalDate {
				fm.InternalDate = m.Date
			}
			out = append(out, fm)
		}
		return nil
	})
	return out, err
}

func (f *Folder) Append(_ context.Context, msg remote.AppendMessage) (uint32, error) {
	if hook := f.server.AppendHook; hook != nil {
		if err := hook(f.name, msg); err != nil {
			return 0, err
		}
	}
	var uid uint32
	err := f.withMailbox(func(mb *mailbox) error {
		uid = f.server.appendLocked(mb, msg.Body, msg.Flags, msg.Date)
		return nil
	})
	return uid, err
}

func (f *Folder) SetFlags(_ context.Context, uids []uint32, flags []imap.Flag) error {
	return f.store(uids, func(*Message) []imap.Flag { return append([]imap.Flag(nil), flags...) })
}

func (f *Folder) AddFlags(_ context.Context, uids []uint32, flags []imap.Flag) error {
	return f.store(uids, func(m *Message) []imap.Flag {
		out := append([]imap.Flag(nil), m.Flags...)
		for _, flag := range flags {
			if !hasFlag(out, flag) {
				out = append(out, flag)
			}
		}
		return out
	})
}

func (f *Folder) RemoveFlags(_ context.Context, uids []uint32, flags []imap.Flag) error {
	return f.store(uids, func(m *Message) []imap.Flag {
		out := []imap.Flag{}
		for _, flag := range m.Flags {
			if !hasFlag(flags, flag) {
				out = append(out, flag)
			}
		}
		return out
	})
}

func (f *Folder) store(uids []uint32, update func(*Message) []imap.Flag) error {
	return f.withMailbox(func(mb *mailbox) error {
		wanted := uidSet(uids)
		for _, m := range mb.messages {
			if _, ok := wanted[m.UID]; ok {
				m.Flags = update(m)
			}
		}
		return nil
	})
}

func (f *Folder) DeleteMulti(_ context.Context, uids []uint32) error {
	return f.withMailbox(func(mb *mailbox) error {
		wanted := uidSet(uids)
		kept := mb.messages[:0]
		for _, m := range mb.messages {
			if _, ok := wanted[m.UID]; !ok {
				kept = append(kept, m)
			}
		}
		mb.messages = kept
		return nil
	})
}

func (f *Folder) Clear(context.Context) error {
	return f.withMailbox(func(mb *mailbox) error {
		mb.messages = nil
		return nil
	})
}

func (f *Folder) Unseen(_ context.Context, uids []uint32) ([]uint32, error) {
	var out []uint32
	err := f.withMailbox(func(mb *mailbox) error {
		wanted := uidSet(uids)
		for _, m := range mb.messages {
			if _, ok := wanted[m.UID]; ok && !hasFlag(m.Flags, imap.FlagSeen) {
				out = append(out, m.UID)
			}
		}
		return nil
	})
	return out, err
}

func uidSet(uids []uint32) map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(uids))
	for _, uid := range uids {
		set[uid] = struct{}{}
	}
	return set
}

func hasFlag(flags []imap.Flag, flag imap.Flag) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
