package remote

import (
	"context"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
)

var (
	ErrFolderNotFound = errors.New("folder not found")
	ErrSessionExpired = errors.New("session expired")
	ErrAppendRejected = errors.New("server rejected append")
)

// FlagRecent is session-only and never copied to another server.
const FlagRecent imap.Flag = `\Recent`

// FetchAttrs selects the optional parts of a fetch. UID and flags are
// always requested.
type FetchAttrs struct {
	Body         bool
	InternalDate bool
}

// FetchedMessage is one message returned by a fetch. A zero UID or a nil
// Body means the server did not return that item.
type FetchedMessage struct {
	UID          uint32
	Flags        []imap.Flag
	InternalDate time.Time
	Body         []byte
}

// AppendMessage is a message to upload.
type AppendMessage struct {
	Body  []byte
	Flags []imap.Flag
	Date  time.Time
}

//go:generate mockgen -source=folder.go -destination=../mock/mock_folder.go -package=mock

// Folder is a single mailbox on a server.
type Folder interface {
	Name() string
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	UIDValidity(ctx context.Context) (uint32, error)
	// UIDs returns every UID in the folder, newest first. It returns
	// ErrFolderNotFound when the folder does not exist.
	UIDs(ctx context.Context) ([]uint32, error)
	FetchMulti(ctx context.Context, uids []uint32, attrs FetchAttrs) ([]FetchedMessage, error)
	// Append uploads msg and returns the UID the server assigned.
	Append(ctx context.Context, msg AppendMessage) (uint32, error)
	SetFlags(ctx context.Context, uids []uint32, flags []imap.Flag) error
	AddFlags(ctx context.Context, uids []uint32, flags []imap.Flag) error
	RemoveFlags(ctx context.Context, uids []uint32, flags []imap.Flag) error
	// DeleteMulti marks the messages deleted and expunges them.
	DeleteMulti(ctx context.Context, uids []uint32) error
	// Clear deletes every message in the folder.
	Clear(ctx context.Context) error
	// Unseen returns the subset of uids without the \Seen flag.
	Unseen(ctx context.Context, uids []uint32) ([]uint32, error)
}

// Account lists and opens the folders of one server login.
type Account interface {
	ListFolders(ctx context.Context) ([]string, error)
	Folder(name string) Folder
}
