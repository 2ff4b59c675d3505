package searches

import (
	"context"
	"sort"

	"github.com/aaronromeo/imapvault/internal/imap/base"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
)

type ClientSearcher interface {
	SearchAllUIDs(ctx context.Context, mailbox string) ([]uint32, error)
	SearchUnseenUIDs(ctx context.Context, mailbox string, uids []uint32) ([]uint32, error)
	SearchUIDsFrom(ctx context.Context, mailbox string, first uint32) ([]uint32, error)
}

type IMAPSearchManager struct {
	provider func() *giimapclient.Client
}

func New(provider base.ClientProvider) *IMAPSearchManager {
	return &IMAPSearchManager{provider: provider.IMAPClient}
}

// SearchAllUIDs returns every UID in the mailbox, newest first.
func (m *IMAPSearchManager) SearchAllUIDs(ctx context.Context, mailbox string) ([]uint32, error) {
	uids, err := m.search(ctx, mailbox, &imap.SearchCriteria{})
	if err != nil {
		return nil, err
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	return uids, nil
}

// SearchUnseenUIDs returns the subset of uids without the \Seen flag.
func (m *IMAPSearchManager) SearchUnseenUIDs(ctx context.Context, mailbox string, uids []uint32) ([]uint32, error) {
	if len(uids) == 0 {
		return []uint32{}, nil
	}
	return m.search(ctx, mailbox, &imap.SearchCriteria{
		UID:     []imap.UIDSet{base.UIDSet(uids)},
		NotFlag: []imap.Flag{imap.FlagSeen},
	})
}

// SearchUIDsFrom returns the UIDs greater than or equal to first.
func (m *IMAPSearchManager) SearchUIDsFrom(ctx context.Context, mailbox string, first uint32) ([]uint32, error) {
	var set imap.UIDSet
	set.AddRange(imap.UID(first), 0)
	uids, err := m.search(ctx, mailbox, &imap.SearchCriteria{UID: []imap.UIDSet{set}})
	if err != nil {
		return nil, err
	}

	// "n:*" always matches the highest UID, even when it is below n.
	filtered := uids[:0]
	for _, uid := range uids {
		if uid >= first {
			filtered = append(filtered, uid)
		}
	}
	return filtered, nil
}

func (m *IMAPSearchManager) search(ctx context.Context, mailbox string, criteria *imap.SearchCriteria) ([]uint32, error) {
	client, err := base.Client(m.provider)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := base.RequireMailbox(mailbox); err != nil {
		return nil, err
	}

	if _, err := client.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, err
	}

	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found := data.AllUIDs()
	uids := make([]uint32, 0, len(found))
	for _, uid := range found {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}
