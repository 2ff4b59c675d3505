package mirror

import (
	"context"
	"log/slog"

	"github.com/aaronromeo/imapvault/internal/remote"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/aaronromeo/imapvault/internal/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultChunkSize = 100

type Option func(*Mirror)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		m.logger = logger
	}
}

func WithCounters(counters *telemetry.Counters) Option {
	return func(m *Mirror) {
		m.counters = counters
	}
}

// WithChunkSize sets how many destination messages are checked per flag
// fetch.
func WithChunkSize(n int) Option {
	return func(m *Mirror) {
		m.chunkSize = n
	}
}

// Mirror makes a destination folder match a source store: same messages,
// same flags, nothing extra.
type Mirror struct {
	source      *store.FolderStore
	destination remote.Folder
	// destinationID names the destination account in the map file.
	destinationID string

	logger    *slog.Logger
	counters  *telemetry.Counters
	chunkSize int
}

// Result counts what a run changed.
type Result struct {
	Created      bool
	Reset        bool
	Deleted      int
	FlagsUpdated int
	Appended     int
	Failed       int
}

func New(source *store.FolderStore, destination remote.Folder, destinationID string, opts ...Option) *Mirror {
	m := &Mirror{
		source:        source,
		destination:   destination,
		destinationID: destinationID,
		logger:        slog.Default(),
		chunkSize:     DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.counters == nil {
		m.counters = telemetry.NewCounters()
	}
	if m.chunkSize < 1 {
		m.chunkSize = DefaultChunkSize
	}
	return m
}

// MapPath is where the UID map of the source store is kept.
func (m *Mirror) MapPath() string {
	return m.source.BasePath() + MapExt
}

// Run brings the destination in line with the source. The UID map is
// saved once the map has been validated, even when a later step fails.
func (m *Mirror) Run(ctx context.Context) (res Result, err error) {
	name := m.destination.Name()
	ctx, span := telemetry.Tracer().Start(ctx, "mirror.folder",
		trace.WithAttributes(attribute.String("folder", name), attribute.String("destination", m.destinationID)))
	defer span.End()
	logger := m.logger.With("folder", name, "destination", m.destinationID)

	res.Created, err = m.ensure(ctx)
	if err != nil {
		return res, err
	}

	uidMap, reset, err := m.reconcileValidity(ctx)
	if err != nil {
		return res, err
	}
	res.Reset = reset
	defer func() {
		if saveErr := uidMap.Save(); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	remaining, err := m.deleteExtra(ctx, uidMap, &res)
	if err != nil {
		return res, err
	}
	if err := m.reconcileFlags(ctx, uidMap, remaining, &res); err != nil {
		return res, err
	}
	if err := m.appendMissing(ctx, uidMap, &res); err != nil {
		return res, err
	}

	telemetry.Add(ctx, m.counters.MirrorCopied, res.Appended, name)
	telemetry.Add(ctx, m.counters.MirrorPurged, res.Deleted, name)
	telemetry.Add(ctx, m.counters.FlagsChanged, res.FlagsUpdated, name)
	logger.Info("mirror finished",
		"created", res.Created, "reset", res.Reset, "deleted", res.Deleted,
		"flags_updated", res.FlagsUpdated, "appended", res.Appended, "failed", res.Failed)
	return res, nil
}

func (m *Mirror) ensure(ctx context.Context) (bool, error) {
	exists, err := m.destination.Exists(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "checking %s", m.destination.Name())
	}
	if exists {
		return false, nil
	}
	m.logger.Info("creating destination folder", "folder", m.destination.Name(), "destination", m.destinationID)
	return true, errors.Wrapf(m.destination.Create(ctx), "creating %s", m.destination.Name())
}

// reconcileValidity loads the map and, when it was built for other UID
// validities, empties the destination and starts a fresh map.
func (m *Mirror) reconcileValidity(ctx context.Context) (*Map, bool, error) {
	sourceValidity, ok := m.source.UIDValidity()
	if !ok {
		return nil, false, errors.Wrapf(store.ErrUIDValidityUnset, "source %s", m.source.Folder())
	}
	destinationValidity, err := m.destination.UIDValidity(ctx)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading uid validity of %s", m.destination.Name())
	}

	uidMap := LoadMap(m.MapPath(), m.destinationID)
	if uidMap.Matches(sourceValidity, destinationValidity) {
		return uidMap, false, nil
	}
	m.logger.Warn("mirror map does not match, clearing destination",
		"folder", m.destination.Name(), "destination", m.destinationID,
		"source_uid_validity", sourceValidity, "destination_uid_validity", destinationValidity,
		"mapped", uidMap.Len())
	if err := m.destination.Clear(ctx); err != nil {
		return nil, false, errors.Wrapf(err, "clearing %s", m.destination.Name())
	}
	uidMap.Reset(sourceValidity, destinationValidity)
	return uidMap, true, nil
}

// deleteExtra removes destination messages that do not map to a stored
// message and forgets mappings whose destination message is gone. It
// returns the destination UIDs left in place.
func (m *Mirror) deleteExtra(ctx context.Context, uidMap *Map, res *Result) ([]uint32, error) {
	uids, err := m.destination.UIDs(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "listing messages in %s", m.destination.Name())
	}
	present := make(map[uint32]struct{}, len(uids))
	for _, uid := range uids {
		present[uid] = struct{}{}
	}
	for _, src := range uidMap.SourceUIDs() {
		dst, _ := uidMap.DestinationUID(src)
		if _, ok := present[dst]; !ok {
			uidMap.Forget(dst)
		}
	}

	var extra, remaining []uint32
	for _, uid := range uids {
		src, ok := uidMap.SourceUID(uid)
		if ok {
			if _, stored := m.source.Get(src); stored {
				remaining = append(remaining, uid)
				continue
			}
		}
		extra = append(extra, uid)
	}
	if len(extra) == 0 {
		return remaining, nil
	}

	m.logger.Info("deleting messages not in the backup", "folder", m.destination.Name(), "count", len(extra))
	if err := m.destination.DeleteMulti(ctx, extra); err != nil {
		return nil, errors.Wrapf(err, "deleting messages in %s", m.destination.Name())
	}
	for _, uid := range extra {
		uidMap.Forget(uid)
	}
	res.Deleted = len(extra)
	return remaining, nil
}

// reconcileFlags replaces the flags of destination messages whose flags
// differ from the stored ones.
func (m *Mirror) reconcileFlags(ctx context.Context, uidMap *Map, uids []uint32, res *Result) error {
	for _, chunk := range remote.Chunk(uids, m.chunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		fetched, err := m.destination.FetchMulti(ctx, chunk, remote.FetchAttrs{})
		if err != nil {
			return errors.Wrapf(err, "fetching flags in %s", m.destination.Name())
		}
		for _, msg := range fetched {
			src, ok := uidMap.SourceUID(msg.UID)
			if !ok {
				continue
			}
			rec, ok := m.source.Get(src)
			if !ok || remote.FlagsEqual(msg.Flags, rec.Flags) {
				continue
			}
			if err := m.destination.SetFlags(ctx, []uint32{msg.UID}, remote.WithoutRecent(rec.Flags)); err != nil {
				return errors.Wrapf(err, "setting flags on %s uid %d", m.destination.Name(), msg.UID)
			}
			res.FlagsUpdated++
		}
	}
	return nil
}

// appendMissing uploads stored messages that have no destination mapping,
// in log order. A failed upload is logged and retried on the next run.
func (m *Mirror) appendMissing(ctx context.Context, uidMap *Map, res *Result) error {
	var missing []uint32
	for _, uid := range m.source.UIDs() {
		if _, ok := uidMap.DestinationUID(uid); !ok {
			missing = append(missing, uid)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	logger := m.logger.With("folder", m.destination.Name(), "destination", m.destinationID)
	logger.Info("appending messages", "count", len(missing))
	return m.source.Each(missing, func(msg store.Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		uid, err := m.destination.Append(ctx, remote.AppendMessage{
			Body:  msg.Body,
			Flags: remote.WithoutRecent(msg.Flags),
			Date:  msg.Date(),
		})
		if err != nil {
			res.Failed++
			logger.Error("append failed, skipping message", "uid", msg.UID, "summary", store.Summarize(msg.Body).String(), "error", err)
			return nil
		}
		if uid == 0 {
			res.Failed++
			logger.Warn("server did not report the new uid", "uid", msg.UID)
			return nil
		}
		uidMap.Set(msg.UID, uid)
		res.Appended++
		return nil
	})
}
