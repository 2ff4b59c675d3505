// Package backup moves messages between remote folders and local stores.
package backup

import (
	"context"
	"log/slog"

	"github.com/aaronromeo/imapvault/internal/telemetry"
)

const (
	DefaultBatchSize = 1
	flagChunkSize    = 100
	// sessionRetries bounds reconnect-and-retry of one fetch batch.
	sessionRetries = 3
)

type options struct {
	logger       *slog.Logger
	counters     *telemetry.Counters
	batchSize    int
	resetSeen    bool
	refreshFlags bool
	mirror       bool
	reset        bool
	reconnect    func(ctx context.Context) error
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithCounters(counters *telemetry.Counters) Option {
	return func(o *options) {
		o.counters = counters
	}
}

// WithBatchSize sets how many messages are fetched per request.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithResetSeen restores the \Seen state of messages that a fetch marked
// as read.
func WithResetSeen(enabled bool) Option {
	return func(o *options) {
		o.resetSeen = enabled
	}
}

// WithRefreshFlags copies current server flags onto messages already in
// the store.
func WithRefreshFlags(enabled bool) Option {
	return func(o *options) {
		o.refreshFlags = enabled
	}
}

// WithMirrorMode removes local messages and folders that are gone from
// the server.
func WithMirrorMode(enabled bool) Option {
	return func(o *options) {
		o.mirror = enabled
	}
}

// WithReset lets a migration clear a destination that already holds
// messages.
func WithReset(enabled bool) Option {
	return func(o *options) {
		o.reset = enabled
	}
}

// WithReconnect sets the callback used when the server session expires.
func WithReconnect(fn func(ctx context.Context) error) Option {
	return func(o *options) {
		o.reconnect = fn
	}
}

func newOptions(opts []Option) options {
	o := options{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.counters == nil {
		o.counters = telemetry.NewCounters()
	}
	if o.batchSize < 1 {
		o.batchSize = DefaultBatchSize
	}
	return o
}
