package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationScope = "github.com/aaronromeo/imapvault"

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationScope)
}

// Counters are the message counters recorded by the drivers. Instruments
// come from the global meter provider, which is a no-op until
// SetupOTelSDK runs.
type Counters struct {
	Downloaded   metric.Int64Counter
	Uploaded     metric.Int64Counter
	Skipped      metric.Int64Counter
	MirrorCopied metric.Int64Counter
	MirrorPurged metric.Int64Counter
	FlagsChanged metric.Int64Counter
}

func NewCounters() *Counters {
	meter := otel.Meter(instrumentationScope)
	return &Counters{
		Downloaded:   counter(meter, "imapvault.messages.downloaded", "Messages appended to a local backup"),
		Uploaded:     counter(meter, "imapvault.messages.uploaded", "Messages uploaded by restore or migrate"),
		Skipped:      counter(meter, "imapvault.messages.skipped", "Messages skipped after an error"),
		MirrorCopied: counter(meter, "imapvault.mirror.appended", "Messages appended to a mirror destination"),
		MirrorPurged: counter(meter, "imapvault.mirror.deleted", "Messages deleted from a mirror destination"),
		FlagsChanged: counter(meter, "imapvault.flags.updated", "Messages whose flags were rewritten"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit("{message}"))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// Add records n against c for the folder, ignoring zero counts.
func Add(ctx context.Context, c metric.Int64Counter, n int, folder string) {
	if c == nil || n == 0 {
		return
	}
	c.Add(ctx, int64(n), metric.WithAttributes(attribute.String("folder", folder)))
}
