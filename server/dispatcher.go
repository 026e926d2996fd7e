package teachtiles

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	To "github.com/maroda/teachtiles/obvy"
	Tp "github.com/maroda/teachtiles/plugin"
	Tt "github.com/maroda/teachtiles/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher hands every completed note to exactly one transport.
// There is no fallback and no retry, a packet that can't go out is dropped.
type Dispatcher struct {
	Transport Tp.Transport
	Journal   Tp.NoteJournal // optional
	Stats     *To.StatsInternal
	tracer    trace.Tracer

	// read by the status API while the loop dispatches
	Sent    atomic.Uint64
	Dropped atomic.Uint64
}

func NewDispatcher(t Tp.Transport, stats *To.StatsInternal) *Dispatcher {
	return &Dispatcher{
		Transport: t,
		Stats:     stats,
		tracer:    To.Tracer(),
	}
}

// Dispatch encodes the note and sends it, reporting whether it left.
// Only completed notes (Kind NoteOff with a duration) are sent.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Tt.NoteEvent) bool {
	if d.tracer == nil {
		d.tracer = To.Tracer()
	}
	kind := "none"
	if d.Transport != nil {
		kind = d.Transport.Type()
	}

	_, span := d.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.Int("note", int(ev.Note)),
			attribute.Int64("duration_ms", int64(ev.DurationMS)),
			attribute.String("transport", kind),
		))
	defer span.End()

	if d.Journal != nil {
		if err := d.Journal.WriteNote(&ev, time.Now()); err != nil {
			slog.Error("Journal write failed", slog.Any("error", err))
		}
	}

	if d.Transport == nil || !d.Transport.Ready() {
		d.drop(kind, "not_ready", ev, Tp.ErrNotReady)
		span.SetStatus(codes.Error, "transport not ready")
		return false
	}

	pkt := EncodePacket(ev.Note, ev.DurationMS)
	if err := d.Transport.Send(pkt[:]); err != nil {
		reason := "send_failed"
		if errors.Is(err, Tp.ErrOutboxFull) {
			reason = "outbox_full"
		} else if errors.Is(err, Tp.ErrNotReady) {
			reason = "not_ready"
		}
		d.drop(kind, reason, ev, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		return false
	}

	d.Sent.Add(1)
	d.Stats.RecDispatch(kind)
	slog.Debug("Sent note",
		slog.String("note", NoteName(ev.Note)),
		slog.Int64("durationMs", int64(ev.DurationMS)),
		slog.String("transport", kind))
	return true
}

func (d *Dispatcher) drop(kind, reason string, ev Tt.NoteEvent, err error) {
	d.Dropped.Add(1)
	d.Stats.RecDrop(kind, reason)
	slog.Warn("Dropped note",
		slog.String("note", NoteName(ev.Note)),
		slog.String("transport", kind),
		slog.String("reason", reason),
		slog.Any("error", err))
}
