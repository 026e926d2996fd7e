package teachtiles

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	To "github.com/maroda/teachtiles/obvy"
	Tp "github.com/maroda/teachtiles/plugin"
	Ts "github.com/maroda/teachtiles/server"
	Tt "github.com/maroda/teachtiles/types"
)

// DefaultVelocity is used for every received note, the packet carries none
const DefaultVelocity = 100

const commandBuffer = 16

// ErrBusy is returned by Submit when the loop is not keeping up
var ErrBusy = errors.New("receiver busy")

type CommandKind int

const (
	CmdBitmap CommandKind = iota
	CmdClearBitmap
	CmdGlyph
	CmdDemo
	CmdDiagnostic
)

func (k CommandKind) String() string {
	switch k {
	case CmdBitmap:
		return "bitmap"
	case CmdClearBitmap:
		return "clear"
	case CmdGlyph:
		return "glyph"
	case CmdDemo:
		return "demo"
	case CmdDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Command is a request from outside the loop (HTTP, keyboard)
type Command struct {
	Kind   CommandKind
	MS     uint32   // glyph and demo duration
	Bitmap []uint16 // CmdBitmap only
}

// Receiver is the matrix side: packets in, frames out
type Receiver struct {
	Visualizer *Visualizer
	Source     Tp.PacketSource
	Sink       Tp.NoteSink    // optional, e.g. MIDI thru
	Journal    Tp.NoteJournal // optional
	Stats      *To.StatsInternal
	Clock      *Ts.Clock
	Supervisor *RenderSupervisor
	GlyphMS    uint32
	Velocity   uint8

	commands chan Command
	Received atomic.Uint64
	Short    atomic.Uint64
}

func NewReceiver(viz *Visualizer, src Tp.PacketSource, stats *To.StatsInternal) *Receiver {
	r := &Receiver{
		Visualizer: viz,
		Source:     src,
		Stats:      stats,
		Clock:      Ts.NewClock(),
		GlyphMS:    3000,
		Velocity:   DefaultVelocity,
		commands:   make(chan Command, commandBuffer),
	}
	return r
}

// HandlePacket decodes one packet and shows the note
func (r *Receiver) HandlePacket(pkt []byte, nowMS uint32) bool {
	note, dur, err := Ts.DecodePacket(pkt)
	if err != nil {
		r.Short.Add(1)
		r.Stats.RecPacket(true)
		slog.Warn("Short packet", slog.Int("len", len(pkt)))
		return false
	}
	r.Received.Add(1)
	r.Stats.RecPacket(false)

	r.Visualizer.ShowNote(note, dur, r.Velocity, nowMS)
	slog.Debug("Received note",
		slog.String("note", Ts.NoteName(note)),
		slog.Int64("durationMs", int64(dur)))

	if r.Sink != nil {
		// the sink holds the note no longer than the visual lasts
		hold := time.Duration(min(dur, r.Visualizer.MaxMS)) * time.Millisecond
		if err := r.Sink.PlayNote(note, r.Velocity, hold); err != nil {
			slog.Warn("Note sink failed", slog.String("sink", r.Sink.Type()), slog.Any("error", err))
		}
	}
	if r.Journal != nil {
		ev := Tt.NoteEvent{Note: note, Kind: Tt.NoteOff, Velocity: r.Velocity, AtMS: nowMS, DurationMS: dur}
		if err := r.Journal.WriteNote(&ev, time.Now()); err != nil {
			slog.Error("Journal write failed", slog.Any("error", err))
		}
	}
	return true
}

// Submit hands a command to the loop without waiting
func (r *Receiver) Submit(cmd Command) error {
	select {
	case r.commands <- cmd:
		return nil
	default:
		slog.Warn("Command dropped, receiver busy", slog.String("command", cmd.Kind.String()))
		return ErrBusy
	}
}

// Commands is read by the loop
func (r *Receiver) Commands() <-chan Command { return r.commands }

// Apply runs a command against the visualizer, only the loop calls this
func (r *Receiver) Apply(cmd Command, nowMS uint32) {
	v := r.Visualizer
	switch cmd.Kind {
	case CmdBitmap:
		v.SetStaticBitmap(cmd.Bitmap)
	case CmdClearBitmap:
		v.ClearStaticBitmap()
	case CmdGlyph:
		ms := cmd.MS
		if ms == 0 {
			ms = r.GlyphMS
		}
		v.ShowGlyph(ms, nowMS)
	case CmdDemo:
		ms := cmd.MS
		if ms == 0 {
			ms = r.GlyphMS
		}
		v.StartDemo(ms, nowMS)
	case CmdDiagnostic:
		v.StartDiagnostic(nowMS)
	}
	slog.Info("Command applied", slog.String("command", cmd.Kind.String()))
}

// Tick is the periodic work of the loop
func (r *Receiver) Tick(nowMS uint32) {
	start := time.Now()
	r.Visualizer.Tick(nowMS)
	r.Stats.RecVisuals(r.Visualizer.VisualCount())
	r.Stats.RecTickTimer(time.Since(start).Seconds())
}

func (r *Receiver) Close() error {
	var errs []error
	if r.Supervisor != nil {
		r.Supervisor.Stop()
	}
	if r.Source != nil {
		errs = append(errs, r.Source.Close())
	}
	if r.Sink != nil {
		errs = append(errs, r.Sink.Close())
	}
	if r.Journal != nil {
		errs = append(errs, r.Journal.Close())
	}
	return errors.Join(errs...)
}
