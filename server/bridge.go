package teachtiles

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	To "github.com/maroda/teachtiles/obvy"
	Tp "github.com/maroda/teachtiles/plugin"
	Tt "github.com/maroda/teachtiles/types"
)

// StatusIntervalMS is how often the bridge reports what it hears
const StatusIntervalMS = 200

// LocalView is a visualizer driven from the bridge loop itself
type LocalView interface {
	ShowNote(note uint8, durationMS uint32, velocity uint8, nowMS uint32)
	Tick(nowMS uint32)
}

// Bridge is the sender control loop. Everything it owns is only
// touched from Step and Feed, which run on one goroutine.
type Bridge struct {
	Source     Tp.ByteSource
	Parser     Parser
	Tracker    *Tracker
	Dispatcher *Dispatcher
	View       LocalView // optional
	Clock      *Clock
	Stats      *To.StatsInternal

	MU         sync.RWMutex   // guards status only
	status     Tt.NowPlaying  // last snapshot, for the API
	lastStatus uint32
	orphans    uint64
}

func NewBridge(src Tp.ByteSource, tracker *Tracker, dispatcher *Dispatcher, stats *To.StatsInternal) *Bridge {
	return &Bridge{
		Source:     src,
		Tracker:    tracker,
		Dispatcher: dispatcher,
		Clock:      NewClock(),
		Stats:      stats,
	}
}

// Feed runs one chunk of raw MIDI through parser, tracker and dispatcher.
// Returns the number of notes completed.
func (b *Bridge) Feed(ctx context.Context, chunk []byte, nowMS uint32) int {
	if len(chunk) == 0 {
		return 0
	}
	b.Stats.RecMIDIBytes(len(chunk))
	b.Tracker.Observe(nowMS)

	completed := 0
	b.Parser.Parse(chunk, func(ev Tt.NoteEvent) {
		ev.AtMS = nowMS
		done, ok := b.Tracker.Handle(ev, nowMS)
		if !ok {
			return
		}
		completed++
		b.Dispatcher.Dispatch(ctx, done)
		if b.View != nil {
			b.View.ShowNote(done.Note, done.DurationMS, done.Velocity, nowMS)
		}
	})

	if b.Tracker.Orphans != b.orphans {
		for ; b.orphans < b.Tracker.Orphans; b.orphans++ {
			b.Stats.RecOrphan()
		}
	}
	return completed
}

// Step drains whatever bytes are already waiting, then does the
// periodic work: watchdog, local visualizer tick and the status report.
func (b *Bridge) Step(ctx context.Context, nowMS uint32) {
	if b.Source != nil {
	drain:
		for {
			select {
			case chunk, ok := <-b.Source.Bytes():
				if !ok {
					break drain
				}
				b.Feed(ctx, chunk, nowMS)
			default:
				break drain
			}
		}
	}

	if b.Tracker.Watchdog(nowMS) {
		slog.Warn("No MIDI signal", slog.Int("afterMs", int(b.Tracker.watchdogMS)))
	}

	if b.View != nil {
		b.View.Tick(nowMS)
	}

	if nowMS-b.lastStatus >= StatusIntervalMS {
		b.lastStatus = nowMS
		b.report()
	}
}

func (b *Bridge) report() {
	st := b.Tracker.Status()
	b.Stats.RecSignal(st.SignalPresent)

	b.MU.Lock()
	changed := st != b.status
	b.status = st
	b.MU.Unlock()

	if !changed {
		return
	}
	if st.Playing {
		slog.Info("Playing",
			slog.String("note", st.Name),
			slog.Int("velocity", int(st.Velocity)),
			slog.Bool("signal", st.SignalPresent))
	} else {
		slog.Info("Idle", slog.Bool("signal", st.SignalPresent))
	}
}

// Status is safe to call from any goroutine
func (b *Bridge) Status() Tt.NowPlaying {
	b.MU.RLock()
	defer b.MU.RUnlock()
	return b.status
}

// Run is the loop. Incoming bytes are handled as they arrive,
// the ticker drives everything time based. Returns when ctx ends
// or the source closes.
func (b *Bridge) Run(ctx context.Context, tick time.Duration) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in bridge loop", slog.Any("panic", r))
			slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
		}
	}()

	slog.Info("Starting bridge",
		slog.String("source", b.Source.Type()),
		slog.String("transport", b.Dispatcher.Transport.Type()))

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	bytes := b.Source.Bytes()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-bytes:
			if !ok {
				slog.Info("Input closed, stopping bridge")
				return nil
			}
			b.Feed(ctx, chunk, b.Clock.NowMS())
		case <-ticker.C:
			b.Step(ctx, b.Clock.NowMS())
		}
	}
}
