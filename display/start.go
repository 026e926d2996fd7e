package teachtiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	To "github.com/maroda/teachtiles/obvy"
	Tp "github.com/maroda/teachtiles/plugin"
	Ts "github.com/maroda/teachtiles/server"
	Tt "github.com/maroda/teachtiles/types"
)

// OpenPacketSource opens the receiving half of the configured transport
func OpenPacketSource(ctx context.Context, c *Ts.ConfigFile) (Tp.PacketSource, error) {
	switch c.Transport {
	case Tt.TransportDatagram:
		return Tp.NewDatagramListener(c.Datagram.Listen)
	case Tt.TransportPeer:
		return Tp.NewPeerClient(ctx, c.Peer.Dial), nil
	case Tt.TransportLink:
		return Tp.OpenSerialLinkSource(c.Link.Device, c.Link.Baud)
	default:
		return nil, fmt.Errorf("unknown transport %q", c.Transport)
	}
}

// GridFromConfig applies size and note range
func GridFromConfig(c *Ts.ConfigFile) Grid {
	g := NewGrid(c.Grid.Width, c.Grid.Height)
	g.MinNote = uint8(c.Notes.Min)
	g.MaxNote = uint8(c.Notes.Max)
	return g
}

// NewVisualizerFromConfig builds the engine with the configured timings
func NewVisualizerFromConfig(c *Ts.ConfigFile, panel Panel) *Visualizer {
	v := NewVisualizer(GridFromConfig(c), panel)
	v.DefaultMS = uint32(c.Visual.DefaultMS)
	v.MaxMS = uint32(c.Visual.MaxMS)
	return v
}

// NewReceiverFromConfig opens the packet source, the journal and
// optionally MIDI thru. A MIDI thru failure is logged, not fatal.
func NewReceiverFromConfig(ctx context.Context, c *Ts.ConfigFile, panel Panel, stats *To.StatsInternal) (*Receiver, error) {
	src, err := OpenPacketSource(ctx, c)
	if err != nil {
		slog.Error("Could not open packet source", slog.String("transport", string(c.Transport)), slog.Any("error", err))
		return nil, fmt.Errorf("packet source: %w", err)
	}

	r := NewReceiver(NewVisualizerFromConfig(c, panel), src, stats)
	r.GlyphMS = uint32(c.Visual.GlyphMS)

	journal, err := Ts.OpenJournal(c.Journal)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	if journal != nil {
		r.Journal = journal
	}

	if c.MIDIThru >= 0 {
		if err := InitMIDIThru(r, c.MIDIThru); err != nil {
			slog.Warn("Continuing without MIDI thru", slog.Any("error", err))
		}
	}

	r.NewRenderSupervisor(time.Duration(c.Visual.TickMS) * time.Millisecond)
	return r, nil
}

// StartMatrix runs the render loop and the web server until ctx ends
func StartMatrix(ctx context.Context, r *Receiver, addr string, frames *FrameHub) error {
	if r.Supervisor == nil {
		r.NewRenderSupervisor(0)
	}
	r.Supervisor.Start()
	defer r.Supervisor.Stop()

	slog.Info("Starting matrix",
		slog.String("transport", r.Source.Type()),
		slog.Int("width", r.Visualizer.Grid.Width),
		slog.Int("height", r.Visualizer.Grid.Height))

	var ws http.Handler
	if frames != nil {
		ws = frames
	}
	err := Ts.ServeHTTP(ctx, addr, r.SetupMux(ws))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
