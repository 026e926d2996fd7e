package teachtiles

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const DefaultTickInterval = 20 * time.Millisecond

// RenderSupervisor owns the receiver loop: ticks, packets and commands
// all arrive here, so the visualizer only ever sees one caller
type RenderSupervisor struct {
	Receiver *Receiver
	Interval time.Duration
	Ticker   *time.Ticker
	StopChan chan struct{}
	WG       sync.WaitGroup
}

// NewRenderSupervisor couples the supervisor to the receiver
func (r *Receiver) NewRenderSupervisor(interval time.Duration) *RenderSupervisor {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	rs := &RenderSupervisor{
		Receiver: r,
		Interval: interval,
	}
	r.Supervisor = rs
	return rs
}

// Start the RenderSupervisor
func (p *RenderSupervisor) Start() {
	p.StopChan = make(chan struct{})
	p.Ticker = time.NewTicker(p.Interval)

	var packets <-chan []byte
	if p.Receiver.Source != nil {
		packets = p.Receiver.Source.Packets()
	}

	p.WG.Add(1)
	go func() {
		defer p.WG.Done()
		defer p.Ticker.Stop()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in render loop", slog.Any("panic", r))
				slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
			}
		}()

		r := p.Receiver
		for {
			select {
			case <-p.Ticker.C:
				r.Tick(r.Clock.NowMS())
			case pkt, ok := <-packets:
				if !ok {
					slog.Info("Packet source closed")
					packets = nil
					continue
				}
				r.HandlePacket(pkt, r.Clock.NowMS())
			case cmd := <-r.Commands():
				r.Apply(cmd, r.Clock.NowMS())
			case <-p.StopChan:
				return
			}
		}
	}()
}

// Stop the RenderSupervisor
func (p *RenderSupervisor) Stop() {
	if p.StopChan != nil {
		close(p.StopChan)
		p.WG.Wait()
		p.StopChan = nil
	}
}

// Restart the RenderSupervisor
func (p *RenderSupervisor) Restart() {
	p.Stop()
	p.Start()
}
