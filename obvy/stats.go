package teachtiles

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal holds the prometheus collectors on a private registry,
// so more than one can exist in a process (tests, bridge + matrix).
// A nil *StatsInternal is valid and records nothing.
type StatsInternal struct {
	Registry *prometheus.Registry

	MIDIBytes       prometheus.Counter
	NotesDispatched *prometheus.CounterVec
	NotesDropped    *prometheus.CounterVec
	OrphanOffs      prometheus.Counter
	SignalPresent   prometheus.Gauge
	PacketsReceived prometheus.Counter
	PacketsShort    prometheus.Counter
	ActiveVisuals   prometheus.Gauge
	TickTimer       prometheus.Histogram
	WWWRequests     *prometheus.CounterVec
}

func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &StatsInternal{
		Registry: reg,
		MIDIBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "teachtiles_midi_bytes_total",
			Help: "Raw MIDI bytes read by the bridge",
		}),
		NotesDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teachtiles_notes_dispatched_total",
			Help: "Completed notes handed to a transport",
		}, []string{"transport"}),
		NotesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teachtiles_notes_dropped_total",
			Help: "Completed notes that could not be sent",
		}, []string{"transport", "reason"}),
		OrphanOffs: f.NewCounter(prometheus.CounterOpts{
			Name: "teachtiles_orphan_offs_total",
			Help: "NoteOff messages with no matching NoteOn",
		}),
		SignalPresent: f.NewGauge(prometheus.GaugeOpts{
			Name: "teachtiles_signal_present",
			Help: "1 while MIDI bytes arrive within the watchdog window",
		}),
		PacketsReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "teachtiles_packets_received_total",
			Help: "Note packets decoded by the receiver",
		}),
		PacketsShort: f.NewCounter(prometheus.CounterOpts{
			Name: "teachtiles_packets_short_total",
			Help: "Packets shorter than five bytes",
		}),
		ActiveVisuals: f.NewGauge(prometheus.GaugeOpts{
			Name: "teachtiles_active_visuals",
			Help: "Note visuals currently on the matrix",
		}),
		TickTimer: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "teachtiles_tick_seconds",
			Help:    "Time spent in one render tick",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		WWWRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teachtiles_www_requests_total",
			Help: "API requests by status code and method",
		}, []string{"code", "method"}),
	}
}

// Handler serves this registry only
func (s *StatsInternal) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

func (s *StatsInternal) RecMIDIBytes(n int) {
	if s == nil {
		return
	}
	s.MIDIBytes.Add(float64(n))
}

func (s *StatsInternal) RecDispatch(transport string) {
	if s == nil {
		return
	}
	s.NotesDispatched.WithLabelValues(transport).Inc()
}

func (s *StatsInternal) RecDrop(transport, reason string) {
	if s == nil {
		return
	}
	s.NotesDropped.WithLabelValues(transport, reason).Inc()
}

func (s *StatsInternal) RecOrphan() {
	if s == nil {
		return
	}
	s.OrphanOffs.Inc()
}

func (s *StatsInternal) RecSignal(present bool) {
	if s == nil {
		return
	}
	if present {
		s.SignalPresent.Set(1)
	} else {
		s.SignalPresent.Set(0)
	}
}

func (s *StatsInternal) RecPacket(short bool) {
	if s == nil {
		return
	}
	if short {
		s.PacketsShort.Inc()
		return
	}
	s.PacketsReceived.Inc()
}

func (s *StatsInternal) RecVisuals(n int) {
	if s == nil {
		return
	}
	s.ActiveVisuals.Set(float64(n))
}

func (s *StatsInternal) RecTickTimer(seconds float64) {
	if s == nil {
		return
	}
	s.TickTimer.Observe(seconds)
}

func (s *StatsInternal) RecWWW(code, method string) {
	if s == nil {
		return
	}
	s.WWWRequests.WithLabelValues(code, method).Inc()
}
