package teachtiles

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	To "github.com/maroda/teachtiles/obvy"
	Tp "github.com/maroda/teachtiles/plugin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var Version = "dev"

// SetupMux serves the bridge side:
// - Prometheus metric endpoint
// - Peer endpoint, when the transport is a peer hub
// - Version and now-playing status
// - Recent notes from the journal
func (b *Bridge) SetupMux() http.Handler {
	r := mux.NewRouter()

	r.Handle("/metrics", b.Stats.Handler())
	if hub, ok := b.Dispatcher.Transport.(http.Handler); ok {
		r.Handle("/peer", hub)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(StatsMiddleware(b.Stats))
	api.HandleFunc("/version", VersionHandler).Methods(http.MethodGet)
	api.HandleFunc("/status", b.StatusHandler).Methods(http.MethodGet)
	api.HandleFunc("/notes", NotesHandler(b.Dispatcher.Journal)).Methods(http.MethodGet)

	return otelhttp.NewHandler(r, "bridge")
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

type BridgeStatus struct {
	SignalPresent bool   `json:"signalPresent"`
	Playing       bool   `json:"playing"`
	Note          int    `json:"note,omitempty"`
	Name          string `json:"name,omitempty"`
	Velocity      int    `json:"velocity,omitempty"`
	Transport     string `json:"transport"`
	Ready         bool   `json:"ready"`
	Sent          uint64 `json:"sent"`
	Dropped       uint64 `json:"dropped"`
}

func (b *Bridge) StatusHandler(w http.ResponseWriter, r *http.Request) {
	st := b.Status()
	out := BridgeStatus{
		SignalPresent: st.SignalPresent,
		Playing:       st.Playing,
		Transport:     b.Dispatcher.Transport.Type(),
		Ready:         b.Dispatcher.Transport.Ready(),
		Sent:          b.Dispatcher.Sent.Load(),
		Dropped:       b.Dispatcher.Dropped.Load(),
	}
	if st.Playing {
		out.Note = int(st.Note)
		out.Name = st.Name
		out.Velocity = int(st.Velocity)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// DefaultNotesWindow is how far back /api/notes looks without ?since=
const DefaultNotesWindow = time.Hour

type NoteRecord struct {
	At         time.Time `json:"at"`
	Note       int       `json:"note"`
	Name       string    `json:"name"`
	Velocity   int       `json:"velocity"`
	DurationMS uint32    `json:"durationMs"`
}

// NotesHandler lists journalled notes, ?since= takes a duration like 5m
func NotesHandler(journal Tp.NoteJournal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			http.Error(w, "journal disabled", http.StatusNotFound)
			return
		}

		window := DefaultNotesWindow
		if s := r.URL.Query().Get("since"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil || d <= 0 {
				http.Error(w, "invalid since", http.StatusBadRequest)
				return
			}
			window = d
		}

		end := time.Now().Add(time.Millisecond)
		entries, err := journal.QueryRange(end.Add(-window), end)
		if err != nil {
			http.Error(w, "journal query failed", http.StatusInternalServerError)
			return
		}

		out := make([]NoteRecord, 0, len(entries))
		for _, e := range entries {
			out = append(out, NoteRecord{
				At:         e.At,
				Note:       int(e.Note),
				Name:       NoteName(e.Note),
				Velocity:   int(e.Velocity),
				DurationMS: e.DurationMS,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

// StatsMiddleware counts API requests by status and method
func StatsMiddleware(stats *To.StatsInternal) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &RespWriter{
				ResponseWriter: w,
				Status:         200,
			}
			next.ServeHTTP(wrapped, r)
			stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
		})
	}
}
