package teachtiles

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	Ts "github.com/maroda/teachtiles/server"
	Tt "github.com/maroda/teachtiles/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SetupMux handles all data serving on the matrix side:
// - Prometheus metric endpoint
// - Websocket frame feed
// - Version and state
// - Bitmap, glyph, demo and diagnostic controls
// - Recent notes from the journal
func (r *Receiver) SetupMux(frames http.Handler) http.Handler {
	rt := mux.NewRouter()

	rt.Handle("/metrics", r.Stats.Handler())
	if frames != nil {
		rt.Handle("/ws", frames)
	}

	api := rt.PathPrefix("/api").Subrouter()
	api.Use(Ts.StatsMiddleware(r.Stats))
	api.HandleFunc("/version", Ts.VersionHandler).Methods(http.MethodGet)
	api.HandleFunc("/state", r.StateHandler).Methods(http.MethodGet)
	api.HandleFunc("/bitmap", r.BitmapHandler).Methods(http.MethodPost)
	api.HandleFunc("/bitmap", r.ClearBitmapHandler).Methods(http.MethodDelete)
	api.HandleFunc("/glyph", r.timedHandler(CmdGlyph)).Methods(http.MethodPost)
	api.HandleFunc("/demo", r.timedHandler(CmdDemo)).Methods(http.MethodPost)
	api.HandleFunc("/diagnostic", r.timedHandler(CmdDiagnostic)).Methods(http.MethodPost)
	api.HandleFunc("/notes", Ts.NotesHandler(r.Journal)).Methods(http.MethodGet)

	return otelhttp.NewHandler(rt, "matrix")
}

// MatrixState is the receiver snapshot served on /api/state
type MatrixState struct {
	Mode      string `json:"mode"`
	Overlay   string `json:"overlay,omitempty"`
	Transport string `json:"transport"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Visuals   int    `json:"visuals"`
	Lit       int    `json:"lit"`
	Received  uint64 `json:"received"`
	Short     uint64 `json:"short"`
	MIDIPort  string `json:"midiPort,omitempty"`
}

func ModeName(m Tt.DisplayMode) string {
	switch m {
	case Tt.ModeNormal:
		return "normal"
	case Tt.ModeStaticBitmap:
		return "static"
	default:
		return "unknown"
	}
}

func (r *Receiver) State() MatrixState {
	v := r.Visualizer
	f := v.Frame()
	st := MatrixState{
		Mode:     ModeName(v.Mode()),
		Overlay:  v.Overlay(),
		Width:    v.Grid.Width,
		Height:   v.Grid.Height,
		Visuals:  v.VisualCount(),
		Lit:      f.Lit(),
		Received: r.Received.Load(),
		Short:    r.Short.Load(),
	}
	if r.Source != nil {
		st.Transport = r.Source.Type()
	}
	r.getMIDIState(&st)
	return st
}

func (r *Receiver) StateHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(r.State())
}

// ReadBitmap takes either a JSON array of RGB565 values or raw
// big-endian uint16s when sent as application/octet-stream
func ReadBitmap(req *http.Request, want int) ([]uint16, error) {
	body := io.LimitReader(req.Body, int64(want)*8+1024)

	var buf []uint16
	if req.Header.Get("Content-Type") == "application/octet-stream" {
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		if len(raw)%2 != 0 {
			return nil, errors.New("odd byte count")
		}
		buf = make([]uint16, len(raw)/2)
		for i := range buf {
			buf[i] = binary.BigEndian.Uint16(raw[i*2:])
		}
	} else if err := json.NewDecoder(body).Decode(&buf); err != nil {
		return nil, err
	}

	if len(buf) != want {
		return nil, errors.New("bitmap is " + strconv.Itoa(len(buf)) + " pixels, want " + strconv.Itoa(want))
	}
	return buf, nil
}

func (r *Receiver) BitmapHandler(w http.ResponseWriter, req *http.Request) {
	buf, err := ReadBitmap(req, r.Visualizer.Grid.Size())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.submit(w, Command{Kind: CmdBitmap, Bitmap: buf})
}

func (r *Receiver) ClearBitmapHandler(w http.ResponseWriter, req *http.Request) {
	r.submit(w, Command{Kind: CmdClearBitmap})
}

// timedHandler reads an optional ?ms= for glyph and demo
func (r *Receiver) timedHandler(kind CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		cmd := Command{Kind: kind}
		if s := req.URL.Query().Get("ms"); s != "" {
			// 31 bits, the overlay deadline is compared as a signed offset
			ms, err := strconv.ParseUint(s, 10, 31)
			if err != nil {
				http.Error(w, "invalid ms", http.StatusBadRequest)
				return
			}
			cmd.MS = uint32(ms)
		}
		r.submit(w, cmd)
	}
}

func (r *Receiver) submit(w http.ResponseWriter, cmd Command) {
	if err := r.Submit(cmd); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
