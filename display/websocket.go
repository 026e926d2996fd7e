package teachtiles

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const framePushInterval = 100 * time.Millisecond

// FrameData is what browsers get on /ws
type FrameData struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Seq    uint64   `json:"seq"`
	Pixels []uint32 `json:"pixels"` // 0xRRGGBB, row-major from the top left
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FrameHub is a Panel that keeps the latest frame for websocket viewers
type FrameHub struct {
	MU    sync.RWMutex
	frame Frame
	seq   uint64
}

func NewFrameHub(g Grid) *FrameHub {
	return &FrameHub{frame: NewFrame(g)}
}

func (h *FrameHub) Present(f Frame) error {
	h.MU.Lock()
	defer h.MU.Unlock()
	h.frame = f.Clone()
	h.seq++
	return nil
}

// FrameData lays the strip back out in panel order
func (h *FrameHub) FrameData() FrameData {
	h.MU.RLock()
	defer h.MU.RUnlock()

	g := h.frame.Grid
	out := FrameData{
		Width:  g.Width,
		Height: g.Height,
		Seq:    h.seq,
		Pixels: make([]uint32, 0, g.Size()),
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			out.Pixels = append(out.Pixels, h.frame.At(x, y).Uint32())
		}
	}
	return out
}

func (h *FrameHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Frame viewer upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	// Send frames periodically, skipping ones already sent
	ticker := time.NewTicker(framePushInterval)
	defer ticker.Stop()
	var last uint64 = ^uint64(0)
	for range ticker.C {
		fd := h.FrameData()
		if fd.Seq == last {
			continue
		}
		last = fd.Seq
		if err := conn.WriteJSON(fd); err != nil {
			return // Connection closed
		}
	}
}
