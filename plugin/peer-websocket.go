package plugin

/*
	Peer

	Direct peer broadcast over websockets. The bridge
	runs a PeerHub at /peer; every receiver that dials
	in gets each packet as one binary message.
*/

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	peerOutbox       = 64
	peerWriteTimeout = 250 * time.Millisecond
	peerRedialMin    = 500 * time.Millisecond
	peerRedialMax    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type peer struct {
	conn   *websocket.Conn
	outbox chan []byte
}

// PeerHub is the sending side, it is both a Transport and an http.Handler
type PeerHub struct {
	MU     sync.RWMutex
	peers  map[*peer]struct{}
	closed bool
	WG     sync.WaitGroup
}

func NewPeerHub() *PeerHub {
	return &PeerHub{peers: make(map[*peer]struct{})}
}

func (ph *PeerHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Peer upgrade failed", slog.Any("error", err))
		return
	}

	p := &peer{conn: conn, outbox: make(chan []byte, peerOutbox)}
	ph.MU.Lock()
	if ph.closed {
		ph.MU.Unlock()
		conn.Close()
		return
	}
	ph.peers[p] = struct{}{}
	ph.WG.Add(1)
	ph.MU.Unlock()
	slog.Info("Peer joined", slog.String("remote", r.RemoteAddr), slog.Int("peers", ph.Count()))

	go ph.writePeer(p)

	// The read side only notices the peer going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	ph.drop(p)
	slog.Info("Peer left", slog.String("remote", r.RemoteAddr), slog.Int("peers", ph.Count()))
}

func (ph *PeerHub) writePeer(p *peer) {
	defer ph.WG.Done()
	defer p.conn.Close()
	for pkt := range p.outbox {
		p.conn.SetWriteDeadline(time.Now().Add(peerWriteTimeout))
		if err := p.conn.WriteMessage(websocket.BinaryMessage, pkt); err != nil {
			slog.Warn("Peer write failed", slog.Any("error", err))
			go ph.drop(p)
			for range p.outbox {
			}
			return
		}
	}
}

func (ph *PeerHub) drop(p *peer) {
	ph.MU.Lock()
	defer ph.MU.Unlock()
	if _, ok := ph.peers[p]; !ok {
		return
	}
	delete(ph.peers, p)
	close(p.outbox)
}

func (ph *PeerHub) Count() int {
	ph.MU.RLock()
	defer ph.MU.RUnlock()
	return len(ph.peers)
}

// Ready is true once at least one receiver has joined
func (ph *PeerHub) Ready() bool {
	return ph.Count() > 0
}

// Send offers the packet to every peer, a peer with a full outbox misses it
func (ph *PeerHub) Send(packet []byte) error {
	ph.MU.RLock()
	defer ph.MU.RUnlock()
	if ph.closed || len(ph.peers) == 0 {
		return ErrNotReady
	}

	var missed int
	for p := range ph.peers {
		pkt := make([]byte, len(packet))
		copy(pkt, packet)
		select {
		case p.outbox <- pkt:
		default:
			missed++
		}
	}
	if missed == len(ph.peers) {
		return ErrOutboxFull
	}
	return nil
}

func (ph *PeerHub) Close() error {
	ph.MU.Lock()
	ph.closed = true
	for p := range ph.peers {
		delete(ph.peers, p)
		close(p.outbox)
	}
	ph.MU.Unlock()
	ph.WG.Wait()
	return nil
}

func (ph *PeerHub) Type() string { return "peer" }

// PeerClient is the receiving side. It dials the hub and keeps redialing
// with backoff until Close.
type PeerClient struct {
	URL     string
	packets chan []byte
	cancel  context.CancelFunc
	MU      sync.Mutex
	conn    *websocket.Conn
	WG      sync.WaitGroup
}

func NewPeerClient(ctx context.Context, url string) *PeerClient {
	ctx, cancel := context.WithCancel(ctx)
	pc := &PeerClient{
		URL:     url,
		packets: make(chan []byte, sourceBuffer),
		cancel:  cancel,
	}
	pc.WG.Add(1)
	go pc.run(ctx)
	return pc
}

func (pc *PeerClient) run(ctx context.Context) {
	defer pc.WG.Done()
	defer close(pc.packets)

	wait := peerRedialMin
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, pc.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Peer dial failed, retrying",
				slog.String("url", pc.URL),
				slog.Duration("wait", wait),
				slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			wait = min(wait*2, peerRedialMax)
			continue
		}

		slog.Info("Connected to peer hub", slog.String("url", pc.URL))
		wait = peerRedialMin
		pc.MU.Lock()
		pc.conn = conn
		pc.MU.Unlock()

		pc.receive(ctx, conn)

		pc.MU.Lock()
		pc.conn = nil
		pc.MU.Unlock()
		conn.Close()
		if ctx.Err() != nil {
			return
		}
	}
}

func (pc *PeerClient) receive(ctx context.Context, conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Peer connection lost", slog.Any("error", err))
			}
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		select {
		case pc.packets <- data:
		case <-ctx.Done():
			return
		default:
			slog.Warn("Receiver busy, dropped packet")
		}
	}
}

// Connected reports whether the client currently holds a hub connection
func (pc *PeerClient) Connected() bool {
	pc.MU.Lock()
	defer pc.MU.Unlock()
	return pc.conn != nil
}

func (pc *PeerClient) Packets() <-chan []byte { return pc.packets }

func (pc *PeerClient) Close() error {
	pc.cancel()
	pc.MU.Lock()
	if pc.conn != nil {
		pc.conn.Close()
	}
	pc.MU.Unlock()
	pc.WG.Wait()
	return nil
}

func (pc *PeerClient) Type() string { return "peer" }
