package plugin

/*
	Link

	Point-to-point serial link, e.g. an SPP Bluetooth
	port bound to /dev/rfcomm0. Packets are written
	back to back; the receiver frames them by size.
*/

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

const linkOutbox = 64

type LinkTransport struct {
	MU     sync.Mutex
	W      io.WriteCloser
	outbox chan []byte
	closed bool
	failed bool
	WG     sync.WaitGroup
}

// NewLinkTransport writes packets to w from its own goroutine
func NewLinkTransport(w io.WriteCloser) *LinkTransport {
	lt := &LinkTransport{
		W:      w,
		outbox: make(chan []byte, linkOutbox),
	}
	lt.WG.Add(1)
	go lt.write()
	return lt
}

func OpenSerialLink(device string, baud int) (*LinkTransport, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		slog.Error("Could not open link",
			slog.String("device", device),
			slog.Int("baud", baud),
			slog.Any("error", err))
		return nil, fmt.Errorf("link open %q: %w", device, err)
	}
	slog.Info("Link opened", slog.String("device", device), slog.Int("baud", baud))
	return NewLinkTransport(port), nil
}

// OpenSerialLinkSource is the receiving end of a link
func OpenSerialLinkSource(device string, baud int) (*FrameSource, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("link open %q: %w", device, err)
	}
	slog.Info("Link listening", slog.String("device", device))
	return NewFrameSource(NewReaderSource(port, "link")), nil
}

func (lt *LinkTransport) write() {
	defer lt.WG.Done()
	for pkt := range lt.outbox {
		if _, err := lt.W.Write(pkt); err != nil {
			slog.Error("Link write failed, link is down", slog.Any("error", err))
			lt.MU.Lock()
			lt.failed = true
			lt.MU.Unlock()
		}
	}
}

func (lt *LinkTransport) Ready() bool {
	lt.MU.Lock()
	defer lt.MU.Unlock()
	return !lt.closed && !lt.failed
}

// Send queues the packet, a full outbox means the link is stalled
func (lt *LinkTransport) Send(packet []byte) error {
	lt.MU.Lock()
	defer lt.MU.Unlock()
	if lt.closed || lt.failed {
		return ErrNotReady
	}
	pkt := make([]byte, len(packet))
	copy(pkt, packet)
	select {
	case lt.outbox <- pkt:
		return nil
	default:
		return ErrOutboxFull
	}
}

func (lt *LinkTransport) Close() error {
	lt.MU.Lock()
	if lt.closed {
		lt.MU.Unlock()
		return nil
	}
	lt.closed = true
	close(lt.outbox)
	lt.MU.Unlock()

	lt.WG.Wait()
	return lt.W.Close()
}

func (lt *LinkTransport) Type() string { return "link" }
