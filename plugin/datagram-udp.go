package plugin

/*
	Datagram

	Connectionless UDP delivery of note packets.
	Sending works to a unicast or broadcast address,
	the listener accepts from anywhere.
*/

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"
)

const (
	datagramWriteTimeout = 5 * time.Millisecond
	datagramReadSize     = 1024
	sourceBuffer         = 256
)

type DatagramTransport struct {
	MU   sync.Mutex
	Conn *net.UDPConn
	Dest *net.UDPAddr
}

// NewDatagramTransport resolves the destination and opens an unconnected socket.
// A broadcast destination needs SO_BROADCAST, which is set on every socket.
func NewDatagramTransport(addr string) (*DatagramTransport, error) {
	dest, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		slog.Error("Could not resolve datagram destination", slog.String("addr", addr), slog.Any("error", err))
		return nil, fmt.Errorf("resolve %q: %w", addr, err)
	}

	lc := net.ListenConfig{Control: setBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		slog.Error("Could not open datagram socket", slog.Any("error", err))
		return nil, fmt.Errorf("datagram socket: %w", err)
	}

	slog.Info("Datagram transport ready", slog.String("dest", dest.String()))
	return &DatagramTransport{
		Conn: pc.(*net.UDPConn),
		Dest: dest,
	}, nil
}

// setBroadcast runs before bind, the option itself is per platform
func setBroadcast(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = enableBroadcast(fd)
	})
	if err != nil {
		return err
	}
	return serr
}

func (dt *DatagramTransport) Ready() bool {
	dt.MU.Lock()
	defer dt.MU.Unlock()
	return dt.Conn != nil && dt.Dest != nil
}

// Send writes one datagram with a short deadline so the loop never stalls
func (dt *DatagramTransport) Send(packet []byte) error {
	dt.MU.Lock()
	defer dt.MU.Unlock()
	if dt.Conn == nil || dt.Dest == nil {
		return ErrNotReady
	}
	if err := dt.Conn.SetWriteDeadline(time.Now().Add(datagramWriteTimeout)); err != nil {
		return fmt.Errorf("datagram deadline: %w", err)
	}
	if _, err := dt.Conn.WriteToUDP(packet, dt.Dest); err != nil {
		return fmt.Errorf("datagram send: %w", err)
	}
	return nil
}

func (dt *DatagramTransport) Close() error {
	dt.MU.Lock()
	defer dt.MU.Unlock()
	if dt.Conn == nil {
		return nil
	}
	err := dt.Conn.Close()
	dt.Conn = nil
	return err
}

func (dt *DatagramTransport) Type() string { return "datagram" }

// DatagramListener is the receiving side, one packet per datagram
type DatagramListener struct {
	Conn    *net.UDPConn
	packets chan []byte
	done    chan struct{}
	once    sync.Once
	WG      sync.WaitGroup
}

func NewDatagramListener(addr string) (*DatagramListener, error) {
	laddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		slog.Error("Could not listen for datagrams", slog.String("addr", addr), slog.Any("error", err))
		return nil, fmt.Errorf("listen %q: %w", addr, err)
	}

	dl := &DatagramListener{
		Conn:    conn,
		packets: make(chan []byte, sourceBuffer),
		done:    make(chan struct{}),
	}
	dl.WG.Add(1)
	go dl.read()

	slog.Info("Listening for datagrams", slog.String("addr", conn.LocalAddr().String()))
	return dl, nil
}

func (dl *DatagramListener) read() {
	defer dl.WG.Done()
	defer close(dl.packets)
	buf := make([]byte, datagramReadSize)
	for {
		n, from, err := dl.Conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("Datagram read failed", slog.Any("error", err))
			continue
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		select {
		case dl.packets <- pkt:
		case <-dl.done:
			return
		default:
			slog.Warn("Receiver busy, dropped datagram", slog.String("from", from.String()))
		}
	}
}

func (dl *DatagramListener) Packets() <-chan []byte { return dl.packets }

func (dl *DatagramListener) Close() error {
	var err error
	dl.once.Do(func() {
		close(dl.done)
		err = dl.Conn.Close()
		dl.WG.Wait()
	})
	return err
}

func (dl *DatagramListener) Type() string { return "datagram" }
