package plugin

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	Tt "github.com/maroda/teachtiles/types"
	"go.bug.st/serial"
)

const readChunk = 64

// ReaderSource turns any byte stream (UART, stdin, a pipe) into a ByteSource
type ReaderSource struct {
	R     io.ReadCloser
	Name  string
	bytes chan []byte
	done  chan struct{}
	once  sync.Once
	WG    sync.WaitGroup
}

func NewReaderSource(r io.ReadCloser, name string) *ReaderSource {
	rs := &ReaderSource{
		R:     r,
		Name:  name,
		bytes: make(chan []byte, sourceBuffer),
		done:  make(chan struct{}),
	}
	rs.WG.Add(1)
	go rs.read()
	return rs
}

// OpenSerialSource reads raw MIDI from a UART, normally at 31250 baud
func OpenSerialSource(device string, baud int) (*ReaderSource, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		slog.Error("Could not open serial MIDI input",
			slog.String("device", device),
			slog.Int("baud", baud),
			slog.Any("error", err))
		return nil, fmt.Errorf("serial open %q: %w", device, err)
	}
	slog.Info("Serial MIDI input opened", slog.String("device", device), slog.Int("baud", baud))
	return NewReaderSource(port, "serial"), nil
}

func (rs *ReaderSource) read() {
	defer rs.WG.Done()
	defer close(rs.bytes)
	buf := make([]byte, readChunk)
	for {
		n, err := rs.R.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case rs.bytes <- chunk:
			case <-rs.done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case <-rs.done:
				default:
					slog.Error("Byte source read failed", slog.String("source", rs.Name), slog.Any("error", err))
				}
			}
			return
		}
	}
}

func (rs *ReaderSource) Bytes() <-chan []byte { return rs.bytes }

func (rs *ReaderSource) Close() error {
	var err error
	rs.once.Do(func() {
		close(rs.done)
		err = rs.R.Close()
	})
	return err
}

func (rs *ReaderSource) Type() string { return rs.Name }

// FrameSource cuts a byte stream into fixed five byte packets
type FrameSource struct {
	src     ByteSource
	packets chan []byte
	WG      sync.WaitGroup
}

func NewFrameSource(src ByteSource) *FrameSource {
	fs := &FrameSource{
		src:     src,
		packets: make(chan []byte, sourceBuffer),
	}
	fs.WG.Add(1)
	go fs.frame()
	return fs
}

func (fs *FrameSource) frame() {
	defer fs.WG.Done()
	defer close(fs.packets)
	pending := make([]byte, 0, Tt.PacketSize*4)
	for chunk := range fs.src.Bytes() {
		pending = append(pending, chunk...)
		for len(pending) >= Tt.PacketSize {
			pkt := make([]byte, Tt.PacketSize)
			copy(pkt, pending[:Tt.PacketSize])
			pending = append(pending[:0], pending[Tt.PacketSize:]...)
			select {
			case fs.packets <- pkt:
			default:
				slog.Warn("Receiver busy, dropped packet", slog.String("source", fs.src.Type()))
			}
		}
	}
}

func (fs *FrameSource) Packets() <-chan []byte { return fs.packets }

func (fs *FrameSource) Close() error {
	err := fs.src.Close()
	fs.WG.Wait()
	return err
}

func (fs *FrameSource) Type() string { return fs.src.Type() }
