package plugin

/*
	The Adapter sits aside /teachtiles/
	Contains core interfaces for Plugin
*/

import (
	"errors"
	"time"

	Tt "github.com/maroda/teachtiles/types"
)

// ErrNotReady is returned by Send when the link, peer or socket is not established
var ErrNotReady = errors.New("transport not ready")

// ErrOutboxFull is returned when a send would have to wait
var ErrOutboxFull = errors.New("transport outbox full")

// Transport is one of the interchangeable send primitives.
// Send must never block the caller for long, a send
// that can't go out right away is dropped.
type Transport interface {
	Ready() bool              // link open, peer resolved, socket bound
	Send(packet []byte) error // fire and forget
	Close() error             // release resources
	Type() string             // ID for the transport
}

// PacketSource is the receiving half of a transport.
// Packets are delivered to the channel until ctx ends or Close is called.
type PacketSource interface {
	Packets() <-chan []byte
	Close() error
	Type() string
}

// ByteSource supplies raw MIDI bytes to the bridge.
// Chunks are delivered as they arrive; the reader never waits on them.
type ByteSource interface {
	Bytes() <-chan []byte
	Close() error
	Type() string
}

// NoteJournal stores completed notes for later inspection
type NoteJournal interface {
	WriteNote(note *Tt.NoteEvent, at time.Time) error          // Write a single note
	QueryRange(start, end time.Time) ([]*JournalEntry, error) // Time range query tool
	Flush() error                                             // Flush any buffered data
	Close() error                                             // Close the journal and release resources
	Type() string                                             // ID for journal
}

// NoteSink receives every note the receiver shows, e.g. a MIDI thru port
type NoteSink interface {
	PlayNote(note, velocity uint8, duration time.Duration) error
	Close() error
	Type() string
}
