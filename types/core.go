package types

/*

	These are the "immutable" core types of TeachTiles,
	provided for cross-package use (e.g. Plugins) and testing.

	There are no functions defined here.
	Struct constructors are housed in their own packages.

*/

// NoteKind says whether a parsed MIDI pair starts or ends a note
type NoteKind int

const (
	NoteOn  NoteKind = iota // Status 0x9_ with velocity > 0
	NoteOff                 // Status 0x8_, or 0x9_ with velocity == 0
)

// NoteEvent is produced by the Parser and consumed by the Tracker.
// Once the Tracker pairs an On with its Off, DurationMS is filled in
// and the event is ready to be dispatched. It is never persisted
// except by the optional note journal.
type NoteEvent struct {
	Note       uint8    // 0..127
	Kind       NoteKind // On or Off
	Velocity   uint8    // 0..127, zero for Off
	AtMS       uint32   // monotonic milliseconds when the pair completed
	DurationMS uint32   // only set on completed notes
}

// PacketSize is the fixed length of the wire packet
const PacketSize = 5

// NotePacket is the wire representation:
// note (1 byte), duration in ms (4 bytes, big-endian, unsigned)
type NotePacket [PacketSize]byte

// TransportKind selects exactly one send primitive
type TransportKind string

const (
	TransportLink     TransportKind = "link"     // point-to-point serial/SPP-style link
	TransportPeer     TransportKind = "peer"     // direct peer broadcast
	TransportDatagram TransportKind = "datagram" // connectionless UDP
)

// DisplayMode is the persistent rendering mode of the visualizer.
// The transient overlays (glyph, sweep) pre-empt either mode.
type DisplayMode int

const (
	ModeNormal       DisplayMode = iota // animated notes
	ModeStaticBitmap                    // frozen caller-supplied RGB565 image
)

// ActiveVisual is one note occurrence on the matrix.
// Repeated notes stack independent visuals.
type ActiveVisual struct {
	PixelIndex int    // strip index of the centre pixel
	Hue        uint8  // pitch-class hue
	Velocity   uint8  // strike velocity
	ExpireAtMS uint32 // nominal end of the note
	TrailLevel uint8  // decaying brightness
}

// NowPlaying is the status snapshot reported by the Tracker
type NowPlaying struct {
	SignalPresent bool   // MIDI bytes seen within the watchdog window
	Playing       bool   // a note is currently held
	Note          uint8  // the held note
	Name          string // e.g. "C#4"
	Velocity      uint8  // strike velocity of the held note
	SinceMS       uint32 // when it started
}
