package teachtiles

import (
	"log/slog"

	Tt "github.com/maroda/teachtiles/types"
)

const (
	// DefaultWatchdogMS is how long without MIDI before the signal is considered gone
	DefaultWatchdogMS = 2000
	noteSlots         = 128
)

// noteOnRecord is one slot of the on-time table.
// onMS == 0 means there is no active On for this note.
type noteOnRecord struct {
	onMS     uint32
	velocity uint8
}

// Tracker pairs NoteOn/NoteOff into notes with a duration.
// The table is a fixed arena indexed by note number.
type Tracker struct {
	slots      [noteSlots]noteOnRecord
	watchdogMS uint32

	lastActivityMS uint32
	signalPresent  bool

	playing     bool
	playingNote uint8
	playingVel  uint8
	playingAtMS uint32

	Orphans uint64 // Offs with no matching On
}

// NewTracker returns a Tracker with the given watchdog window,
// zero or less uses DefaultWatchdogMS
func NewTracker(watchdogMS int) *Tracker {
	if watchdogMS <= 0 {
		watchdogMS = DefaultWatchdogMS
	}
	return &Tracker{watchdogMS: uint32(watchdogMS)}
}

func clampNote(note uint8) uint8 {
	if note > 127 {
		return 127
	}
	return note
}

// NoteOn records the start of a note. A second On for a held
// note is a retrigger and simply overwrites the start time.
func (t *Tracker) NoteOn(note, velocity uint8, nowMS uint32) {
	note = clampNote(note)
	at := nowMS
	if at == 0 {
		at = 1 // 0 is the "unset" sentinel
	}
	if t.slots[note].onMS != 0 {
		slog.Debug("Retrigger", slog.String("note", NoteName(note)))
	}
	t.slots[note] = noteOnRecord{onMS: at, velocity: velocity}

	t.playing = true
	t.playingNote = note
	t.playingVel = velocity
	t.playingAtMS = at
}

// NoteOff completes a note. An Off without an On is dropped
// and reported as false, nothing downstream should happen.
func (t *Tracker) NoteOff(note uint8, nowMS uint32) (Tt.NoteEvent, bool) {
	note = clampNote(note)
	rec := t.slots[note]
	if rec.onMS == 0 {
		t.Orphans++
		slog.Debug("Ignored orphan off", slog.String("note", NoteName(note)))
		return Tt.NoteEvent{}, false
	}

	// uint32 subtraction keeps working across a millis wrap.
	// A result past half the range means now is behind the stored
	// On, which happens when an On at 0 was stored as 1.
	duration := nowMS - rec.onMS
	if duration == 0 || duration >= 1<<31 {
		duration = 1
	}
	t.slots[note] = noteOnRecord{}

	if t.playing && t.playingNote == note {
		t.playing = false
	}

	return Tt.NoteEvent{
		Note:       note,
		Kind:       Tt.NoteOff,
		Velocity:   rec.velocity,
		AtMS:       nowMS,
		DurationMS: duration,
	}, true
}

// Handle routes a parsed event and returns the completed note, if any
func (t *Tracker) Handle(ev Tt.NoteEvent, nowMS uint32) (Tt.NoteEvent, bool) {
	switch ev.Kind {
	case Tt.NoteOn:
		t.NoteOn(ev.Note, ev.Velocity, nowMS)
	case Tt.NoteOff:
		return t.NoteOff(ev.Note, nowMS)
	}
	return Tt.NoteEvent{}, false
}

// Observe marks MIDI activity, any byte counts
func (t *Tracker) Observe(nowMS uint32) {
	t.lastActivityMS = nowMS
	t.signalPresent = true
}

// Watchdog clears the presentation state after a silent window.
// It never creates a NoteEvent and leaves the on-time table alone.
// Returns true when the signal was just lost.
func (t *Tracker) Watchdog(nowMS uint32) bool {
	if !t.signalPresent {
		return false
	}
	if nowMS-t.lastActivityMS < t.watchdogMS {
		return false
	}
	t.signalPresent = false
	t.playing = false
	return true
}

// Active reports whether a note currently has an On recorded
func (t *Tracker) Active(note uint8) bool {
	return t.slots[clampNote(note)].onMS != 0
}

// Status is the snapshot for status reporting
func (t *Tracker) Status() Tt.NowPlaying {
	np := Tt.NowPlaying{
		SignalPresent: t.signalPresent,
		Playing:       t.playing,
	}
	if t.playing {
		np.Note = t.playingNote
		np.Name = NoteName(t.playingNote)
		np.Velocity = t.playingVel
		np.SinceMS = t.playingAtMS
	}
	return np
}
