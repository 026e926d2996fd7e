package plugin_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	Tp "github.com/maroda/teachtiles/plugin"
	Tt "github.com/maroda/teachtiles/types"
)

func TestNewBadgerJournal(t *testing.T) {
	t.Run("Opens a journal on disk", func(t *testing.T) {
		got, err := Tp.NewBadgerJournal(t.TempDir(), 10)
		assertError(t, err, nil)
		defer got.Close()
		assertInt(t, got.BatchSize, 10)
		assertStringContains(t, got.Type(), "BadgerDB")
	})

	t.Run("Zero batch size writes through", func(t *testing.T) {
		got, err := Tp.NewBadgerJournal(t.TempDir(), 0)
		assertError(t, err, nil)
		defer got.Close()
		assertInt(t, got.BatchSize, 1)
	})
}

func TestBadgerJournal_WriteNote(t *testing.T) {
	journal, closedb := makeTestBadgerJournal(t)
	defer closedb()

	start := time.Now()
	notes := []Tt.NoteEvent{
		{Note: 60, Kind: Tt.NoteOff, Velocity: 100, DurationMS: 250},
		{Note: 64, Kind: Tt.NoteOff, Velocity: 90, DurationMS: 300},
		{Note: 67, Kind: Tt.NoteOff, Velocity: 80, DurationMS: 1},
	}

	t.Run("Buffers below the batch size", func(t *testing.T) {
		for i := range notes {
			err := journal.WriteNote(&notes[i], start.Add(time.Duration(i)*time.Second))
			assertError(t, err, nil)
		}
		assertInt(t, len(journal.Buffer), 3)
	})

	t.Run("QueryRange flushes and returns in order", func(t *testing.T) {
		got, err := journal.QueryRange(start.Add(-time.Second), start.Add(10*time.Second))
		assertError(t, err, nil)
		assertInt(t, len(got), 3)
		assertInt(t, len(journal.Buffer), 0)
		for i, e := range got {
			assertInt(t, int(e.Note), int(notes[i].Note))
			assertInt(t, int(e.DurationMS), int(notes[i].DurationMS))
		}
	})

	t.Run("QueryRange end is exclusive", func(t *testing.T) {
		got, err := journal.QueryRange(start, start.Add(2*time.Second))
		assertError(t, err, nil)
		assertInt(t, len(got), 2)
	})
}

func TestBadgerJournal_WriteBatch(t *testing.T) {
	tests := []struct {
		name    string
		entries []*Tp.JournalEntry
	}{
		{name: "empty batch", entries: []*Tp.JournalEntry{}},
		{name: "single entry", entries: []*Tp.JournalEntry{
			{At: time.Now(), Note: 21, DurationMS: 10},
		}},
		{name: "same time different notes", entries: []*Tp.JournalEntry{
			{At: time.Unix(100, 0), Note: 60, DurationMS: 10},
			{At: time.Unix(100, 0), Note: 61, DurationMS: 10},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal, closedb := makeTestBadgerJournal(t)
			defer closedb()

			err := journal.WriteBatch(tt.entries)
			assertError(t, err, nil)
		})
	}
}

func TestJournalKey(t *testing.T) {
	at := time.Unix(0, 0x0102030405060708)
	got := Tp.JournalKey(&Tp.JournalEntry{At: at, Note: 60})
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 60}
	if !bytes.Equal(got, want) {
		t.Errorf("JournalKey = %v, want %v", got, want)
	}
}

func TestJournalEncode(t *testing.T) {
	in := &Tp.JournalEntry{At: time.Unix(1700000000, 0).UTC(), Note: 64, Velocity: 90, DurationMS: 250}
	data, err := Tp.JournalEncode(in)
	assertError(t, err, nil)

	out, err := Tp.JournalDecode(data)
	assertError(t, err, nil)
	assertInt(t, int(out.Note), 64)
	assertInt(t, int(out.DurationMS), 250)
}

func TestBadgerJournal_CloseWhileWriting(t *testing.T) {
	journal, _ := makeTestBadgerJournal(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// below BatchSize, these only touch the buffer
		for i := 0; i < 3; i++ {
			journal.WriteNote(&Tt.NoteEvent{Note: uint8(60 + i), DurationMS: 10}, time.Now())
		}
	}()

	assertError(t, journal.Close(), nil)
	wg.Wait()
}

// Helpers //

func makeTestBadgerJournal(t *testing.T) (*Tp.BadgerJournal, func()) {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	assertError(t, err, nil)

	journal := &Tp.BadgerJournal{
		DB:        db,
		BatchSize: 5,
		Buffer:    make([]*Tp.JournalEntry, 0, 5),
	}

	return journal, func() { journal.Close() }
}
