package plugin

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	Tt "github.com/maroda/teachtiles/types"
)

// JournalEntry is one completed note as stored on disk
type JournalEntry struct {
	At         time.Time
	Note       uint8
	Velocity   uint8
	DurationMS uint32
}

type BadgerJournal struct {
	MU        sync.Mutex
	DB        *badger.DB
	BatchSize int
	Buffer    []*JournalEntry
}

func NewBadgerJournal(path string, batchSize int) (*BadgerJournal, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("BadgerJournal failed to open database", slog.Any("error", err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	slog.Info("BadgerJournal opened",
		slog.String("path", path),
		slog.Int("batchSize", batchSize))

	return &BadgerJournal{
		DB:        db,
		BatchSize: batchSize,
		Buffer:    make([]*JournalEntry, 0, batchSize),
	}, nil
}

// WriteNote queues a completed note,
// when batchsize is reached the buffer goes to WriteBatch
func (bj *BadgerJournal) WriteNote(note *Tt.NoteEvent, at time.Time) error {
	entry := &JournalEntry{
		At:         at,
		Note:       note.Note,
		Velocity:   note.Velocity,
		DurationMS: note.DurationMS,
	}

	bj.MU.Lock()
	defer bj.MU.Unlock()

	bj.Buffer = append(bj.Buffer, entry)
	if len(bj.Buffer) >= bj.BatchSize {
		return bj.flushLocked()
	}
	return nil
}

// WriteBatch creates the key/value pairs and writes them in one badger batch
func (bj *BadgerJournal) WriteBatch(entries []*JournalEntry) error {
	wb := bj.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range entries {
		val, err := JournalEncode(e)
		if err != nil {
			slog.Error("BadgerJournal failed to encode entry",
				slog.Any("error", err),
				slog.Int("note", int(e.Note)))
			return fmt.Errorf("encode error: %w", err)
		}
		if err := wb.Set(JournalKey(e), val); err != nil {
			slog.Error("BadgerJournal failed to set key in batch",
				slog.Any("error", err),
				slog.Time("noteTime", e.At),
				slog.Int("note", int(e.Note)))
			return fmt.Errorf("write batch error: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		slog.Error("BadgerJournal failed to flush batch", slog.Any("error", err))
		return fmt.Errorf("batch flush error: %w", err)
	}

	return nil
}

func (bj *BadgerJournal) Flush() error {
	bj.MU.Lock()
	defer bj.MU.Unlock()

	if len(bj.Buffer) == 0 {
		return nil
	}
	return bj.flushLocked()
}

// flushLocked expects the caller to hold MU
func (bj *BadgerJournal) flushLocked() error {
	err := bj.WriteBatch(bj.Buffer)
	bj.Buffer = bj.Buffer[:0] // Clear but keep capacity
	return err
}

// Close returns a Flush error but still attempts to close
func (bj *BadgerJournal) Close() error {
	bj.MU.Lock()
	pending := len(bj.Buffer)
	bj.MU.Unlock()
	slog.Info("BadgerJournal closing, flushing buffer",
		slog.Int("bufferSize", pending))
	flushErr := bj.Flush()
	closeErr := bj.DB.Close()

	if flushErr != nil {
		slog.Error("BadgerJournal failed to flush on close", slog.Any("error", flushErr))
		return fmt.Errorf("flush failed, close may have failed: %w", flushErr)
	}
	if closeErr != nil {
		slog.Error("BadgerJournal failed to close database", slog.Any("error", closeErr))
		return fmt.Errorf("close failed: %w", closeErr)
	}

	slog.Info("BadgerJournal closed successfully")
	return nil
}

func (bj *BadgerJournal) Type() string { return "BadgerDB" }

// JournalKey is timestamp + note, so keys sort chronologically
// and two notes finishing in the same nanosecond don't collide
func JournalKey(e *JournalEntry) []byte {
	key := make([]byte, 8+1)
	binary.BigEndian.PutUint64(key[0:8], uint64(e.At.UnixNano()))
	key[8] = e.Note
	return key
}

func JournalEncode(e *JournalEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func JournalDecode(data []byte) (*JournalEntry, error) {
	var e JournalEntry
	dec := gob.NewDecoder(bytes.NewBuffer(data))
	err := dec.Decode(&e)
	return &e, err
}

// QueryRange returns entries with start <= At < end, oldest first.
// Buffered entries are flushed first so the result includes them.
func (bj *BadgerJournal) QueryRange(start, end time.Time) ([]*JournalEntry, error) {
	if err := bj.Flush(); err != nil {
		return nil, err
	}

	var entries []*JournalEntry
	seek := make([]byte, 8)
	binary.BigEndian.PutUint64(seek, uint64(start.UnixNano()))

	err := bj.DB.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seek); it.Valid(); it.Next() {
			item := it.Item()
			var done bool
			err := item.Value(func(val []byte) error {
				e, err := JournalDecode(val)
				if err != nil {
					slog.Error("BadgerJournal failed to decode entry", slog.Any("error", err))
					return fmt.Errorf("entry decode error: %w", err)
				}
				if !e.At.Before(end) {
					done = true
					return nil
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return fmt.Errorf("item data error: %w", err)
			}
			if done {
				break
			}
		}
		return nil
	})

	slog.Debug("BadgerJournal QueryRange", slog.Int("count", len(entries)))
	return entries, err
}
