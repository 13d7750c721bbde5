package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/AmrMurad1/Go-Cask/shared"
)

// Writer owns the single append handle of the log file. Appends are
// serialized by an internal mutex so that the reported offset always matches
// the bytes written; syncs may run from any goroutine.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	path string
	cfg  Config

	// group-commit watermarks: everything at or below committed is durable,
	// maxPending is the end of the last append.
	maxPending atomic.Int64
	committed  atomic.Int64
}

type Config struct {
	// GroupCommit lets concurrent Sync calls coalesce into one device flush.
	// With it disabled every Sync issues its own fsync.
	GroupCommit bool
}

func DefaultConfig() Config {
	return Config{GroupCommit: true}
}

// Open opens the log file for appending. committed is the file size already
// known durable (the recovery watermark); Sync calls at or below it are
// skippable under group commit.
func Open(path string, committed int64, cfg Config) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("log %q cannot open file: %w", path, err)
	}

	w := &Writer{
		file: file,
		path: path,
		cfg:  cfg,
	}
	w.maxPending.Store(committed)
	w.committed.Store(committed)
	return w, nil
}

// Append writes a fully serialized record at the end of the file and returns
// the offset of its first byte. No other append interleaves bytes.
func (w *Writer) Append(record []byte) (int64, error) {
	w.mu.Lock()
	offset, err := w.file.Seek(0, io.SeekEnd)
	if err != nil {
		w.mu.Unlock()
		return 0, fmt.Errorf("seek to end of log: %w", err)
	}
	n, err := w.file.Write(record)
	w.mu.Unlock()

	if n != len(record) {
		if err != nil {
			return 0, fmt.Errorf("append to log: %w: %w", shared.ErrShortWrite, err)
		}
		return 0, shared.ErrShortWrite
	}
	if err != nil {
		return 0, fmt.Errorf("append to log: %w", err)
	}

	updateMax(&w.maxPending, offset+int64(n))
	return offset, nil
}

// Sync returns once all bytes at offsets <= upTo are durable. Under group
// commit a flush already performed by a concurrent Sync is not repeated.
func (w *Writer) Sync(upTo int64) error {
	if w.cfg.GroupCommit && w.committed.Load() >= upTo {
		return nil
	}

	pending := w.maxPending.Load()
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	if w.cfg.GroupCommit {
		updateMax(&w.committed, pending)
	}
	return nil
}

// ReadValueAt reads the value portion of a record given the offset of its
// length field. Readers use their own handle, the append handle is never
// shared. deleted reports a tombstone record.
func (w *Writer) ReadValueAt(offset int64) (value []byte, deleted bool, err error) {
	file, err := os.Open(w.path)
	if err != nil {
		return nil, false, fmt.Errorf("open log for read: %w", err)
	}
	defer file.Close()

	var lenBuf [4]byte
	if _, err := file.ReadAt(lenBuf[:], offset); err != nil {
		return nil, false, fmt.Errorf("read value length at %d: %w", offset, err)
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length == shared.Tombstone {
		return nil, true, nil
	}
	if length > shared.MaxValueSize {
		return nil, false, fmt.Errorf("bad value length %d at offset %d", length, offset)
	}

	value = make([]byte, length)
	if _, err := file.ReadAt(value, offset+4); err != nil {
		return nil, false, fmt.Errorf("read value at %d: %w", offset, err)
	}
	return value, false, nil
}

// Size returns the current file size.
func (w *Writer) Size() (int64, error) {
	info, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (w *Writer) Close() error {
	return w.file.Close()
}

// updateMax raises a to v unless a concurrent update already went past it.
func updateMax(a *atomic.Int64, v int64) {
	for {
		old := a.Load()
		if old >= v || a.CompareAndSwap(old, v) {
			return
		}
	}
}
