// Package gocask is an embedded, durable key-value store backed by a single
// append-only log file. Every Put and Remove is durable by the time it
// returns; concurrent writers to the same key converge to the log-order
// winner; recovery rebuilds the in-memory index from the log and truncates
// any torn tail.
package gocask

import (
	"sync"

	"github.com/AmrMurad1/Go-Cask/index"
	"github.com/AmrMurad1/Go-Cask/shared"
	"github.com/AmrMurad1/Go-Cask/wal"
)

type Store struct {
	path string
	cfg  Config

	log   *wal.Writer
	index *index.Index

	// gate is read-held by every operation and write-held by Compact, which
	// must observe a quiesced log and index while it swaps files.
	gate sync.RWMutex
}

type Config struct {
	// GroupCommit coalesces concurrent durability syncs into one flush.
	GroupCommit bool
	// ArchiveOnCompact keeps the superseded log as an s2-compressed sidecar
	// next to the store file after a compaction.
	ArchiveOnCompact bool
}

func DefaultConfig() Config {
	return Config{GroupCommit: true}
}

// Open opens or creates the store file at path, replaying the log into the
// in-memory index and truncating any torn tail.
func Open(path string) (*Store, error) {
	return OpenWithConfig(path, DefaultConfig())
}

func OpenWithConfig(path string, cfg Config) (*Store, error) {
	idx := index.New()
	validPos, err := replayLog(path, idx)
	if err != nil {
		return nil, err
	}

	log, err := wal.Open(path, validPos, wal.Config{GroupCommit: cfg.GroupCommit})
	if err != nil {
		return nil, err
	}

	return &Store{
		path:  path,
		cfg:   cfg,
		log:   log,
		index: idx,
	}, nil
}

// Put stores value under key. On return the record is durable and any later
// Get observes this value or a newer one.
func (s *Store) Put(key uint32, value []byte) error {
	if len(value) > shared.MaxValueSize {
		return shared.ErrValueTooLarge
	}

	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.appendRecord(key, shared.EncodeValue(key, value), false)
}

// Remove deletes key. Removing an absent or already deleted key is a no-op
// that writes nothing. Same durability contract as Put.
func (s *Store) Remove(key uint32) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	if entry, ok := s.index.Get(key); !ok || entry.Deleted {
		return nil
	}
	return s.appendRecord(key, shared.EncodeTombstone(key), true)
}

// appendRecord runs the append -> index-update -> sync sequence that defines
// visibility and durability. The index update applies the max-offset rule, so
// a racing writer that appended later keeps the entry even if our update runs
// after its own.
func (s *Store) appendRecord(key uint32, record []byte, deleted bool) error {
	rawOffset, err := s.log.Append(record)
	if err != nil {
		return err
	}

	// the index stores the offset of the length field, past checksum and key
	valueOffset := rawOffset + 8
	s.index.Upsert(key, valueOffset, deleted)

	return s.log.Sync(valueOffset)
}

// Get returns the latest committed value for key, or ErrKeyNotFound if the
// key is absent or deleted. The returned slice is the caller's to keep.
func (s *Store) Get(key uint32) ([]byte, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	entry, ok := s.index.Get(key)
	if !ok || entry.Deleted {
		return nil, shared.ErrKeyNotFound
	}

	value, deleted, err := s.log.ReadValueAt(entry.Offset)
	if err != nil {
		return nil, err
	}
	if deleted {
		return nil, shared.ErrKeyNotFound
	}
	return value, nil
}

// Exists reports whether key currently maps to a live value.
func (s *Store) Exists(key uint32) bool {
	s.gate.RLock()
	defer s.gate.RUnlock()

	entry, ok := s.index.Get(key)
	return ok && !entry.Deleted
}

// Close releases the file handle. No sync is needed: every mutation that
// returned was already durable.
func (s *Store) Close() error {
	s.gate.Lock()
	defer s.gate.Unlock()
	return s.log.Close()
}
