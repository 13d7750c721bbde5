package index

import (
	"encoding/binary"
	"sync"

	"github.com/spaolacci/murmur3"
)

// shardCount must be a power of two.
const shardCount = 64

// Entry locates the authoritative record for a key: the offset of the
// record's length field in the log, and whether that record is a tombstone.
type Entry struct {
	Offset  int64
	Deleted bool
}

type shard struct {
	mu      sync.RWMutex
	entries map[uint32]Entry
}

// Index is a concurrent keydir. Keys are striped across shards by hash so
// that writers on unrelated keys do not contend on a single lock.
type Index struct {
	shards [shardCount]shard
}

func New() *Index {
	ix := &Index{}
	for i := range ix.shards {
		ix.shards[i].entries = make(map[uint32]Entry)
	}
	return ix
}

func (ix *Index) shardFor(key uint32) *shard {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], key)
	return &ix.shards[murmur3.Sum32(buf[:])&(shardCount-1)]
}

// Get returns the entry for key under shared access.
func (ix *Index) Get(key uint32) (Entry, bool) {
	sh := ix.shardFor(key)
	sh.mu.RLock()
	entry, ok := sh.entries[key]
	sh.mu.RUnlock()
	return entry, ok
}

// Upsert applies the max-offset rule under exclusive per-shard access: the
// entry is replaced only if key is absent or offset is strictly greater than
// the stored one. A writer whose append lost the log order never regresses
// the entry. Reports whether the update was applied.
func (ix *Index) Upsert(key uint32, offset int64, deleted bool) bool {
	sh := ix.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if cur, ok := sh.entries[key]; ok && cur.Offset >= offset {
		return false
	}
	sh.entries[key] = Entry{Offset: offset, Deleted: deleted}
	return true
}

// Set assigns the entry unconditionally. Used by recovery replay, where
// records arrive in file order and each one is by construction the latest.
func (ix *Index) Set(key uint32, offset int64, deleted bool) {
	sh := ix.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = Entry{Offset: offset, Deleted: deleted}
	sh.mu.Unlock()
}

// Remove drops the entry for key if present. Only compaction calls this.
func (ix *Index) Remove(key uint32) bool {
	sh := ix.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.entries[key]; !ok {
		return false
	}
	delete(sh.entries, key)
	return true
}

// Range calls fn for every entry until fn returns false. Each shard is held
// read-locked while its entries are visited.
func (ix *Index) Range(fn func(key uint32, entry Entry) bool) {
	for i := range ix.shards {
		sh := &ix.shards[i]
		sh.mu.RLock()
		for key, entry := range sh.entries {
			if !fn(key, entry) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// Len returns the number of entries, tombstoned ones included.
func (ix *Index) Len() int {
	n := 0
	for i := range ix.shards {
		sh := &ix.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
