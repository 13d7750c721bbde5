package gocask

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/AmrMurad1/Go-Cask/index"
	"github.com/AmrMurad1/Go-Cask/shared"
	"github.com/AmrMurad1/Go-Cask/wal"
	"github.com/klauspost/compress/s2"
)

// Compact rewrites every live record into a fresh log and swaps it in place
// of the current one, reclaiming the space held by superseded records and
// tombstones. Writers and readers are blocked for the duration.
func (s *Store) Compact() error {
	s.gate.Lock()
	defer s.gate.Unlock()

	tmpPath := s.path + ".compact"
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("compaction cannot clear %q: %w", tmpPath, err)
	}

	newLog, err := wal.Open(tmpPath, 0, wal.Config{GroupCommit: s.cfg.GroupCommit})
	if err != nil {
		return err
	}

	type relocation struct {
		key    uint32
		offset int64
	}
	var live []relocation
	var dead []uint32

	var rewriteErr error
	s.index.Range(func(key uint32, entry index.Entry) bool {
		if entry.Deleted {
			dead = append(dead, key)
			return true
		}

		value, deleted, err := s.log.ReadValueAt(entry.Offset)
		if err != nil {
			rewriteErr = err
			return false
		}
		if deleted {
			dead = append(dead, key)
			return true
		}

		rawOffset, err := newLog.Append(shared.EncodeValue(key, value))
		if err != nil {
			rewriteErr = err
			return false
		}
		live = append(live, relocation{key: key, offset: rawOffset + 8})
		return true
	})
	if rewriteErr != nil {
		newLog.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("compaction rewrite failed: %w", rewriteErr)
	}

	newSize, err := newLog.Size()
	if err != nil {
		newLog.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := newLog.Sync(newSize); err != nil {
		newLog.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := newLog.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if s.cfg.ArchiveOnCompact {
		if err := archiveLog(s.path, s.path+".old.s2"); err != nil {
			os.Remove(tmpPath)
			return err
		}
	}

	if err := s.log.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		// the swap never happened, keep serving the old log
		reopened, openErr := wal.Open(s.path, 0, wal.Config{GroupCommit: s.cfg.GroupCommit})
		if openErr != nil {
			return fmt.Errorf("compaction swap failed: %v, reopen failed: %w", err, openErr)
		}
		s.log = reopened
		return fmt.Errorf("compaction swap failed: %w", err)
	}

	reopened, err := wal.Open(s.path, newSize, wal.Config{GroupCommit: s.cfg.GroupCommit})
	if err != nil {
		return err
	}
	s.log = reopened

	for _, r := range live {
		s.index.Set(r.key, r.offset, false)
	}
	for _, key := range dead {
		s.index.Remove(key)
	}

	log.Printf("compacted %q: %d live records, %d tombstones dropped", s.path, len(live), len(dead))
	return nil
}

// archiveLog writes an s2-compressed copy of src to dst.
func archiveLog(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("archive cannot open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("archive cannot create %q: %w", dst, err)
	}

	enc := s2.NewWriter(out)
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		return fmt.Errorf("archive compression failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReadArchive decompresses an archive produced by a previous compaction and
// returns the raw log bytes it holds.
func ReadArchive(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(s2.NewReader(file))
}
