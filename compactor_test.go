package gocask

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/AmrMurad1/Go-Cask/shared"
)

func TestCompact_DropsDeadRecords(t *testing.T) {
	store, path := openTestStore(t)
	defer store.Close()

	for k := uint32(0); k < 10; k++ {
		if err := store.Put(k, []byte(fmt.Sprintf("first%d", k))); err != nil {
			t.Fatal(err)
		}
	}
	// overwrites and removes leave dead records behind
	for k := uint32(0); k < 10; k += 2 {
		if err := store.Put(k, []byte(fmt.Sprintf("second%d", k))); err != nil {
			t.Fatal(err)
		}
	}
	for k := uint32(7); k < 10; k++ {
		if err := store.Remove(k); err != nil {
			t.Fatal(err)
		}
	}

	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Compact(); err != nil {
		t.Fatal(err)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if after.Size() >= before.Size() {
		t.Errorf("expected compaction to shrink the file, %d -> %d", before.Size(), after.Size())
	}

	for k := uint32(0); k < 7; k++ {
		want := fmt.Sprintf("first%d", k)
		if k%2 == 0 {
			want = fmt.Sprintf("second%d", k)
		}
		value, err := store.Get(k)
		if err != nil {
			t.Fatalf("key %d: %v", k, err)
		}
		if string(value) != want {
			t.Errorf("key %d: expected %s, got %q", k, want, value)
		}
	}
	for k := uint32(7); k < 10; k++ {
		if _, err := store.Get(k); !errors.Is(err, shared.ErrKeyNotFound) {
			t.Errorf("key %d: expected ErrKeyNotFound, got %v", k, err)
		}
	}
}

func TestCompact_StoreUsableAfterwards(t *testing.T) {
	store, _ := openTestStore(t)
	defer store.Close()

	if err := store.Put(1, []byte("value1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Compact(); err != nil {
		t.Fatal(err)
	}

	// the swapped-in log must accept new writes
	if err := store.Put(2, []byte("value2")); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(1); err != nil {
		t.Fatal(err)
	}
	if value, _ := store.Get(2); string(value) != "value2" {
		t.Errorf("expected value2, got %q", value)
	}
	if _, err := store.Get(1); !errors.Is(err, shared.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestCompact_CompactedFileRecovers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for k := uint32(0); k < 5; k++ {
		if err := store.Put(k, []byte(fmt.Sprintf("value%d", k))); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Remove(0); err != nil {
		t.Fatal(err)
	}
	if err := store.Compact(); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(9, []byte("after")); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.Get(0); !errors.Is(err, shared.ErrKeyNotFound) {
		t.Errorf("expected removed key to stay removed, got %v", err)
	}
	for k := uint32(1); k < 5; k++ {
		if value, _ := store.Get(k); string(value) != fmt.Sprintf("value%d", k) {
			t.Errorf("key %d: got %q", k, value)
		}
	}
	if value, _ := store.Get(9); string(value) != "after" {
		t.Errorf("expected after, got %q", value)
	}
}

func TestCompact_EmptyStore(t *testing.T) {
	store, path := openTestStore(t)
	defer store.Close()

	if err := store.Compact(); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("expected empty log, got %d bytes", info.Size())
	}
}

func TestCompact_ArchivesOldLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	cfg := DefaultConfig()
	cfg.ArchiveOnCompact = true
	store, err := OpenWithConfig(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Put(1, []byte("keep")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(1, []byte("kept")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(2, []byte("gone")); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(2); err != nil {
		t.Fatal(err)
	}

	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Compact(); err != nil {
		t.Fatal(err)
	}

	// the archive holds the pre-compaction log byte for byte
	restored, err := ReadArchive(path + ".old.s2")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, original) {
		t.Errorf("archive mismatch: %d bytes vs %d original", len(restored), len(original))
	}

	if value, _ := store.Get(1); string(value) != "kept" {
		t.Errorf("expected kept, got %q", value)
	}
}

func TestCompact_NoArchiveByDefault(t *testing.T) {
	store, path := openTestStore(t)
	defer store.Close()

	if err := store.Put(1, []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := store.Compact(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".old.s2"); !os.IsNotExist(err) {
		t.Errorf("expected no archive file, stat returned %v", err)
	}
}
