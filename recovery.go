package gocask

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/AmrMurad1/Go-Cask/index"
	"github.com/AmrMurad1/Go-Cask/shared"
)

// replayLog scans the log file sequentially, rebuilding idx from every record
// that passes checksum validation, and truncates the file to the end of the
// last valid record. Returns the truncated file size.
//
// Replay stops at the first bad record: offsets past a torn write cannot be
// trusted to begin at a record boundary, so later records are discarded even
// if individually intact. Index updates during replay are unconditional
// assignments because records are visited in file order.
func replayLog(path string, idx *index.Index) (int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("recovery cannot open %q: %w", path, err)
	}

	reader := bufio.NewReader(file)
	var validPos int64

	for {
		// checksum + key
		var header [8]byte
		if _, err := io.ReadFull(reader, header[:]); err != nil {
			break
		}
		checksum := binary.LittleEndian.Uint32(header[0:4])
		key := binary.LittleEndian.Uint32(header[4:8])
		valueOffset := validPos + 8

		var lenBuf [4]byte
		if _, err := io.ReadFull(reader, lenBuf[:]); err != nil {
			break
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])

		if length == shared.Tombstone {
			if checksum != shared.Checksum(key, shared.Tombstone, nil) {
				break
			}
			idx.Set(key, valueOffset, true)
			validPos = valueOffset + 4
			continue
		}

		if length > shared.MaxValueSize {
			break
		}
		value := make([]byte, length)
		if _, err := io.ReadFull(reader, value); err != nil {
			break
		}
		if checksum != shared.Checksum(key, length, value) {
			break
		}
		idx.Set(key, valueOffset, false)
		validPos = valueOffset + 4 + int64(length)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("recovery cannot stat %q: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return 0, err
	}

	if info.Size() > validPos {
		log.Printf("truncating %q to %d bytes, dropping %d trailing bytes", path, validPos, info.Size()-validPos)
		if err := os.Truncate(path, validPos); err != nil {
			return 0, fmt.Errorf("recovery cannot truncate %q: %w", path, err)
		}
	}

	return validPos, nil
}
