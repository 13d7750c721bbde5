package shared

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

const (
	// Tombstone is the length sentinel that marks a deletion record.
	// A tombstone record carries no value bytes.
	Tombstone uint32 = 0xFFFFFFFF

	// MaxValueSize is the largest value payload a record may carry.
	MaxValueSize = 4096

	// HeaderSize is checksum + key + length.
	HeaderSize = 12
)

// Checksum computes the record checksum over key, length and value bytes.
// The value term is omitted for tombstones. The same function is used when
// writing records and when verifying them during recovery.
func Checksum(key, length uint32, value []byte) uint32 {
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], key)
	sum := murmur3.Sum32(word[:])
	binary.LittleEndian.PutUint32(word[:], length)
	sum ^= murmur3.Sum32(word[:])
	if length != Tombstone {
		sum ^= murmur3.Sum32(value)
	}
	return sum
}

// EncodeValue serializes a live record: checksum, key, length, value.
// All integers are little-endian, fields are back-to-back with no padding.
func EncodeValue(key uint32, value []byte) []byte {
	buf := make([]byte, 0, HeaderSize+len(value))
	buf = binary.LittleEndian.AppendUint32(buf, Checksum(key, uint32(len(value)), value))
	buf = binary.LittleEndian.AppendUint32(buf, key)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
	buf = append(buf, value...)
	return buf
}

// EncodeTombstone serializes a deletion record: checksum, key, Tombstone.
func EncodeTombstone(key uint32) []byte {
	buf := make([]byte, 0, HeaderSize)
	buf = binary.LittleEndian.AppendUint32(buf, Checksum(key, Tombstone, nil))
	buf = binary.LittleEndian.AppendUint32(buf, key)
	buf = binary.LittleEndian.AppendUint32(buf, Tombstone)
	return buf
}
