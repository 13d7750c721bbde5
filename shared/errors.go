package shared

import "errors"

var (
	// ErrKeyNotFound is returned when a key is absent or deleted.
	ErrKeyNotFound = errors.New("key not found")

	// ErrValueTooLarge is returned when a value exceeds MaxValueSize.
	ErrValueTooLarge = errors.New("value size exceeds maximum allowed")

	// ErrShortWrite is returned when the kernel accepted fewer bytes than a
	// record holds. The log tail is undefined until the next recovery.
	ErrShortWrite = errors.New("short write to log file")
)
