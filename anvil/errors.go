package anvil

import (
	"errors"
	"fmt"
)

// Format errors.
var (
	ErrChunkFormat    = errors.New("anvil: chunk format error")
	ErrMetadataFormat = errors.New("anvil: level.dat format error")
)

// Consistency errors. A lost session lock means another program opened the
// world while it was being edited; the whole session must be abandoned.
var ErrSessionLockLost = errors.New("anvil: session lock lost")

// Precondition violations.
var (
	ErrReadOnly          = errors.New("anvil: world is opened read only")
	ErrExists            = errors.New("anvil: already exists")
	ErrSectionOutOfRange = errors.New("anvil: section exceeds world height")
	ErrNotAWorld         = errors.New("anvil: not an Anvil world folder")
	ErrInvalidOptions    = errors.New("anvil: invalid open options")
	ErrInvalidPlayerID   = errors.New("anvil: invalid player id")
)

// Not-found conditions.
var (
	ErrPlayerNotFound = errors.New("anvil: player not found")
	ErrWorldNotFound  = errors.New("anvil: world not found")
)

var ErrUnsupportedVersion = errors.New("anvil: unsupported world format version")

// ChunkFormatError reports a chunk record that could not be decoded. It
// matches ErrChunkFormat under errors.Is.
type ChunkFormatError struct {
	CX, CZ int
	Dim    string
	Err    error
}

func (e *ChunkFormatError) Error() string {
	return fmt.Sprintf("anvil: error loading chunk %d,%d in dim %q: %v", e.CX, e.CZ, e.Dim, e.Err)
}

func (e *ChunkFormatError) Unwrap() error { return e.Err }

func (e *ChunkFormatError) Is(target error) bool { return target == ErrChunkFormat }

func formatErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrChunkFormat, fmt.Sprintf(format, args...))
}
