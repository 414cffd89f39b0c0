package pe

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidPESize = errors.New("not a PE file, smaller than tiny PE")
)

var (
	// ErrTruncatedData is returned when the buffer ends before a fixed
	// header field could be read.
	ErrTruncatedData = errors.New("truncated data")
	// ErrTruncatedDirectoryArray is returned when the buffer ends inside the
	// data directory array.
	ErrTruncatedDirectoryArray = errors.New("truncated data directory array")

	ErrOutsideBoundary = errors.New("reading data outside boundary")
)

// UnsupportedMagicError reports an optional header magic outside of the
// known variants. This is the normal outcome for data that is not an
// optional header at all.
type UnsupportedMagicError struct {
	Magic uint16
}

func (e *UnsupportedMagicError) Error() string {
	return fmt.Sprintf("optional header has unexpected Magic of 0x%x", e.Magic)
}
