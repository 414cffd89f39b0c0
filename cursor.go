package pe

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// cursor is a bounds checked little endian reader over a borrowed buffer.
// It never writes through buf and never reads past its end.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte, off int) *cursor {
	if off < 0 || off > len(buf) {
		off = len(buf)
	}
	return &cursor{buf: buf, pos: off}
}

func (c *cursor) offset() int {
	return c.pos
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

// take returns the next n bytes and advances past them.
func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, ErrTruncatedData
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) advance(n int) error {
	_, err := c.take(n)
	return err
}

func (c *cursor) readUint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) readUint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) readUint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readUint64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// read decodes into one of the fixed width field types used by the header
// structures. The cursor does not move when the read fails.
func (c *cursor) read(data any) (err error) {
	switch v := data.(type) {
	case *uint8:
		*v, err = c.readUint8()
	case *uint16:
		*v, err = c.readUint16()
	case *uint32:
		*v, err = c.readUint32()
	case *uint64:
		*v, err = c.readUint64()
	case *[4]uint32:
		if c.remaining() < 16 {
			return ErrTruncatedData
		}
		for i := range v {
			v[i], _ = c.readUint32()
		}
	default:
		return errors.Errorf("unsupported field type %T", data)
	}
	return err
}
