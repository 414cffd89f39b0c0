package pe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_Read(t *testing.T) {
	buf := []byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
	}
	c := newCursor(buf, 0)

	u8, err := c.readUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), u8)

	u16, err := c.readUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0302), u16)

	u32, err := c.readUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x07060504), u32)

	u64, err := c.readUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0f0e0d0c0b0a0908), u64)

	assert.Equal(t, len(buf), c.offset())
	assert.Zero(t, c.remaining())
}

func TestCursor_Truncated(t *testing.T) {
	c := newCursor([]byte{1, 2, 3}, 1)

	_, err := c.readUint32()
	assert.True(t, errors.Is(err, ErrTruncatedData))
	assert.Equal(t, 1, c.offset(), "failed reads do not move the cursor")

	var v uint16
	require.NoError(t, c.read(&v))
	assert.Equal(t, uint16(0x0302), v)

	assert.True(t, errors.Is(c.read(&v), ErrTruncatedData))
	assert.True(t, errors.Is(c.advance(1), ErrTruncatedData))
	assert.Error(t, c.advance(-1))
}

func TestCursor_ReadArray(t *testing.T) {
	buf := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}

	var a [4]uint32
	c := newCursor(buf, 0)
	require.NoError(t, c.read(&a))
	assert.Equal(t, [4]uint32{1, 2, 3, 4}, a)

	c = newCursor(buf[:15], 0)
	assert.True(t, errors.Is(c.read(&a), ErrTruncatedData))
	assert.Zero(t, c.offset())

	var unsupported int
	assert.Error(t, c.read(&unsupported))
}

func TestCursor_Offset(t *testing.T) {
	buf := make([]byte, 8)
	tests := []struct {
		off  int
		want int
	}{
		{0, 0},
		{4, 4},
		{8, 8},
		{9, 8},
		{-1, 8},
	}
	for _, tt := range tests {
		c := newCursor(buf, tt.off)
		assert.Equal(t, tt.want, c.offset(), "offset %d", tt.off)
	}

	c := newCursor(buf, 2)
	require.NoError(t, c.advance(4))
	b, err := c.take(2)
	require.NoError(t, err)
	assert.Len(t, b, 2)
	assert.Zero(t, c.remaining())
}
