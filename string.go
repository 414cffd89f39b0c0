package pe

import (
	"bytes"

	"github.com/pkg/errors"
)

// cString converts ASCII byte sequence b to string.
// It stops once it finds 0 or reaches end of b.
func cString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	return string(b[:i])
}

// StringTable is a COFF string table.
type StringTable []byte

func (f *File) readStringTable() error {
	// COFF string table is located right after COFF symbol table.
	if f.FileHeader.PointerToSymbolTable == 0 {
		return nil
	}
	offset := uint64(f.FileHeader.PointerToSymbolTable) + COFFSymbolSize*uint64(f.FileHeader.NumberOfSymbols)
	if offset > uint64(f.size) {
		return errors.Errorf("string table offset %d is beyond the end of file", offset)
	}

	c := newCursor(f.data, int(offset))
	l, err := c.readUint32()
	if err != nil {
		return errors.WithMessage(err, "fail to read string table length")
	}
	// string table length includes itself
	if l <= 4 {
		return nil
	}
	buf, err := c.take(int(l - 4))
	if err != nil {
		return errors.WithMessage(err, "fail to read string table")
	}
	f.StringTable = buf
	return nil
}

// String extracts string from COFF string table st at offset start.
func (st StringTable) String(start uint32) (string, error) {
	// start includes 4 bytes of string table length
	if start < 4 {
		return "", errors.Errorf("offset %d is before the start of string table", start)
	}
	start -= 4
	if int(start) > len(st) {
		return "", errors.Errorf("offset %d is beyond the end of string table", start)
	}
	return cString(st[start:]), nil
}
