package pe

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

type RichHeader struct {
	XorKey     uint32
	CompIDs    []CompID
	DansOffset int
	Raw        []byte
}

type CompID struct {
	MinorCV  uint16
	ProdID   uint16
	Count    uint32
	Unmasked uint32
}

// readRichHeader looks for the Rich signature in the DOS stub and walks
// back to the XOR masked DanS marker. A stub without one is not an error.
func (f *File) readRichHeader() error {
	stub := f.data[:f.AddressOfNewEXEHeader]
	richSigOffset := bytes.Index(stub, []byte(RichSignature))
	if richSigOffset < 0 {
		return nil
	}

	var (
		rh  RichHeader
		err error
	)
	if rh.XorKey, err = f.ReadUint32(uint32(richSigOffset + 4)); err != nil {
		return errors.WithMessage(err, "failure to read rich header key")
	}

	var decRichHeader []uint32
	dansSigOffset := -1
	for pos := richSigOffset - 4; pos > DOSHeaderSize; pos -= 4 {
		buff, err := f.ReadUint32(uint32(pos))
		if err != nil {
			return err
		}

		res := buff ^ rh.XorKey
		if res == DansSignature {
			dansSigOffset = pos
			break
		}
		decRichHeader = append(decRichHeader, res)
	}

	if dansSigOffset == -1 {
		return nil
	}

	rh.DansOffset = dansSigOffset
	rh.Raw = f.data[dansSigOffset : richSigOffset+8]

	for i, j := 0, len(decRichHeader)-1; i < j; i, j = i+1, j-1 {
		decRichHeader[i], decRichHeader[j] = decRichHeader[j], decRichHeader[i]
	}

	// Three padding words follow DanS, then (@comp.id, count) pairs.
	for i := 3; i+1 < len(decRichHeader); i += 2 {
		rh.CompIDs = append(rh.CompIDs, CompID{
			MinorCV:  uint16(decRichHeader[i]),
			ProdID:   uint16(decRichHeader[i] >> 16),
			Count:    decRichHeader[i+1],
			Unmasked: decRichHeader[i],
		})
	}

	f.RichHeader = &rh
	return nil
}

func (f *File) RichHeaderChecksum() uint32 {
	if f.RichHeader == nil {
		return 0
	}

	checksum := uint32(f.RichHeader.DansOffset)

	// First, calculate the sum of the DOS header bytes each rotated left the
	// number of times their position relative to the start of the DOS header e.g.
	// second byte is rotated left 2x using rol operation.
	for i := 0; i < f.RichHeader.DansOffset; i++ {
		// skip over dos e_lfanew field at offset 0x3C
		if i >= 0x3C && i < 0x40 {
			continue
		}
		_b, err := f.GetByte(i)
		if err != nil {
			return 0
		}
		b := uint32(_b)
		checksum += (b << (i % 32)) | (b>>(32-(i%32)))&0xff
		checksum &= 0xFFFFFFFF
	}

	// Next, take summation of each Rich header entry by combining its ProductId
	// and BuildNumber into a single 32 bits number and rotating by its count.
	for _, compID := range f.RichHeader.CompIDs {
		checksum += compID.Unmasked<<(compID.Count%32) | compID.Unmasked>>(32-(compID.Count%32))
		checksum &= 0xFFFFFFFF
	}

	return checksum
}

func (f *File) RichHeaderHash() string {
	if f.RichHeader == nil {
		return ""
	}
	richIndex := bytes.Index(f.RichHeader.Raw, []byte(RichSignature))
	if richIndex == -1 {
		return ""
	}

	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, f.RichHeader.XorKey)

	rawData := f.RichHeader.Raw[:richIndex]
	clearData := make([]byte, len(rawData))
	for idx, val := range rawData {
		clearData[idx] = val ^ key[idx%len(key)]
	}
	return fmt.Sprintf("%x", md5.Sum(clearData))
}
