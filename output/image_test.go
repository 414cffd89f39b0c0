package output

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	pe "github.com/wanglei-coder/pev"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func put(t *testing.T, data []byte, off int, v any) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	copy(data[off:], buf.Bytes())
}

// newTestFile parses a one section PE32 image whose overlay starts with a
// PNG signature. edits may change the .text header and the image bytes
// before parsing.
func newTestFile(t *testing.T, characteristics uint16, dll pe.DllCharacteristic,
	edits ...func(text *pe.SectionHeader32, data []byte)) *pe.File {
	t.Helper()
	const (
		lfanew   = 0x80
		ohOffset = lfanew + 24
		ohSize   = pe.OptionalHeader32Size + pe.MaxDirectories*8
		size     = 0x500
	)
	data := make([]byte, size)
	put(t, data, 0, uint16(pe.ImageDOSSignature))
	put(t, data, 0x3c, uint32(lfanew))
	put(t, data, lfanew, uint32(pe.ImageNTHeaderSignature))
	put(t, data, lfanew+4, pe.FileHeader{
		Machine:              0x14c,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(ohSize),
		Characteristics:      characteristics,
	})
	put(t, data, ohOffset, pe.OptionalHeader32{
		Magic:               uint16(pe.MagicPE32),
		AddressOfEntryPoint: 0x1000,
		ImageBase:           0x400000,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         0x2000,
		SizeOfHeaders:       0x200,
		Subsystem:           uint16(pe.SubsystemWindowsGUI),
		DllCharacteristics:  uint16(dll),
		NumberOfRvaAndSizes: uint32(pe.MaxDirectories),
	})
	text := pe.SectionHeader32{
		VirtualSize:      0x10,
		VirtualAddress:   0x1000,
		SizeOfRawData:    0x200,
		PointerToRawData: 0x200,
		Characteristics:  0x60000020,
	}
	copy(text.Name[:], ".text")
	copy(data[0x400:], pngMagic)
	for _, edit := range edits {
		edit(&text, data)
	}
	put(t, data, ohOffset+ohSize, text)

	f, err := pe.NewBytes(data)
	require.NoError(t, err)
	return f
}
