package pe

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// Layout of the synthetic images built by buildTestImage.
const (
	testLfanew       = 0x80
	testOHOffset     = testLfanew + 4 + 20
	testTextOffset   = 0x200
	testDataOffset   = 0x400
	testCertOffset   = 0x600
	testImageSize    = 0x640
	testRichKey      = 0x1badb002
	testRichCompID   = 0x00ab7809 // ProdID 0xab, build 0x7809
	testRichCompUses = 7
)

var testTextBytes = []byte{0x55, 0x8b, 0xec, 0xc3}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func put(t testing.TB, data []byte, off int, v any) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	copy(data[off:], buf.Bytes())
}

func testDirectories() []DataDirectory {
	dirs := make([]DataDirectory, MaxDirectories)
	dirs[ImageDirectoryEntryImport] = DataDirectory{VirtualAddress: 0x2000, Size: 0x28}
	dirs[ImageDirectoryEntrySecurity] = DataDirectory{VirtualAddress: testCertOffset, Size: 0x10}
	return dirs
}

func testOptionalHeader32() OptionalHeader32 {
	return OptionalHeader32{
		Magic:                 uint16(MagicPE32),
		MajorLinkerVersion:    14,
		MinorLinkerVersion:    29,
		SizeOfCode:            0x200,
		SizeOfInitializedData: 0x200,
		AddressOfEntryPoint:   0x1000,
		BaseOfCode:            0x1000,
		BaseOfData:            0x2000,
		ImageBase:             0x400000,
		SectionAlignment:      0x1000,
		FileAlignment:         0x200,
		MajorSubsystemVersion: 6,
		SizeOfImage:           0x3000,
		SizeOfHeaders:         0x200,
		CheckSum:              0xdeadbeef,
		Subsystem:             uint16(SubsystemWindowsCUI),
		DllCharacteristics:    uint16(DllDynamicBase | DllNXCompat | DllTerminalServerAware),
		SizeOfStackReserve:    0x100000,
		SizeOfStackCommit:     0x1000,
		SizeOfHeapReserve:     0x100000,
		SizeOfHeapCommit:      0x1000,
		NumberOfRvaAndSizes:   uint32(MaxDirectories),
	}
}

func testOptionalHeader64() OptionalHeader64 {
	return OptionalHeader64{
		Magic:                 uint16(MagicPE32Plus),
		MajorLinkerVersion:    14,
		SizeOfCode:            0x200,
		AddressOfEntryPoint:   0x1010,
		BaseOfCode:            0x1000,
		ImageBase:             0x180000000,
		SectionAlignment:      0x1000,
		FileAlignment:         0x200,
		SizeOfImage:           0x3000,
		SizeOfHeaders:         0x200,
		Subsystem:             uint16(SubsystemWindowsGUI),
		DllCharacteristics:    uint16(DllHighEntropyVA | DllDynamicBase | DllX86ThunkOrAppContainer),
		SizeOfStackReserve:    0x100000000,
		SizeOfStackCommit:     0x1000,
		SizeOfHeapReserve:     0x100000,
		SizeOfHeapCommit:      0x1000,
		NumberOfRvaAndSizes:   uint32(MaxDirectories),
	}
}

// buildTestImage lays out a two section image with a rich header and an
// overlay that holds the certificate table. header is an OptionalHeader32
// or OptionalHeader64 value, or nil for an object file without one.
func buildTestImage(t testing.TB, header any, characteristics uint16) []byte {
	t.Helper()
	data := make([]byte, testImageSize)

	put(t, data, 0, uint16(ImageDOSSignature))
	put(t, data, 0x3c, uint32(testLfanew))

	// Rich header: DanS, three padding words, one entry, Rich and the key.
	rich := []uint32{DansSignature ^ testRichKey, testRichKey, testRichKey, testRichKey,
		testRichCompID ^ testRichKey, testRichCompUses ^ testRichKey}
	put(t, data, 0x48, rich)
	copy(data[0x60:], RichSignature)
	put(t, data, 0x64, uint32(testRichKey))

	var ohSize int
	if header != nil {
		ohSize = binary.Size(header) + MaxDirectories*dataDirectorySize
	}
	put(t, data, testLfanew, uint32(ImageNTHeaderSignature))
	put(t, data, testLfanew+4, FileHeader{
		Machine:              0x14c,
		NumberOfSections:     2,
		TimeDateStamp:        0x5f5e1000,
		SizeOfOptionalHeader: uint16(ohSize),
		Characteristics:      characteristics,
	})
	if header != nil {
		put(t, data, testOHOffset, header)
		put(t, data, testOHOffset+binary.Size(header), testDirectories())
	}

	// Section table, .data first to check sorting by virtual address.
	sections := []SectionHeader32{
		{
			VirtualSize:      0x80,
			VirtualAddress:   0x2000,
			SizeOfRawData:    0x200,
			PointerToRawData: testDataOffset,
			Characteristics:  0xc0000040,
		},
		{
			VirtualSize:      0x100,
			VirtualAddress:   0x1000,
			SizeOfRawData:    0x200,
			PointerToRawData: testTextOffset,
			Characteristics:  0x60000020,
		},
	}
	copy(sections[0].Name[:], ".data")
	copy(sections[1].Name[:], ".text")
	put(t, data, testOHOffset+ohSize, sections)

	copy(data[testTextOffset:], testTextBytes)
	copy(data[testCertOffset:], pngMagic)
	return data
}
