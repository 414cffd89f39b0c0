package pe

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"reflect"

	"github.com/pkg/errors"
)

type File struct {
	DOSHeader
	NtHeader
	Sections    []*Section
	StringTable StringTable

	RichHeader *RichHeader
	Header     []byte

	OverlayOffset int64

	size uint32
	data []byte
	sr   *io.SectionReader
}

// NewFile reads filename into memory and parses it.
func NewFile(filename string) (*File, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewBytes(data)
}

// NewBytes parses the PE image held in data. data is borrowed and must not
// be modified while the File is in use.
func NewBytes(data []byte) (*File, error) {
	if len(data) < MinFileSize {
		return nil, ErrInvalidPESize
	}
	if uint64(len(data)) > uint64(^uint32(0)) {
		return nil, errors.Errorf("file of %d bytes is too large for a PE image", len(data))
	}

	file := &File{
		size: uint32(len(data)),
		data: data,
	}
	file.sr = io.NewSectionReader(bytes.NewReader(data), 0, int64(len(data)))

	if err := file.readDOSHeader(); err != nil {
		return nil, err
	}

	if err := file.readNTHeader(); err != nil {
		return nil, err
	}

	if err := file.readRichHeader(); err != nil {
		return nil, err
	}

	if err := file.readStringTable(); err != nil {
		return nil, err
	}

	if err := file.readSections(); err != nil {
		return nil, err
	}
	return file, nil
}

func (f *File) GetSize() uint32 {
	return f.size
}

// ImageKind classifies the image from the COFF characteristics.
func (f *File) ImageKind() ImageKind {
	switch {
	case f.FileHeader.Characteristics&ImageFileDLL != 0:
		return ImageKindDLL
	case f.FileHeader.Characteristics&ImageFileExecutableImage != 0:
		return ImageKindEXE
	}
	return ImageKindUnknown
}

// DataDirectory returns the data directory at position e.
func (f *File) DataDirectory(e DirectoryEntry) (DataDirectory, bool) {
	if f.OptionalHeader == nil {
		return DataDirectory{}, false
	}
	return f.OptionalHeader.DataDirectory(e)
}

func (f *File) Section(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ReadUint16 read a uint16 from a buffer.
func (f *File) ReadUint16(offset uint32) (uint16, error) {
	return newCursor(f.data, int(offset)).readUint16()
}

// ReadUint32 read a uint32 from a buffer.
func (f *File) ReadUint32(offset uint32) (uint32, error) {
	return newCursor(f.data, int(offset)).readUint32()
}

func (f *File) GetData(rva, length uint32) ([]byte, error) {
	section := f.getSectionByRva(rva)
	if section == nil {
		end := uint64(rva) + uint64(length)
		if end > uint64(f.size) {
			end = uint64(f.size)
		}
		if rva < f.size {
			data := make([]byte, end-uint64(rva))
			copy(data, f.data[rva:end])
			return data, nil
		}

		return nil, errors.New("data at RVA can't be fetched. Corrupt header?")
	}
	return section.GetData(rva, length, f), nil
}

func (f *File) GetByte(index int) (byte, error) {
	return newCursor(f.data, index).readUint8()
}

func (f *File) SectionContains(rva uint32, section *Section) bool {
	var size uint32
	adjustedPointer := f.adjustFileAlignment(section.Offset)
	if adjustedPointer > f.size || f.size-adjustedPointer < section.Size {
		size = section.VirtualSize
	} else {
		size = Max(section.Size, section.VirtualSize)
	}
	vaAdj := f.adjustSectionAlignment(section.VirtualAddress)

	// Check whether there's any section after the current one that starts before
	// the calculated end for the current one. If so, cut the current section's
	// size to fit in the range up to where the next section starts.
	if next := f.NextHeaderAddr(section); next != 0 && next > section.VirtualAddress &&
		vaAdj+size > next {
		size = next - vaAdj
	}

	return vaAdj <= rva && rva < vaAdj+size
}

// NextHeaderAddr returns the VirtualAddress of the next section.
func (f *File) NextHeaderAddr(section *Section) uint32 {
	for i, currentSection := range f.Sections {
		if i == len(f.Sections)-1 {
			return 0
		}

		if reflect.DeepEqual(section.SectionHeader, currentSection.SectionHeader) {
			return f.Sections[i+1].VirtualAddress
		}
	}
	return 0
}

func (f *File) structUnpack(iface interface{}, offset, size uint32) (err error) {
	// Boundary check
	totalSize := offset + size

	// Integer overflow
	if (totalSize > offset) != (size > 0) {
		return ErrOutsideBoundary
	}

	if offset >= f.size || totalSize > f.size {
		return ErrOutsideBoundary
	}

	return binary.Read(bytes.NewReader(f.data[offset:totalSize]), binary.LittleEndian, iface)
}

func (f *File) adjustSectionAlignment(va uint32) uint32 {
	if f.OptionalHeader == nil {
		return va
	}
	fileAlignment := f.OptionalHeader.FileAlignment()
	sectionAlignment := f.OptionalHeader.SectionAlignment()

	if sectionAlignment < 0x1000 {
		sectionAlignment = fileAlignment
	}

	if sectionAlignment != 0 && va%sectionAlignment != 0 {
		return sectionAlignment * (va / sectionAlignment)
	}
	return va
}

func (f *File) adjustFileAlignment(va uint32) uint32 {
	if f.OptionalHeader == nil {
		return va
	}
	if f.OptionalHeader.FileAlignment() < uint32(FileAlignmentHardcodedValue) {
		return va
	}
	return (va / 0x200) * 0x200
}

func (f *File) getOffsetFromRva(rva uint32) uint32 {
	section := f.getSectionByRva(rva)
	if section == nil {
		if rva < f.size {
			return rva
		}
		return ^uint32(0)
	}
	sectionAlignment := f.adjustSectionAlignment(section.VirtualAddress)
	fileAlignment := f.adjustFileAlignment(section.Offset)
	return rva - sectionAlignment + fileAlignment
}

func (f *File) getSectionByRva(rva uint32) *Section {
	for _, section := range f.Sections {
		if f.SectionContains(rva, section) {
			return section
		}
	}
	return nil
}
