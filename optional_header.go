package pe

import (
	"fmt"

	"github.com/pkg/errors"
)

// Magic selects the optional header variant.
type Magic uint16

const (
	MagicUnknown  Magic = 0x000 // object files, no optional header variant
	MagicROM      Magic = 0x107
	MagicPE32     Magic = 0x10b
	MagicPE32Plus Magic = 0x20b // PE32+
)

func (m Magic) String() string {
	switch m {
	case MagicUnknown:
		return "Unknown"
	case MagicROM:
		return "ROM"
	case MagicPE32:
		return "PE32"
	case MagicPE32Plus:
		return "PE32+"
	}
	return fmt.Sprintf("Magic(0x%x)", uint16(m))
}

func classifyMagic(raw uint16) (Magic, error) {
	switch m := Magic(raw); m {
	case MagicUnknown, MagicROM, MagicPE32, MagicPE32Plus:
		return m, nil
	}
	return 0, &UnsupportedMagicError{Magic: raw}
}

// OptionalHeaderROM is IMAGE_ROM_OPTIONAL_HEADER. The GP register fields
// are MIPS specific.
type OptionalHeaderROM struct {
	Magic                   uint16
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
	BaseOfData              uint32
	BaseOfBss               uint32
	GprMask                 uint32
	CprMask                 [4]uint32
	GpValue                 uint32
}

type OptionalHeader32 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

// OptionalHeader64 is the PE32+ layout. There is no BaseOfData.
type OptionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

// FixedOptionalHeader is one of *OptionalHeaderROM, *OptionalHeader32 or
// *OptionalHeader64. No other type can implement it.
type FixedOptionalHeader interface {
	variant() Magic
	fixedSize() int
}

func (*OptionalHeaderROM) variant() Magic { return MagicROM }
func (*OptionalHeader32) variant() Magic  { return MagicPE32 }
func (*OptionalHeader64) variant() Magic  { return MagicPE32Plus }

func (*OptionalHeaderROM) fixedSize() int { return OptionalHeaderROMSize }
func (*OptionalHeader32) fixedSize() int  { return OptionalHeader32Size }
func (*OptionalHeader64) fixedSize() int  { return OptionalHeader64Size }

// OptionalHeader is a decoded optional header: the variant tag, the fixed
// structure for that variant and the data directory array.
type OptionalHeader struct {
	Magic  Magic
	Header FixedOptionalHeader // nil for MagicUnknown

	// DataDirectories holds min(NumberOfRvaAndSizes, MaxDirectories) entries.
	DataDirectories []DataDirectory
	// NumberOfRvaAndSizes is the count claimed by the file, before clamping.
	NumberOfRvaAndSizes uint32

	// Offset is where the header starts in the buffer and Length the number
	// of bytes decoded from there.
	Offset int
	Length int
}

// Parse decodes the optional header starting at offset in buf. buf is only
// read. A MagicUnknown header is returned with nothing but its magic read;
// use ParseAs to pick a decode path for such data.
func Parse(buf []byte, offset int) (*OptionalHeader, error) {
	c := newCursor(buf, offset)
	raw, err := c.readUint16()
	if err != nil {
		return nil, errors.WithMessage(err, "failure to read optional header magic")
	}

	m, err := classifyMagic(raw)
	if err != nil {
		return nil, err
	}

	if m == MagicUnknown {
		return &OptionalHeader{
			Magic:           m,
			DataDirectories: []DataDirectory{},
			Offset:          offset,
			Length:          c.offset() - offset,
		}, nil
	}
	return ParseAs(buf, offset, m)
}

// ParseAs decodes the optional header at offset as variant m regardless of
// the magic stored in the buffer.
func ParseAs(buf []byte, offset int, m Magic) (*OptionalHeader, error) {
	c := newCursor(buf, offset)
	oh := &OptionalHeader{Magic: m, Offset: offset}

	var (
		err error
		n   uint32
	)
	switch m {
	case MagicROM:
		// ROM headers end at GpValue and carry no directory array.
		var rom *OptionalHeaderROM
		if rom, err = readOptionalHeaderROM(c); err == nil {
			oh.Header = rom
		}
	case MagicPE32:
		var oh32 *OptionalHeader32
		if oh32, err = readOptionalHeader32(c); err == nil {
			oh.Header, n = oh32, oh32.NumberOfRvaAndSizes
		}
	case MagicPE32Plus:
		var oh64 *OptionalHeader64
		if oh64, err = readOptionalHeader64(c); err == nil {
			oh.Header, n = oh64, oh64.NumberOfRvaAndSizes
		}
	default:
		return nil, errors.Errorf("no decode path for optional header magic %v", m)
	}
	if err != nil {
		return nil, err
	}

	oh.NumberOfRvaAndSizes = n
	if oh.DataDirectories, err = readDataDirectories(c, n); err != nil {
		return nil, errors.WithMessagef(err, "failure to read %v data directories", m)
	}
	oh.Length = c.offset() - offset
	return oh, nil
}

func readOptionalHeaderROM(c *cursor) (*OptionalHeaderROM, error) {
	var (
		rom OptionalHeaderROM
		err error
	)
	read := func(data any) bool {
		err = c.read(data)
		return err == nil
	}

	if !read(&rom.Magic) ||
		!read(&rom.MajorLinkerVersion) ||
		!read(&rom.MinorLinkerVersion) ||
		!read(&rom.SizeOfCode) ||
		!read(&rom.SizeOfInitializedData) ||
		!read(&rom.SizeOfUninitializedData) ||
		!read(&rom.AddressOfEntryPoint) ||
		!read(&rom.BaseOfCode) ||
		!read(&rom.BaseOfData) ||
		!read(&rom.BaseOfBss) ||
		!read(&rom.GprMask) ||
		!read(&rom.CprMask) ||
		!read(&rom.GpValue) {
		return nil, errors.Wrap(err, "failure to read ROM optional header")
	}
	return &rom, nil
}

func readOptionalHeader32(c *cursor) (*OptionalHeader32, error) {
	var (
		oh32 OptionalHeader32
		err  error
	)
	read := func(data any) bool {
		err = c.read(data)
		return err == nil
	}

	if !read(&oh32.Magic) ||
		!read(&oh32.MajorLinkerVersion) ||
		!read(&oh32.MinorLinkerVersion) ||
		!read(&oh32.SizeOfCode) ||
		!read(&oh32.SizeOfInitializedData) ||
		!read(&oh32.SizeOfUninitializedData) ||
		!read(&oh32.AddressOfEntryPoint) ||
		!read(&oh32.BaseOfCode) ||
		!read(&oh32.BaseOfData) ||
		!read(&oh32.ImageBase) ||
		!read(&oh32.SectionAlignment) ||
		!read(&oh32.FileAlignment) ||
		!read(&oh32.MajorOperatingSystemVersion) ||
		!read(&oh32.MinorOperatingSystemVersion) ||
		!read(&oh32.MajorImageVersion) ||
		!read(&oh32.MinorImageVersion) ||
		!read(&oh32.MajorSubsystemVersion) ||
		!read(&oh32.MinorSubsystemVersion) ||
		!read(&oh32.Win32VersionValue) ||
		!read(&oh32.SizeOfImage) ||
		!read(&oh32.SizeOfHeaders) ||
		!read(&oh32.CheckSum) ||
		!read(&oh32.Subsystem) ||
		!read(&oh32.DllCharacteristics) ||
		!read(&oh32.SizeOfStackReserve) ||
		!read(&oh32.SizeOfStackCommit) ||
		!read(&oh32.SizeOfHeapReserve) ||
		!read(&oh32.SizeOfHeapCommit) ||
		!read(&oh32.LoaderFlags) ||
		!read(&oh32.NumberOfRvaAndSizes) {
		return nil, errors.Wrap(err, "failure to read PE32 optional header")
	}
	return &oh32, nil
}

func readOptionalHeader64(c *cursor) (*OptionalHeader64, error) {
	var (
		oh64 OptionalHeader64
		err  error
	)
	read := func(data any) bool {
		err = c.read(data)
		return err == nil
	}

	if !read(&oh64.Magic) ||
		!read(&oh64.MajorLinkerVersion) ||
		!read(&oh64.MinorLinkerVersion) ||
		!read(&oh64.SizeOfCode) ||
		!read(&oh64.SizeOfInitializedData) ||
		!read(&oh64.SizeOfUninitializedData) ||
		!read(&oh64.AddressOfEntryPoint) ||
		!read(&oh64.BaseOfCode) ||
		!read(&oh64.ImageBase) ||
		!read(&oh64.SectionAlignment) ||
		!read(&oh64.FileAlignment) ||
		!read(&oh64.MajorOperatingSystemVersion) ||
		!read(&oh64.MinorOperatingSystemVersion) ||
		!read(&oh64.MajorImageVersion) ||
		!read(&oh64.MinorImageVersion) ||
		!read(&oh64.MajorSubsystemVersion) ||
		!read(&oh64.MinorSubsystemVersion) ||
		!read(&oh64.Win32VersionValue) ||
		!read(&oh64.SizeOfImage) ||
		!read(&oh64.SizeOfHeaders) ||
		!read(&oh64.CheckSum) ||
		!read(&oh64.Subsystem) ||
		!read(&oh64.DllCharacteristics) ||
		!read(&oh64.SizeOfStackReserve) ||
		!read(&oh64.SizeOfStackCommit) ||
		!read(&oh64.SizeOfHeapReserve) ||
		!read(&oh64.SizeOfHeapCommit) ||
		!read(&oh64.LoaderFlags) ||
		!read(&oh64.NumberOfRvaAndSizes) {
		return nil, errors.Wrap(err, "failure to read PE32+ optional header")
	}
	return &oh64, nil
}

func (oh *OptionalHeader) ROM() (*OptionalHeaderROM, bool) {
	rom, ok := oh.Header.(*OptionalHeaderROM)
	return rom, ok
}

func (oh *OptionalHeader) PE32() (*OptionalHeader32, bool) {
	oh32, ok := oh.Header.(*OptionalHeader32)
	return oh32, ok
}

func (oh *OptionalHeader) PE64() (*OptionalHeader64, bool) {
	oh64, ok := oh.Header.(*OptionalHeader64)
	return oh64, ok
}

// Is64 reports whether the header is PE32+.
func (oh *OptionalHeader) Is64() bool {
	_, ok := oh.PE64()
	return ok
}

// Clamped reports whether the file claimed more directories than were read.
func (oh *OptionalHeader) Clamped() bool {
	return oh.NumberOfRvaAndSizes > uint32(len(oh.DataDirectories))
}

// DataDirectory returns the directory at position e, if the array has one.
func (oh *OptionalHeader) DataDirectory(e DirectoryEntry) (DataDirectory, bool) {
	if e < 0 || int(e) >= len(oh.DataDirectories) {
		return DataDirectory{}, false
	}
	return oh.DataDirectories[e], true
}

// DirectoryOffset returns the buffer offset of the directory slot at
// position e. The slot need not have been present in the file.
func (oh *OptionalHeader) DirectoryOffset(e DirectoryEntry) int {
	if oh.Header == nil {
		return oh.Offset + oh.Length
	}
	return oh.Offset + oh.Header.fixedSize() + int(e)*dataDirectorySize
}

func (oh *OptionalHeader) AddressOfEntryPoint() uint32 {
	switch h := oh.Header.(type) {
	case *OptionalHeaderROM:
		return h.AddressOfEntryPoint
	case *OptionalHeader32:
		return h.AddressOfEntryPoint
	case *OptionalHeader64:
		return h.AddressOfEntryPoint
	}
	return 0
}

// ImageBase widens the PE32 image base. ROM headers have none and yield 0.
func (oh *OptionalHeader) ImageBase() uint64 {
	switch h := oh.Header.(type) {
	case *OptionalHeader32:
		return uint64(h.ImageBase)
	case *OptionalHeader64:
		return h.ImageBase
	}
	return 0
}

func (oh *OptionalHeader) SectionAlignment() uint32 {
	switch h := oh.Header.(type) {
	case *OptionalHeader32:
		return h.SectionAlignment
	case *OptionalHeader64:
		return h.SectionAlignment
	}
	return 0
}

func (oh *OptionalHeader) FileAlignment() uint32 {
	switch h := oh.Header.(type) {
	case *OptionalHeader32:
		return h.FileAlignment
	case *OptionalHeader64:
		return h.FileAlignment
	}
	return 0
}

func (oh *OptionalHeader) SizeOfHeaders() uint32 {
	switch h := oh.Header.(type) {
	case *OptionalHeader32:
		return h.SizeOfHeaders
	case *OptionalHeader64:
		return h.SizeOfHeaders
	}
	return 0
}

// CheckSumOffset returns the buffer offset of the CheckSum field, or -1 for
// variants without one.
func (oh *OptionalHeader) CheckSumOffset() int {
	switch oh.Header.(type) {
	case *OptionalHeader32, *OptionalHeader64:
		return oh.Offset + 64
	}
	return -1
}

func (oh *OptionalHeader) Subsystem() Subsystem {
	switch h := oh.Header.(type) {
	case *OptionalHeader32:
		return DecodeSubsystem(h.Subsystem)
	case *OptionalHeader64:
		return DecodeSubsystem(h.Subsystem)
	}
	return SubsystemUnknown
}

func (oh *OptionalHeader) DllCharacteristics() DllCharacteristics {
	switch h := oh.Header.(type) {
	case *OptionalHeader32:
		return DecodeDllCharacteristics(h.DllCharacteristics)
	case *OptionalHeader64:
		return DecodeDllCharacteristics(h.DllCharacteristics)
	}
	return DllCharacteristics{}
}

func (oh *OptionalHeader) LoaderFlags() LoaderFlags {
	switch h := oh.Header.(type) {
	case *OptionalHeader32:
		return DecodeLoaderFlags(h.LoaderFlags)
	case *OptionalHeader64:
		return DecodeLoaderFlags(h.LoaderFlags)
	}
	return LoaderFlags{}
}
