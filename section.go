package pe

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// SectionHeader32 is IMAGE_SECTION_HEADER as stored in the section table.
type SectionHeader32 struct {
	Name                 [8]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

var sectionHeaderSize = uint32(binary.Size(SectionHeader32{}))

// name resolves "/nnn" long names through the COFF string table.
func (sh *SectionHeader32) name(st StringTable) (string, error) {
	if sh.Name[0] != '/' {
		return cString(sh.Name[:]), nil
	}
	off, err := strconv.ParseUint(cString(sh.Name[1:]), 10, 32)
	if err != nil {
		return "", errors.Wrapf(err, "bad long section name %q", cString(sh.Name[:]))
	}
	return st.String(uint32(off))
}

// SectionHeader is a decoded section table entry. Size and Offset are the
// raw SizeOfRawData and PointerToRawData values, which may point past the
// end of the file.
type SectionHeader struct {
	Name                 string
	VirtualSize          uint32
	VirtualAddress       uint32
	Size                 uint32
	Offset               uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

// ReLoc is a COFF relocation entry.
type ReLoc struct {
	VirtualAddress   uint32
	SymbolTableIndex uint32
	Type             uint16
}

const reLocSize = 10

type Section struct {
	SectionHeader

	// sr covers the part of the raw data that is inside the file.
	sr *io.SectionReader
}

// rawData returns a reader over the bytes of sh that are present in the
// file. Sections without raw data, like .bss, get an empty reader.
func (f *File) rawData(sh *SectionHeader32) *io.SectionReader {
	var n uint32
	if sh.PointerToRawData != 0 && sh.PointerToRawData < f.size {
		n = sh.SizeOfRawData
		if avail := f.size - sh.PointerToRawData; n > avail {
			n = avail
		}
	}
	return io.NewSectionReader(f.sr, int64(sh.PointerToRawData), int64(n))
}

// RawSize is the number of raw data bytes Data returns.
func (s *Section) RawSize() int64 {
	return s.sr.Size()
}

// Data returns a copy of the section's raw data that is inside the file.
func (s *Section) Data() ([]byte, error) {
	data := make([]byte, s.sr.Size())
	if _, err := s.sr.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

func (s *Section) reader() io.Reader {
	return io.NewSectionReader(s.sr, 0, s.sr.Size())
}

func (s *Section) MD5() string {
	hasher := md5.New()
	_, _ = io.Copy(hasher, s.reader())
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

func (s *Section) Entropy() float64 {
	var e EntropyCalculator
	_, _ = io.Copy(&e, s.reader())
	return e.Sum()
}

// Flags renders the memory permissions as a subset of "rxw".
func (s *Section) Flags() string {
	var flags []byte
	for _, p := range []struct {
		mask uint32
		c    byte
	}{
		{ImageScnMemRead, 'r'},
		{ImageScnMemExecute, 'x'},
		{ImageScnMemWrite, 'w'},
	} {
		if s.Characteristics&p.mask == p.mask {
			flags = append(flags, p.c)
		}
	}
	return string(flags)
}

// GetData reads length bytes of the section at rva. A zero length reads to
// the end of the raw data.
func (s *Section) GetData(rva, length uint32, f *File) []byte {
	base := uint64(f.adjustFileAlignment(s.Offset))
	va := f.adjustSectionAlignment(s.VirtualAddress)

	start := base
	if rva > va {
		start += uint64(rva - va)
	}
	size := uint64(f.size)
	if start > size {
		return nil
	}

	end := size
	if length != 0 {
		end = start + uint64(length)
	}
	// The unaligned end of the raw data bounds the read, not the aligned one.
	if rawEnd := uint64(s.Offset) + uint64(s.Size); end > rawEnd && rawEnd > start {
		end = rawEnd
	}
	if end > size {
		end = size
	}

	data := make([]byte, end-start)
	copy(data, f.data[start:end])
	return data
}

// SectionReLocs reads the COFF relocation table of s. A table outside the
// file is an error for this section only.
func (f *File) SectionReLocs(s *Section) ([]ReLoc, error) {
	if s.NumberOfRelocations == 0 {
		return nil, nil
	}
	size := uint32(s.NumberOfRelocations) * reLocSize
	if uint64(s.PointerToRelocations)+uint64(size) > uint64(f.size) {
		return nil, errors.WithMessagef(ErrOutsideBoundary, "%q section relocations", s.Name)
	}
	reLocs := make([]ReLoc, s.NumberOfRelocations)
	if err := f.structUnpack(reLocs, s.PointerToRelocations, size); err != nil {
		return nil, errors.WithMessagef(err, "%q section relocations", s.Name)
	}
	return reLocs, nil
}

// readSections decodes the section table that follows the optional header
// and sorts the sections by virtual address. Header is set to everything
// before the first section's raw data.
func (f *File) readSections() error {
	table := uint64(f.optionalHeaderOffset()) + uint64(f.FileHeader.SizeOfOptionalHeader)
	n := int(f.FileHeader.NumberOfSections)

	f.Sections = make([]*Section, 0, n)
	for i := 0; i < n; i++ {
		off := table + uint64(i)*uint64(sectionHeaderSize)
		if off+uint64(sectionHeaderSize) > uint64(f.size) {
			return errors.WithMessagef(ErrOutsideBoundary, "failure to read section header %d", i)
		}

		var sh SectionHeader32
		if err := f.structUnpack(&sh, uint32(off), sectionHeaderSize); err != nil {
			return errors.WithMessagef(err, "failure to read section header %d", i)
		}
		name, err := sh.name(f.StringTable)
		if err != nil {
			return err
		}

		f.Sections = append(f.Sections, &Section{
			SectionHeader: SectionHeader{
				Name:                 name,
				VirtualSize:          sh.VirtualSize,
				VirtualAddress:       sh.VirtualAddress,
				Size:                 sh.SizeOfRawData,
				Offset:               sh.PointerToRawData,
				PointerToRelocations: sh.PointerToRelocations,
				PointerToLineNumbers: sh.PointerToLineNumbers,
				NumberOfRelocations:  sh.NumberOfRelocations,
				NumberOfLineNumbers:  sh.NumberOfLineNumbers,
				Characteristics:      sh.Characteristics,
			},
			sr: f.rawData(&sh),
		})
	}
	sort.SliceStable(f.Sections, func(i, j int) bool {
		return f.Sections[i].VirtualAddress < f.Sections[j].VirtualAddress
	})

	headerEnd := table + uint64(n)*uint64(sectionHeaderSize)
	var lowest uint64
	for _, s := range f.Sections {
		if s.Offset == 0 {
			continue
		}
		if p := uint64(f.adjustFileAlignment(s.Offset)); lowest == 0 || p < lowest {
			lowest = p
		}
	}
	if lowest > headerEnd {
		headerEnd = lowest
	}
	if headerEnd <= uint64(f.size) {
		f.Header = f.data[:headerEnd]
	}
	return nil
}
