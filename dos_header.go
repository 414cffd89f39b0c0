package pe

import (
	"github.com/pkg/errors"
)

type DOSHeader struct {
	Magic                    uint16
	BytesOnLastPageOfFile    uint16
	PagesInFile              uint16
	Relocations              uint16
	SizeOfHeader             uint16
	MinExtraParagraphsNeeded uint16
	MaxExtraParagraphsNeeded uint16
	InitialSS                uint16
	InitialSP                uint16
	Checksum                 uint16
	InitialIP                uint16
	InitialCS                uint16
	AddressOfRelocationTable uint16
	OverlayNumber            uint16
	ReservedWords1           [4]uint16
	OEMIdentifier            uint16
	OEMInformation           uint16
	ReservedWords2           [10]uint16
	AddressOfNewEXEHeader    uint32
}

func (f *File) readDOSHeader() error {
	if err := f.structUnpack(&f.DOSHeader, 0, uint32(DOSHeaderSize)); err != nil {
		return errors.WithMessage(err, "failure to read DOS header")
	}

	if f.DOSHeader.Magic != ImageDOSSignature && f.DOSHeader.Magic != ImageDOSZMSignature {
		return errors.New("invalid PE file signature")
	}

	// The NT signature and the COFF file header must fit behind e_lfanew.
	lfanew := uint64(f.DOSHeader.AddressOfNewEXEHeader)
	if lfanew < 4 || lfanew+4+uint64(FileHeaderSize) > uint64(f.size) {
		return errors.New("invalid e_lfanew value. Probably not a PE file")
	}
	return nil
}
