package pe

import (
	"github.com/pkg/errors"
)

type NtHeader struct {
	Signature  uint32
	FileHeader FileHeader
	// OptionalHeader is nil when SizeOfOptionalHeader is 0.
	OptionalHeader *OptionalHeader
}

type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// optionalHeaderOffset is where the optional header starts, right behind
// the COFF file header.
func (f *File) optionalHeaderOffset() uint32 {
	return f.DOSHeader.AddressOfNewEXEHeader + 4 + uint32(FileHeaderSize)
}

func (f *File) readNTHeader() (err error) {
	ntOffset := f.DOSHeader.AddressOfNewEXEHeader
	if err := f.structUnpack(&f.Signature, ntOffset, 4); err != nil {
		return errors.WithMessage(err, "failure to read NT signature")
	}

	if f.Signature != ImageNTHeaderSignature {
		return errors.New("not a valid PE signature. Magic not found")
	}

	if err := f.structUnpack(&f.FileHeader, ntOffset+4, uint32(FileHeaderSize)); err != nil {
		return errors.WithMessage(err, "failure to read file header")
	}

	f.OptionalHeader, err = f.readOptionalHeader()
	return err
}

func (f *File) readOptionalHeader() (*OptionalHeader, error) {
	if f.FileHeader.SizeOfOptionalHeader == 0 {
		return nil, nil
	}

	// If optional header size is greater than 0 but less than its magic size, return error.
	if f.FileHeader.SizeOfOptionalHeader < 2 {
		return nil, errors.New("optional header size is less than optional header magic size")
	}

	oh, err := Parse(f.data, int(f.optionalHeaderOffset()))
	if err != nil {
		return nil, err
	}

	if int(f.FileHeader.SizeOfOptionalHeader) < oh.Length {
		return nil, errors.Errorf("optional header size(%d) is less than the %d bytes "+
			"of the %v optional header", f.FileHeader.SizeOfOptionalHeader, oh.Length, oh.Magic)
	}

	if base := oh.ImageBase(); oh.Header != nil && base%0x10000 != 0 {
		return nil, errors.New("corrupt PE file. Image base not aligned to 64 K")
	}
	return oh, nil
}
