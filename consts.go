package pe

// MinFileSize On Windows XP (x32) the smallest PE executable is 97 bytes.
const MinFileSize = 97

const (
	ImageDOSSignature   = 0x5A4D // MZ
	ImageDOSZMSignature = 0x4D5A // ZM
)

const ImageNTHeaderSignature = 0x00004550

// COFF file header characteristics consulted by this package.
const (
	ImageFileExecutableImage = 0x0002
	ImageFileDLL             = 0x2000
)

const (
	ImageScnMemExecute = 0x20000000
	ImageScnMemRead    = 0x40000000
	ImageScnMemWrite   = 0x80000000
)

const FileAlignmentHardcodedValue = 0x200

const (
	DansSignature = 0x536E6144
	RichSignature = "Rich"
)

// Sizes of the fixed part of each optional header variant, up to and
// including NumberOfRvaAndSizes where the variant has one.
const (
	OptionalHeaderROMSize = 56
	OptionalHeader32Size  = 96
	OptionalHeader64Size  = 112
)

const COFFSymbolSize = 18

var (
	DOSHeaderSize  = 64
	FileHeaderSize = 20
)
