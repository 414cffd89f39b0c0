package pe

import (
	"fmt"

	"github.com/pkg/errors"
)

type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

const dataDirectorySize = 8

// DirectoryEntry is the position of a directory in the data directory array.
type DirectoryEntry int

// IMAGE_DIRECTORY_ENTRY constants
const (
	ImageDirectoryEntryExport DirectoryEntry = iota
	ImageDirectoryEntryImport
	ImageDirectoryEntryResource
	ImageDirectoryEntryException
	ImageDirectoryEntrySecurity
	ImageDirectoryEntryBaseReLoc
	ImageDirectoryEntryDebug
	ImageDirectoryEntryArchitecture
	ImageDirectoryEntryGlobalPtr
	ImageDirectoryEntryTls
	ImageDirectoryEntryLoadConfig
	ImageDirectoryEntryBoundImport
	ImageDirectoryEntryIat
	ImageDirectoryEntryDelayImport
	ImageDirectoryEntryComDescriptor
	ImageDirectoryEntryReserved

	// MaxDirectories is the number of standard directory kinds. Larger
	// NumberOfRvaAndSizes values are clamped to it.
	MaxDirectories = int(ImageDirectoryEntryReserved) + 1
)

var directoryEntryNames = [MaxDirectories]string{
	"Export Table",
	"Import Table",
	"Resource Table",
	"Exception Table",
	"Certificate Table",
	"Base Relocation Table",
	"Debug",
	"Architecture",
	"Global Ptr",
	"TLS Table",
	"Load Config Table",
	"Bound Import",
	"IAT",
	"Delay Import Descriptor",
	"CLR Runtime Header",
	"Reserved",
}

func (e DirectoryEntry) String() string {
	if e >= 0 && int(e) < MaxDirectories {
		return directoryEntryNames[e]
	}
	return fmt.Sprintf("Directory(%d)", int(e))
}

// readDataDirectories reads the directory array that follows the fixed part
// of the optional header. The claimed count n comes straight from the file,
// so it is clamped before anything is allocated. A short array is an error:
// consumers index the result by position.
func readDataDirectories(c *cursor, n uint32) ([]DataDirectory, error) {
	count := MaxDirectories
	if n < uint32(count) {
		count = int(n)
	}
	if count == 0 {
		return []DataDirectory{}, nil
	}

	if c.remaining() < count*dataDirectorySize {
		return nil, errors.Wrapf(ErrTruncatedDirectoryArray,
			"%d bytes left for %d data directories", c.remaining(), count)
	}

	dd := make([]DataDirectory, count)
	for i := range dd {
		var err error
		if dd[i].VirtualAddress, err = c.readUint32(); err != nil {
			return nil, ErrTruncatedDirectoryArray
		}
		if dd[i].Size, err = c.readUint32(); err != nil {
			return nil, ErrTruncatedDirectoryArray
		}
	}
	return dd, nil
}
