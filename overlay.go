package pe

import (
	"io"
)

type LargestOffsetAndSize struct {
	offset, size uint32
}

// getOverlayDataStartOffset finds the end of the furthest structure the
// headers account for: the optional header, every section and every data
// directory except the certificate table, which lives in the overlay.
func (f *File) getOverlayDataStartOffset() uint32 {
	if f.OptionalHeader == nil {
		return 0
	}

	largest := LargestOffsetAndSize{offset: 0, size: 0}
	updateIfSumIsLargerAndWithinFile := func(offsetAndSize LargestOffsetAndSize) {
		sum := uint64(offsetAndSize.offset) + uint64(offsetAndSize.size)
		if sum <= uint64(f.size) && sum > uint64(largest.offset)+uint64(largest.size) {
			largest = offsetAndSize
		}
	}

	updateIfSumIsLargerAndWithinFile(LargestOffsetAndSize{
		offset: f.optionalHeaderOffset(),
		size:   uint32(f.FileHeader.SizeOfOptionalHeader),
	})

	for _, section := range f.Sections {
		updateIfSumIsLargerAndWithinFile(LargestOffsetAndSize{
			offset: section.Offset,
			size:   section.Size,
		})
	}

	for idx, directory := range f.OptionalHeader.DataDirectories {
		if DirectoryEntry(idx) == ImageDirectoryEntrySecurity {
			continue
		}

		updateIfSumIsLargerAndWithinFile(LargestOffsetAndSize{
			offset: f.getOffsetFromRva(directory.VirtualAddress),
			size:   directory.Size,
		})
	}

	if f.size-largest.size > largest.offset {
		return largest.offset + largest.size
	}
	return 0
}

func (f *File) GetOverlay() *io.SectionReader {
	f.OverlayOffset = int64(f.getOverlayDataStartOffset())
	if f.OverlayOffset != 0 {
		return io.NewSectionReader(f.sr, f.OverlayOffset, int64(f.size)-f.OverlayOffset)
	}
	return nil
}
