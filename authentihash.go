package pe

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"
	"sort"

	"github.com/pkg/errors"
)

func (f *File) AuthentihashSha512() []byte {
	return f.authentihash(sha512.New())
}
func (f *File) AuthentihashSha256() []byte {
	return f.authentihash(sha256.New())
}

func (f *File) AuthentihashSha1() []byte {
	return f.authentihash(sha1.New())
}

func (f *File) AuthentihashMd5() []byte {
	return f.authentihash(md5.New())
}

func (f *File) Authentihash() []byte {
	return f.authentihash(sha256.New())
}

// authentihash hashes the image minus the checksum field, the certificate
// table directory slot and the certificate table itself.
func (f *File) authentihash(hasher hash.Hash) []byte {
	if f.OptionalHeader == nil || f.OptionalHeader.Header == nil {
		return nil
	}

	locations, err := f.parsePEHeaderLocations()
	if err != nil {
		return nil
	}
	sort.Sort(byStart(locations))

	ranges := make([]Range, 0, len(locations)+1)
	start := uint32(0)
	for _, r := range locations {
		if r.Start < start {
			continue
		}
		ranges = append(ranges, Range{Start: start, End: r.Start})
		start = r.Start + r.Length
	}
	ranges = append(ranges, Range{Start: start, End: f.size})

	for _, v := range ranges {
		if v.End < v.Start {
			continue
		}
		sr := io.NewSectionReader(f.sr, int64(v.Start), int64(v.End)-int64(v.Start))
		_, _ = io.Copy(hasher, sr)
	}
	return hasher.Sum(nil)
}

type Range struct {
	Start uint32
	End   uint32
}
type RelRange struct {
	Start  uint32
	Length uint32
}

type byStart []RelRange

func (s byStart) Len() int           { return len(s) }
func (s byStart) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s byStart) Less(i, j int) bool { return s[i].Start < s[j].Start }

func (f *File) parsePEHeaderLocations() ([]RelRange, error) {
	oh := f.OptionalHeader
	optionalHeaderOffset := uint32(oh.Offset)
	headersSize := oh.SizeOfHeaders()

	if optionalHeaderOffset > f.size || headersSize > f.size-optionalHeaderOffset {
		msgF := "the optional header exceeds the file length (%d + %d > %d)"
		return nil, errors.Errorf(msgF, headersSize, optionalHeaderOffset, f.size)
	}

	if headersSize < 68 {
		msgF := "the optional header size is %d < 68, which is insufficient for authenticode"
		return nil, errors.Errorf(msgF, headersSize)
	}

	// The location of the checksum
	locations := []RelRange{{uint32(oh.CheckSumOffset()), 4}}

	certSlot := uint32(oh.DirectoryOffset(ImageDirectoryEntrySecurity))
	if optionalHeaderOffset+headersSize < certSlot+8 {
		return locations, nil
	}

	cert, ok := oh.DataDirectory(ImageDirectoryEntrySecurity)
	if !ok {
		return locations, nil
	}

	// The location of the entry of the Certificate Table in the Data Directory
	locations = append(locations, RelRange{certSlot, 8})

	if cert.Size == 0 {
		return locations, nil
	}

	if int64(cert.VirtualAddress) < int64(headersSize)+int64(optionalHeaderOffset) ||
		int64(cert.VirtualAddress)+int64(cert.Size) > int64(f.size) {
		return locations, nil
	}

	// The location of the Certificate Table
	locations = append(locations, RelRange{cert.VirtualAddress, cert.Size})
	return locations, nil
}
