// Package output turns parsed PE files into ordered report documents and
// provides the built in formatters for them.
package output

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/h2non/filetype"

	pe "github.com/wanglei-coder/pev"
)

// ReportSections selects the parts of a File that Report includes.
type ReportSections struct {
	Headers     bool
	Directories bool
	Sections    bool
	Overlay     bool
	Hashes      bool
}

// All selects every part of the report.
var All = ReportSections{Headers: true, Directories: true, Sections: true, Overlay: true, Hashes: true}

func hex16(v uint16) string { return fmt.Sprintf("0x%x", v) }
func hex32(v uint32) string { return fmt.Sprintf("0x%x", v) }
func hex64(v uint64) string { return fmt.Sprintf("0x%x", v) }

func Report(f *pe.File, s ReportSections) *ordereddict.Dict {
	doc := ordereddict.NewDict()
	if s.Headers {
		doc.Set("DOS Header", DOSHeaderDict(&f.DOSHeader))
		doc.Set("COFF/File Header", FileHeaderDict(&f.FileHeader, f.ImageKind()))
		if f.OptionalHeader != nil {
			doc.Set("Optional/Image Header", OptionalHeaderDict(f.OptionalHeader, f.ImageKind()))
		}
	}
	if s.Directories && f.OptionalHeader != nil {
		doc.Set("Data Directories", DirectoriesDict(f.OptionalHeader))
	}
	if s.Sections {
		doc.Set("Sections", SectionsList(f))
	}
	if s.Overlay {
		if overlay := OverlayDict(f); overlay != nil {
			doc.Set("Overlay", overlay)
		}
	}
	if s.Hashes {
		doc.Set("Hashes", HashesDict(f))
	}
	return doc
}

func DOSHeaderDict(h *pe.DOSHeader) *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Magic number", hex16(h.Magic)).
		Set("Bytes in last page", h.BytesOnLastPageOfFile).
		Set("Pages in file", h.PagesInFile).
		Set("Relocations", h.Relocations).
		Set("Size of header in paragraphs", h.SizeOfHeader).
		Set("Initial (relative) SS value", hex16(h.InitialSS)).
		Set("Initial SP value", hex16(h.InitialSP)).
		Set("Initial IP value", hex16(h.InitialIP)).
		Set("Initial (relative) CS value", hex16(h.InitialCS)).
		Set("Address of relocation table", hex16(h.AddressOfRelocationTable)).
		Set("PE header offset", hex32(h.AddressOfNewEXEHeader))
}

func FileHeaderDict(h *pe.FileHeader, kind pe.ImageKind) *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Machine", hex16(h.Machine)).
		Set("Number of sections", h.NumberOfSections).
		Set("Date/time stamp", time.Unix(int64(h.TimeDateStamp), 0).UTC().Format(time.RFC3339)).
		Set("Symbol Table offset", hex32(h.PointerToSymbolTable)).
		Set("Number of symbols", h.NumberOfSymbols).
		Set("Size of optional header", hex16(h.SizeOfOptionalHeader)).
		Set("Characteristics", hex16(h.Characteristics)).
		Set("Image kind", kind.String())
}

// OptionalHeaderDict describes oh. kind resolves the DLL characteristic
// bit whose meaning depends on the image being an EXE or a DLL.
func OptionalHeaderDict(oh *pe.OptionalHeader, kind pe.ImageKind) *ordereddict.Dict {
	d := ordereddict.NewDict().
		Set("Magic number", fmt.Sprintf("%s (0x%x)", oh.Magic, uint16(oh.Magic)))

	switch h := oh.Header.(type) {
	case *pe.OptionalHeaderROM:
		d.Set("Linker major version", h.MajorLinkerVersion).
			Set("Linker minor version", h.MinorLinkerVersion).
			Set("Size of .text section", hex32(h.SizeOfCode)).
			Set("Size of .data section", hex32(h.SizeOfInitializedData)).
			Set("Size of .bss section", hex32(h.SizeOfUninitializedData)).
			Set("Entrypoint", hex32(h.AddressOfEntryPoint)).
			Set("Address of .text section", hex32(h.BaseOfCode)).
			Set("Address of .data section", hex32(h.BaseOfData)).
			Set("Address of .bss section", hex32(h.BaseOfBss)).
			Set("GPR mask", hex32(h.GprMask)).
			Set("CPR mask", []string{hex32(h.CprMask[0]), hex32(h.CprMask[1]), hex32(h.CprMask[2]), hex32(h.CprMask[3])}).
			Set("GP value", hex32(h.GpValue))
		return d
	case *pe.OptionalHeader32:
		d.Set("Linker major version", h.MajorLinkerVersion).
			Set("Linker minor version", h.MinorLinkerVersion).
			Set("Size of .text section", hex32(h.SizeOfCode)).
			Set("Size of .data section", hex32(h.SizeOfInitializedData)).
			Set("Size of .bss section", hex32(h.SizeOfUninitializedData)).
			Set("Entrypoint", hex32(h.AddressOfEntryPoint)).
			Set("Address of .text section", hex32(h.BaseOfCode)).
			Set("Address of .data section", hex32(h.BaseOfData)).
			Set("ImageBase", hex32(h.ImageBase)).
			Set("Alignment of sections", hex32(h.SectionAlignment)).
			Set("Alignment factor", hex32(h.FileAlignment)).
			Set("Major version of required OS", h.MajorOperatingSystemVersion).
			Set("Minor version of required OS", h.MinorOperatingSystemVersion).
			Set("Major version of image", h.MajorImageVersion).
			Set("Minor version of image", h.MinorImageVersion).
			Set("Major version of subsystem", h.MajorSubsystemVersion).
			Set("Minor version of subsystem", h.MinorSubsystemVersion).
			Set("Size of image", hex32(h.SizeOfImage)).
			Set("Size of headers", hex32(h.SizeOfHeaders)).
			Set("Checksum", hex32(h.CheckSum)).
			Set("Size of stack to reserve", hex32(h.SizeOfStackReserve)).
			Set("Size of stack to commit", hex32(h.SizeOfStackCommit)).
			Set("Size of heap space to reserve", hex32(h.SizeOfHeapReserve)).
			Set("Size of heap space to commit", hex32(h.SizeOfHeapCommit))
	case *pe.OptionalHeader64:
		d.Set("Linker major version", h.MajorLinkerVersion).
			Set("Linker minor version", h.MinorLinkerVersion).
			Set("Size of .text section", hex32(h.SizeOfCode)).
			Set("Size of .data section", hex32(h.SizeOfInitializedData)).
			Set("Size of .bss section", hex32(h.SizeOfUninitializedData)).
			Set("Entrypoint", hex32(h.AddressOfEntryPoint)).
			Set("Address of .text section", hex32(h.BaseOfCode)).
			Set("ImageBase", hex64(h.ImageBase)).
			Set("Alignment of sections", hex32(h.SectionAlignment)).
			Set("Alignment factor", hex32(h.FileAlignment)).
			Set("Major version of required OS", h.MajorOperatingSystemVersion).
			Set("Minor version of required OS", h.MinorOperatingSystemVersion).
			Set("Major version of image", h.MajorImageVersion).
			Set("Minor version of image", h.MinorImageVersion).
			Set("Major version of subsystem", h.MajorSubsystemVersion).
			Set("Minor version of subsystem", h.MinorSubsystemVersion).
			Set("Size of image", hex32(h.SizeOfImage)).
			Set("Size of headers", hex32(h.SizeOfHeaders)).
			Set("Checksum", hex32(h.CheckSum)).
			Set("Size of stack to reserve", hex64(h.SizeOfStackReserve)).
			Set("Size of stack to commit", hex64(h.SizeOfStackCommit)).
			Set("Size of heap space to reserve", hex64(h.SizeOfHeapReserve)).
			Set("Size of heap space to commit", hex64(h.SizeOfHeapCommit))
	default:
		return d
	}

	subsystem := oh.Subsystem()
	d.Set("Subsystem required", fmt.Sprintf("%s (0x%x)", subsystem, uint16(subsystem)))

	dll := oh.DllCharacteristics()
	names := dll.Names()
	if dll.Has(pe.DllX86ThunkOrAppContainer) {
		// Replace the two-meaning name with the one that fits this image.
		for i, name := range names {
			if name != "X86_THUNK|APPCONTAINER" {
				continue
			}
			switch {
			case dll.AppContainer(kind):
				names[i] = "APPCONTAINER"
			case dll.X86Thunk(kind):
				names[i] = "X86_THUNK"
			}
		}
	}
	d.Set("DLL characteristics", hex16(dll.Raw())).
		Set("DLL characteristics names", names)

	loader := oh.LoaderFlags()
	d.Set("Loader flags", hex32(loader.Raw())).
		Set("Loader flags names", loader.Names()).
		Set("Number of directories", oh.NumberOfRvaAndSizes)
	if oh.Clamped() {
		d.Set("Directories read", len(oh.DataDirectories))
	}
	return d
}

func DirectoriesDict(oh *pe.OptionalHeader) *ordereddict.Dict {
	d := ordereddict.NewDict()
	for i, dir := range oh.DataDirectories {
		d.Set(pe.DirectoryEntry(i).String(), ordereddict.NewDict().
			Set("Virtual Address", hex32(dir.VirtualAddress)).
			Set("Size", hex32(dir.Size)))
	}
	return d
}

func SectionsList(f *pe.File) []*ordereddict.Dict {
	sections := make([]*ordereddict.Dict, 0, len(f.Sections))
	for _, s := range f.Sections {
		d := ordereddict.NewDict().
			Set("Name", s.Name).
			Set("Virtual Size", hex32(s.VirtualSize)).
			Set("Virtual Address", hex32(s.VirtualAddress)).
			Set("Size Of Raw Data", hex32(s.Size))
		if s.RawSize() != int64(s.Size) {
			d.Set("Raw Data In File", hex64(uint64(s.RawSize())))
		}
		d.Set("Pointer To Raw Data", hex32(s.Offset)).
			Set("Number Of Relocations", s.NumberOfRelocations)

		// A broken relocation table only affects its own section.
		switch relocs, err := f.SectionReLocs(s); {
		case err != nil:
			d.Set("Relocations", err.Error())
		case len(relocs) > 0:
			d.Set("Relocations", relocationsList(relocs))
		}

		sections = append(sections, d.
			Set("Characteristics", hex32(s.Characteristics)).
			Set("Flags", s.Flags()).
			Set("MD5", s.MD5()).
			Set("Entropy", s.Entropy()))
	}
	return sections
}

func relocationsList(relocs []pe.ReLoc) []*ordereddict.Dict {
	list := make([]*ordereddict.Dict, 0, len(relocs))
	for _, r := range relocs {
		list = append(list, ordereddict.NewDict().
			Set("Virtual Address", hex32(r.VirtualAddress)).
			Set("Symbol Table Index", r.SymbolTableIndex).
			Set("Type", hex16(r.Type)))
	}
	return list
}

// OverlayDict describes the data appended after the image, or returns nil
// when there is none.
func OverlayDict(f *pe.File) *ordereddict.Dict {
	rs := f.GetOverlay()
	if rs == nil {
		return nil
	}

	hasher := md5.New()
	var entropy pe.EntropyCalculator
	_, _ = io.Copy(io.MultiWriter(hasher, &entropy), io.NewSectionReader(rs, 0, rs.Size()))

	head := make([]byte, 1024)
	n, _ := rs.ReadAt(head, 0)

	return ordereddict.NewDict().
		Set("Offset", hex64(uint64(f.OverlayOffset))).
		Set("Size", rs.Size()).
		Set("MD5", hex.EncodeToString(hasher.Sum(nil))).
		Set("Entropy", entropy.Sum()).
		Set("File Type", FileType(head[:n]))
}

func HashesDict(f *pe.File) *ordereddict.Dict {
	d := ordereddict.NewDict()
	if sum := f.Authentihash(); sum != nil {
		d.Set("Authentihash", hex.EncodeToString(sum))
	}
	if f.RichHeader != nil {
		d.Set("Rich Header Hash", f.RichHeaderHash()).
			Set("Rich Header Checksum", hex32(f.RichHeaderChecksum()))
	}
	return d
}

// FileType names the MIME type of data, or "Data" when it is not recognised.
func FileType(data []byte) string {
	kind, _ := filetype.Match(data)
	if kind == filetype.Unknown {
		return "Data"
	}
	return kind.MIME.Value
}
