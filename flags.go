package pe

import (
	"fmt"
	"strings"
)

// Subsystem is the runtime environment an image is built for. Values the
// table below does not know are kept as they are.
type Subsystem uint16

const (
	SubsystemUnknown                Subsystem = 0
	SubsystemNative                 Subsystem = 1
	SubsystemWindowsGUI             Subsystem = 2
	SubsystemWindowsCUI             Subsystem = 3
	SubsystemWindowsOldCEGUI        Subsystem = 4
	SubsystemOS2CUI                 Subsystem = 5
	SubsystemPosixCUI               Subsystem = 7
	SubsystemMMOSA                  Subsystem = 8
	SubsystemWindowsCEGUI           Subsystem = 9
	SubsystemEFIApplication         Subsystem = 10
	SubsystemEFIBootServiceDriver   Subsystem = 11
	SubsystemEFIRuntimeDriver       Subsystem = 12
	SubsystemEFIROM                 Subsystem = 13
	SubsystemXbox                   Subsystem = 14
	SubsystemWindowsBootApplication Subsystem = 16
	SubsystemXboxCodeCatalog        Subsystem = 17
)

var subsystemNames = map[Subsystem]string{
	SubsystemUnknown:                "Unknown",
	SubsystemNative:                 "Native",
	SubsystemWindowsGUI:             "Windows GUI",
	SubsystemWindowsCUI:             "Windows CUI",
	SubsystemWindowsOldCEGUI:        "Windows CE (old) GUI",
	SubsystemOS2CUI:                 "OS/2 CUI",
	SubsystemPosixCUI:               "POSIX CUI",
	SubsystemMMOSA:                  "MMOSA/Native Win32E",
	SubsystemWindowsCEGUI:           "Windows CE GUI",
	SubsystemEFIApplication:         "EFI application",
	SubsystemEFIBootServiceDriver:   "EFI boot service driver",
	SubsystemEFIRuntimeDriver:       "EFI runtime driver",
	SubsystemEFIROM:                 "EFI ROM",
	SubsystemXbox:                   "Xbox",
	SubsystemWindowsBootApplication: "Windows boot application",
	SubsystemXboxCodeCatalog:        "Xbox code catalog",
}

// DecodeSubsystem maps the raw Subsystem field. It never fails.
func DecodeSubsystem(v uint16) Subsystem {
	return Subsystem(v)
}

// Recognized reports whether s is one of the named subsystems.
func (s Subsystem) Recognized() bool {
	_, ok := subsystemNames[s]
	return ok
}

func (s Subsystem) String() string {
	if name, ok := subsystemNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unrecognized(0x%x)", uint16(s))
}

// ImageKind tells EXE images from DLLs. Some DLL characteristic bits mean
// different things for each, and only the caller knows which one it has.
type ImageKind int

const (
	ImageKindUnknown ImageKind = iota
	ImageKindEXE
	ImageKindDLL
)

func (k ImageKind) String() string {
	switch k {
	case ImageKindEXE:
		return "EXE"
	case ImageKindDLL:
		return "DLL"
	}
	return "unknown"
}

// DllCharacteristic is a single bit of the DllCharacteristics field.
type DllCharacteristic uint16

const (
	// IMAGE_LIBRARY_* from PE/COFF 4.0.
	DllLibraryProcessInit DllCharacteristic = 0x0001
	DllLibraryProcessTerm DllCharacteristic = 0x0002
	DllLibraryThreadInit  DllCharacteristic = 0x0004
	DllLibraryThreadTerm  DllCharacteristic = 0x0008

	DllHighEntropyVA    DllCharacteristic = 0x0020
	DllDynamicBase      DllCharacteristic = 0x0040
	DllForceIntegrity   DllCharacteristic = 0x0080
	DllNXCompat         DllCharacteristic = 0x0100
	DllNoIsolation      DllCharacteristic = 0x0200
	DllNoSEH            DllCharacteristic = 0x0400
	DllNoBind           DllCharacteristic = 0x0800
	// DllX86ThunkOrAppContainer is IMAGE_DLLCHARACTERISTICS_X86_THUNK on
	// DLLs and IMAGE_DLLCHARACTERISTICS_APPCONTAINER on EXEs.
	DllX86ThunkOrAppContainer DllCharacteristic = 0x1000
	DllWDMDriver              DllCharacteristic = 0x2000
	DllGuardCF                DllCharacteristic = 0x4000
	DllTerminalServerAware    DllCharacteristic = 0x8000
)

var dllCharacteristicNames = []struct {
	flag DllCharacteristic
	name string
}{
	{DllLibraryProcessInit, "LIBRARY_PROCESS_INIT"},
	{DllLibraryProcessTerm, "LIBRARY_PROCESS_TERM"},
	{DllLibraryThreadInit, "LIBRARY_THREAD_INIT"},
	{DllLibraryThreadTerm, "LIBRARY_THREAD_TERM"},
	{DllHighEntropyVA, "HIGH_ENTROPY_VA"},
	{DllDynamicBase, "DYNAMIC_BASE"},
	{DllForceIntegrity, "FORCE_INTEGRITY"},
	{DllNXCompat, "NX_COMPAT"},
	{DllNoIsolation, "NO_ISOLATION"},
	{DllNoSEH, "NO_SEH"},
	{DllNoBind, "NO_BIND"},
	{DllX86ThunkOrAppContainer, "X86_THUNK|APPCONTAINER"},
	{DllWDMDriver, "WDM_DRIVER"},
	{DllGuardCF, "GUARD_CF"},
	{DllTerminalServerAware, "TERMINAL_SERVER_AWARE"},
}

const knownDllCharacteristics = 0xffef

// DllCharacteristics is the decoded DllCharacteristics field: the known bits
// in ascending order and whatever bits are left over.
type DllCharacteristics struct {
	Flags        []DllCharacteristic
	Unrecognized uint16
}

// DecodeDllCharacteristics splits v into known flags and residual bits.
// It never fails.
func DecodeDllCharacteristics(v uint16) DllCharacteristics {
	var d DllCharacteristics
	for _, e := range dllCharacteristicNames {
		if v&uint16(e.flag) != 0 {
			d.Flags = append(d.Flags, e.flag)
		}
	}
	d.Unrecognized = v &^ knownDllCharacteristics
	return d
}

// Raw reassembles the original field value.
func (d DllCharacteristics) Raw() uint16 {
	v := d.Unrecognized
	for _, f := range d.Flags {
		v |= uint16(f)
	}
	return v
}

func (d DllCharacteristics) Has(c DllCharacteristic) bool {
	return d.Raw()&uint16(c) == uint16(c)
}

// X86Thunk reports the 0x1000 bit read as IMAGE_DLLCHARACTERISTICS_X86_THUNK.
// That reading only applies to DLLs.
func (d DllCharacteristics) X86Thunk(kind ImageKind) bool {
	return kind == ImageKindDLL && d.Has(DllX86ThunkOrAppContainer)
}

// AppContainer reports the 0x1000 bit read as
// IMAGE_DLLCHARACTERISTICS_APPCONTAINER. That reading only applies to EXEs.
func (d DllCharacteristics) AppContainer(kind ImageKind) bool {
	return kind == ImageKindEXE && d.Has(DllX86ThunkOrAppContainer)
}

// Names returns a name per set flag. The 0x1000 bit is named after both of
// its meanings, and residual bits are reported as a hex value.
func (d DllCharacteristics) Names() []string {
	names := make([]string, 0, len(d.Flags)+1)
	for _, f := range d.Flags {
		names = append(names, dllCharacteristicName(f))
	}
	if d.Unrecognized != 0 {
		names = append(names, fmt.Sprintf("UNRECOGNIZED(0x%x)", d.Unrecognized))
	}
	return names
}

func (d DllCharacteristics) String() string {
	return strings.Join(d.Names(), " | ")
}

func dllCharacteristicName(c DllCharacteristic) string {
	for _, e := range dllCharacteristicNames {
		if e.flag == c {
			return e.name
		}
	}
	return fmt.Sprintf("0x%x", uint16(c))
}

// LoaderFlag is a single bit of the obsolete LoaderFlags field.
type LoaderFlag uint32

const (
	// LoaderBreakOnLoadOrComPlus is IMAGE_LOADER_FLAGS_BREAK_ON_LOAD in
	// PE/COFF 4.0 and IMAGE_LOADER_FLAGS_COMPLUS in later toolchains.
	LoaderBreakOnLoadOrComPlus LoaderFlag = 0x00000001
	LoaderDebugOnLoad          LoaderFlag = 0x00000002
	LoaderSystemGlobal         LoaderFlag = 0x01000000
)

var loaderFlagNames = []struct {
	flag LoaderFlag
	name string
}{
	{LoaderBreakOnLoadOrComPlus, "BREAK_ON_LOAD|COMPLUS"},
	{LoaderDebugOnLoad, "DEBUG_ON_LOAD"},
	{LoaderSystemGlobal, "SYSTEM_GLOBAL"},
}

const knownLoaderFlags = 0x01000003

type LoaderFlags struct {
	Flags        []LoaderFlag
	Unrecognized uint32
}

// DecodeLoaderFlags splits v into known flags and residual bits.
// It never fails.
func DecodeLoaderFlags(v uint32) LoaderFlags {
	var l LoaderFlags
	for _, e := range loaderFlagNames {
		if v&uint32(e.flag) != 0 {
			l.Flags = append(l.Flags, e.flag)
		}
	}
	l.Unrecognized = v &^ knownLoaderFlags
	return l
}

func (l LoaderFlags) Raw() uint32 {
	v := l.Unrecognized
	for _, f := range l.Flags {
		v |= uint32(f)
	}
	return v
}

func (l LoaderFlags) Has(f LoaderFlag) bool {
	return l.Raw()&uint32(f) == uint32(f)
}

func (l LoaderFlags) Names() []string {
	names := make([]string, 0, len(l.Flags)+1)
	for _, f := range l.Flags {
		for _, e := range loaderFlagNames {
			if e.flag == f {
				names = append(names, e.name)
			}
		}
	}
	if l.Unrecognized != 0 {
		names = append(names, fmt.Sprintf("UNRECOGNIZED(0x%x)", l.Unrecognized))
	}
	return names
}
