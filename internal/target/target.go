// Package target derives the architecture tag that partitions CTU artifacts.
//
// Only the architecture component of a target triple takes part in the tag.
// Vendor, OS and environment are kept for diagnostics but never normalized,
// so artifacts built for different operating systems on the same
// architecture share a bucket.
package target

import (
	"runtime"
	"strings"
)

// ArchType enumerates the architectures the tagger knows by name.
type ArchType int

const (
	UnknownArch ArchType = iota
	ARM
	ARMEB
	AArch64
	AArch64BE
	AVR
	Hexagon
	LoongArch64
	MIPS
	MIPSEL
	MIPS64
	MIPS64EL
	PPC
	PPC64
	PPC64LE
	RISCV32
	RISCV64
	SPARC
	SPARCV9
	SystemZ
	Thumb
	ThumbEB
	WASM32
	WASM64
	X86
	X86_64
)

var archNames = map[ArchType]string{
	UnknownArch: "unknown",
	ARM:         "arm",
	ARMEB:       "armeb",
	AArch64:     "aarch64",
	AArch64BE:   "aarch64_be",
	AVR:         "avr",
	Hexagon:     "hexagon",
	LoongArch64: "loongarch64",
	MIPS:        "mips",
	MIPSEL:      "mipsel",
	MIPS64:      "mips64",
	MIPS64EL:    "mips64el",
	PPC:         "powerpc",
	PPC64:       "powerpc64",
	PPC64LE:     "powerpc64le",
	RISCV32:     "riscv32",
	RISCV64:     "riscv64",
	SPARC:       "sparc",
	SPARCV9:     "sparcv9",
	SystemZ:     "s390x",
	Thumb:       "thumb",
	ThumbEB:     "thumbeb",
	WASM32:      "wasm32",
	WASM64:      "wasm64",
	X86:         "i386",
	X86_64:      "x86_64",
}

// Name returns the canonical spelling of the architecture.
func (a ArchType) Name() string {
	if n, ok := archNames[a]; ok {
		return n
	}
	return archNames[UnknownArch]
}

func (a ArchType) String() string { return a.Name() }

// Is64Bit reports whether pointers are 64 bits wide on the architecture.
func (a ArchType) Is64Bit() bool {
	switch a {
	case AArch64, AArch64BE, LoongArch64, MIPS64, MIPS64EL, PPC64, PPC64LE,
		RISCV64, SPARCV9, SystemZ, WASM64, X86_64:
		return true
	}
	return false
}

// Triple is a parsed arch-vendor-os[-environment] target triple.
type Triple struct {
	ArchName string
	Arch     ArchType
	Vendor   string
	OS       string
	Env      string
}

// ParseTriple splits a target triple. Missing components stay empty and an
// unrecognized architecture yields UnknownArch.
func ParseTriple(s string) Triple {
	parts := strings.SplitN(s, "-", 4)
	t := Triple{ArchName: parts[0], Arch: parseArch(parts[0])}
	if len(parts) > 1 {
		t.Vendor = parts[1]
	}
	if len(parts) > 2 {
		t.OS = parts[2]
	}
	if len(parts) > 3 {
		t.Env = parts[3]
	}
	return t
}

func (t Triple) String() string {
	parts := []string{t.ArchName}
	for _, p := range []string{t.Vendor, t.OS, t.Env} {
		if p == "" {
			break
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "-")
}

func parseArch(name string) ArchType {
	switch name {
	case "i386", "i486", "i586", "i686", "i786", "i886", "i986":
		return X86
	case "x86_64", "amd64", "x86_64h":
		return X86_64
	case "aarch64", "arm64":
		return AArch64
	case "aarch64_be":
		return AArch64BE
	case "powerpc", "ppc", "ppc32":
		return PPC
	case "powerpc64", "ppu", "ppc64":
		return PPC64
	case "powerpc64le", "ppc64le":
		return PPC64LE
	case "mips", "mipseb", "mipsallegrex":
		return MIPS
	case "mipsel", "mipsallegrexel":
		return MIPSEL
	case "mips64", "mips64eb":
		return MIPS64
	case "mips64el":
		return MIPS64EL
	case "riscv32":
		return RISCV32
	case "riscv64":
		return RISCV64
	case "sparc":
		return SPARC
	case "sparcv9", "sparc64":
		return SPARCV9
	case "s390x", "systemz":
		return SystemZ
	case "wasm32":
		return WASM32
	case "wasm64":
		return WASM64
	case "loongarch64":
		return LoongArch64
	case "hexagon":
		return Hexagon
	case "avr":
		return AVR
	}
	return parseARMArch(name)
}

// parseARMArch handles the open-ended ARM sub-architecture spellings
// (armv7a, armv7eb, thumbv7m, armebv7, ...).
func parseARMArch(name string) ArchType {
	bigEndian := strings.HasSuffix(name, "eb") ||
		strings.HasPrefix(name, "armeb") || strings.HasPrefix(name, "thumbeb")
	switch {
	case strings.HasPrefix(name, "thumb"):
		if bigEndian {
			return ThumbEB
		}
		return Thumb
	case strings.HasPrefix(name, "arm") && !strings.HasPrefix(name, "arm64"):
		if bigEndian {
			return ARMEB
		}
		return ARM
	}
	return UnknownArch
}

// Tag returns the architecture tag used in identities and artifact paths.
// Thumb is ABI compatible with ARM, so both share the ARM tag.
func Tag(t Triple) string {
	a := t.Arch
	switch a {
	case Thumb:
		a = ARM
	case ThumbEB:
		a = ARMEB
	}
	return a.Name()
}

// Host returns a triple describing the machine the tool runs on.
func Host() Triple {
	arch := map[string]string{
		"amd64":    "x86_64",
		"386":      "i386",
		"arm":      "arm",
		"arm64":    "aarch64",
		"ppc64":    "powerpc64",
		"ppc64le":  "powerpc64le",
		"riscv64":  "riscv64",
		"s390x":    "s390x",
		"mips":     "mips",
		"mipsle":   "mipsel",
		"mips64":   "mips64",
		"mips64le": "mips64el",
		"loong64":  "loongarch64",
		"wasm":     "wasm32",
	}[runtime.GOARCH]
	if arch == "" {
		arch = "unknown"
	}
	switch runtime.GOOS {
	case "linux":
		return ParseTriple(arch + "-unknown-linux-gnu")
	case "darwin":
		return ParseTriple(arch + "-apple-darwin")
	case "windows":
		return ParseTriple(arch + "-pc-windows-msvc")
	}
	return ParseTriple(arch + "-unknown-" + runtime.GOOS)
}

// Variant32 returns the 32-bit counterpart selected by -m32.
func (t Triple) Variant32() Triple {
	v := t
	switch t.Arch {
	case X86_64:
		v.ArchName, v.Arch = "i386", X86
	case PPC64:
		v.ArchName, v.Arch = "powerpc", PPC
	case MIPS64:
		v.ArchName, v.Arch = "mips", MIPS
	case MIPS64EL:
		v.ArchName, v.Arch = "mipsel", MIPSEL
	case RISCV64:
		v.ArchName, v.Arch = "riscv32", RISCV32
	case SPARCV9:
		v.ArchName, v.Arch = "sparc", SPARC
	}
	return v
}

// Variant64 returns the 64-bit counterpart selected by -m64.
func (t Triple) Variant64() Triple {
	v := t
	switch t.Arch {
	case X86:
		v.ArchName, v.Arch = "x86_64", X86_64
	case PPC:
		v.ArchName, v.Arch = "powerpc64", PPC64
	case MIPS:
		v.ArchName, v.Arch = "mips64", MIPS64
	case MIPSEL:
		v.ArchName, v.Arch = "mips64el", MIPS64EL
	case RISCV32:
		v.ArchName, v.Arch = "riscv64", RISCV64
	case SPARC:
		v.ArchName, v.Arch = "sparcv9", SPARCV9
	}
	return v
}
