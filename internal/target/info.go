package target

// Info carries the ABI facts the frontend needs to spell standard typedefs
// as builtin types. Mangled names refer to the underlying type, so size_t is
// "m" on LP64 Linux and "j" on 32-bit x86.
type Info struct {
	Triple Triple
}

// NewInfo returns target information for a triple.
func NewInfo(t Triple) Info {
	return Info{Triple: t}
}

// Tag is a shorthand for Tag(i.Triple).
func (i Info) Tag() string {
	return Tag(i.Triple)
}

func (i Info) llp64() bool {
	return i.Triple.OS == "windows" || i.Triple.OS == "win32"
}

// StandardTypedef returns the builtin type spelling for a standard integer
// typedef, or false if name is not one.
func (i Info) StandardTypedef(name string) (string, bool) {
	ptrSigned, ptrUnsigned := "int", "unsigned int"
	int64Signed, int64Unsigned := "long long", "unsigned long long"
	if i.Triple.Arch.Is64Bit() {
		if i.llp64() {
			ptrSigned, ptrUnsigned = "long long", "unsigned long long"
		} else {
			ptrSigned, ptrUnsigned = "long", "unsigned long"
			int64Signed, int64Unsigned = "long", "unsigned long"
		}
	}
	switch name {
	case "size_t", "uintptr_t":
		return ptrUnsigned, true
	case "ssize_t", "ptrdiff_t", "intptr_t":
		return ptrSigned, true
	case "int8_t":
		return "signed char", true
	case "uint8_t":
		return "unsigned char", true
	case "int16_t":
		return "short", true
	case "uint16_t":
		return "unsigned short", true
	case "int32_t":
		return "int", true
	case "uint32_t":
		return "unsigned int", true
	case "int64_t":
		return int64Signed, true
	case "uint64_t":
		return int64Unsigned, true
	}
	return "", false
}
