package target

import "testing"

func TestTag(t *testing.T) {
	tests := []struct {
		triple string
		want   string
	}{
		{"x86_64-unknown-linux-gnu", "x86_64"},
		{"amd64-unknown-freebsd", "x86_64"},
		{"i686-pc-linux-gnu", "i386"},
		{"armv7-unknown-linux-gnueabihf", "arm"},
		{"thumbv7-unknown-linux-gnueabi", "arm"},
		{"thumb-none-eabi", "arm"},
		{"thumbv7eb-none-eabi", "armeb"},
		{"armebv7-none-eabi", "armeb"},
		{"aarch64-linux-gnu", "aarch64"},
		{"arm64-apple-darwin", "aarch64"},
		{"powerpc64le-unknown-linux-gnu", "powerpc64le"},
		{"riscv64-unknown-elf", "riscv64"},
		{"s390x-ibm-linux", "s390x"},
		{"bogus-unknown-linux", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			if got := Tag(ParseTriple(tt.triple)); got != tt.want {
				t.Errorf("Tag(%q) = %q, want %q", tt.triple, got, tt.want)
			}
		})
	}
}

func TestThumbFoldsIntoARM(t *testing.T) {
	thumb := Tag(ParseTriple("thumbv7-unknown-linux-gnueabi"))
	arm := Tag(ParseTriple("armv7-unknown-linux-gnueabi"))
	if thumb != arm {
		t.Fatalf("thumb tag %q != arm tag %q", thumb, arm)
	}
}

func TestTagIgnoresOSAndEnvironment(t *testing.T) {
	a := Tag(ParseTriple("x86_64-pc-windows-msvc"))
	b := Tag(ParseTriple("x86_64-apple-darwin"))
	if a != b {
		t.Fatalf("tags differ across OS: %q vs %q", a, b)
	}
}

func TestParseTripleComponents(t *testing.T) {
	tr := ParseTriple("armv7-unknown-linux-gnueabihf")
	if tr.ArchName != "armv7" || tr.Vendor != "unknown" || tr.OS != "linux" || tr.Env != "gnueabihf" {
		t.Fatalf("unexpected components: %+v", tr)
	}
	if tr.String() != "armv7-unknown-linux-gnueabihf" {
		t.Fatalf("String() = %q", tr.String())
	}
	short := ParseTriple("x86_64")
	if short.String() != "x86_64" || short.Arch != X86_64 {
		t.Fatalf("short triple: %+v", short)
	}
}

func TestVariants(t *testing.T) {
	tr := ParseTriple("x86_64-unknown-linux-gnu")
	if got := Tag(tr.Variant32()); got != "i386" {
		t.Errorf("Variant32 tag = %q, want i386", got)
	}
	if got := Tag(tr.Variant32().Variant64()); got != "x86_64" {
		t.Errorf("round trip tag = %q, want x86_64", got)
	}
}

func TestHostIsKnown(t *testing.T) {
	if Host().ArchName == "" {
		t.Fatal("host triple has no arch")
	}
}

func TestStandardTypedef(t *testing.T) {
	lp64 := NewInfo(ParseTriple("x86_64-unknown-linux-gnu"))
	ilp32 := NewInfo(ParseTriple("i686-pc-linux-gnu"))
	llp64 := NewInfo(ParseTriple("x86_64-pc-windows-msvc"))

	tests := []struct {
		info Info
		name string
		want string
	}{
		{lp64, "size_t", "unsigned long"},
		{ilp32, "size_t", "unsigned int"},
		{llp64, "size_t", "unsigned long long"},
		{lp64, "int64_t", "long"},
		{ilp32, "int64_t", "long long"},
		{lp64, "uint8_t", "unsigned char"},
		{lp64, "ptrdiff_t", "long"},
	}
	for _, tt := range tests {
		got, ok := tt.info.StandardTypedef(tt.name)
		if !ok || got != tt.want {
			t.Errorf("%s StandardTypedef(%s) = %q, %v; want %q", tt.info.Triple, tt.name, got, ok, tt.want)
		}
	}
	if _, ok := lp64.StandardTypedef("FILE"); ok {
		t.Error("FILE should not be a standard integer typedef")
	}
}
