package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeusData/ctu-fnmap/internal/fnmap"
	"github.com/DeusData/ctu-fnmap/internal/frontend"
	"github.com/DeusData/ctu-fnmap/internal/mangle"
)

func TestWriteAndLoad(t *testing.T) {
	src := t.TempDir()
	ctu := t.TempDir()
	file := filepath.Join(src, "a.cpp")
	code := "static int helper(int x) { return x * 2; }\nint f(int x) {\n  return helper(x);\n}\nint g(int);\n"
	require.NoError(t, os.WriteFile(file, []byte(code), 0o644))

	tu, err := frontend.Parse(context.Background(), frontend.Job{File: file, Args: []string{"-target", "x86_64-linux-gnu"}})
	require.NoError(t, err)

	loc, err := Write(ctu, tu, mangle.Itanium{})
	require.NoError(t, err)
	require.Equal(t, "x86_64", loc.Arch)
	require.FileExists(t, Path(ctu, loc))

	a, err := Load(ctu, loc)
	require.NoError(t, err)
	require.Equal(t, Version, a.Version)
	require.Equal(t, loc.SourcePath, a.Source)
	require.Len(t, a.Functions, 2)

	f, ok := a.Function("_Z1fi")
	require.True(t, ok)
	require.Equal(t, "f", f.Name)
	require.Equal(t, "external", f.Linkage)
	require.Equal(t, 2, f.StartLine)
	require.Equal(t, 4, f.EndLine)
	require.Contains(t, f.Body, "return helper(x);")

	h, ok := a.Function("_ZL6helperi")
	require.True(t, ok)
	require.Equal(t, "internal", h.Linkage)

	_, ok = a.Function("_Z1gi")
	require.False(t, ok)

	stale, err := a.Stale()
	require.NoError(t, err)
	require.False(t, stale)

	require.NoError(t, os.WriteFile(file, []byte(code+"int k() { return 0; }\n"), 0o644))
	stale, err = a.Stale()
	require.NoError(t, err)
	require.True(t, stale)
}

func TestLoadRejectsOtherVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.ast")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o644))
	_, err := LoadPath(path)
	require.ErrorIs(t, err, ErrVersion)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir(), fnmap.Locator{Arch: "x86_64", SourcePath: "/no/such.c"})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDigestCoversFilesAndArgs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.c")
	h := filepath.Join(dir, "a.h")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(h, []byte("h"), 0o644))

	d1, err := Digest([]string{a, h}, []string{"-DX"})
	require.NoError(t, err)
	require.Len(t, d1, 16)

	d2, err := Digest([]string{a, h}, []string{"-DY"})
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)

	require.NoError(t, os.WriteFile(h, []byte("h2"), 0o644))
	d3, err := Digest([]string{a, h}, []string{"-DX"})
	require.NoError(t, err)
	require.NotEqual(t, d1, d3)

	_, err = Digest([]string{filepath.Join(dir, "missing.h")}, nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStaleAfterHeaderEdit(t *testing.T) {
	src := t.TempDir()
	header := filepath.Join(src, "util.h")
	main := filepath.Join(src, "main.cpp")
	require.NoError(t, os.WriteFile(header, []byte("inline int twice(int x) { return 2 * x; }\n"), 0o644))
	require.NoError(t, os.WriteFile(main, []byte("#include \"util.h\"\nint f(int x) { return twice(x); }\n"), 0o644))

	tu, err := frontend.Parse(context.Background(), frontend.Job{File: main, Args: []string{"--target=x86_64-linux-gnu"}})
	require.NoError(t, err)
	a, err := Build(tu, mangle.Itanium{})
	require.NoError(t, err)
	require.Len(t, a.Files, 2)
	require.Equal(t, []string{"--target=x86_64-linux-gnu"}, a.Args)

	stale, err := a.Stale()
	require.NoError(t, err)
	require.False(t, stale)

	require.NoError(t, os.WriteFile(header, []byte("inline int twice(int x) { return x + x; }\n"), 0o644))
	stale, err = a.Stale()
	require.NoError(t, err)
	require.True(t, stale)
}
