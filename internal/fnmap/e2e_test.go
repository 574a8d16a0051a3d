package fnmap_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeusData/ctu-fnmap/internal/fnmap"
	"github.com/DeusData/ctu-fnmap/internal/frontend"
	"github.com/DeusData/ctu-fnmap/internal/mangle"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func mapFile(t *testing.T, ctuDir, file string, args ...string) {
	t.Helper()
	tu, err := frontend.Parse(context.Background(), frontend.Job{File: file, Args: args})
	require.NoError(t, err)
	_, err = fnmap.Run(context.Background(), fnmap.Config{CTUDir: ctuDir}, tu, mangle.Itanium{}, fnmap.FileSinks(ctuDir))
	require.NoError(t, err)
}

func TestEndToEndC(t *testing.T) {
	src := t.TempDir()
	ctu := t.TempDir()
	a := filepath.Join(src, "a.c")
	require.NoError(t, os.WriteFile(a, []byte("int f(int x) { return x; }\nint g(int);\n"), 0o644))
	resolved, err := filepath.EvalSymlinks(a)
	require.NoError(t, err)

	mapFile(t, ctu, a, "--target=x86_64-unknown-linux-gnu")

	locator := "ast/x86_64/" + strings.TrimPrefix(filepath.ToSlash(resolved), "/")
	require.Equal(t, []string{"!_Z1fi@x86_64 " + locator}, readLines(t, filepath.Join(ctu, fnmap.DefinedFile)))
	require.Equal(t, []string{"_Z1gi@x86_64"}, readLines(t, filepath.Join(ctu, fnmap.ExternalFile)))
}

func TestEndToEndHeaderDefinition(t *testing.T) {
	src := t.TempDir()
	ctu := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "util.h"), []byte("inline int h() { return 1; }\n"), 0o644))
	main := filepath.Join(src, "main.cpp")
	require.NoError(t, os.WriteFile(main, []byte("#include \"util.h\"\nint k() { return h(); }\n"), 0o644))

	mapFile(t, ctu, main, "-target", "armv7-linux-gnueabihf")

	lines := readLines(t, filepath.Join(ctu, fnmap.DefinedFile))
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "_Z1hv@arm ast/arm/"), lines[0])
	require.True(t, strings.HasPrefix(lines[1], "!_Z1kv@arm ast/arm/"), lines[1])
	require.True(t, strings.HasSuffix(lines[0], "/main.cpp"), "header definitions point at the including TU")

	_, err := os.Stat(filepath.Join(ctu, fnmap.ExternalFile))
	require.True(t, os.IsNotExist(err), "no external references, no file")
}

func TestEndToEndLocalClass(t *testing.T) {
	src := t.TempDir()
	ctu := t.TempDir()
	main := filepath.Join(src, "local.cpp")
	require.NoError(t, os.WriteFile(main, []byte(`inline int outer() {
  struct L {
    int get() { return 1; }
    void set(L *other) {}
  };
  L l;
  return l.get();
}
int use() { return outer(); }
int plain() {
  struct P { int v() { return 2; } };
  return P().v();
}
`), 0o644))

	mapFile(t, ctu, main, "--target=x86_64-unknown-linux-gnu")

	var symbols []string
	for _, line := range readLines(t, filepath.Join(ctu, fnmap.DefinedFile)) {
		sym, _, _ := strings.Cut(strings.TrimPrefix(line, "!"), " ")
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	require.Equal(t, []string{
		"_Z3usev@x86_64",
		"_Z5outerv@x86_64",
		"_Z5plainv@x86_64",
		"_ZZ5outervEN1L3getEv@x86_64",
		"_ZZ5outervEN1L3setEPS_@x86_64",
	}, symbols, "members of a local class of a non-inline function are not recorded")
}

func TestEndToEndConcurrentTUs(t *testing.T) {
	src := t.TempDir()
	ctu := t.TempDir()
	const units = 12

	var files []string
	for i := range units {
		path := filepath.Join(src, fmt.Sprintf("tu%02d.cpp", i))
		body := fmt.Sprintf("int shared(int);\nint fn%02d(int x) { return shared(x); }\nint other%02d() { return 0; }\n", i, i)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		files = append(files, path)
	}

	var wg sync.WaitGroup
	errs := make(chan error, units)
	for _, f := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tu, err := frontend.Parse(context.Background(), frontend.Job{File: f, Args: []string{"--target=x86_64-linux-gnu"}})
			if err != nil {
				errs <- err
				return
			}
			_, err = fnmap.Run(context.Background(), fnmap.Config{CTUDir: ctu}, tu, mangle.Itanium{}, fnmap.FileSinks(ctu))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	defined := readLines(t, filepath.Join(ctu, fnmap.DefinedFile))
	require.Len(t, defined, 2*units)
	// Each TU's block is contiguous: fnNN is immediately followed by otherNN.
	for i := 0; i < len(defined); i += 2 {
		first, second := defined[i], defined[i+1]
		n := first[strings.Index(first, "fn")+2 : strings.Index(first, "fn")+4]
		require.Contains(t, second, "other"+n)
	}

	external := readLines(t, filepath.Join(ctu, fnmap.ExternalFile))
	sort.Strings(external)
	require.Len(t, external, units)
	require.Equal(t, "_Z6sharedi@x86_64", external[0])
}
