package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/DeusData/ctu-fnmap/internal/lang"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverBasic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.c"), "int main(void) { return 0; }\n")
	writeFile(t, filepath.Join(dir, "lib", "util.CPP"), "int f() { return 1; }\n")
	writeFile(t, filepath.Join(dir, "lib", "util.h"), "int f();\n")
	writeFile(t, filepath.Join(dir, "build", "gen.c"), "int g;\n")
	writeFile(t, filepath.Join(dir, "third_party", "x.cc"), "int x;\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# readme\n")

	files, err := Discover(context.Background(), dir, &Options{SkipDirs: []string{"third_party"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	got := map[string]lang.Language{}
	for _, f := range files {
		if !filepath.IsAbs(f.Path) {
			t.Errorf("expected absolute path, got %q", f.Path)
		}
		got[f.RelPath] = f.Language
	}
	want := map[string]lang.Language{"main.c": lang.C, "lib/util.CPP": lang.CPP}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "")
	writeFile(t, filepath.Join(dir, "gen", "b.c"), "")
	writeFile(t, filepath.Join(dir, IgnoreFile), "# generated\ngen\n")

	files, err := Discover(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "a.c" {
		t.Errorf("expected only a.c, got %+v", files)
	}
}

func TestDiscoverDoublestarSkip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "a.c"), "")
	writeFile(t, filepath.Join(dir, "src", "proto", "gen", "b.c"), "")
	writeFile(t, filepath.Join(dir, "gen", "c.c"), "")

	files, err := Discover(context.Background(), dir, &Options{SkipDirs: []string{"src/**/gen"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	var got []string
	for _, f := range files {
		got = append(got, f.RelPath)
	}
	want := []string{"gen/c.c", "src/a.c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.c"), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, dir, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestJobs(t *testing.T) {
	files := []FileInfo{{Path: "/src/a.cpp", Language: lang.CPP}}
	args := []string{"-DX"}
	jobs := Jobs(files, args)
	args[0] = "-DY"
	if len(jobs) != 1 || jobs[0].Directory != "/src" || jobs[0].Args[0] != "-DX" || jobs[0].Language != lang.CPP {
		t.Errorf("unexpected jobs %+v", jobs)
	}
}

func TestLoadCompileDB(t *testing.T) {
	dir := t.TempDir()
	db := `[
  {"directory": "/proj", "file": "a.c", "command": "CCACHE_DIR=/tmp gcc -c -DNAME=\"x y\" -Iinc a.c -o a.o"},
  {"directory": "/proj", "file": "/proj/b.cpp", "arguments": ["clang++", "-std=c++17", "-o", "b.o", "-c", "/proj/b.cpp"]},
  {"directory": "/proj", "file": "a.c", "command": "gcc -DSECOND a.c"},
  {"directory": "/proj", "file": "gen.s", "command": "as gen.s"}
]`
	path := filepath.Join(dir, "compile_commands.json")
	writeFile(t, path, db)

	jobs, err := LoadCompileDB(path)
	if err != nil {
		t.Fatalf("LoadCompileDB: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d: %+v", len(jobs), jobs)
	}
	if jobs[0].File != "/proj/a.c" || jobs[0].Directory != "/proj" {
		t.Errorf("unexpected first job %+v", jobs[0])
	}
	if want := []string{"-DNAME=x y", "-Iinc"}; !reflect.DeepEqual(jobs[0].Args, want) {
		t.Errorf("args = %q, want %q", jobs[0].Args, want)
	}
	if want := []string{"-std=c++17"}; !reflect.DeepEqual(jobs[1].Args, want) {
		t.Errorf("args = %q, want %q", jobs[1].Args, want)
	}
}

func TestLoadCompileDBErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, "{")
	if _, err := LoadCompileDB(bad); err == nil {
		t.Error("expected decode error")
	}

	empty := filepath.Join(dir, "empty.json")
	writeFile(t, empty, `[{"directory": "/p", "file": "a.c"}]`)
	if _, err := LoadCompileDB(empty); err == nil {
		t.Error("expected error for entry without command")
	}

	if _, err := LoadCompileDB(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
