package frontend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/DeusData/ctu-fnmap/internal/ast"
	"github.com/DeusData/ctu-fnmap/internal/lang"
	"github.com/DeusData/ctu-fnmap/internal/target"
)

func functions(tu *ast.TranslationUnit) map[string]*ast.FunctionDecl {
	out := map[string]*ast.FunctionDecl{}
	ast.Walk(tu.Root, func(f *ast.FunctionDecl) {
		if _, seen := out[f.QualifiedName()]; !seen {
			out[f.QualifiedName()] = f
		}
	})
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDumpGolden(t *testing.T) {
	tu, err := Parse(context.Background(), Job{File: "testdata/sample.cpp"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tu.Language != lang.CPP {
		t.Fatalf("language = %s, want cpp", tu.Language)
	}
	if len(tu.Files) != 2 {
		t.Fatalf("files = %v, want main file and sample.h", tu.Files)
	}

	g := goldie.New(t)
	g.Assert(t, "sample", []byte(ast.Dump(tu.Root)))
}

func TestParseC(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.c", `
int f(int x) { return x; }
int g(int);
int old();
static void hidden(void) {}
int printf(const char *fmt, ...);
`)
	tu, err := Parse(context.Background(), Job{File: main})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fns := functions(tu)

	tests := []struct {
		name      string
		prototype bool
		linkage   ast.Linkage
		body      bool
		builtin   bool
	}{
		{"f", true, ast.ExternalLinkage, true, false},
		{"g", true, ast.ExternalLinkage, false, false},
		{"old", false, ast.ExternalLinkage, false, false},
		{"hidden", true, ast.InternalLinkage, true, false},
		{"printf", true, ast.ExternalLinkage, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := fns[tt.name]
			if !ok {
				t.Fatalf("function %s not found in %v", tt.name, fns)
			}
			if fn.HasPrototype != tt.prototype {
				t.Errorf("HasPrototype = %v, want %v", fn.HasPrototype, tt.prototype)
			}
			if fn.Linkage != tt.linkage {
				t.Errorf("Linkage = %s, want %s", fn.Linkage, tt.linkage)
			}
			if fn.HasBody() != tt.body {
				t.Errorf("HasBody = %v, want %v", fn.HasBody(), tt.body)
			}
			if (fn.BuiltinID != 0) != tt.builtin {
				t.Errorf("BuiltinID = %d, want builtin=%v", fn.BuiltinID, tt.builtin)
			}
			if fn.LangLinkage != ast.CLanguageLinkage {
				t.Errorf("C function without C language linkage")
			}
		})
	}
	if got := len(fns["hidden"].Params); got != 0 {
		t.Errorf("(void) parameter list has %d params", got)
	}
	if !fns["printf"].Variadic {
		t.Errorf("printf is not variadic")
	}
}

func TestNoBuiltin(t *testing.T) {
	src := []byte("int printf(const char *fmt, ...);\nvoid *__builtin_memcpy(void *, const void *, unsigned long);\n")
	for _, tt := range []struct {
		args    []string
		builtin bool
	}{
		{nil, true},
		{[]string{"-fno-builtin"}, false},
	} {
		tu, err := ParseSource(context.Background(), "/virtual/main.c", src, tt.args...)
		if err != nil {
			t.Fatalf("ParseSource: %v", err)
		}
		fns := functions(tu)
		if got := fns["printf"].BuiltinID != 0; got != tt.builtin {
			t.Errorf("args %v: printf builtin = %v, want %v", tt.args, got, tt.builtin)
		}
		if fns["__builtin_memcpy"].BuiltinID == 0 {
			t.Errorf("args %v: __builtin_memcpy is not a builtin", tt.args)
		}
	}
}

func TestIncludeOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inc/util.h", "inline int twice(int x) { return 2 * x; }\nint ext(int);\n")
	writeFile(t, dir, "local.h", "int local(void);\n")
	main := writeFile(t, dir, "src/main.cpp", `#include <util.h>
#include "util.h"
#include "../local.h"
#include "../local.h"
int use() { return twice(ext(local())); }
`)

	tu, err := Parse(context.Background(), Job{File: main, Directory: dir, Args: []string{"-Iinc"}})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var names []string
	ast.Walk(tu.Root, func(f *ast.FunctionDecl) { names = append(names, f.Name) })
	if got := strings.Join(names, ","); got != "twice,ext,local,use" {
		t.Fatalf("functions = %s, want twice,ext,local,use", got)
	}
	if len(tu.Files) != 3 {
		t.Fatalf("files = %v, want 3", tu.Files)
	}

	twice := functions(tu)["twice"]
	if twice.Body == nil || filepath.Base(twice.Body.Loc.File) != "util.h" {
		t.Fatalf("twice body location = %+v, want util.h", twice.Body)
	}
}

func TestConditionalTakesFirstBranch(t *testing.T) {
	src := []byte(`#ifdef FEATURE
int on(int);
#else
int off(int);
#endif
#if 0
int zero(int);
#endif
`)
	tu, err := ParseSource(context.Background(), "/virtual/cond.c", src)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	fns := functions(tu)
	if _, ok := fns["on"]; !ok {
		t.Errorf("consequence branch missing")
	}
	if _, ok := fns["off"]; ok {
		t.Errorf("alternative branch parsed")
	}
	if _, ok := fns["zero"]; !ok {
		t.Errorf("#if 0 consequence missing")
	}
}

func TestRedeclarationChain(t *testing.T) {
	src := []byte(`static int f(int);
int f(int x) { return x; }
namespace n { struct S { void m(); }; }
void n::S::m() {}
`)
	tu, err := ParseSource(context.Background(), "/virtual/redecl.cpp", src)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}

	var decls []*ast.FunctionDecl
	ast.Walk(tu.Root, func(f *ast.FunctionDecl) { decls = append(decls, f) })
	if len(decls) != 4 {
		t.Fatalf("got %d function declarations, want 4", len(decls))
	}

	proto, def := decls[0], decls[1]
	if !proto.HasBody() || proto.DefinitionBody() != def.Body {
		t.Errorf("prototype does not see the later body")
	}
	if !def.Static || def.Linkage != ast.InternalLinkage {
		t.Errorf("definition did not inherit static from the first declaration")
	}

	inClass, outOfLine := decls[2], decls[3]
	if inClass.First() != outOfLine.First() {
		t.Errorf("member definition not linked to its in-class declaration")
	}
	if outOfLine.Kind != ast.MethodFunction || outOfLine.QualifiedName() != "n::S::m" {
		t.Errorf("out-of-line member = %s kind %d", outOfLine.QualifiedName(), outOfLine.Kind)
	}
}

func TestLinkage(t *testing.T) {
	src := []byte(`namespace {
struct Anon {};
void in_anon() {}
extern "C" void c_in_anon() {}
}
struct Anon2 {};
void takes(Anon *a) {}
void plain(Anon2 a) {}
`)
	tu, err := ParseSource(context.Background(), "/virtual/link.cpp", src)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	fns := functions(tu)

	tests := []struct {
		name string
		want ast.Linkage
	}{
		{"(anonymous namespace)::in_anon", ast.InternalLinkage},
		{"(anonymous namespace)::c_in_anon", ast.ExternalLinkage},
		{"takes", ast.UniqueExternalLinkage},
		{"plain", ast.ExternalLinkage},
	}
	for _, tt := range tests {
		fn, ok := fns[tt.name]
		if !ok {
			t.Fatalf("function %s not found", tt.name)
		}
		if fn.Linkage != tt.want {
			t.Errorf("%s linkage = %s, want %s", tt.name, fn.Linkage, tt.want)
		}
	}
}

func TestLocalClassLinkage(t *testing.T) {
	src := []byte(`inline int outer() {
  struct L {
    int get() { return 1; }
    void set(L *other) {}
  };
  L l;
  return l.get();
}
int plain() {
  struct P { int v() { return 2; } };
  return P().v();
}
`)
	tu, err := ParseSource(context.Background(), "/virtual/local.cpp", src)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	fns := functions(tu)

	tests := []struct {
		name string
		want ast.Linkage
	}{
		{"outer", ast.ExternalLinkage},
		{"outer()::L::get", ast.VisibleNoLinkage},
		{"outer()::L::set", ast.VisibleNoLinkage},
		{"plain()::P::v", ast.NoLinkage},
	}
	for _, tt := range tests {
		fn, ok := fns[tt.name]
		if !ok {
			t.Fatalf("function %s not found", tt.name)
		}
		if fn.Linkage != tt.want {
			t.Errorf("%s linkage = %s, want %s", tt.name, fn.Linkage, tt.want)
		}
	}
	set := fns["outer()::L::set"]
	if len(set.Params) != 1 || set.Params[0].Elem == nil || set.Params[0].Elem.Name != "L" {
		t.Fatalf("set params = %v", set.Params)
	}
	if got := set.EnclosingFunction(); got != fns["outer"] {
		t.Fatalf("EnclosingFunction = %v", got)
	}
}

// stopAfter reports cancellation once its budget of Err calls is spent.
type stopAfter struct {
	context.Context
	left int
}

func (c *stopAfter) Err() error {
	if c.left > 0 {
		c.left--
		return nil
	}
	return context.Canceled
}

func TestRecordBodyErrorStopsParse(t *testing.T) {
	src := []byte("struct S { int f() { return 1; } };\n")
	ctx := &stopAfter{Context: context.Background(), left: 1}
	if _, err := ParseSource(ctx, "/virtual/rec.cpp", src); !errors.Is(err, context.Canceled) {
		t.Fatalf("ParseSource error = %v, want context.Canceled from the class body", err)
	}
}

func TestTypes(t *testing.T) {
	src := []byte(`typedef unsigned long ulong;
typedef struct { int v; } Pair;
void f(ulong a, unsigned long long b, long double c, short d, unsigned e, size_t n, Pair *p, int arr[4], char const *s);
`)
	tu, err := ParseSource(context.Background(), "/virtual/types.c", src, "--target=x86_64-unknown-linux-gnu")
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	fn := functions(tu)["f"]
	var got []string
	for _, p := range fn.Params {
		got = append(got, p.String())
	}
	want := "unsigned long,unsigned long long,long double,short,unsigned int,unsigned long,Pair*,int[],const char*"
	if strings.Join(got, ",") != want {
		t.Fatalf("params = %s\nwant     %s", strings.Join(got, ","), want)
	}
}

func TestParseSettings(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		arch string
		lang lang.Language
	}{
		{"target", Job{File: "a.c", Args: []string{"-target", "aarch64-linux-gnu"}}, "aarch64", lang.C},
		{"joined target", Job{File: "a.cc", Args: []string{"--target=thumbv7-none-eabi"}}, "arm", lang.CPP},
		{"m32", Job{File: "a.c", Args: []string{"--target=x86_64-linux-gnu", "-m32"}}, "i386", lang.C},
		{"language flag", Job{File: "a.c", Args: []string{"-x", "c++", "-target", "x86_64-pc-linux"}}, "x86_64", lang.CPP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parseSettings(tt.job)
			if got := target.Tag(s.triple); got != tt.arch {
				t.Errorf("arch = %s, want %s", got, tt.arch)
			}
			if s.language != tt.lang {
				t.Errorf("language = %s, want %s", s.language, tt.lang)
			}
		})
	}

	s := parseSettings(Job{File: "a.c", Directory: "/build", Args: []string{"-Iinc", "-I", "/abs", "-iquote", "q", "-isystem/sys", "-DX=1"}})
	if strings.Join(s.includeDirs, ",") != "/build/inc,/abs" {
		t.Errorf("include dirs = %v", s.includeDirs)
	}
	if strings.Join(s.quoteDirs, ",") != "/build/q" || strings.Join(s.systemDirs, ",") != "/sys" {
		t.Errorf("quote dirs = %v, system dirs = %v", s.quoteDirs, s.systemDirs)
	}
}

func TestOperatorToken(t *testing.T) {
	for in, want := range map[string]string{
		"operator==":      "==",
		"operator ()":     "()",
		"operator new []": "new[]",
		"operator<<=":     "<<=",
	} {
		if got := operatorToken(in); got != want {
			t.Errorf("operatorToken(%q) = %q, want %q", in, got, want)
		}
	}
}
