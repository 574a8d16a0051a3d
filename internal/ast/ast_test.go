package ast

import (
	"errors"
	"strings"
	"testing"
)

func fn(name string) *FunctionDecl {
	return &FunctionDecl{Name: name, HasPrototype: true, Linkage: ExternalLinkage}
}

func TestWalkOrder(t *testing.T) {
	local := fn("local")
	outer := fn("outer")
	outer.Locals = []Decl{local}

	root := &TranslationUnitDecl{Children: []Decl{
		fn("a"),
		&NamespaceDecl{Name: "ns", Children: []Decl{
			fn("b"),
			&RecordDecl{TagKind: "class", Name: "C", Children: []Decl{fn("m")}},
			&OtherDecl{Kind: "var", Name: "v"},
		}},
		&LinkageSpecDecl{Lang: CLanguageLinkage, Children: []Decl{fn("c")}},
		outer,
	}}

	var got []string
	Walk(root, func(f *FunctionDecl) { got = append(got, f.Name) })
	want := "a,b,m,c,outer,local"
	if strings.Join(got, ",") != want {
		t.Fatalf("walk order = %v, want %s", got, want)
	}
}

func TestWalkToleratesNil(t *testing.T) {
	var visited int
	Walk(nil, func(*FunctionDecl) { visited++ })

	var ns *NamespaceDecl
	var f *FunctionDecl
	root := &TranslationUnitDecl{Children: []Decl{nil, ns, f, fn("x")}}
	Walk(root, func(*FunctionDecl) { visited++ })
	if visited != 1 {
		t.Fatalf("visited = %d, want 1", visited)
	}

	var tu *TranslationUnitDecl
	Walk(tu, func(*FunctionDecl) { visited++ })
	if visited != 1 {
		t.Fatalf("typed nil root visited functions: %d", visited)
	}
}

func TestWalkErrStops(t *testing.T) {
	stop := errors.New("stop")
	root := &TranslationUnitDecl{Children: []Decl{fn("a"), fn("b"), fn("c")}}
	var seen int
	err := WalkErr(root, func(f *FunctionDecl) error {
		seen++
		if f.Name == "b" {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	if seen != 2 {
		t.Fatalf("seen = %d, want 2", seen)
	}
}

func TestRedeclarationChain(t *testing.T) {
	proto := fn("f")
	def := fn("f")
	def.Body = &Body{Loc: Loc{File: "/src/a.c", Line: 3}}
	later := fn("f")

	Redeclare(proto, def)
	Redeclare(proto, later)

	for i, d := range []*FunctionDecl{proto, def, later} {
		if !d.HasBody() {
			t.Errorf("decl %d: HasBody = false", i)
		}
		if d.Definition() != def {
			t.Errorf("decl %d: wrong definition", i)
		}
		if d.First() != proto {
			t.Errorf("decl %d: wrong first declaration", i)
		}
	}
	if len(later.Redecls()) != 3 {
		t.Fatalf("Redecls = %d, want 3", len(later.Redecls()))
	}

	lone := fn("g")
	if lone.HasBody() || lone.Definition() != nil || lone.DefinitionBody() != nil {
		t.Fatal("bodyless function reports a body")
	}
}

func TestQualifiedName(t *testing.T) {
	f := fn("m")
	f.Context = []ContextEntry{
		{Kind: NamespaceContext, Name: "ns"},
		{Kind: NamespaceContext, Anonymous: true},
		{Kind: RecordContext, Name: "C"},
	}
	if got := f.QualifiedName(); got != "ns::(anonymous namespace)::C::m" {
		t.Fatalf("QualifiedName = %q", got)
	}
	if !f.IsMember() {
		t.Fatal("expected member")
	}
}

func TestUsesInternalType(t *testing.T) {
	anon := &Type{Kind: RecordType, Name: "S", Internal: true}
	if !PointerTo(anon).UsesInternalType() {
		t.Error("pointer to internal record should use an internal type")
	}
	if PointerTo(Builtin("int")).UsesInternalType() {
		t.Error("int* uses no internal type")
	}
	tmpl := &Type{Kind: TemplateSpecializationType, Name: "vector", Args: []*Type{anon}}
	if !tmpl.UsesInternalType() {
		t.Error("template argument should be inspected")
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  *Type
		want string
	}{
		{Builtin("int"), "int"},
		{PointerTo(&Type{Kind: BuiltinType, Name: "char", Const: true}), "const char*"},
		{&Type{Kind: LValueReferenceType, Elem: &Type{Kind: RecordType, Name: "A", Context: []ContextEntry{{Name: "ns"}}}}, "ns::A&"},
		{&Type{Kind: FunctionType, Elem: Builtin("void"), Params: []*Type{Builtin("int")}}, "void(int)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDump(t *testing.T) {
	def := fn("f")
	def.Params = []*Type{Builtin("int")}
	def.Body = &Body{Loc: Loc{File: "/src/main.c", Line: 1}}
	g := fn("g")
	g.Params = []*Type{Builtin("int")}
	root := &TranslationUnitDecl{Children: []Decl{
		def,
		&NamespaceDecl{Children: []Decl{g}},
	}}
	want := "TranslationUnit\n" +
		"  Function f(int) kind=function linkage=external body=main.c:1\n" +
		"  Namespace (anonymous)\n" +
		"    Function g(int) kind=function linkage=external body=none\n"
	if got := Dump(root); got != want {
		t.Fatalf("Dump mismatch:\n%s\nwant:\n%s", got, want)
	}
}
