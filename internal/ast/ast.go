// Package ast is the semantically resolved declaration tree of one
// translation unit: the input of the CTU function mapper.
//
// The tree mirrors the declaration contexts a C/C++ compiler builds:
// scope-holding declarations (translation unit, namespaces, records,
// linkage specifications, functions) own an ordered list of child
// declarations. Every other declaration is a leaf.
package ast

import (
	"github.com/DeusData/ctu-fnmap/internal/lang"
	"github.com/DeusData/ctu-fnmap/internal/target"
)

// Loc is a source position. File is the canonical absolute path of the file
// the position lies in, which may be a header included by the main file.
type Loc struct {
	File   string
	Line   int
	Column int
}

// IsValid reports whether the location points into a file.
func (l Loc) IsValid() bool { return l.File != "" }

// Linkage classifies a declaration's visibility across translation units.
type Linkage int

const (
	NoLinkage Linkage = iota
	InternalLinkage
	// UniqueExternalLinkage is external linkage whose name is nevertheless
	// unique to the TU, e.g. a function taking a type from an unnamed
	// namespace.
	UniqueExternalLinkage
	// VisibleNoLinkage marks entities without linkage that are still
	// reachable from other TUs, e.g. members of local classes of inline
	// functions.
	VisibleNoLinkage
	ExternalLinkage
)

var linkageNames = map[Linkage]string{
	NoLinkage:             "none",
	InternalLinkage:       "internal",
	UniqueExternalLinkage: "unique-external",
	VisibleNoLinkage:      "visible-none",
	ExternalLinkage:       "external",
}

func (l Linkage) String() string { return linkageNames[l] }

// LanguageLinkage is the language linkage of a function ("C" or "C++").
type LanguageLinkage int

const (
	CXXLanguageLinkage LanguageLinkage = iota
	CLanguageLinkage
)

// Decl is a node of the declaration tree.
type Decl interface {
	Location() Loc
	isDecl()
}

// Scope is a declaration that holds other declarations in source order.
type Scope interface {
	Decl
	Decls() []Decl
}

// TranslationUnit is the result of compiling one main source file.
type TranslationUnit struct {
	// MainFile is the canonical absolute path of the compiled source.
	MainFile string
	Language lang.Language
	Target   target.Info
	Root     *TranslationUnitDecl
	// Files lists every file spliced into the unit, main file first.
	Files []string
	// Args are the compiler arguments the unit was built with.
	Args []string
}

// TranslationUnitDecl is the root scope.
type TranslationUnitDecl struct {
	Children []Decl
}

func (d *TranslationUnitDecl) Location() Loc { return Loc{} }
func (*TranslationUnitDecl) isDecl()         {}

// Decls returns the top-level declarations.
func (d *TranslationUnitDecl) Decls() []Decl {
	if d == nil {
		return nil
	}
	return d.Children
}

// NamespaceDecl is a namespace definition. An empty Name is an unnamed
// namespace.
type NamespaceDecl struct {
	Name     string
	Inline   bool
	Children []Decl
	Loc      Loc
}

func (d *NamespaceDecl) Location() Loc { return d.Loc }
func (*NamespaceDecl) isDecl()         {}

func (d *NamespaceDecl) Decls() []Decl {
	if d == nil {
		return nil
	}
	return d.Children
}

// RecordDecl is a class, struct or union definition.
type RecordDecl struct {
	TagKind  string // "class", "struct" or "union"
	Name     string
	Children []Decl
	Loc      Loc
}

func (d *RecordDecl) Location() Loc { return d.Loc }
func (*RecordDecl) isDecl()         {}

func (d *RecordDecl) Decls() []Decl {
	if d == nil {
		return nil
	}
	return d.Children
}

// LinkageSpecDecl is an extern "C" or extern "C++" block.
type LinkageSpecDecl struct {
	Lang     LanguageLinkage
	Children []Decl
	Loc      Loc
}

func (d *LinkageSpecDecl) Location() Loc { return d.Loc }
func (*LinkageSpecDecl) isDecl()         {}

func (d *LinkageSpecDecl) Decls() []Decl {
	if d == nil {
		return nil
	}
	return d.Children
}

// OtherDecl is any declaration the mapper does not look into: variables,
// typedefs, enums, forward declarations.
type OtherDecl struct {
	Kind string
	Name string
	Loc  Loc
}

func (d *OtherDecl) Location() Loc { return d.Loc }
func (*OtherDecl) isDecl()         {}
