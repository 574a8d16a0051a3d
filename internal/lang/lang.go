package lang

import (
	"path/filepath"
	"strings"
)

// Language represents a supported source language.
type Language string

const (
	C   Language = "c"
	CPP Language = "cpp"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{C, CPP}
}

// LanguageSpec defines the tree-sitter node types the frontend dispatches on.
type LanguageSpec struct {
	Language Language
	// FileExtensions lists every extension parsed with this language.
	FileExtensions []string
	// SourceExtensions lists the extensions compiled as translation units.
	SourceExtensions []string

	FunctionNodeTypes    []string
	DeclarationNodeTypes []string
	NamespaceNodeTypes   []string
	RecordNodeTypes      []string
	LinkageNodeTypes     []string
	IncludeNodeTypes     []string
	// ConditionalNodeTypes are preprocessor blocks whose consequence is
	// spliced into the enclosing scope.
	ConditionalNodeTypes []string
	// SkipNodeTypes are never descended into (templates, friends).
	SkipNodeTypes []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".cpp").
func ForExtension(ext string) *LanguageSpec {
	return registry[strings.ToLower(ext)]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(l Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == l {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := ForExtension(ext)
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

// IsSource reports whether path names a file compiled as a translation unit.
// Headers are parsed only through inclusion.
func IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	spec := registry[ext]
	if spec == nil {
		return false
	}
	for _, e := range spec.SourceExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// FromFlag maps the argument of a compiler "-x" option to a Language.
func FromFlag(x string) (Language, bool) {
	switch x {
	case "c", "c-header", "cpp-output":
		return C, true
	case "c++", "c++-header", "c++-cpp-output":
		return CPP, true
	}
	return "", false
}
