package ast

import (
	"fmt"
	"path/filepath"
	"strings"
)

var functionKindNames = map[FunctionKind]string{
	OrdinaryFunction:    "function",
	MethodFunction:      "method",
	ConstructorFunction: "ctor",
	DestructorFunction:  "dtor",
	ConversionFunction:  "conversion",
}

// Dump renders the declaration tree one declaration per line, indented by
// nesting depth. File names are reduced to their base name so the output is
// stable across checkouts.
func Dump(d Decl) string {
	var sb strings.Builder
	dump(&sb, d, 0)
	return sb.String()
}

func dump(sb *strings.Builder, d Decl, depth int) {
	if isNil(d) {
		return
	}
	sb.WriteString(strings.Repeat("  ", depth))
	switch v := d.(type) {
	case *TranslationUnitDecl:
		sb.WriteString("TranslationUnit")
	case *NamespaceDecl:
		name := v.Name
		if name == "" {
			name = "(anonymous)"
		}
		sb.WriteString("Namespace " + name)
		if v.Inline {
			sb.WriteString(" inline")
		}
	case *LinkageSpecDecl:
		if v.Lang == CLanguageLinkage {
			sb.WriteString(`LinkageSpec "C"`)
		} else {
			sb.WriteString(`LinkageSpec "C++"`)
		}
	case *RecordDecl:
		sb.WriteString("Record " + v.TagKind + " " + v.Name)
	case *FunctionDecl:
		sb.WriteString(dumpFunction(v))
	case *OtherDecl:
		sb.WriteString("Other " + v.Kind + " " + v.Name)
	}
	sb.WriteString("\n")
	if s, ok := d.(Scope); ok {
		for _, child := range s.Decls() {
			dump(sb, child, depth+1)
		}
	}
}

func dumpFunction(f *FunctionDecl) string {
	var sb strings.Builder
	sb.WriteString("Function ")
	sb.WriteString(f.QualifiedName())
	if f.HasPrototype {
		sb.WriteString("(" + paramString(f.Params, f.Variadic) + ")")
	} else {
		sb.WriteString("()")
	}
	if f.Const {
		sb.WriteString(" const")
	}
	fmt.Fprintf(&sb, " kind=%s linkage=%s", functionKindNames[f.Kind], f.Linkage)
	if f.LangLinkage == CLanguageLinkage {
		sb.WriteString(" lang=C")
	}
	if f.Static {
		sb.WriteString(" static")
	}
	if f.Inline {
		sb.WriteString(" inline")
	}
	if f.BuiltinID != 0 {
		sb.WriteString(" builtin")
	}
	if f.Deleted {
		sb.WriteString(" deleted")
	}
	if f.Defaulted {
		sb.WriteString(" defaulted")
	}
	switch {
	case f.Body != nil:
		fmt.Fprintf(&sb, " body=%s:%d", filepath.Base(f.Body.Loc.File), f.Body.Loc.Line)
	case f.HasBody():
		sb.WriteString(" body=redecl")
	default:
		sb.WriteString(" body=none")
	}
	return sb.String()
}
