package ast

import "strings"

// TypeKind is the shape of a Type.
type TypeKind int

const (
	BuiltinType TypeKind = iota
	PointerType
	LValueReferenceType
	RValueReferenceType
	RecordType
	EnumType
	ArrayType
	FunctionType
	// TemplateSpecializationType is a named template with arguments,
	// e.g. std::vector<int>.
	TemplateSpecializationType
)

// Type is a resolved C/C++ type as far as mangling needs it.
type Type struct {
	Kind TypeKind
	// Name is the builtin spelling ("unsigned long") or the unqualified
	// name of a record, enum or template.
	Name    string
	Context []ContextEntry

	Const    bool
	Volatile bool
	Restrict bool

	// Elem is the pointee, referent, array element or function result.
	Elem     *Type
	Params   []*Type
	Variadic bool
	Args     []*Type

	// Internal marks a named type declared in an unnamed namespace.
	Internal bool
}

// Builtin returns an unqualified builtin type.
func Builtin(name string) *Type {
	return &Type{Kind: BuiltinType, Name: name}
}

// PointerTo returns a pointer to elem.
func PointerTo(elem *Type) *Type {
	return &Type{Kind: PointerType, Elem: elem}
}

// Unqualified returns a copy of t without top-level cv qualifiers.
func (t *Type) Unqualified() *Type {
	if !t.Const && !t.Volatile && !t.Restrict {
		return t
	}
	c := *t
	c.Const, c.Volatile, c.Restrict = false, false, false
	return &c
}

// UsesInternalType reports whether t refers to a type with internal
// linkage anywhere in its structure.
func (t *Type) UsesInternalType() bool {
	if t == nil {
		return false
	}
	if t.Internal {
		return true
	}
	if t.Elem.UsesInternalType() {
		return true
	}
	for _, p := range t.Params {
		if p.UsesInternalType() {
			return true
		}
	}
	for _, a := range t.Args {
		if a.UsesInternalType() {
			return true
		}
	}
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var sb strings.Builder
	if t.Const {
		sb.WriteString("const ")
	}
	if t.Volatile {
		sb.WriteString("volatile ")
	}
	switch t.Kind {
	case BuiltinType:
		sb.WriteString(t.Name)
	case PointerType:
		sb.WriteString(t.Elem.String())
		sb.WriteString("*")
	case LValueReferenceType:
		sb.WriteString(t.Elem.String())
		sb.WriteString("&")
	case RValueReferenceType:
		sb.WriteString(t.Elem.String())
		sb.WriteString("&&")
	case ArrayType:
		sb.WriteString(t.Elem.String())
		sb.WriteString("[]")
	case FunctionType:
		sb.WriteString(t.Elem.String())
		sb.WriteString("(")
		sb.WriteString(paramString(t.Params, t.Variadic))
		sb.WriteString(")")
	case RecordType, EnumType, TemplateSpecializationType:
		sb.WriteString(qualify(t.Context, t.Name))
		if t.Kind == TemplateSpecializationType {
			args := make([]string, len(t.Args))
			for i, a := range t.Args {
				args[i] = a.String()
			}
			sb.WriteString("<" + strings.Join(args, ", ") + ">")
		}
	}
	if t.Restrict {
		sb.WriteString(" restrict")
	}
	return sb.String()
}

func paramString(params []*Type, variadic bool) string {
	parts := make([]string, 0, len(params)+1)
	for _, p := range params {
		parts = append(parts, p.String())
	}
	if variadic {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

func qualify(ctx []ContextEntry, name string) string {
	var sb strings.Builder
	for _, c := range ctx {
		sb.WriteString(c.Spelling())
		sb.WriteString("::")
	}
	sb.WriteString(name)
	return sb.String()
}
