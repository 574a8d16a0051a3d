package ast

// FunctionKind distinguishes the function shapes that mangle differently.
type FunctionKind int

const (
	OrdinaryFunction FunctionKind = iota
	MethodFunction
	ConstructorFunction
	DestructorFunction
	ConversionFunction
)

// ContextKind is the kind of an enclosing semantic scope.
type ContextKind int

const (
	NamespaceContext ContextKind = iota
	RecordContext
	// FunctionContext is the body of a function holding a local class.
	FunctionContext
)

// ContextEntry names one enclosing scope of a declaration. Anonymous is set
// for unnamed namespaces. Function is set for FunctionContext entries.
type ContextEntry struct {
	Kind      ContextKind
	Name      string
	Anonymous bool
	Function  *FunctionDecl
}

// Spelling is the source form of the entry inside a qualified name.
func (c ContextEntry) Spelling() string {
	switch {
	case c.Anonymous:
		return "(anonymous namespace)"
	case c.Kind == FunctionContext:
		return c.Name + "()"
	}
	return c.Name
}

// Body is a function body as written in the source.
type Body struct {
	Loc     Loc
	EndLine int
	Text    string
}

// FunctionDecl is a function, member function, constructor or destructor
// declaration. Declarations of the same entity within one TU share a
// redeclaration chain, so HasBody is true on a prototype whose definition
// appears later.
type FunctionDecl struct {
	Name string
	Kind FunctionKind
	// Operator holds the operator token ("==", "()", "new[]") for operator
	// functions.
	Operator string
	// ConversionType is the target type of a conversion function.
	ConversionType *Type

	// Context lists the enclosing semantic scopes, outermost first.
	Context []ContextEntry

	Result       *Type
	Params       []*Type
	Variadic     bool
	HasPrototype bool

	// Member function qualifiers.
	Const        bool
	Volatile     bool
	RefQualifier string

	Static    bool
	Inline    bool
	Deleted   bool
	Defaulted bool

	Linkage     Linkage
	LangLinkage LanguageLinkage
	// BuiltinID is non-zero for compiler builtins and recognized library
	// builtins.
	BuiltinID int

	// Body is the body written on this declaration, if any.
	Body *Body
	// Locals are function-local declarations: local extern functions and
	// local classes.
	Locals []Decl
	Loc    Loc

	chain *redeclChain
}

type redeclChain struct {
	decls []*FunctionDecl
	def   *FunctionDecl
}

func (d *FunctionDecl) Location() Loc { return d.Loc }
func (*FunctionDecl) isDecl()         {}

// Decls returns the function-local declarations.
func (d *FunctionDecl) Decls() []Decl {
	if d == nil {
		return nil
	}
	return d.Locals
}

// Redeclare links d into the redeclaration chain of prev.
func Redeclare(prev, d *FunctionDecl) {
	if prev.chain == nil {
		prev.chain = &redeclChain{decls: []*FunctionDecl{prev}}
		if prev.Body != nil {
			prev.chain.def = prev
		}
	}
	d.chain = prev.chain
	d.chain.decls = append(d.chain.decls, d)
	if d.Body != nil && d.chain.def == nil {
		d.chain.def = d
	}
}

// First returns the first declaration of the entity in the TU.
func (d *FunctionDecl) First() *FunctionDecl {
	if d.chain == nil {
		return d
	}
	return d.chain.decls[0]
}

// Redecls returns every declaration of the entity in the TU.
func (d *FunctionDecl) Redecls() []*FunctionDecl {
	if d.chain == nil {
		return []*FunctionDecl{d}
	}
	return d.chain.decls
}

// Definition returns the declaration carrying the body, or nil.
func (d *FunctionDecl) Definition() *FunctionDecl {
	if d.chain == nil {
		if d.Body != nil {
			return d
		}
		return nil
	}
	return d.chain.def
}

// HasBody reports whether any declaration of the entity has a body.
func (d *FunctionDecl) HasBody() bool {
	return d.Definition() != nil
}

// DefinitionBody returns the body found on the redeclaration chain.
func (d *FunctionDecl) DefinitionBody() *Body {
	if def := d.Definition(); def != nil {
		return def.Body
	}
	return nil
}

// QualifiedName returns the source-level name including enclosing scopes.
func (d *FunctionDecl) QualifiedName() string {
	name := d.Name
	for i := len(d.Context) - 1; i >= 0; i-- {
		name = d.Context[i].Spelling() + "::" + name
	}
	return name
}

// EnclosingFunction returns the innermost function whose body declares the
// local class d belongs to, or nil.
func (d *FunctionDecl) EnclosingFunction() *FunctionDecl {
	for i := len(d.Context) - 1; i >= 0; i-- {
		if d.Context[i].Kind == FunctionContext {
			return d.Context[i].Function
		}
	}
	return nil
}

// IsInline reports whether any declaration of the entity is inline.
func (d *FunctionDecl) IsInline() bool {
	for _, r := range d.Redecls() {
		if r.Inline {
			return true
		}
	}
	return false
}

// IsMember reports whether the function is declared in a class scope.
func (d *FunctionDecl) IsMember() bool {
	return len(d.Context) > 0 && d.Context[len(d.Context)-1].Kind == RecordContext
}
