package frontend

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/ctu-fnmap/internal/ast"
	"github.com/DeusData/ctu-fnmap/internal/parser"
)

type specifiers struct {
	static bool
	inline bool
}

func (b *builder) specifiers(n *tree_sitter.Node) specifiers {
	var s specifiers
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Kind() != "storage_class_specifier" {
			continue
		}
		switch b.text(c) {
		case "static":
			s.static = true
		case "inline", "__inline", "__inline__", "__forceinline":
			s.inline = true
		}
	}
	return s
}

// baseType is the type named by the specifiers of n. Constructors,
// destructors and conversions have none.
func (b *builder) baseType(n *tree_sitter.Node, sc *scope) *ast.Type {
	if n.ChildByFieldName("type") == nil {
		return ast.Builtin("void")
	}
	return b.specType(n, sc)
}

// functionDefinition builds a function with a body. Explicitly defaulted
// and deleted functions have no written body and stay declarations.
func (b *builder) functionDefinition(n *tree_sitter.Node, sc *scope) {
	fn := b.function(n, b.baseType(n, sc), n.ChildByFieldName("declarator"), sc)
	if fn == nil {
		return
	}
	fn.Deleted = parser.FindChildByKind(n, "delete_method_clause") != nil
	fn.Defaulted = parser.FindChildByKind(n, "default_method_clause") != nil
	body := n.ChildByFieldName("body")
	if body != nil && !fn.Deleted && !fn.Defaulted {
		fn.Body = &ast.Body{Loc: b.loc(body), EndLine: parser.EndLine(body), Text: b.text(body)}
		if sc.inClass {
			fn.Inline = true
		}
	}
	b.link(fn)
	sc.add(fn)
	if fn.Body != nil {
		b.locals(fn, body, sc)
	}
}

func (b *builder) declaration(n *tree_sitter.Node, sc *scope) {
	deleted := parser.FindChildByKind(n, "delete_method_clause") != nil
	defaulted := parser.FindChildByKind(n, "default_method_clause") != nil
	base := b.baseType(n, sc)
	for _, d := range parser.ChildrenByField(n, "declarator") {
		if fn := b.function(n, base, d, sc); fn != nil {
			fn.Deleted = deleted
			fn.Defaulted = defaulted
			b.link(fn)
			sc.add(fn)
			continue
		}
		if id, _ := declaratorID(d); id != nil {
			sc.add(&ast.OtherDecl{Kind: "var", Name: b.text(id), Loc: b.loc(id)})
		}
	}
}

// locals collects the declarations made inside a body. Function
// declarations there declare functions of the innermost enclosing
// namespace; classes defined there are local to fn.
func (b *builder) locals(fn *ast.FunctionDecl, body *tree_sitter.Node, sc *scope) {
	ctx := fn.Context
	for len(ctx) > 0 && ctx[len(ctx)-1].Kind != ast.NamespaceContext {
		ctx = ctx[:len(ctx)-1]
	}
	local := &scope{ctx: ctx, lang: sc.lang}
	if sc.inClass || fn.IsMember() {
		local.lang = ast.CXXLanguageLinkage
	}
	records := &scope{
		ctx:  appendContext(fn.Context, ast.ContextEntry{Kind: ast.FunctionContext, Name: fn.Name, Function: fn}),
		lang: ast.CXXLanguageLinkage,
	}
	parser.Walk(body, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "lambda_expression":
			return false
		case "class_specifier", "struct_specifier", "union_specifier":
			if b.cxx {
				b.record(n, records)
			}
			return false
		case "declaration":
			if t := n.ChildByFieldName("type"); t != nil && b.cxx && isRecordSpecifier(t.Kind()) {
				b.record(t, records)
			}
			var base *ast.Type
			for _, d := range parser.ChildrenByField(n, "declarator") {
				if _, last := declaratorID(d); last == nil || last.Kind() != "function_declarator" {
					continue
				}
				if base == nil {
					base = b.baseType(n, local)
				}
				if f := b.function(n, base, d, local); f != nil {
					b.link(f)
					fn.Locals = append(fn.Locals, f)
				}
			}
			return false
		}
		return true
	})
	fn.Locals = append(fn.Locals, records.decls...)
}

// function builds the declaration of the function declared by d, or
// returns nil if d declares something else. spec is the node holding the
// declaration specifiers.
func (b *builder) function(spec *tree_sitter.Node, base *ast.Type, d *tree_sitter.Node, sc *scope) *ast.FunctionDecl {
	id, last := declaratorID(d)
	if id == nil {
		return nil
	}
	scopes, nameNode, ok := b.splitQualified(id)
	if !ok {
		return nil
	}
	conversion := nameNode.Kind() == "operator_cast"
	if !conversion && (last == nil || last.Kind() != "function_declarator") {
		return nil
	}

	ctx := sc.ctx
	if !b.cxx {
		ctx = nil
	} else if len(scopes) > 0 {
		ctx = b.qualify(scopes, sc.ctx)
	}
	fn := &ast.FunctionDecl{Context: ctx, Loc: b.loc(id), HasPrototype: true}
	member := fn.IsMember()

	switch nameNode.Kind() {
	case "identifier", "field_identifier", "type_identifier":
		fn.Name = b.text(nameNode)
		switch {
		case member && fn.Name == ctx[len(ctx)-1].Name:
			fn.Kind = ast.ConstructorFunction
		case member:
			fn.Kind = ast.MethodFunction
		}
	case "destructor_name":
		fn.Name = strings.Join(strings.Fields(b.text(nameNode)), "")
		fn.Kind = ast.DestructorFunction
	case "operator_name":
		fn.Operator = operatorToken(b.text(nameNode))
		fn.Name = "operator" + fn.Operator
		if member {
			fn.Kind = ast.MethodFunction
		}
	case "operator_cast":
		fn.Kind = ast.ConversionFunction
	default:
		return nil
	}

	lookup := &scope{ctx: ctx, lang: sc.lang}
	var fd *tree_sitter.Node
	var t *ast.Type
	if conversion {
		ct := b.specType(nameNode, lookup)
		t, _, fd = b.declarator(ct, nameNode.ChildByFieldName("declarator"), lookup)
		if t.Kind != ast.FunctionType {
			return nil
		}
		fn.ConversionType = t.Elem
		fn.Name = "operator " + t.Elem.String()
	} else {
		t, _, fd = b.declarator(base, d, lookup)
		if t.Kind != ast.FunctionType {
			return nil
		}
		fn.HasPrototype = b.hasPrototype(fd)
	}
	fn.Result, fn.Params, fn.Variadic = t.Elem, t.Params, t.Variadic

	if member && fd != nil {
		for i := uint(0); i < fd.ChildCount(); i++ {
			c := fd.Child(i)
			if c == nil {
				continue
			}
			switch c.Kind() {
			case "type_qualifier":
				switch b.text(c) {
				case "const":
					fn.Const = true
				case "volatile":
					fn.Volatile = true
				}
			case "ref_qualifier":
				fn.RefQualifier = strings.TrimSpace(b.text(c))
			}
		}
	}

	s := b.specifiers(spec)
	fn.Inline = s.inline
	switch {
	case member:
		fn.LangLinkage = ast.CXXLanguageLinkage
	case !b.cxx:
		fn.LangLinkage = ast.CLanguageLinkage
		fn.Static = s.static
	default:
		fn.LangLinkage = sc.lang
		fn.Static = s.static
	}
	return fn
}

// splitQualified separates the scope components of a declarator-id from
// its final name. Members of class templates are rejected.
func (b *builder) splitQualified(id *tree_sitter.Node) ([]string, *tree_sitter.Node, bool) {
	var scopes []string
	n := id
	for n.Kind() == "qualified_identifier" {
		if s := n.ChildByFieldName("scope"); s != nil {
			switch s.Kind() {
			case "namespace_identifier", "type_identifier":
				scopes = append(scopes, b.text(s))
			default:
				return nil, nil, false
			}
		}
		n = n.ChildByFieldName("name")
		if n == nil {
			return nil, nil, false
		}
	}
	return scopes, n, true
}

// operatorToken extracts the operator from "operator ==", "operator new []"
// and similar spellings.
func operatorToken(name string) string {
	op := strings.TrimPrefix(strings.TrimSpace(name), "operator")
	return strings.Join(strings.Fields(op), "")
}

// link attaches fn to the redeclaration chain of its entity. Storage and
// linkage come from the first declaration.
func (b *builder) link(fn *ast.FunctionDecl) {
	b.functions++
	keys := b.entityKeys(fn)
	for _, key := range keys {
		first, ok := b.entities[key]
		if !ok {
			continue
		}
		ast.Redeclare(first, fn)
		fn.Static = first.Static
		fn.LangLinkage = first.LangLinkage
		fn.Linkage = first.Linkage
		fn.BuiltinID = first.BuiltinID
		return
	}
	b.entities[keys[0]] = fn
	fn.Linkage = b.linkage(fn)
	fn.BuiltinID = b.builtinID(fn)
}

// entityKeys lists the keys under which an earlier declaration of fn may be
// registered, the key to register fn under first. Functions with C
// language linkage are identified by name alone.
func (b *builder) entityKeys(fn *ast.FunctionDecl) []string {
	cKey := "C:" + fn.Name
	if fn.IsMember() {
		return []string{cxxKey(fn)}
	}
	if fn.LangLinkage == ast.CLanguageLinkage {
		return []string{cKey}
	}
	return []string{cxxKey(fn), cKey}
}

func cxxKey(fn *ast.FunctionDecl) string {
	var sb strings.Builder
	sb.WriteString(fn.QualifiedName())
	sb.WriteString("(")
	for i, p := range fn.Params {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(adjustedParam(p).String())
	}
	if fn.Variadic {
		sb.WriteString(",...")
	}
	sb.WriteString(")")
	if fn.Const {
		sb.WriteString(" const")
	}
	if fn.Volatile {
		sb.WriteString(" volatile")
	}
	sb.WriteString(fn.RefQualifier)
	return sb.String()
}

func adjustedParam(t *ast.Type) *ast.Type {
	switch t.Kind {
	case ast.ArrayType:
		return ast.PointerTo(t.Elem)
	case ast.FunctionType:
		return ast.PointerTo(t.Unqualified())
	}
	return t.Unqualified()
}

func isRecordSpecifier(kind string) bool {
	switch kind {
	case "class_specifier", "struct_specifier", "union_specifier":
		return true
	}
	return false
}

// linkage computes the linkage of the first declaration of an entity.
func (b *builder) linkage(fn *ast.FunctionDecl) ast.Linkage {
	if outer := fn.EnclosingFunction(); outer != nil {
		// Members of a local class have no linkage. They stay visible when
		// the enclosing function is an inline function other TUs can see.
		switch outer.Linkage {
		case ast.ExternalLinkage, ast.UniqueExternalLinkage, ast.VisibleNoLinkage:
			if outer.IsInline() {
				return ast.VisibleNoLinkage
			}
		}
		return ast.NoLinkage
	}
	if fn.Static {
		return ast.InternalLinkage
	}
	if !fn.IsMember() && fn.LangLinkage == ast.CLanguageLinkage {
		// extern "C" names one entity program-wide, even when declared in
		// an unnamed namespace.
		return ast.ExternalLinkage
	}
	if hasAnonymous(fn.Context) {
		return ast.InternalLinkage
	}
	if b.cxx && usesInternalType(fn) {
		return ast.UniqueExternalLinkage
	}
	return ast.ExternalLinkage
}

func usesInternalType(fn *ast.FunctionDecl) bool {
	if fn.Result.UsesInternalType() || fn.ConversionType.UsesInternalType() {
		return true
	}
	for _, p := range fn.Params {
		if p.UsesInternalType() {
			return true
		}
	}
	return false
}
