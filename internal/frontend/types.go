package frontend

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/ctu-fnmap/internal/ast"
)

// specType resolves the type named by the specifiers of a declaration,
// parameter or type descriptor, including its cv qualifiers.
func (b *builder) specType(n *tree_sitter.Node, sc *scope) *ast.Type {
	typeNode := n.ChildByFieldName("type")
	var t *ast.Type
	if typeNode == nil {
		t = ast.Builtin("int")
	} else {
		t = b.typeSpec(typeNode, sc)
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if q := n.NamedChild(i); q != nil && q.Kind() == "type_qualifier" {
			t = withQualifier(t, b.text(q))
		}
	}
	return t
}

func withQualifier(t *ast.Type, q string) *ast.Type {
	c := *t
	switch q {
	case "const":
		c.Const = true
	case "volatile":
		c.Volatile = true
	case "restrict", "__restrict", "__restrict__":
		c.Restrict = true
	default:
		return t
	}
	return &c
}

func (b *builder) typeSpec(n *tree_sitter.Node, sc *scope) *ast.Type {
	switch n.Kind() {
	case "primitive_type":
		return b.builtin(b.text(n))
	case "sized_type_specifier":
		return b.sizedType(n)
	case "type_identifier":
		name := b.text(n)
		if t, ok := b.lookup([]string{name}, sc.ctx); ok {
			return t
		}
		return b.unknownType([]string{name}, sc)
	case "qualified_identifier":
		if tmpl := innermostName(n); tmpl != nil && tmpl.Kind() == "template_type" {
			t := b.typeSpec(tmpl, sc)
			t.Context = b.qualify(b.qualifiedPath(n), sc.ctx)
			return t
		}
		path := b.qualifiedPath(n)
		if t, ok := b.lookup(path, sc.ctx); ok {
			return t
		}
		return b.unknownType(path, sc)
	case "template_type":
		t := &ast.Type{Kind: ast.TemplateSpecializationType}
		if name := n.ChildByFieldName("name"); name != nil {
			t.Name = b.text(name)
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			for i := uint(0); i < args.NamedChildCount(); i++ {
				arg := args.NamedChild(i)
				if arg.Kind() == "type_descriptor" {
					t.Args = append(t.Args, b.typeDescriptor(arg, sc))
					continue
				}
				t.Args = append(t.Args, ast.Builtin(b.text(arg)))
			}
		}
		return t
	case "struct_specifier", "class_specifier", "union_specifier":
		return b.record(n, sc)
	case "enum_specifier":
		return b.enum(n, sc)
	case "placeholder_type_specifier", "auto":
		return ast.Builtin("auto")
	}
	return ast.Builtin(strings.Join(strings.Fields(b.text(n)), " "))
}

// builtin maps a primitive spelling, resolving standard integer typedefs to
// the target's underlying type.
func (b *builder) builtin(name string) *ast.Type {
	if spelled, ok := b.info.StandardTypedef(name); ok {
		return ast.Builtin(spelled)
	}
	return ast.Builtin(name)
}

// sizedType canonicalizes "unsigned long int" style specifiers.
func (b *builder) sizedType(n *tree_sitter.Node) *ast.Type {
	var unsigned, signed bool
	var longs, shorts int
	base := ""
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch word := b.text(c); word {
		case "unsigned":
			unsigned = true
		case "signed":
			signed = true
		case "long":
			longs++
		case "short":
			shorts++
		default:
			if c.IsNamed() {
				base = word
			}
		}
	}
	switch base {
	case "char":
		switch {
		case unsigned:
			return ast.Builtin("unsigned char")
		case signed:
			return ast.Builtin("signed char")
		}
		return ast.Builtin("char")
	case "double":
		if longs > 0 {
			return ast.Builtin("long double")
		}
		return ast.Builtin("double")
	case "", "int":
	default:
		return ast.Builtin(base)
	}
	name := "int"
	switch {
	case shorts > 0:
		name = "short"
	case longs == 1:
		name = "long"
	case longs >= 2:
		name = "long long"
	}
	if unsigned {
		if name == "int" {
			return ast.Builtin("unsigned int")
		}
		return ast.Builtin("unsigned " + name)
	}
	return ast.Builtin(name)
}

func (b *builder) typeDescriptor(n *tree_sitter.Node, sc *scope) *ast.Type {
	t := b.specType(n, sc)
	if d := n.ChildByFieldName("declarator"); d != nil {
		t, _, _ = b.declarator(t, d, sc)
	}
	return t
}

// qualifiedPath returns the name components of an identifier, or nil when
// a component is not a plain name.
func (b *builder) qualifiedPath(n *tree_sitter.Node) []string {
	switch n.Kind() {
	case "qualified_identifier":
		var path []string
		if scopeNode := n.ChildByFieldName("scope"); scopeNode != nil {
			switch scopeNode.Kind() {
			case "namespace_identifier", "type_identifier":
				path = append(path, b.text(scopeNode))
			case "template_type":
				if name := scopeNode.ChildByFieldName("name"); name != nil {
					path = append(path, b.text(name))
				}
			default:
				return nil
			}
		}
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		if name.Kind() == "template_type" {
			if tn := name.ChildByFieldName("name"); tn != nil {
				return path
			}
			return nil
		}
		rest := b.qualifiedPath(name)
		if rest == nil {
			return nil
		}
		return append(path, rest...)
	case "identifier", "type_identifier", "namespace_identifier", "field_identifier":
		return []string{b.text(n)}
	}
	return nil
}

// innermostName follows the name fields of nested qualified identifiers.
func innermostName(n *tree_sitter.Node) *tree_sitter.Node {
	for n != nil && n.Kind() == "qualified_identifier" {
		n = n.ChildByFieldName("name")
	}
	return n
}

// lookup finds a typedef or record named by path, searching from the
// innermost enclosing scope outwards.
func (b *builder) lookup(path []string, ctx []ast.ContextEntry) (*ast.Type, bool) {
	if !b.cxx {
		ctx = nil
	}
	suffix := strings.Join(path, "::")
	for i := len(ctx); i >= 0; i-- {
		for _, key := range scopedKeys(contextKey(ctx[:i]), suffix) {
			if t, ok := b.typedefs[key]; ok {
				return t, true
			}
			if r, ok := b.records[key]; ok {
				return r.typ(), true
			}
		}
	}
	return nil, false
}

// scopedKeys lists the keys a name may be found under in one scope: the
// scope itself, then an unnamed namespace nested in it, whose members are
// visible in the enclosing scope.
func scopedKeys(prefix, name string) []string {
	if prefix == "" {
		return []string{name, "(anonymous)::" + name}
	}
	return []string{prefix + "::" + name, prefix + "::(anonymous)::" + name}
}

// unknownType names a type whose declaration was not seen, typically one
// from an unresolved system header.
func (b *builder) unknownType(path []string, sc *scope) *ast.Type {
	if len(path) == 1 {
		if spelled, ok := b.info.StandardTypedef(path[0]); ok {
			return ast.Builtin(spelled)
		}
		return &ast.Type{Kind: ast.RecordType, Name: path[0]}
	}
	return &ast.Type{
		Kind:    ast.RecordType,
		Name:    path[len(path)-1],
		Context: b.qualify(path[:len(path)-1], sc.ctx),
	}
}

// qualify resolves a scope path as written in a qualified name to semantic
// context entries. The first component is looked up from the innermost
// enclosing scope outwards; unknown components are taken as namespaces.
func (b *builder) qualify(path []string, ctx []ast.ContextEntry) []ast.ContextEntry {
	if len(path) == 0 {
		return ctx
	}
	base := []ast.ContextEntry{}
	for i := len(ctx); i >= 0; i-- {
		key := path[0]
		if prefix := contextKey(ctx[:i]); prefix != "" {
			key = prefix + "::" + path[0]
		}
		if b.namespaces[key] || b.records[key] != nil {
			base = ctx[:i]
			break
		}
		anon := appendContext(ctx[:i], ast.ContextEntry{Kind: ast.NamespaceContext, Anonymous: true})
		if b.records[contextKey(anon)+"::"+path[0]] != nil {
			base = anon
			break
		}
	}
	out := append([]ast.ContextEntry{}, base...)
	for _, name := range path {
		kind := ast.NamespaceContext
		if b.records[contextKey(appendContext(out, ast.ContextEntry{Name: name}))] != nil {
			kind = ast.RecordContext
		}
		out = append(out, ast.ContextEntry{Kind: kind, Name: name})
	}
	return out
}
