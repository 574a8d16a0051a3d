package frontend

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/ctu-fnmap/internal/ast"
	"github.com/DeusData/ctu-fnmap/internal/parser"
)

// declarator applies the type constructors of d to t, outermost first, and
// returns the declared type, the declarator-id (nil for abstract
// declarators) and the innermost type constructor node. A declaration
// declares a function iff that node is a function declarator.
func (b *builder) declarator(t *ast.Type, d *tree_sitter.Node, sc *scope) (*ast.Type, *tree_sitter.Node, *tree_sitter.Node) {
	var last *tree_sitter.Node
	for d != nil {
		switch d.Kind() {
		case "pointer_declarator", "abstract_pointer_declarator":
			t = ast.PointerTo(t)
			for i := uint(0); i < d.NamedChildCount(); i++ {
				if q := d.NamedChild(i); q.Kind() == "type_qualifier" {
					t = withQualifier(t, b.text(q))
				}
			}
			last, d = d, d.ChildByFieldName("declarator")
		case "reference_declarator", "abstract_reference_declarator":
			kind := ast.LValueReferenceType
			if first := d.Child(0); first != nil && first.Kind() == "&&" {
				kind = ast.RValueReferenceType
			}
			t = &ast.Type{Kind: kind, Elem: t}
			last, d = d, innerDeclarator(d)
		case "array_declarator", "abstract_array_declarator":
			t = &ast.Type{Kind: ast.ArrayType, Elem: t}
			last, d = d, d.ChildByFieldName("declarator")
		case "function_declarator", "abstract_function_declarator":
			result := t
			if trailing := parser.FindChildByKind(d, "trailing_return_type"); trailing != nil {
				if desc := parser.FindChildByKind(trailing, "type_descriptor"); desc != nil {
					result = b.typeDescriptor(desc, sc)
				}
			}
			params, variadic := b.parameters(d.ChildByFieldName("parameters"), sc)
			t = &ast.Type{Kind: ast.FunctionType, Elem: result, Params: params, Variadic: variadic}
			last, d = d, d.ChildByFieldName("declarator")
		case "parenthesized_declarator", "abstract_parenthesized_declarator", "attributed_declarator":
			d = innerDeclarator(d)
		case "init_declarator":
			d = d.ChildByFieldName("declarator")
		default:
			return t, d, last
		}
	}
	return t, nil, last
}

// innerDeclarator returns the nested declarator of a node whose grammar
// does not give it a field name.
func innerDeclarator(d *tree_sitter.Node) *tree_sitter.Node {
	if inner := d.ChildByFieldName("declarator"); inner != nil {
		return inner
	}
	for i := int(d.NamedChildCount()) - 1; i >= 0; i-- {
		c := d.NamedChild(uint(i))
		if c != nil && c.Kind() != "attribute_declaration" && c.Kind() != "type_qualifier" {
			return c
		}
	}
	return nil
}

// declaratorID walks d to its declarator-id without resolving types.
func declaratorID(d *tree_sitter.Node) (id, last *tree_sitter.Node) {
	for d != nil {
		switch d.Kind() {
		case "pointer_declarator", "array_declarator", "function_declarator":
			last, d = d, d.ChildByFieldName("declarator")
		case "reference_declarator":
			last, d = d, innerDeclarator(d)
		case "parenthesized_declarator", "attributed_declarator":
			d = innerDeclarator(d)
		case "init_declarator":
			d = d.ChildByFieldName("declarator")
		default:
			return d, last
		}
	}
	return nil, last
}

// parameters resolves a parameter list. "(void)" is an empty list.
func (b *builder) parameters(list *tree_sitter.Node, sc *scope) ([]*ast.Type, bool) {
	if list == nil {
		return nil, false
	}
	var params []*ast.Type
	variadic := false
	for i := uint(0); i < list.ChildCount(); i++ {
		p := list.Child(i)
		if p == nil {
			continue
		}
		switch p.Kind() {
		case "parameter_declaration", "optional_parameter_declaration":
			t := b.specType(p, sc)
			if d := p.ChildByFieldName("declarator"); d != nil {
				t, _, _ = b.declarator(t, d, sc)
			}
			params = append(params, t)
		case "...", "variadic_parameter":
			variadic = true
		}
	}
	if len(params) == 1 && !variadic && params[0].Kind == ast.BuiltinType &&
		params[0].Name == "void" && !params[0].Const && !params[0].Volatile {
		return nil, false
	}
	return params, variadic
}

// hasPrototype reports whether a function declarator declares parameter
// types. In C, "f()" does not; in C++ every declarator does.
func (b *builder) hasPrototype(fd *tree_sitter.Node) bool {
	if b.cxx {
		return true
	}
	list := fd.ChildByFieldName("parameters")
	return list != nil && list.NamedChildCount() > 0
}
