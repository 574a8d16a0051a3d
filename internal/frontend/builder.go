package frontend

import (
	"context"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/ctu-fnmap/internal/ast"
	"github.com/DeusData/ctu-fnmap/internal/lang"
	"github.com/DeusData/ctu-fnmap/internal/parser"
	"github.com/DeusData/ctu-fnmap/internal/target"
)

type category int

const (
	catNone category = iota
	catFunction
	catDeclaration
	catNamespace
	catRecord
	catLinkage
	catInclude
	catConditional
	catSkip
)

// categories indexes the node types of a language spec.
func categories(spec *lang.LanguageSpec) map[string]category {
	m := map[string]category{}
	add := func(kinds []string, c category) {
		for _, k := range kinds {
			m[k] = c
		}
	}
	add(spec.FunctionNodeTypes, catFunction)
	add(spec.DeclarationNodeTypes, catDeclaration)
	add(spec.NamespaceNodeTypes, catNamespace)
	add(spec.RecordNodeTypes, catRecord)
	add(spec.LinkageNodeTypes, catLinkage)
	add(spec.IncludeNodeTypes, catInclude)
	add(spec.ConditionalNodeTypes, catConditional)
	add(spec.SkipNodeTypes, catSkip)
	return m
}

type fileState struct {
	path string
	dir  string
	src  []byte
}

// scope is a lexical declaration context being filled.
type scope struct {
	decls []ast.Decl
	// ctx is the semantic context of declarations made here.
	ctx []ast.ContextEntry
	// lang is the language linkage of functions declared here.
	lang    ast.LanguageLinkage
	inClass bool
}

func (sc *scope) child() *scope {
	return &scope{ctx: sc.ctx, lang: sc.lang, inClass: sc.inClass}
}

func (sc *scope) add(d ast.Decl) { sc.decls = append(sc.decls, d) }

type recordInfo struct {
	kind     ast.TypeKind
	ctx      []ast.ContextEntry
	name     string
	internal bool
}

func (r *recordInfo) typ() *ast.Type {
	return &ast.Type{Kind: r.kind, Name: r.name, Context: r.ctx, Internal: r.internal}
}

type builder struct {
	ctx      context.Context
	settings settings
	info     target.Info
	cats     map[string]category
	cxx      bool

	file     *fileState
	included map[string]bool
	files    []string

	namespaces map[string]bool
	records    map[string]*recordInfo
	typedefs   map[string]*ast.Type
	// entities maps a redeclaration key to the first declaration.
	entities map[string]*ast.FunctionDecl

	functions int
	// err is the first error met inside a record body, where the caller
	// only expects a type back.
	err error
}

func newBuilder(ctx context.Context, s settings) *builder {
	spec := lang.ForLanguage(s.language)
	if spec == nil {
		spec = lang.ForLanguage(lang.C)
	}
	return &builder{
		ctx:        ctx,
		settings:   s,
		info:       target.NewInfo(s.triple),
		cats:       categories(spec),
		cxx:        s.language == lang.CPP,
		included:   map[string]bool{},
		namespaces: map[string]bool{},
		records:    map[string]*recordInfo{},
		typedefs:   map[string]*ast.Type{},
		entities:   map[string]*ast.FunctionDecl{},
	}
}

func (b *builder) rootScope() *scope {
	if b.cxx {
		return &scope{lang: ast.CXXLanguageLinkage}
	}
	return &scope{lang: ast.CLanguageLinkage}
}

func (b *builder) loc(n *tree_sitter.Node) ast.Loc {
	return ast.Loc{File: b.file.path, Line: parser.Line(n), Column: int(n.StartPosition().Column) + 1}
}

func (b *builder) text(n *tree_sitter.Node) string {
	return parser.NodeText(n, b.file.src)
}

// items processes the named children of n as declarations of sc.
func (b *builder) items(n *tree_sitter.Node, sc *scope) error {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if err := b.ctx.Err(); err != nil {
			return err
		}
		if b.err != nil {
			return b.err
		}
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if err := b.item(child, sc); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) item(n *tree_sitter.Node, sc *scope) error {
	kind := n.Kind()
	switch b.cats[kind] {
	case catFunction:
		b.functionDefinition(n, sc)
		return b.err
	case catDeclaration:
		b.declaration(n, sc)
		return b.err
	case catNamespace:
		return b.namespace(n, sc)
	case catRecord:
		b.record(n, sc)
		return b.err
	case catLinkage:
		return b.linkageSpec(n, sc)
	case catInclude:
		return b.include(n, sc)
	case catConditional:
		return b.conditional(n, sc)
	case catSkip:
		return nil
	}
	switch kind {
	case "enum_specifier":
		b.enum(n, sc)
	case "type_definition":
		b.typedef(n, sc)
	case "alias_declaration":
		b.alias(n, sc)
	case "declaration_list", "field_declaration_list", "ERROR":
		return b.items(n, sc)
	}
	return b.err
}

// conditional splices the first branch of a preprocessor conditional.
func (b *builder) conditional(n *tree_sitter.Node, sc *scope) error {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		switch n.FieldNameForChild(uint32(i)) {
		case "name", "condition", "alternative":
			continue
		}
		if err := b.item(child, sc); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) namespace(n *tree_sitter.Node, sc *scope) error {
	var names []string
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		if nameNode.Kind() == "nested_namespace_specifier" {
			for i := uint(0); i < nameNode.NamedChildCount(); i++ {
				names = append(names, b.text(nameNode.NamedChild(i)))
			}
		} else {
			names = append(names, b.text(nameNode))
		}
	} else {
		names = []string{""}
	}
	inline := false
	if first := n.Child(0); first != nil && first.Kind() == "inline" {
		inline = true
	}

	inner := sc.child()
	inner.inClass = false
	var decls []*ast.NamespaceDecl
	for _, name := range names {
		entry := ast.ContextEntry{Kind: ast.NamespaceContext, Name: name, Anonymous: name == ""}
		inner.ctx = appendContext(inner.ctx, entry)
		b.namespaces[contextKey(inner.ctx)] = true
		decls = append(decls, &ast.NamespaceDecl{Name: name, Inline: inline, Loc: b.loc(n)})
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if err := b.items(body, inner); err != nil {
			return err
		}
	}
	// Nested namespace definitions become nested declarations.
	children := inner.decls
	for i := len(decls) - 1; i >= 0; i-- {
		decls[i].Children = children
		children = []ast.Decl{decls[i]}
	}
	sc.add(decls[0])
	return nil
}

func (b *builder) linkageSpec(n *tree_sitter.Node, sc *scope) error {
	l := ast.CXXLanguageLinkage
	if v := n.ChildByFieldName("value"); v != nil && strings.Trim(b.text(v), `"`) == "C" {
		l = ast.CLanguageLinkage
	}
	inner := sc.child()
	inner.lang = l
	if body := n.ChildByFieldName("body"); body != nil {
		var err error
		if body.Kind() == "declaration_list" {
			err = b.items(body, inner)
		} else {
			err = b.item(body, inner)
		}
		if err != nil {
			return err
		}
	}
	sc.add(&ast.LinkageSpecDecl{Lang: l, Children: inner.decls, Loc: b.loc(n)})
	return nil
}

// record handles a class, struct or union specifier. Definitions add a
// RecordDecl to sc; every named specifier yields its type.
func (b *builder) record(n *tree_sitter.Node, sc *scope) *ast.Type {
	tag := strings.TrimSuffix(n.Kind(), "_specifier")
	nameNode := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if nameNode == nil {
		// Unnamed records have no members the index cares about. A typedef
		// may still name the type.
		return &ast.Type{Kind: ast.RecordType}
	}
	if nameNode.Kind() == "template_type" {
		return b.typeSpec(nameNode, sc)
	}

	path := b.qualifiedPath(nameNode)
	if len(path) == 0 {
		return &ast.Type{Kind: ast.RecordType, Name: b.text(nameNode)}
	}
	var info *recordInfo
	if body == nil {
		if t, ok := b.lookup(path, sc.ctx); ok {
			return t
		}
		info = b.declareRecord(ast.RecordType, path, sc)
		return info.typ()
	}
	info = b.declareRecord(ast.RecordType, path, sc)

	if !b.cxx {
		// C has no class scope; only the tag is declared.
		inner := sc.child()
		b.fail(b.items(body, inner))
		sc.decls = append(sc.decls, &ast.RecordDecl{TagKind: tag, Name: info.name, Loc: b.loc(n)})
		sc.decls = append(sc.decls, inner.decls...)
		return info.typ()
	}

	inner := &scope{
		ctx:     appendContext(info.ctx, ast.ContextEntry{Kind: ast.RecordContext, Name: info.name}),
		lang:    ast.CXXLanguageLinkage,
		inClass: true,
	}
	b.fail(b.items(body, inner))
	sc.add(&ast.RecordDecl{TagKind: tag, Name: info.name, Children: inner.decls, Loc: b.loc(n)})
	return info.typ()
}

// fail keeps the first error met while building a record.
func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// declareRecord registers a record or enum named by path in sc.
func (b *builder) declareRecord(kind ast.TypeKind, path []string, sc *scope) *recordInfo {
	ctx := sc.ctx
	if !b.cxx {
		ctx = nil
	}
	if len(path) > 1 {
		ctx = b.qualify(path[:len(path)-1], sc.ctx)
	}
	name := path[len(path)-1]
	key := contextKey(appendContext(ctx, ast.ContextEntry{Name: name}))
	if info, ok := b.records[key]; ok {
		return info
	}
	info := &recordInfo{kind: kind, ctx: ctx, name: name, internal: hasAnonymous(ctx)}
	b.records[key] = info
	return info
}

func (b *builder) enum(n *tree_sitter.Node, sc *scope) *ast.Type {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ast.Builtin("int")
	}
	path := b.qualifiedPath(nameNode)
	if len(path) == 0 {
		return ast.Builtin("int")
	}
	if n.ChildByFieldName("body") == nil {
		if t, ok := b.lookup(path, sc.ctx); ok {
			return t
		}
	}
	info := b.declareRecord(ast.EnumType, path, sc)
	if n.ChildByFieldName("body") != nil {
		sc.add(&ast.OtherDecl{Kind: "enum", Name: info.name, Loc: b.loc(n)})
	}
	return info.typ()
}

func (b *builder) typedef(n *tree_sitter.Node, sc *scope) {
	base := b.specType(n, sc)
	for _, d := range parser.ChildrenByField(n, "declarator") {
		t, nameNode, _ := b.declarator(base, d, sc)
		if nameNode == nil {
			continue
		}
		name := b.text(nameNode)
		b.defineTypedef(name, t, sc)
		sc.add(&ast.OtherDecl{Kind: "typedef", Name: name, Loc: b.loc(nameNode)})
	}
}

func (b *builder) alias(n *tree_sitter.Node, sc *scope) {
	nameNode := n.ChildByFieldName("name")
	typeNode := n.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	name := b.text(nameNode)
	b.defineTypedef(name, b.typeDescriptor(typeNode, sc), sc)
	sc.add(&ast.OtherDecl{Kind: "typedef", Name: name, Loc: b.loc(nameNode)})
}

func (b *builder) defineTypedef(name string, t *ast.Type, sc *scope) {
	if t.Kind == ast.RecordType && t.Name == "" {
		// typedef struct { ... } name; gives the record a name for linkage.
		c := *t
		c.Name = name
		c.Context = sc.ctx
		c.Internal = hasAnonymous(sc.ctx)
		t = &c
	}
	ctx := sc.ctx
	if !b.cxx {
		ctx = nil
	}
	b.typedefs[contextKey(appendContext(ctx, ast.ContextEntry{Name: name}))] = t
}

func appendContext(ctx []ast.ContextEntry, e ast.ContextEntry) []ast.ContextEntry {
	out := make([]ast.ContextEntry, 0, len(ctx)+1)
	out = append(out, ctx...)
	return append(out, e)
}

func hasAnonymous(ctx []ast.ContextEntry) bool {
	for _, c := range ctx {
		if c.Anonymous {
			return true
		}
	}
	return false
}

// contextKey spells a context as a lookup key.
func contextKey(ctx []ast.ContextEntry) string {
	parts := make([]string, len(ctx))
	for i, c := range ctx {
		switch {
		case c.Anonymous:
			parts[i] = "(anonymous)"
		case c.Kind == ast.FunctionContext:
			parts[i] = c.Name + "()"
		default:
			parts[i] = c.Name
		}
	}
	return strings.Join(parts, "::")
}
