// Package mangle computes linker-level function identities following the
// Itanium C++ ABI.
//
// Only the subset reachable from non-template declarations is implemented:
// nested names, local names of members of local classes, cv-qualified
// members, constructors and destructors (complete-object variants),
// operators, conversion functions, builtin and compound types, template-id
// parameter types and substitutions. Local names carry no discriminator.
package mangle

import (
	"strconv"
	"strings"

	"github.com/DeusData/ctu-fnmap/internal/ast"
)

// Itanium mangles function declarations per the Itanium C++ ABI. Mangling
// is forced for every prototyped function, including C functions, so each
// one gets a flat, directly indexable symbol.
type Itanium struct{}

// Mangle returns the symbol of fn. It never fails.
func (Itanium) Mangle(fn *ast.FunctionDecl) string {
	if !shouldMangle(fn) {
		return fn.Name
	}
	m := &mangler{subs: map[string]int{}}
	m.buf.WriteString("_Z")
	m.mangleFunctionName(fn)
	m.mangleBareFunctionType(fn.Params, fn.Variadic)
	return m.buf.String()
}

// shouldMangle keeps "main" and unprototyped C functions unmangled; every
// other function is mangled regardless of its language linkage.
func shouldMangle(fn *ast.FunctionDecl) bool {
	if fn.Kind == ast.OrdinaryFunction && fn.Name == "main" && len(fn.Context) == 0 {
		return false
	}
	return fn.HasPrototype
}

type mangler struct {
	buf  strings.Builder
	subs map[string]int
}

func (m *mangler) addSubstitution(key string) {
	if _, ok := m.subs[key]; ok {
		return
	}
	m.subs[key] = len(m.subs)
}

func (m *mangler) trySubstitution(key string) bool {
	idx, ok := m.subs[key]
	if !ok {
		return false
	}
	m.buf.WriteString(substitutionCode(idx))
	return true
}

// substitutionCode encodes the n-th substitution: S_, S0_, S1_, ... S9_,
// SA_, ... SZ_, S10_, ...
func substitutionCode(n int) string {
	if n == 0 {
		return "S_"
	}
	return "S" + strings.ToUpper(strconv.FormatInt(int64(n-1), 36)) + "_"
}

func sourceName(name string) string {
	return strconv.Itoa(len(name)) + name
}

const anonymousNamespace = "_GLOBAL__N_1"

func isStd(c ast.ContextEntry) bool {
	return c.Kind == ast.NamespaceContext && !c.Anonymous && c.Name == "std"
}

// prefixKey identifies a scope prefix. Record types share the key of the
// prefix naming them, so A in "A::f(A*)" substitutes.
func prefixKey(ctx []ast.ContextEntry) string {
	parts := make([]string, len(ctx))
	for i, c := range ctx {
		switch {
		case c.Anonymous:
			parts[i] = "(anon)"
		case c.Kind == ast.FunctionContext:
			parts[i] = c.Name + "()"
		default:
			parts[i] = c.Name
		}
	}
	return "Q:" + strings.Join(parts, "::")
}

// localIndex returns the position of the innermost function scope in ctx,
// or -1 when ctx is not local to a function.
func localIndex(ctx []ast.ContextEntry) int {
	for i := len(ctx) - 1; i >= 0; i-- {
		if ctx[i].Kind == ast.FunctionContext {
			return i
		}
	}
	return -1
}

// mangleEnclosing emits the "Z <encoding> E" head of a local name.
func (m *mangler) mangleEnclosing(fn *ast.FunctionDecl) {
	m.buf.WriteString("Z")
	if shouldMangle(fn) {
		m.mangleFunctionName(fn)
		m.mangleBareFunctionType(fn.Params, fn.Variadic)
	} else {
		m.buf.WriteString(sourceName(fn.Name))
	}
	m.buf.WriteString("E")
}

func (m *mangler) mangleFunctionName(fn *ast.FunctionDecl) {
	ctx := fn.Context
	if k := localIndex(ctx); k >= 0 {
		m.mangleEnclosing(ctx[k].Function)
		if len(ctx) == k+1 {
			m.mangleUnqualifiedName(fn)
			return
		}
		m.mangleNestedName(fn, k+1)
		return
	}
	switch {
	case len(ctx) == 0:
		m.mangleUnqualifiedName(fn)
	case len(ctx) == 1 && isStd(ctx[0]):
		m.buf.WriteString("St")
		m.mangleUnqualifiedName(fn)
	default:
		m.mangleNestedName(fn, 0)
	}
}

// mangleNestedName emits N [qualifiers] <prefix> <name> E for the scopes of
// fn from ctx[base] on.
func (m *mangler) mangleNestedName(fn *ast.FunctionDecl, base int) {
	m.buf.WriteString("N")
	if fn.IsMember() {
		if fn.Volatile {
			m.buf.WriteString("V")
		}
		if fn.Const {
			m.buf.WriteString("K")
		}
		switch fn.RefQualifier {
		case "&":
			m.buf.WriteString("R")
		case "&&":
			m.buf.WriteString("O")
		}
	}
	m.manglePrefix(fn.Context, base)
	m.mangleUnqualifiedName(fn)
	m.buf.WriteString("E")
}

// manglePrefix emits the scope chain from ctx[base] on, reusing the longest
// prefix already in the substitution table and registering every new
// prefix.
func (m *mangler) manglePrefix(ctx []ast.ContextEntry, base int) {
	start := base
	for k := len(ctx); k > base; k-- {
		if idx, ok := m.subs[prefixKey(ctx[:k])]; ok {
			m.buf.WriteString(substitutionCode(idx))
			start = k
			break
		}
	}
	for k := start; k < len(ctx); k++ {
		c := ctx[k]
		if k == 0 && isStd(c) {
			m.buf.WriteString("St")
			continue
		}
		if c.Anonymous {
			m.buf.WriteString(sourceName(anonymousNamespace))
		} else {
			m.buf.WriteString(sourceName(c.Name))
		}
		m.addSubstitution(prefixKey(ctx[:k+1]))
	}
}

func (m *mangler) mangleUnqualifiedName(fn *ast.FunctionDecl) {
	switch fn.Kind {
	case ast.ConstructorFunction:
		m.buf.WriteString("C1")
	case ast.DestructorFunction:
		m.buf.WriteString("D1")
	case ast.ConversionFunction:
		m.buf.WriteString("cv")
		m.mangleType(fn.ConversionType)
	default:
		if fn.Operator != "" {
			m.buf.WriteString(operatorCode(fn.Operator, operatorArity(fn)))
			return
		}
		if fileLocal(fn) {
			m.buf.WriteString("L")
		}
		m.buf.WriteString(sourceName(fn.Name))
	}
}

// fileLocal reports a static function at namespace scope outside any
// unnamed namespace. Such names carry the "L" prefix.
func fileLocal(fn *ast.FunctionDecl) bool {
	if !fn.Static || fn.IsMember() || fn.Linkage != ast.InternalLinkage {
		return false
	}
	for _, c := range fn.Context {
		if c.Anonymous {
			return false
		}
	}
	return true
}

// operatorArity counts operands, including the implicit object of members.
func operatorArity(fn *ast.FunctionDecl) int {
	n := len(fn.Params)
	if fn.IsMember() {
		n++
	}
	return n
}

func (m *mangler) mangleBareFunctionType(params []*ast.Type, variadic bool) {
	if len(params) == 0 && !variadic {
		m.buf.WriteString("v")
		return
	}
	for _, p := range params {
		m.mangleType(parameterType(p))
	}
	if variadic {
		m.buf.WriteString("z")
	}
}

// parameterType applies the parameter adjustments that take part in the
// function signature: arrays and functions decay to pointers and top-level
// cv qualifiers are dropped.
func parameterType(t *ast.Type) *ast.Type {
	switch t.Kind {
	case ast.ArrayType:
		return ast.PointerTo(t.Elem)
	case ast.FunctionType:
		return ast.PointerTo(t.Unqualified())
	}
	return t.Unqualified()
}

func (m *mangler) mangleType(t *ast.Type) {
	if t == nil {
		m.buf.WriteString("v")
		return
	}
	if t.Const || t.Volatile || t.Restrict {
		key := typeKey(t)
		if m.trySubstitution(key) {
			return
		}
		if t.Restrict {
			m.buf.WriteString("r")
		}
		if t.Volatile {
			m.buf.WriteString("V")
		}
		if t.Const {
			m.buf.WriteString("K")
		}
		m.mangleType(t.Unqualified())
		m.addSubstitution(key)
		return
	}

	if t.Kind == ast.BuiltinType {
		m.buf.WriteString(builtinCode(t.Name))
		return
	}

	key := typeKey(t)
	if m.trySubstitution(key) {
		return
	}
	switch t.Kind {
	case ast.PointerType:
		m.buf.WriteString("P")
		m.mangleType(t.Elem)
	case ast.LValueReferenceType:
		m.buf.WriteString("R")
		m.mangleType(t.Elem)
	case ast.RValueReferenceType:
		m.buf.WriteString("O")
		m.mangleType(t.Elem)
	case ast.ArrayType:
		m.buf.WriteString("A_")
		m.mangleType(t.Elem)
	case ast.FunctionType:
		m.buf.WriteString("F")
		m.mangleType(t.Elem)
		m.mangleBareFunctionType(t.Params, t.Variadic)
		m.buf.WriteString("E")
	case ast.RecordType, ast.EnumType:
		if code, ok := stdAbbreviation(t); ok {
			m.buf.WriteString(code)
			return
		}
		m.mangleTypeName(t)
		// mangleTypeName registers nested names through their prefix key.
		m.addSubstitution(key)
		return
	case ast.TemplateSpecializationType:
		m.mangleTemplateSpecialization(t)
	}
	m.addSubstitution(key)
}

// mangleTypeName emits the name of a record or enum type.
func (m *mangler) mangleTypeName(t *ast.Type) {
	ctx := t.Context
	full := append(append([]ast.ContextEntry{}, ctx...), ast.ContextEntry{Kind: ast.RecordContext, Name: t.Name})
	if k := localIndex(ctx); k >= 0 {
		m.mangleEnclosing(ctx[k].Function)
		if len(ctx) == k+1 {
			m.buf.WriteString(sourceName(t.Name))
			return
		}
		m.buf.WriteString("N")
		m.manglePrefix(full, k+1)
		m.buf.WriteString("E")
		return
	}
	switch {
	case len(ctx) == 0:
		m.buf.WriteString(sourceName(t.Name))
	case len(ctx) == 1 && isStd(ctx[0]):
		m.buf.WriteString("St")
		m.buf.WriteString(sourceName(t.Name))
	default:
		m.buf.WriteString("N")
		m.manglePrefix(full, 0)
		m.buf.WriteString("E")
	}
}

// mangleTemplateSpecialization emits a template-id. The template name is a
// substitution candidate of its own, and nested template-ids keep their
// argument list inside the N...E wrapper.
func (m *mangler) mangleTemplateSpecialization(t *ast.Type) {
	full := append(append([]ast.ContextEntry{}, t.Context...), ast.ContextEntry{Kind: ast.RecordContext, Name: t.Name})
	ctx := t.Context
	nested := len(ctx) > 1 || (len(ctx) == 1 && !isStd(ctx[0]))
	if nested {
		m.buf.WriteString("N")
		m.manglePrefix(full, 0)
	} else if !m.trySubstitution(prefixKey(full)) {
		if len(ctx) == 1 {
			m.buf.WriteString("St")
		}
		m.buf.WriteString(sourceName(t.Name))
		m.addSubstitution(prefixKey(full))
	}
	m.buf.WriteString("I")
	for _, a := range t.Args {
		m.mangleType(a)
	}
	m.buf.WriteString("E")
	if nested {
		m.buf.WriteString("E")
	}
}

// typeKey is a canonical spelling of t used to find substitutions.
func typeKey(t *ast.Type) string {
	if t == nil {
		return "v"
	}
	var sb strings.Builder
	if t.Restrict {
		sb.WriteString("r")
	}
	if t.Volatile {
		sb.WriteString("V")
	}
	if t.Const {
		sb.WriteString("K")
	}
	switch t.Kind {
	case ast.BuiltinType:
		sb.WriteString(builtinCode(t.Name))
	case ast.PointerType:
		sb.WriteString("P" + typeKey(t.Elem))
	case ast.LValueReferenceType:
		sb.WriteString("R" + typeKey(t.Elem))
	case ast.RValueReferenceType:
		sb.WriteString("O" + typeKey(t.Elem))
	case ast.ArrayType:
		sb.WriteString("A" + typeKey(t.Elem))
	case ast.FunctionType:
		sb.WriteString("F" + typeKey(t.Elem))
		for _, p := range t.Params {
			sb.WriteString("," + typeKey(parameterType(p)))
		}
		if t.Variadic {
			sb.WriteString(",z")
		}
		sb.WriteString("E")
	case ast.RecordType, ast.EnumType:
		full := append(append([]ast.ContextEntry{}, t.Context...), ast.ContextEntry{Name: t.Name})
		sb.WriteString(prefixKey(full))
	case ast.TemplateSpecializationType:
		full := append(append([]ast.ContextEntry{}, t.Context...), ast.ContextEntry{Name: t.Name})
		sb.WriteString(prefixKey(full) + "<")
		for _, a := range t.Args {
			sb.WriteString(typeKey(a) + ",")
		}
		sb.WriteString(">")
	}
	return sb.String()
}

// stdAbbreviation handles the std typedefs whose mangling the ABI
// abbreviates. The expansion of std::string into basic_string<...> depends
// on the standard library headers, so the abbreviated form is used.
func stdAbbreviation(t *ast.Type) (string, bool) {
	if len(t.Context) != 1 || !isStd(t.Context[0]) {
		return "", false
	}
	switch t.Name {
	case "string":
		return "Ss", true
	case "istream":
		return "Si", true
	case "ostream":
		return "So", true
	case "iostream":
		return "Sd", true
	}
	return "", false
}

var builtinCodes = map[string]string{
	"void":               "v",
	"bool":               "b",
	"_Bool":              "b",
	"char":               "c",
	"signed char":        "a",
	"unsigned char":      "h",
	"short":              "s",
	"unsigned short":     "t",
	"int":                "i",
	"unsigned int":       "j",
	"long":               "l",
	"unsigned long":      "m",
	"long long":          "x",
	"unsigned long long": "y",
	"__int128":           "n",
	"unsigned __int128":  "o",
	"float":              "f",
	"double":             "d",
	"long double":        "e",
	"__float128":         "g",
	"wchar_t":            "w",
	"char8_t":            "Du",
	"char16_t":           "Ds",
	"char32_t":           "Di",
	"nullptr_t":          "Dn",
	"decltype(nullptr)":  "Dn",
	"auto":               "Da",
	"_Float16":           "DF16_",
}

// builtinCode returns the mangling of a builtin type spelling. Unknown
// spellings are vendor extended types.
func builtinCode(name string) string {
	if code, ok := builtinCodes[name]; ok {
		return code
	}
	return "u" + sourceName(name)
}

var binaryOperators = map[string]string{
	"+": "pl", "-": "mi", "*": "ml", "&": "an",
}

var unaryOperators = map[string]string{
	"+": "ps", "-": "ng", "*": "de", "&": "ad",
}

var operatorCodes = map[string]string{
	"new": "nw", "new[]": "na", "delete": "dl", "delete[]": "da",
	"/": "dv", "%": "rm", "|": "or", "^": "eo", "~": "co",
	"=": "aS", "<": "lt", ">": "gt",
	"+=": "pL", "-=": "mI", "*=": "mL", "/=": "dV", "%=": "rM",
	"&=": "aN", "|=": "oR", "^=": "eO",
	"<<": "ls", ">>": "rs", "<<=": "lS", ">>=": "rS",
	"==": "eq", "!=": "ne", "<=": "le", ">=": "ge", "<=>": "ss",
	"!": "nt", "&&": "aa", "||": "oo", "++": "pp", "--": "mm",
	",": "cm", "->*": "pm", "->": "pt", "()": "cl", "[]": "ix",
	"co_await": "aw",
}

// operatorCode maps an operator token to its two-letter code. The four
// operators that are both unary and binary are told apart by arity.
func operatorCode(op string, arity int) string {
	if arity == 1 {
		if code, ok := unaryOperators[op]; ok {
			return code
		}
	}
	if code, ok := binaryOperators[op]; ok {
		return code
	}
	if code, ok := operatorCodes[op]; ok {
		return code
	}
	return "v0" + sourceName(op)
}
