package frontend

import (
	"strings"

	"github.com/DeusData/ctu-fnmap/internal/ast"
)

// compilerBuiltinID marks names the compiler always provides itself.
const compilerBuiltinID = 1

var compilerBuiltinPrefixes = []string{"__builtin_", "__sync_", "__atomic_"}

// libraryBuiltins are C library functions the compiler recognizes by name
// when they are declared at file scope with C language linkage.
var libraryBuiltins = []string{
	"abort", "abs", "alloca", "calloc", "ceil", "cos", "exit", "exp",
	"fabs", "floor", "fmod", "fprintf", "fputc", "fputs", "free", "fscanf",
	"fwrite", "getchar", "isalnum", "isalpha", "isdigit", "islower",
	"isspace", "isupper", "labs", "llabs", "log", "longjmp", "malloc",
	"memchr", "memcmp", "memcpy", "memmove", "memset", "pow", "printf",
	"putchar", "puts", "realloc", "round", "scanf", "setjmp", "sin",
	"snprintf", "sprintf", "sqrt", "sscanf", "strcat", "strchr", "strcmp",
	"strcpy", "strcspn", "strdup", "strlen", "strncat", "strncmp",
	"strncpy", "strndup", "strpbrk", "strrchr", "strspn", "strstr", "tan",
	"tolower", "toupper", "vfprintf", "vprintf", "vsnprintf", "vsprintf",
	"_exit",
}

var libraryBuiltinIDs = func() map[string]int {
	m := make(map[string]int, len(libraryBuiltins))
	for i, name := range libraryBuiltins {
		m[name] = compilerBuiltinID + 1 + i
	}
	return m
}()

// builtinID returns the builtin identifier of fn, or 0.
func (b *builder) builtinID(fn *ast.FunctionDecl) int {
	for _, p := range compilerBuiltinPrefixes {
		if strings.HasPrefix(fn.Name, p) {
			return compilerBuiltinID
		}
	}
	if b.settings.noBuiltin || len(fn.Context) != 0 || fn.LangLinkage != ast.CLanguageLinkage {
		return 0
	}
	return libraryBuiltinIDs[fn.Name]
}
