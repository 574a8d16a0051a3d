// Command ast_debug prints the declaration tree and the function identities
// of one translation unit:
//
//	ast_debug <source> [compile args...]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DeusData/ctu-fnmap/internal/ast"
	"github.com/DeusData/ctu-fnmap/internal/frontend"
	"github.com/DeusData/ctu-fnmap/internal/mangle"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ast_debug <source> [compile args...]")
		os.Exit(2)
	}
	tu, err := frontend.Parse(context.Background(), frontend.Job{File: os.Args[1], Args: os.Args[2:]})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	fmt.Printf("=== %s (%s, %s) ===\n", tu.MainFile, tu.Language, tu.Target.Tag())
	for _, f := range tu.Files[1:] {
		fmt.Println("include", f)
	}
	fmt.Print(ast.Dump(tu.Root))

	fmt.Println("\n=== IDENTITIES ===")
	m := mangle.Itanium{}
	ast.Walk(tu.Root, func(fn *ast.FunctionDecl) {
		body := "decl"
		if fn.HasBody() {
			body = "body"
		}
		fmt.Printf("%-40s %-16s %-4s %s\n", m.Mangle(fn), fn.Linkage, body, fn.QualifiedName())
	})
}
