package fnmap

import (
	"context"
	"errors"

	"github.com/DeusData/ctu-fnmap/internal/ast"
)

// Stats counts the records one TU produced.
type Stats struct {
	Defined  int
	External int
}

// Run maps one translation unit. Configuration problems are reported
// before anything is buffered. Once the mapper exists, the buffered records
// are flushed on every return path, including traversal cancellation, and a
// flush failure is joined into the returned error.
func Run(ctx context.Context, cfg Config, tu *ast.TranslationUnit, mangler Mangler, sinks Sinks) (stats Stats, err error) {
	m, err := NewMapper(cfg, tu, mangler)
	if err != nil {
		return Stats{}, err
	}
	defer func() {
		err = errors.Join(err, m.Flush(sinks))
		stats = Stats{Defined: len(m.defined), External: len(m.external)}
	}()

	return Stats{}, ast.WalkErr(tu.Root, func(fn *ast.FunctionDecl) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.Visit(fn)
		return nil
	})
}
