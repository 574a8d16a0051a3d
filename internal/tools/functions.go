package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/ctu-fnmap/internal/artifact"
	"github.com/DeusData/ctu-fnmap/internal/index"
	"github.com/DeusData/ctu-fnmap/internal/store"
)

func functionInfo(f store.Function) map[string]any {
	return map[string]any{
		"identity":     f.Identity.String(),
		"symbol":       f.Identity.Symbol,
		"arch":         f.Identity.Arch,
		"source":       f.Locator.SourcePath,
		"artifact":     f.Locator.String() + artifact.Ext,
		"in_main_file": f.InMainFile,
		"referenced":   f.Referenced,
	}
}

func (s *Server) handleLookupFunction(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	symbol := getStringArg(args, "symbol")
	if symbol == "" {
		return errResult("symbol is required"), nil
	}
	fns, err := s.store.LookupFunction(symbol, getStringArg(args, "arch"))
	if err != nil {
		return errResult(fmt.Sprintf("lookup: %v", err)), nil
	}
	if len(fns) == 0 {
		return errResult(fmt.Sprintf("function not found: %s%s", symbol, s.didYouMean(symbol))), nil
	}

	consumer := getStringArg(args, "consumer_arch")
	results := make([]map[string]any, 0, len(fns))
	for _, f := range fns {
		info := functionInfo(f)
		if consumer != "" {
			if err := index.CheckArch(f.Identity, consumer); err != nil {
				info["importable"] = false
				info["reason"] = err.Error()
			} else {
				info["importable"] = true
			}
		}
		results = append(results, info)
	}
	return jsonResult(map[string]any{"symbol": symbol, "definitions": results}), nil
}

func (s *Server) handleSearchFunctions(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	pattern := getStringArg(args, "pattern")
	if pattern == "" {
		return errResult("pattern is required"), nil
	}
	fns, err := s.store.SearchFunctions(pattern, getIntArg(args, "limit", 100))
	if err != nil {
		return errResult(err.Error()), nil
	}
	results := make([]map[string]any, 0, len(fns))
	for _, f := range fns {
		results = append(results, functionInfo(f))
	}
	return jsonResult(map[string]any{"pattern": pattern, "count": len(results), "results": results}), nil
}

func (s *Server) handleGetFunctionBody(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	symbol := getStringArg(args, "symbol")
	if symbol == "" {
		return errResult("symbol is required"), nil
	}
	fns, err := s.store.LookupFunction(symbol, getStringArg(args, "arch"))
	if err != nil {
		return errResult(fmt.Sprintf("lookup: %v", err)), nil
	}
	switch len(fns) {
	case 0:
		return errResult(fmt.Sprintf("function not found: %s", symbol)), nil
	case 1:
	default:
		return errResult(fmt.Sprintf("%s is defined for %d architectures; pass arch", symbol, len(fns))), nil
	}

	f := fns[0]
	a, err := artifact.Load(s.ctuDir, f.Locator)
	if err != nil {
		return errResult(fmt.Sprintf("load artifact: %v", err)), nil
	}
	def, ok := a.Function(symbol)
	if !ok {
		return errResult(fmt.Sprintf("%s not in artifact %s", symbol, f.Locator)), nil
	}
	stale, _ := a.Stale()
	return jsonResult(map[string]any{
		"identity":   f.Identity.String(),
		"name":       def.Name,
		"linkage":    def.Linkage,
		"file_path":  def.File,
		"start_line": def.StartLine,
		"end_line":   def.EndLine,
		"body":       def.Body,
		"stale":      stale,
	}), nil
}

func (s *Server) handleIndexStats(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.store.Stats()
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"functions":     st.Functions,
		"external_refs": st.ExternalRefs,
		"resolved":      st.Resolved,
		"unresolved":    st.ExternalRefs - st.Resolved,
		"conflicts":     st.Conflicts,
		"ctu_dir":       st.CTUDir,
		"indexed_at":    st.IndexedAt,
	}), nil
}

func (s *Server) handleListConflicts(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conflicts, err := s.store.Conflicts()
	if err != nil {
		return errResult(err.Error()), nil
	}
	results := make([]map[string]any, 0, len(conflicts))
	for _, c := range conflicts {
		locs := make([]string, len(c.Locators))
		for i, l := range c.Locators {
			locs[i] = l.String() + artifact.Ext
		}
		results = append(results, map[string]any{"identity": c.Identity.String(), "artifacts": locs})
	}
	return jsonResult(map[string]any{"count": len(results), "conflicts": results}), nil
}

// didYouMean lists close matches for an unknown symbol, or returns "".
func (s *Server) didYouMean(symbol string) string {
	syms, err := s.store.Symbols()
	if err != nil {
		return ""
	}
	return index.FormatSuggestions(index.Suggest(symbol, syms, 3))
}
