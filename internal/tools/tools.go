// Package tools serves the CTU index to analyzers over MCP.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/ctu-fnmap/internal/store"
)

// Version is reported in the MCP implementation info.
var Version = "dev"

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp    *mcp.Server
	store  *store.Store
	ctuDir string
}

// NewServer creates a new MCP server with all tools registered. Function
// bodies are read from the artifacts under ctuDir.
func NewServer(s *store.Store, ctuDir string) *Server {
	srv := &Server{
		store:  s,
		ctuDir: ctuDir,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "ctu-fnmap",
				Version: Version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "lookup_function",
		Description: "Find the translation unit that defines a function identity. Takes the mangled symbol and optionally its architecture. Returns the artifact locator per architecture and, when consumer_arch is given, whether the definition may be imported into a TU of that architecture.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol": {
					"type": "string",
					"description": "Mangled function symbol (e.g. '_ZN2ns1A1fEv')"
				},
				"arch": {
					"type": "string",
					"description": "Architecture tag (e.g. 'x86_64', 'arm'). If omitted, every architecture matches."
				},
				"consumer_arch": {
					"type": "string",
					"description": "Architecture of the importing TU"
				}
			},
			"required": ["symbol"]
		}`),
	}, s.handleLookupFunction)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_functions",
		Description: "Search defined function symbols with a regular expression. Returns identities and artifact locators.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {
					"type": "string",
					"description": "Go regular expression matched against the mangled symbol"
				},
				"limit": {
					"type": "integer",
					"description": "Maximum results (default 100)"
				}
			},
			"required": ["pattern"]
		}`),
	}, s.handleSearchFunctions)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_function_body",
		Description: "Return the source body of a defined function from its TU artifact, with the file and line range it was written in. Reports whether the source changed since the artifact was built.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol": {
					"type": "string",
					"description": "Mangled function symbol"
				},
				"arch": {
					"type": "string",
					"description": "Architecture tag. Required when the symbol is defined for several architectures."
				}
			},
			"required": ["symbol"]
		}`),
	}, s.handleGetFunctionBody)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_stats",
		Description: "Summarize the CTU index: defined identities, external references, how many of them resolve, conflicts, and when the index was built.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleIndexStats)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_conflicts",
		Description: "List identities whose body appears in the main file of more than one translation unit, with every defining artifact.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListConflicts)
}

// jsonResult marshals data as indented JSON into a tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}
