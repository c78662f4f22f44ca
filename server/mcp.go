package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/petal-labs/petaltools/tool"
)

const mcpQueryTool = "query"

// newMCPServer exposes every registered tool as an MCP tool that dispatches
// through the same Dispatcher as the HTTP endpoints. When a router is
// configured and no tool is already named "query", a free-text query tool
// is added as well.
func (s *Server) newMCPServer() *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer(
		"petaltools",
		s.version,
		mcpserver.WithToolCapabilities(true),
	)
	for _, desc := range s.registry.Descriptors() {
		srv.AddTool(buildMCPTool(desc), s.mcpToolHandler(desc.Name))
	}
	if s.router != nil && !s.registry.Has(mcpQueryTool) {
		srv.AddTool(mcp.NewTool(mcpQueryTool,
			mcp.WithDescription("Route a natural-language request to the best matching tool."),
			mcp.WithString("query", mcp.Description("What you want done, in plain words."), mcp.Required()),
		), s.mcpQueryHandler)
	}
	return srv
}

func (s *Server) newMCPHandler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.newMCPServer(),
		mcpserver.WithStateLess(true),
	)
}

// buildMCPTool converts a descriptor into an mcp.Tool. Trusted parameters
// are hidden; opaque parameters are advertised as strings.
func buildMCPTool(desc tool.Descriptor) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(desc.Description)}
	for _, p := range desc.Parameters {
		if p.Trusted {
			continue
		}
		opts = append(opts, buildParamOption(p))
	}
	return mcp.NewTool(desc.Name, opts...)
}

func buildParamOption(p tool.ParameterSpec) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if p.Description != "" {
		opts = append(opts, mcp.Description(p.Description))
	}
	if p.Required() {
		opts = append(opts, mcp.Required())
	}

	switch p.Type {
	case tool.TypeInteger, tool.TypeFloat:
		if f, ok := numericDefault(p.Default); ok {
			opts = append(opts, mcp.DefaultNumber(f))
		}
		return mcp.WithNumber(p.Name, opts...)
	case tool.TypeBoolean:
		if b, ok := p.Default.(bool); ok {
			opts = append(opts, mcp.DefaultBool(b))
		}
		return mcp.WithBoolean(p.Name, opts...)
	default:
		if str, ok := p.Default.(string); ok {
			opts = append(opts, mcp.DefaultString(str))
		}
		return mcp.WithString(p.Name, opts...)
	}
}

func numericDefault(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func (s *Server) mcpToolHandler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := s.dispatcher.Dispatch(ctx, name, req.GetArguments())
		return envelopeResult(env), nil
	}
}

func (s *Server) mcpQueryHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, _ := req.GetArguments()["query"].(string)
	if strings.TrimSpace(query) == "" {
		return envelopeResult(tool.Failure(tool.KindBadParameters, "query is empty", map[string]any{"parameter": "query"})), nil
	}
	return envelopeResult(s.router.Route(ctx, query)), nil
}

// envelopeResult renders env as JSON text content; failures set IsError.
func envelopeResult(env tool.Envelope) *mcp.CallToolResult {
	data, err := json.Marshal(env)
	if err != nil {
		data, _ = json.Marshal(tool.Failure(tool.KindToolExecution, "result is not JSON-serializable: "+err.Error(), nil))
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(string(data))}, IsError: true}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: !env.OK,
	}
}
