// Package mcptool exposes the outline engine as MCP tools.
package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/extract"
	"github.com/dgallion1/docoutline/internal/pipeline"
)

// NewServer creates an MCP server with every docoutline tool registered.
func NewServer(engine *pipeline.Engine, version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "docoutline", Version: version}, nil)
	Register(srv, engine)
	return srv
}

// Serve runs the MCP server over stdin/stdout until ctx is done or the
// client disconnects.
func Serve(ctx context.Context, engine *pipeline.Engine, version string) error {
	return NewServer(engine, version).Run(ctx, &mcp.StdioTransport{})
}

// Register adds the outline tools to srv.
func Register(srv *mcp.Server, engine *pipeline.Engine) {
	registerOutlineTool(srv, engine)
	registerFormatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

type outlineReq struct {
	Path string `json:"path"`
}

// outlineResp is the export plus what the engine decided along the way.
type outlineResp struct {
	Title        string                `json:"title"`
	Outline      []doctree.ExportEntry `json:"outline"`
	Escalation   string                `json:"escalation"`
	ExtractError string                `json:"extract_error,omitempty"`
}

func registerOutlineTool(srv *mcp.Server, engine *pipeline.Engine) {
	tool := &mcp.Tool{
		Name:        "outline_document",
		Description: "Build a heading outline (title, H1-H3 with 1-based pages) for a document file.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to outline"},
		}, []string{"path"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r outlineReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		if strings.TrimSpace(r.Path) == "" {
			return toolError(errors.New("path is required")), nil
		}

		f, err := os.Open(r.Path)
		if err != nil {
			return toolError(err), nil
		}
		defer f.Close()

		res, err := engine.OutlineReader(ctx, f, r.Path)
		if err != nil {
			return toolError(err), nil
		}
		return toolJSON(outlineResp{
			Title:        res.Export.Title,
			Outline:      res.Export.Outline,
			Escalation:   string(res.Escalation.Outcome),
			ExtractError: res.ExtractErr,
		})
	})
}

func registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "outline_formats",
		Description: "List the file extensions outline_document accepts.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolJSON(map[string]any{"extensions": extract.SupportedExtensions()})
	})
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Errorf("marshal: %w", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
