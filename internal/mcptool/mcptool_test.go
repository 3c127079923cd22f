package mcptool

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgallion1/docoutline/internal/layout"
	"github.com/dgallion1/docoutline/internal/pipeline"
)

var testMCPImpl = &mcp.Implementation{Name: "docoutline-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(pipeline.NewEngine(layout.DefaultConfig(), nil, 1, 0, log), "test")

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if err := result.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func TestOutlineDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	src := "# Field Guide\n\nAn opening paragraph that is long enough to count as ordinary body text.\n\n" +
		"## Getting Started\n\nInstall the tool and run it against a folder of documents to begin.\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	session := mcpSession(t)
	text := resultText(t, callTool(t, session, "outline_document", map[string]any{"path": path}))

	var resp outlineResp
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Title != "Field Guide" {
		t.Errorf("title = %q", resp.Title)
	}
	if len(resp.Outline) != 1 || resp.Outline[0].Text != "Getting Started" || resp.Outline[0].Page != 1 {
		t.Errorf("outline = %+v", resp.Outline)
	}
	if resp.Escalation != "no_classifier" {
		t.Errorf("escalation = %q", resp.Escalation)
	}
}

func TestOutlineDocumentErrors(t *testing.T) {
	session := mcpSession(t)
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing path", map[string]any{}},
		{"no such file", map[string]any{"path": filepath.Join(t.TempDir(), "missing.pdf")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, session, "outline_document", tt.args)
			if result.GetError() == nil {
				t.Error("expected tool error")
			}
		})
	}
}

func TestOutlineDocumentUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	os.WriteFile(path, []byte("PK"), 0o644)

	session := mcpSession(t)
	if result := callTool(t, session, "outline_document", map[string]any{"path": path}); result.GetError() == nil {
		t.Error("expected tool error for unsupported extension")
	}
}

func TestOutlineFormats(t *testing.T) {
	session := mcpSession(t)
	text := resultText(t, callTool(t, session, "outline_formats", map[string]any{}))

	var resp struct {
		Extensions []string `json:"extensions"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]bool{".pdf": false, ".md": false, ".docx": false, ".html": false}
	for _, ext := range resp.Extensions {
		if _, ok := want[ext]; ok {
			want[ext] = true
		}
	}
	for ext, seen := range want {
		if !seen {
			t.Errorf("missing extension %s in %v", ext, resp.Extensions)
		}
	}
}
