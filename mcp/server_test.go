package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// connect starts srv on an in-memory transport and returns a client session
// attached to it.
func connect(t *testing.T, srv *Server) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverT, clientT := mcpsdk.NewInMemoryTransports()

	ss, err := srv.MCPServer().Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func newTestServer(t *testing.T, root string) *Server {
	t.Helper()
	ex, _ := newTestExtractor(t, root)
	return NewServer(NewRegistry(ex), "test")
}

// requireWireError asserts err carries a JSON-RPC error with the given code
// and message.
func requireWireError(t *testing.T, err error, code int64, msg string) {
	t.Helper()
	var wire *jsonrpc.Error
	if !errors.As(err, &wire) {
		t.Fatalf("error = %v (%T), want *jsonrpc.Error", err, err)
	}
	if wire.Code != code {
		t.Errorf("code = %d, want %d", wire.Code, code)
	}
	if msg != "" && wire.Message != msg {
		t.Errorf("message = %q, want %q", wire.Message, msg)
	}
}

func TestServerInitialize(t *testing.T) {
	cs := connect(t, newTestServer(t, t.TempDir()))

	res := cs.InitializeResult()
	if res == nil || res.ServerInfo == nil {
		t.Fatal("no initialize result")
	}
	if res.ServerInfo.Name != ServerName {
		t.Errorf("server name = %q, want %q", res.ServerInfo.Name, ServerName)
	}
	if res.Capabilities == nil || res.Capabilities.Tools == nil {
		t.Error("tools capability not advertised")
	}
}

func TestServerListTools(t *testing.T) {
	cs := connect(t, newTestServer(t, t.TempDir()))

	var res *mcpsdk.ListToolsResult
	for range 3 {
		var err error
		res, err = cs.ListTools(context.Background(), &mcpsdk.ListToolsParams{})
		if err != nil {
			t.Fatalf("ListTools: %v", err)
		}
		if len(res.Tools) != 2 {
			t.Fatalf("got %d tools, want 2", len(res.Tools))
		}
		if res.Tools[0].Name != ExtractTextTool || res.Tools[1].Name != ExtractMetadataTool {
			t.Fatalf("listed order = %s, %s; want registration order", res.Tools[0].Name, res.Tools[1].Name)
		}
	}

	want := []struct{ name, description string }{
		{ExtractTextTool, "Extract text content from a PDF file"},
		{ExtractMetadataTool, "Extract metadata information from a PDF file"},
	}
	for i, w := range want {
		tool := res.Tools[i]
		if tool.Name != w.name || tool.Description != w.description {
			t.Errorf("tool %d = %q (%q), want %q (%q)", i, tool.Name, tool.Description, w.name, w.description)
		}
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(schema), `"required":["filePath"]`) {
			t.Errorf("%s schema = %s", tool.Name, schema)
		}
	}
}

func callText(t *testing.T, cs *mcpsdk.ClientSession, name string, args any) (string, error) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	if res.IsError {
		t.Fatalf("%s: tool result flagged as error", name)
	}
	if len(res.Content) != 1 {
		t.Fatalf("%s: got %d content blocks, want 1", name, len(res.Content))
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("%s: content is %T, want *TextContent", name, res.Content[0])
	}
	return text.Text, nil
}

func TestServerCallTools(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.pdf", fpdfDocument(t, "Invoice 42"))
	cs := connect(t, newTestServer(t, dir))

	out, err := callText(t, cs, ExtractTextTool, map[string]any{"filePath": "doc.pdf"})
	if err != nil {
		t.Fatalf("extract_pdf_text: %v", err)
	}
	var text textResult
	if err := json.Unmarshal([]byte(out), &text); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if !text.Success || text.FilePath != "doc.pdf" || text.PageCount != 1 {
		t.Errorf("unexpected result %+v", text)
	}
	if !strings.Contains(text.Text, "Invoice 42") {
		t.Errorf("text = %q, want it to contain %q", text.Text, "Invoice 42")
	}
	if text.ExtractedAt != testStamp {
		t.Errorf("extractedAt = %q, want %q", text.ExtractedAt, testStamp)
	}
	if !strings.HasPrefix(out, "{\n  \"success\": true,") {
		t.Errorf("result is not indented with two spaces:\n%s", out)
	}

	out, err = callText(t, cs, ExtractMetadataTool, map[string]any{"filePath": "doc.pdf"})
	if err != nil {
		t.Fatalf("extract_pdf_metadata: %v", err)
	}
	var meta metadataResult
	if err := json.Unmarshal([]byte(out), &meta); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if meta.Metadata.PageCount != 1 || meta.Metadata.PDFVersion == "" {
		t.Errorf("unexpected metadata %+v", meta.Metadata)
	}
}

func TestServerCallErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", []byte("%PDF-1.7\ngarbage\n"))
	cs := connect(t, newTestServer(t, dir))

	tests := []struct {
		name string
		tool string
		args any
		code int64
		msg  string
	}{
		{"unknown tool", "extract_pdf_images", map[string]any{"filePath": "doc.pdf"}, CodeMethodNotFound, "Unknown tool: extract_pdf_images"},
		// The client sends absent arguments as an empty object.
		{"missing arguments", ExtractTextTool, nil, CodeInvalidParams, "Invalid parameters: filePath: Required"},
		{"missing filePath", ExtractTextTool, map[string]any{}, CodeInvalidParams, "Invalid parameters: filePath: Required"},
		{"empty filePath", ExtractMetadataTool, map[string]any{"filePath": ""}, CodeInvalidParams, "Invalid parameters: filePath: File path is required"},
		{"traversal", ExtractTextTool, map[string]any{"filePath": "../x.pdf"}, CodeInvalidParams, "Invalid file path"},
		{"extension", ExtractMetadataTool, map[string]any{"filePath": "notes.txt"}, CodeInvalidParams, "File must have a .pdf extension"},
		{"missing file", ExtractTextTool, map[string]any{"filePath": "gone.pdf"}, CodeInvalidParams, "File not found: gone.pdf"},
		{"corrupt file", ExtractTextTool, map[string]any{"filePath": "broken.pdf"}, CodeInternalError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: tt.tool, Arguments: tt.args})
			requireWireError(t, err, tt.code, tt.msg)
		})
	}
}

func TestServerRunCancelled(t *testing.T) {
	srv := newTestServer(t, t.TempDir())
	serverT, _ := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.Run(ctx, serverT); err != nil {
		t.Errorf("Run after cancel = %v, want nil", err)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	rec := httptest.NewRecorder()
	srv.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body struct {
		Status string `json:"status"`
		Tools  int    `json:"tools"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Tools != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestRunHTTPStopsOnCancel(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.RunHTTP(ctx, "127.0.0.1:0") }()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("RunHTTP = %v, want nil", err)
	}
}
