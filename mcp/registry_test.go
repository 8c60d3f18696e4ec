package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRegistryTools(t *testing.T) {
	ex, _ := newTestExtractor(t, t.TempDir())
	reg := NewRegistry(ex)

	first := reg.Tools()
	if len(first) != 2 {
		t.Fatalf("len(Tools()) = %d, want 2", len(first))
	}
	if first[0].Name != ExtractTextTool || first[1].Name != ExtractMetadataTool {
		t.Errorf("tool order = %s, %s", first[0].Name, first[1].Name)
	}
	for _, d := range first {
		if d.InputSchema.Type != "object" || !reflect.DeepEqual(d.InputSchema.Required, []string{"filePath"}) {
			t.Errorf("%s: unexpected schema %+v", d.Name, d.InputSchema)
		}
		if d.InputSchema.Properties["filePath"].Type != "string" {
			t.Errorf("%s: filePath is not a string property", d.Name)
		}
	}

	// Listing twice yields identical descriptors, and callers cannot
	// reorder the registry through the returned slice.
	first[0], first[1] = first[1], first[0]
	second := reg.Tools()
	if second[0].Name != ExtractTextTool {
		t.Error("mutating the returned slice changed the registry")
	}
	if second[0].InputSchema != reg.Tools()[0].InputSchema {
		t.Error("descriptors are rebuilt between calls")
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	reg := &Registry{handlers: make(map[string]toolHandler), log: quietLogger()}
	invoked := 0
	reg.register(ToolDescriptor{Name: ExtractTextTool}, func(context.Context, json.RawMessage) (string, error) {
		invoked++
		return "{}", nil
	})

	_, err := reg.Call(context.Background(), "extract_pdf_images", json.RawMessage(`{"filePath":"a.pdf"}`))
	te := requireToolError(t, err, KindMethodNotFound, "Unknown tool: extract_pdf_images")
	if te.Kind.Code() != CodeMethodNotFound {
		t.Errorf("code = %d, want %d", te.Kind.Code(), CodeMethodNotFound)
	}
	if invoked != 0 {
		t.Errorf("handler invoked %d times, want 0", invoked)
	}
	if reg.Has("extract_pdf_images") {
		t.Error("Has reports an unregistered tool")
	}
}

func TestRegistryClassifiesHandlerErrors(t *testing.T) {
	ex, _ := newTestExtractor(t, t.TempDir())
	reg := NewRegistry(ex)
	reg.handlers["boom"] = func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("disk on fire")
	}
	reg.handlers["panic"] = func(context.Context, json.RawMessage) (string, error) {
		panic("unexpected")
	}

	_, err := reg.Call(context.Background(), "boom", nil)
	requireToolError(t, err, KindInternal, "Error executing tool boom: disk on fire")

	_, err = reg.Call(context.Background(), "panic", nil)
	te := requireToolError(t, err, KindInternal, "")
	if !strings.HasPrefix(te.Message, "Error executing tool panic: panic: unexpected") {
		t.Errorf("message = %q", te.Message)
	}

	// Classified errors keep their kind.
	_, err = reg.Call(context.Background(), ExtractTextTool, json.RawMessage(`{}`))
	requireToolError(t, err, KindInvalidParams, "Invalid parameters: filePath: Required")
}

func TestRegistryCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.pdf", fpdfDocument(t, "x"))
	ex, _ := newTestExtractor(t, dir)
	reg := NewRegistry(ex)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.Call(ctx, ExtractTextTool, json.RawMessage(`{"filePath":"doc.pdf"}`))
	te := requireToolError(t, err, KindInternal, "Error executing tool extract_pdf_text: context canceled")
	if !errors.Is(te, context.Canceled) {
		t.Error("cause does not wrap context.Canceled")
	}
}

func TestToolErrorWireError(t *testing.T) {
	tests := []struct {
		err  *ToolError
		code int64
	}{
		{invalidParams("Invalid file path"), -32602},
		{methodNotFound("x"), -32601},
		{internalError(errors.New("boom"), "Failed"), -32603},
	}
	for _, tt := range tests {
		wire := tt.err.WireError()
		if wire.Code != tt.code {
			t.Errorf("%s: code = %d, want %d", tt.err.Kind, wire.Code, tt.code)
		}
		if wire.Message != tt.err.Message {
			t.Errorf("%s: message = %q, want %q", tt.err.Kind, wire.Message, tt.err.Message)
		}
	}
}
