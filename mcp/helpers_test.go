package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"
)

// testNow is the fixed clock used by extractors under test.
var testNow = time.Date(2025, time.January, 2, 3, 4, 5, 6_000_000, time.UTC)

const testStamp = "2025-01-02T03:04:05.006Z"

// spyFS records every Open call and delegates to the real filesystem unless
// an error is injected.
type spyFS struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (s *spyFS) Open(name string) (fs.File, error) {
	s.mu.Lock()
	s.opened = append(s.opened, name)
	s.mu.Unlock()
	if s.err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: s.err}
	}
	return os.Open(name)
}

func (s *spyFS) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.opened)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newTestExtractor returns an extractor rooted at root with a fixed clock,
// a silent logger and a spying filesystem.
func newTestExtractor(t *testing.T, root string) (*Extractor, *spyFS) {
	t.Helper()
	policy, err := NewPathPolicy(root, false)
	if err != nil {
		t.Fatalf("NewPathPolicy: %v", err)
	}
	spy := &spyFS{}
	ex := NewExtractor(policy,
		WithFileSystem(spy),
		WithClock(func() time.Time { return testNow }),
		WithLogger(quietLogger()),
	)
	return ex, spy
}

// fpdfDocument renders one page per text with fpdf.
func fpdfDocument(t *testing.T, texts ...string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, text := range texts {
		pdf.AddPage()
		pdf.Text(10, 20, text)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("generating PDF: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func rawArgs(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// requireToolError asserts err is a *ToolError of the given kind whose
// message equals msg.
func requireToolError(t *testing.T, err error, kind ErrorKind, msg string) *ToolError {
	t.Helper()
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v (%T), want *ToolError", err, err)
	}
	if te.Kind != kind {
		t.Errorf("kind = %v, want %v (message %q)", te.Kind, kind, te.Message)
	}
	if msg != "" && te.Message != msg {
		t.Errorf("message = %q, want %q", te.Message, msg)
	}
	return te
}
