package mcp

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestNewPathPolicyDefaultsToWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	policy, err := NewPathPolicy("", false)
	if err != nil {
		t.Fatalf("NewPathPolicy: %v", err)
	}
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if policy.Root != want {
		t.Errorf("Root = %q, want %q", policy.Root, want)
	}
}

func TestPathPolicyResolve(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	writeFile(t, root, "doc.pdf", []byte("%PDF-1.4"))
	writeFile(t, root, "sub/nested.pdf", []byte("%PDF-1.4"))
	writeFile(t, outside, "secret.pdf", []byte("%PDF-1.4"))
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	policy, err := NewPathPolicy(root, false)
	if err != nil {
		t.Fatal(err)
	}
	resolvedOutside, _ := filepath.EvalSymlinks(outside)

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"relative inside", "doc.pdf", ""},
		{"nested", "sub/nested.pdf", ""},
		{"dot segments inside", "sub/../doc.pdf", ""},
		{"uppercase extension", "DOC.PDF", ""},
		{"missing file inside", "missing.pdf", ""},
		{"absolute inside", filepath.Join(policy.Root, "doc.pdf"), ""},
		{"parent traversal", "../outside/secret.pdf", "Invalid file path"},
		{"absolute outside", filepath.Join(resolvedOutside, "secret.pdf"), "Invalid file path"},
		{"symlink escape", "escape/secret.pdf", "Invalid file path"},
		{"wrong extension", "notes.txt", "File must have a .pdf extension"},
		{"pdf not last", "report.PDF.txt", "File must have a .pdf extension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Resolve(tt.path)
			if tt.wantErr != "" {
				requireToolError(t, err, KindInvalidParams, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.path, err)
			}
			if !filepath.IsAbs(got) || !within(policy.Root, got) {
				t.Errorf("Resolve(%q) = %q, not inside %q", tt.path, got, policy.Root)
			}
		})
	}
}

func TestPathPolicyAllowAbsolute(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := writeFile(t, outside, "elsewhere.pdf", []byte("%PDF-1.4"))

	strict, err := NewPathPolicy(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := strict.Resolve(target); err == nil {
		t.Error("strict policy admitted an absolute path outside the root")
	}

	legacy, err := NewPathPolicy(root, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := legacy.Resolve(target); err != nil {
		t.Errorf("AllowAbsolute rejected %q: %v", target, err)
	}
	// Relative escapes stay blocked.
	rel, err := filepath.Rel(legacy.Root, target)
	if err != nil {
		t.Fatal(err)
	}
	_, err = legacy.Resolve(rel)
	requireToolError(t, err, KindInvalidParams, "Invalid file path")
}

func TestOpenFileClassification(t *testing.T) {
	tests := []struct {
		name    string
		inject  error
		kind    ErrorKind
		message string
	}{
		{"not found", fs.ErrNotExist, KindInvalidParams, "File not found: in.pdf"},
		{"permission", fs.ErrPermission, KindInvalidParams, "Permission denied: in.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := openFile(&spyFS{err: tt.inject}, "/abs/in.pdf", "in.pdf")
			te := requireToolError(t, err, tt.kind, tt.message)
			if !errors.Is(te, tt.inject) {
				t.Errorf("cause %v does not wrap %v", te.Err, tt.inject)
			}
		})
	}

	t.Run("other", func(t *testing.T) {
		_, err := openFile(&spyFS{err: errors.New("device busy")}, "/abs/in.pdf", "in.pdf")
		var te *ToolError
		if errors.As(err, &te) {
			t.Errorf("unclassified error became %v", te)
		}
	})
}
