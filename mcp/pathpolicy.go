package mcp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem opens files for reading. Tests substitute a recording
// implementation to observe every filesystem access.
type FileSystem interface {
	Open(name string) (fs.File, error)
}

type osFileSystem struct{}

func (osFileSystem) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// PathPolicy decides which files a tool call may read.
//
// Relative paths are resolved against Root. The resolved path, with symlinks
// evaluated where they exist, must stay inside Root. When AllowAbsolute is
// set, paths given in absolute form are admitted wherever they point.
type PathPolicy struct {
	Root          string
	AllowAbsolute bool
}

// NewPathPolicy returns a policy rooted at root, or at the working directory
// when root is empty. The root is made absolute and symlink-free so boundary
// checks compare like with like.
func NewPathPolicy(root string, allowAbsolute bool) (PathPolicy, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return PathPolicy{}, fmt.Errorf("getwd: %w", err)
		}
		root = cwd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return PathPolicy{}, fmt.Errorf("abs(root): %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return PathPolicy{Root: abs, AllowAbsolute: allowAbsolute}, nil
}

// Resolve validates filePath and returns the path to open.
func (p PathPolicy) Resolve(filePath string) (string, error) {
	lexical := filepath.Clean(filePath)
	if !filepath.IsAbs(lexical) {
		lexical = filepath.Join(p.Root, lexical)
	}

	// Resolve the whole path if it exists, otherwise its parent, so a
	// symlinked directory cannot hide an escape.
	candidate := lexical
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else if parent, err := filepath.EvalSymlinks(filepath.Dir(candidate)); err == nil {
		candidate = filepath.Join(parent, filepath.Base(candidate))
	}

	if !(p.AllowAbsolute && filepath.IsAbs(filePath)) && !within(p.Root, candidate) {
		return "", invalidParams("Invalid file path")
	}

	if !strings.HasSuffix(strings.ToLower(lexical), ".pdf") {
		return "", invalidParams("File must have a .pdf extension")
	}
	return candidate, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// openFile opens path, classifying missing and unreadable files as caller
// errors. filePath is the path as the caller supplied it.
func openFile(fsys FileSystem, path, filePath string) (fs.File, error) {
	f, err := fsys.Open(path)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, &ToolError{Kind: KindInvalidParams, Message: "File not found: " + filePath, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return nil, &ToolError{Kind: KindInvalidParams, Message: "Permission denied: " + filePath, Err: err}
	default:
		return nil, err
	}
}
