// Package workspace confines the agent's file and shell access to one
// directory tree.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrAbsolutePath is returned for absolute paths, which are never
	// resolved against the workspace.
	ErrAbsolutePath = errors.New("absolute path not allowed in workspace")
	// ErrOutsideWorkspace is returned when a restricted workspace is asked
	// for a path outside its root.
	ErrOutsideWorkspace = errors.New("path is outside the workspace")
)

// Workspace is the sandboxed filesystem root that path-like command
// arguments resolve against.
type Workspace struct {
	root       string
	restricted bool
}

// New creates the workspace directory if needed and returns a Workspace
// rooted at its absolute path.
func New(root string, restricted bool) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", abs, err)
	}
	return &Workspace{root: abs, restricted: restricted}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Restricted reports whether paths must stay inside the root.
func (w *Workspace) Restricted() bool { return w.restricted }

// Path resolves rel inside the workspace.
func (w *Workspace) Path(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		// Already resolved against this workspace.
		if w.contains(filepath.Clean(rel)) {
			return filepath.Clean(rel), nil
		}
		return "", fmt.Errorf("%w: %q in workspace %q", ErrAbsolutePath, rel, w.root)
	}
	full := filepath.Join(w.root, rel)
	if w.restricted && !w.contains(full) {
		return "", fmt.Errorf("%w: %q resolves to %q, outside %q", ErrOutsideWorkspace, rel, full, w.root)
	}
	return full, nil
}

// Rel returns path relative to the root, or path itself when it lies
// outside.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func (w *Workspace) contains(path string) bool {
	if path == w.root {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
