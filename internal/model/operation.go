// Package model defines the shared vocabulary of proposed file mutations
// consumed by the graph builder, the guardrail engine, the rollback planner,
// and the outcome tracker.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpAppend OperationKind = "append"
	OpDelete OperationKind = "delete"
	OpRename OperationKind = "rename"
)

var validKinds = map[OperationKind]bool{
	OpCreate: true,
	OpUpdate: true,
	OpAppend: true,
	OpDelete: true,
	OpRename: true,
}

// FileOperation is a tagged union over the five mutation kinds. Exactly one
// path-affecting variant per operation; rename affects two paths. Values are
// treated as immutable once constructed.
type FileOperation struct {
	Kind OperationKind `yaml:"kind"`

	// Path is the target for create/update/append/delete.
	Path    string `yaml:"path,omitempty"`
	Content string `yaml:"content,omitempty"`

	// Update-only fields. OldContent is optional: the pipeline may not know
	// the pre-image when it proposes the mutation.
	OldContent *string `yaml:"old_content,omitempty"`
	NewContent string  `yaml:"new_content,omitempty"`

	// Rename-only fields.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`
}

func NewCreate(path, content string) FileOperation {
	return FileOperation{Kind: OpCreate, Path: path, Content: content}
}

func NewUpdate(path string, oldContent *string, newContent string) FileOperation {
	return FileOperation{Kind: OpUpdate, Path: path, OldContent: oldContent, NewContent: newContent}
}

func NewAppend(path, content string) FileOperation {
	return FileOperation{Kind: OpAppend, Path: path, Content: content}
}

func NewDelete(path string) FileOperation {
	return FileOperation{Kind: OpDelete, Path: path}
}

func NewRename(from, to string) FileOperation {
	return FileOperation{Kind: OpRename, From: from, To: to}
}

// Validate checks kind/field consistency.
func (op FileOperation) Validate() error {
	if !validKinds[op.Kind] {
		return fmt.Errorf("unknown operation kind: %q", op.Kind)
	}
	if op.Kind == OpRename {
		if op.From == "" || op.To == "" {
			return fmt.Errorf("rename requires both from and to")
		}
		if op.Path != "" {
			return fmt.Errorf("rename must not set path")
		}
		return nil
	}
	if op.Path == "" {
		return fmt.Errorf("%s requires a path", op.Kind)
	}
	if op.From != "" || op.To != "" {
		return fmt.Errorf("%s must not set from/to", op.Kind)
	}
	return nil
}

// Paths returns every path the operation touches. Rename is the only kind
// affecting two paths.
func (op FileOperation) Paths() []string {
	if op.Kind == OpRename {
		return []string{op.From, op.To}
	}
	return []string{op.Path}
}

// TargetPath returns the primary path (From for rename).
func (op FileOperation) TargetPath() string {
	if op.Kind == OpRename {
		return op.From
	}
	return op.Path
}

// WriteSize returns the number of bytes the operation would write to disk.
// Zero for delete and rename.
func (op FileOperation) WriteSize() int {
	switch op.Kind {
	case OpCreate, OpAppend:
		return len(op.Content)
	case OpUpdate:
		return len(op.NewContent)
	default:
		return 0
	}
}

// NewContentFor returns the content the operation introduces at its target
// path, used by the import scanner.
func (op FileOperation) NewContentFor() string {
	switch op.Kind {
	case OpCreate, OpAppend:
		return op.Content
	case OpUpdate:
		return op.NewContent
	default:
		return ""
	}
}

// Touches reports whether the operation affects the given path.
func (op FileOperation) Touches(path string) bool {
	for _, p := range op.Paths() {
		if p == path {
			return true
		}
	}
	return false
}

func (op FileOperation) String() string {
	if op.Kind == OpRename {
		return fmt.Sprintf("rename %s -> %s", op.From, op.To)
	}
	return fmt.Sprintf("%s %s", op.Kind, op.Path)
}

// IsTestPath reports whether the path looks like a test file in any of the
// ecosystems the import scanner understands.
func IsTestPath(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "_test.go") ||
		strings.HasPrefix(base, "test_") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.Contains(path, "/tests/") ||
		strings.Contains(path, "/__tests__/")
}

// IsConfigPath reports whether the path looks like build or project
// configuration whose change tends to affect sibling files.
func IsConfigPath(path string) bool {
	base := filepath.Base(path)
	switch base {
	case "go.mod", "go.sum", "package.json", "Cargo.toml", "pyproject.toml",
		"requirements.txt", "Makefile", "Dockerfile":
		return true
	}
	ext := filepath.Ext(base)
	return ext == ".yaml" || ext == ".yml" || ext == ".toml" || ext == ".ini"
}
