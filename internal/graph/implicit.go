package graph

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/msageha/foresight/internal/model"
)

// Best-effort import/include extraction. One capture group per pattern; the
// captured text is normalized to a bare module key before matching against the
// paths other operations create or modify.
var importPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*import\s+"([^"]+)"`),                         // Go single import
	regexp.MustCompile(`(?m)^\s*"([^"]+)"\s*$`),                              // Go import block line
	regexp.MustCompile(`(?m)^\s*import\s+([A-Za-z_][\w.]*)`),                 // Python import x
	regexp.MustCompile(`(?m)^\s*from\s+([A-Za-z_][\w.]*)\s+import`),          // Python from x import
	regexp.MustCompile(`(?m)from\s+['"]([^'"]+)['"]`),                        // JS/TS import ... from 'x'
	regexp.MustCompile(`(?m)require\(\s*['"]([^'"]+)['"]\s*\)`),              // JS require('x')
	regexp.MustCompile(`(?m)^\s*(?:pub\s+)?mod\s+([A-Za-z_]\w*)\s*;`),        // Rust mod x;
	regexp.MustCompile(`(?m)^\s*use\s+(?:crate|super|self)::([A-Za-z_]\w*)`), // Rust use crate::x
	regexp.MustCompile(`(?m)^\s*#include\s+"([^"]+)"`),                       // C/C++ local include
}

// addImportEdges scans new/changed content for import statements and links
// the importing operation to the operation that creates or modifies the
// referenced file. Advisory only: strength 0.8, not required.
func (b *Builder) addImportEdges(g *DependencyGraph, ops []model.FileOperation) {
	// Module keys provided by each operation's target path.
	providers := make(map[string][]int)
	for i, op := range ops {
		switch op.Kind {
		case model.OpCreate, model.OpUpdate, model.OpAppend:
			for _, key := range moduleKeys(op.Path) {
				providers[key] = append(providers[key], i)
			}
		}
	}

	for i, op := range ops {
		content := op.NewContentFor()
		if content == "" {
			continue
		}
		for _, ref := range extractImportRefs(content) {
			for _, j := range providers[ref] {
				if j == i {
					continue
				}
				b.addEdge(g, DependencyEdge{
					From:     model.NodeID(i),
					To:       model.NodeID(j),
					Type:     DepImportDependency,
					Strength: 0.8,
					Required: false,
				})
			}
		}
	}
}

// moduleKeys returns normalized keys a path can be referenced by: the path
// without extension, the base name without extension, and the containing
// directory name (Go packages are imported by directory).
func moduleKeys(path string) []string {
	noExt := strings.TrimSuffix(path, filepath.Ext(path))
	base := filepath.Base(noExt)
	dir := filepath.Base(filepath.Dir(path))

	keys := []string{noExt, base}
	if dir != "." && dir != "/" {
		keys = append(keys, dir)
	}
	return keys
}

// extractImportRefs pulls normalized referenced-module keys from content.
func extractImportRefs(content string) []string {
	seen := make(map[string]bool)
	var refs []string

	add := func(raw string) {
		for _, key := range normalizeRef(raw) {
			if key != "" && !seen[key] {
				seen[key] = true
				refs = append(refs, key)
			}
		}
	}

	for _, re := range importPatterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			add(m[1])
		}
	}
	return refs
}

// normalizeRef maps a raw import string to candidate module keys: strip
// relative prefixes and extensions, then offer both the full path and its
// last segment.
func normalizeRef(raw string) []string {
	ref := strings.TrimPrefix(raw, "./")
	ref = strings.TrimPrefix(ref, "../")
	ref = strings.TrimSuffix(ref, filepath.Ext(ref))
	ref = strings.ReplaceAll(ref, ".", "/")

	keys := []string{ref}
	if idx := strings.LastIndex(ref, "/"); idx >= 0 {
		keys = append(keys, ref[idx+1:])
	}
	return keys
}
