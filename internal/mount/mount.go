// Package mount resolves workflow contexts to directories through the
// configured mount table.
package mount

import (
	"path/filepath"
	"sort"
	"strings"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/types"
)

// Table maps mount names to absolute root directories.
type Table struct {
	roots map[string]string
}

// NewTable creates a table. Roots are cleaned; callers pass absolute roots
// (see config.Config.MountRoots).
func NewTable(roots map[string]string) *Table {
	t := &Table{roots: make(map[string]string, len(roots))}
	for name, root := range roots {
		t.roots[name] = filepath.Clean(root)
	}
	return t
}

// Names returns the mount names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.roots))
	for name := range t.roots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the directory a context denotes.
func (t *Table) Resolve(c types.Context) (string, error) {
	root, ok := t.roots[c.Mount]
	if !ok {
		return "", serrors.UnknownMount(c.Mount)
	}
	return filepath.Join(root, filepath.FromSlash(c.CleanPath())), nil
}

// Reverse finds the context of a directory. When mounts nest, the mount
// with the longest matching root wins.
func (t *Table) Reverse(dir string) (types.Context, bool) {
	dir = filepath.Clean(dir)

	best, bestRoot := "", ""
	for name, root := range t.roots {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(root) > len(bestRoot) {
			best, bestRoot = name, root
		}
	}
	if best == "" {
		return types.Context{}, false
	}

	rel, _ := filepath.Rel(bestRoot, dir)
	return types.Context{Mount: best, Path: "/" + filepath.ToSlash(rel)}, true
}
