// Package store persists components as template directories.
//
// A template directory holds a template.yaml manifest and one folder per
// child node. Folder identity is keyed by node ID, so saving a component
// in place keeps the folders of surviving nodes (including nodes renamed
// only in case) and removes the folders of deleted ones.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/meow-stack/meow-studio/internal/codec"
	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/progress"
	"github.com/meow-stack/meow-studio/internal/types"
)

// SaveStats summarizes what a save wrote.
type SaveStats struct {
	Nodes   int   `json:"nodes"`
	Files   int   `json:"files"`
	Bytes   int64 `json:"bytes"`
	Copied  int   `json:"copied"`
	Removed int   `json:"removed"`
}

// TemplateStore reads and writes template directories.
type TemplateStore struct {
	serializer *codec.Serializer
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a store encoding node internals with serializer.
func New(serializer *codec.Serializer, logger *slog.Logger) *TemplateStore {
	if serializer == nil {
		serializer = codec.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateStore{
		serializer: serializer,
		logger:     logger.With("component", "template-store"),
		now:        time.Now,
	}
}

// IsLocked reports whether another writer is saving into dir.
func (s *TemplateStore) IsLocked(dir string) bool {
	return isLocked(filepath.Clean(dir))
}

// SaveTemplate saves comp into its current directory.
func (s *TemplateStore) SaveTemplate(ctx context.Context, comp *types.Component, mon *progress.Monitor) (*SaveStats, error) {
	if comp.Directory.IsZero() {
		return nil, serrors.ContractViolation("in-place save of a component that was never saved").
			WithDetail("component", comp.Name)
	}
	root := filepath.Clean(comp.Directory.Root)

	if err := checkpoint(ctx, mon, comp); err != nil {
		return nil, err
	}
	if err := validateComponent(comp); err != nil {
		return nil, serrors.InvalidSettings(comp.Name, err)
	}

	lock, err := acquireLock(root)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	if err := recoverInterruptedWrites(root); err != nil {
		return nil, serrors.IOFailure(root, err)
	}
	prev, err := readManifest(root)
	if err != nil {
		return nil, serrors.IOFailure(root, err)
	}

	stats, err := s.writeTemplate(ctx, root, comp, prev.folders(), mon, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("saved template in place", "dir", root, "nodes", stats.Nodes, "removed", stats.Removed)
	return stats, nil
}

// SaveAsTemplate saves comp into dir, leaving its current directory
// untouched. Files owned by the nodes in the current directory are carried
// over when filter accepts them. An existing template at dir is replaced
// only once the new one is complete; any other non-empty directory is
// refused, as is a dir nested inside or around the current directory.
func (s *TemplateStore) SaveAsTemplate(ctx context.Context, comp *types.Component, dir string, mon *progress.Monitor, filter Filter) (*SaveStats, error) {
	if !filepath.IsAbs(dir) {
		return nil, serrors.ContractViolation("save-as target must be an absolute directory").
			WithDetail("dir", dir)
	}
	dir = filepath.Clean(dir)
	if !comp.Directory.IsZero() && filepath.Clean(comp.Directory.Root) == dir {
		return s.SaveTemplate(ctx, comp, mon)
	}

	srcRoot := filepath.Clean(comp.Directory.Root)
	if !comp.Directory.IsZero() && (within(srcRoot, dir) || within(dir, srcRoot)) {
		return nil, serrors.ContractViolation("save-as target overlaps the current template directory").
			WithDetail("dir", dir).
			WithDetail("current", srcRoot)
	}

	if err := checkpoint(ctx, mon, comp); err != nil {
		return nil, err
	}
	if err := validateComponent(comp); err != nil {
		return nil, serrors.InvalidSettings(comp.Name, err)
	}

	lock, err := acquireLock(dir)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	if err := checkReplaceable(dir); err != nil {
		return nil, err
	}

	if comp.Directory.IsZero() {
		srcRoot = ""
	}
	var srcFolders map[int]string
	if srcRoot != "" {
		// An unreadable source only means there is nothing to carry over.
		if m, err := readManifest(srcRoot); err == nil {
			srcFolders = m.folders()
		} else {
			s.logger.Warn("source template unreadable, not carrying node files", "dir", srcRoot, "error", err)
		}
	}

	staging := filepath.Join(filepath.Dir(dir), "."+filepath.Base(dir)+".saving-"+uuid.NewString()[:8])
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, serrors.IOFailure(dir, err)
	}

	var carry carryFunc
	if srcFolders != nil {
		carry = func(n *types.Node, nodeDir string, stats *SaveStats) error {
			folder, ok := srcFolders[n.ID]
			if !ok {
				return nil
			}
			files, bytes, err := copyNodeExtras(filepath.Join(srcRoot, folder), nodeDir, filter)
			stats.Copied += files
			stats.Bytes += bytes
			return err
		}
	}

	stats, err := s.writeTemplate(ctx, staging, comp, nil, mon, carry)
	if err != nil {
		os.RemoveAll(staging)
		return nil, err
	}
	if err := swapInto(staging, dir); err != nil {
		os.RemoveAll(staging)
		return nil, serrors.IOFailure(dir, err)
	}

	s.logger.Debug("saved template to new location", "from", srcRoot, "dir", dir, "nodes", stats.Nodes, "copied", stats.Copied)
	return stats, nil
}

// carryFunc copies extra files for a node into its freshly written folder.
type carryFunc func(n *types.Node, nodeDir string, stats *SaveStats) error

// writeTemplate writes every node folder, then commits the manifest, then
// removes folders of nodes that no longer exist. Cancellation is honored
// up to the manifest commit. A renamed node is written to a fresh folder
// holding a copy of its files; the folder the previous manifest names is
// only removed after the commit, so the previous manifest stays loadable.
func (s *TemplateStore) writeTemplate(ctx context.Context, root string, comp *types.Component, prev map[int]string, mon *progress.Monitor, carry carryFunc) (*SaveStats, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, serrors.IOFailure(root, err)
	}

	nodes := comp.SortedNodes()
	stats := &SaveStats{}
	keep := make(map[string]bool, len(nodes))
	var vacated []string
	m := &manifest{
		FormatVersion: formatVersion,
		TemplateID:    comp.TemplateID,
		Name:          comp.Name,
		Description:   comp.Description,
		ParentID:      comp.ParentID,
		SavedAt:       s.now().UTC(),
		Encoding: encoding{
			Codec:       s.serializer.CodecName(),
			Compression: string(s.serializer.Compression()),
		},
		Connections: comp.Connections,
	}

	for i, n := range nodes {
		if err := checkpoint(ctx, mon, comp); err != nil {
			return nil, err
		}

		folder, rename := chooseFolder(prev[n.ID], FolderName(n.ID, n.Name))
		if rename {
			if err := copyFolder(root, prev[n.ID], folder); err != nil {
				return nil, serrors.IOFailure(root, fmt.Errorf("renaming node folder %q: %w", prev[n.ID], err))
			}
			vacated = append(vacated, prev[n.ID])
		}

		nodeDir := filepath.Join(root, folder)
		hasInternals, err := s.writeNode(nodeDir, n, stats)
		if err != nil {
			return nil, serrors.IOFailure(root, fmt.Errorf("writing node %d: %w", n.ID, err))
		}
		if carry != nil {
			if err := carry(n, nodeDir, stats); err != nil {
				return nil, serrors.IOFailure(root, fmt.Errorf("copying files of node %d: %w", n.ID, err))
			}
		}

		keep[folder] = true
		m.Nodes = append(m.Nodes, manifestNode{ID: n.ID, Folder: folder, HasInternals: hasInternals})
		stats.Nodes++
		mon.Set(float64(i+1)/float64(len(nodes)+1), "saved "+folder)
	}

	if err := checkpoint(ctx, mon, comp); err != nil {
		return nil, err
	}
	size, err := writeYAML(filepath.Join(root, ManifestFile), m)
	if err != nil {
		return nil, serrors.IOFailure(root, err)
	}
	stats.Files++
	stats.Bytes += int64(size)

	for _, folder := range vacated {
		if keep[folder] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, folder)); err != nil {
			return nil, serrors.IOFailure(root, fmt.Errorf("removing renamed node folder %q: %w", folder, err))
		}
	}
	removed, err := removeObsolete(root, keep)
	stats.Removed = removed
	if err != nil {
		return nil, serrors.IOFailure(root, fmt.Errorf("removing obsolete node folders: %w", err))
	}

	mon.Set(1, "saved "+comp.Name)
	return stats, nil
}

// writeNode writes node.yaml and, when the node has internals,
// internals.bin. A stale internals.bin is removed.
func (s *TemplateStore) writeNode(dir string, n *types.Node, stats *SaveStats) (bool, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, err
	}
	if err := recoverInterruptedWrites(dir); err != nil {
		return false, err
	}

	size, err := writeYAML(filepath.Join(dir, NodeFile), n)
	if err != nil {
		return false, err
	}
	stats.Files++
	stats.Bytes += int64(size)

	internalsPath := filepath.Join(dir, InternalsFile)
	if len(n.Internals) == 0 {
		if err := os.Remove(internalsPath); err != nil && !os.IsNotExist(err) {
			return false, err
		}
		return false, nil
	}

	data, err := s.serializer.Serialize(n.Internals)
	if err != nil {
		return false, err
	}
	if err := writeFileAtomic(internalsPath, data); err != nil {
		return false, err
	}
	stats.Files++
	stats.Bytes += int64(len(data))
	return true, nil
}

// Load reads the component saved in dir. The returned component's
// directory is dir; its context is left for the caller to set.
func (s *TemplateStore) Load(ctx context.Context, dir string) (*types.Component, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, serrors.IOReadError(dir, err)
	}

	m, err := readManifest(root)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, serrors.TemplateNotFound(root)
	}

	ser, err := codec.New(m.Encoding.Codec, m.Encoding.Compression)
	if err != nil {
		return nil, serrors.TemplateParseError(filepath.Join(root, ManifestFile), err)
	}

	comp := &types.Component{
		TemplateID:  m.TemplateID,
		Name:        m.Name,
		Description: m.Description,
		ParentID:    m.ParentID,
		Connections: m.Connections,
		Directory:   types.Directory{Root: root},
	}

	for _, mn := range m.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nodePath := filepath.Join(root, mn.Folder, NodeFile)
		data, err := os.ReadFile(nodePath)
		if err != nil {
			return nil, serrors.IOReadError(nodePath, err)
		}
		var n types.Node
		if err := yaml.Unmarshal(data, &n); err != nil {
			return nil, serrors.TemplateParseError(nodePath, err)
		}
		if n.ID != mn.ID {
			return nil, serrors.TemplateParseError(nodePath, fmt.Errorf("node id %d does not match manifest id %d", n.ID, mn.ID))
		}

		if mn.HasInternals {
			internalsPath := filepath.Join(root, mn.Folder, InternalsFile)
			raw, err := os.ReadFile(internalsPath)
			if err != nil {
				return nil, serrors.IOReadError(internalsPath, err)
			}
			if err := ser.Deserialize(raw, &n.Internals); err != nil {
				return nil, serrors.TemplateParseError(internalsPath, err)
			}
		}
		comp.Nodes = append(comp.Nodes, &n)
	}

	return comp, nil
}

// Folders returns the node ID to folder mapping recorded in dir's manifest.
func (s *TemplateStore) Folders(dir string) (map[int]string, error) {
	m, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, serrors.TemplateNotFound(dir)
	}
	return m.folders(), nil
}

func checkpoint(ctx context.Context, mon *progress.Monitor, comp *types.Component) error {
	if err := mon.Check(ctx); err != nil {
		return serrors.Cancelled(comp.Name, err)
	}
	return nil
}

// within reports whether path lies inside dir, or is dir itself.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// checkReplaceable refuses a save-as target that exists and is neither
// an empty directory nor a template.
func checkReplaceable(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return serrors.IOFailure(dir, err)
	}
	if len(entries) == 0 {
		return nil
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
		if os.IsNotExist(err) {
			return serrors.ContractViolation("save-as target exists and is not a template").
				WithDetail("dir", dir)
		}
		return serrors.IOFailure(dir, err)
	}
	return nil
}

// swapInto moves a finished staging directory to dir, replacing the
// template or empty directory that was there.
func swapInto(staging, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.Rename(staging, dir)
	}

	backup := staging + ".replaced"
	if err := os.Rename(dir, backup); err != nil {
		return err
	}
	if err := os.Rename(staging, dir); err != nil {
		os.Rename(backup, dir)
		return err
	}
	return os.RemoveAll(backup)
}
