package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/types"
)

// On-disk names inside a template directory.
const (
	ManifestFile  = "template.yaml"
	NodeFile      = "node.yaml"
	InternalsFile = "internals.bin"

	formatVersion = "1"
	tmpSuffix     = ".tmp"
)

// manifest is the component-level file of a template directory.
type manifest struct {
	FormatVersion string             `yaml:"format_version"`
	TemplateID    string             `yaml:"template_id"`
	Name          string             `yaml:"name"`
	Description   string             `yaml:"description,omitempty"`
	ParentID      string             `yaml:"parent_id"`
	SavedAt       time.Time          `yaml:"saved_at"`
	Encoding      encoding           `yaml:"encoding"`
	Nodes         []manifestNode     `yaml:"nodes"`
	Connections   []types.Connection `yaml:"connections,omitempty"`
}

// encoding records how internals.bin files were written so a template
// stays readable after the configured codec changes.
type encoding struct {
	Codec       string `yaml:"codec"`
	Compression string `yaml:"compression"`
}

type manifestNode struct {
	ID           int    `yaml:"id"`
	Folder       string `yaml:"folder"`
	HasInternals bool   `yaml:"has_internals,omitempty"`
}

// folders maps node IDs to their folder names.
func (m *manifest) folders() map[int]string {
	out := make(map[int]string)
	if m == nil {
		return out
	}
	for _, n := range m.Nodes {
		out[n.ID] = n.Folder
	}
	return out
}

// readManifest reads the manifest of a template directory. It returns
// (nil, nil) when the directory holds no template.
func readManifest(root string) (*manifest, error) {
	path := filepath.Join(root, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, serrors.IOReadError(path, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, serrors.TemplateParseError(path, err)
	}
	if m.FormatVersion != formatVersion {
		return nil, serrors.TemplateParseError(path, fmt.Errorf("unsupported format version %q", m.FormatVersion))
	}
	return &m, nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + tmpSuffix

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// writeYAML marshals v and writes it atomically, returning the byte count.
func writeYAML(path string, v any) (int, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// recoverInterruptedWrites handles .tmp files left by a crashed save: an
// orphan next to an existing file is dropped, otherwise it is promoted.
func recoverInterruptedWrites(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tmpSuffix) {
			continue
		}

		tmpPath := filepath.Join(dir, entry.Name())
		mainPath := strings.TrimSuffix(tmpPath, tmpSuffix)

		if _, err := os.Stat(mainPath); err == nil {
			os.Remove(tmpPath)
		} else {
			os.Rename(tmpPath, mainPath)
		}
	}
	return nil
}
