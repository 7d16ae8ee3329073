package drop

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/types"
)

// Importer imports whatever an accepted URL points at.
type Importer interface {
	Import(ctx context.Context, u *url.URL) error
}

// ImporterFunc adapts a function to an Importer.
type ImporterFunc func(ctx context.Context, u *url.URL) error

// Import calls f(ctx, u).
func (f ImporterFunc) Import(ctx context.Context, u *url.URL) error { return f(ctx, u) }

// Target is a drop target: it validates payloads and hands accepted URLs
// to the importer registered for their scheme.
type Target struct {
	acceptor  *Acceptor
	importers map[string]Importer
	logger    *slog.Logger
}

// NewTarget creates a drop target.
func NewTarget(acceptor *Acceptor, logger *slog.Logger) *Target {
	if logger == nil {
		logger = slog.Default()
	}
	return &Target{
		acceptor:  acceptor,
		importers: make(map[string]Importer),
		logger:    logger.With("component", "drop-target"),
	}
}

// Handle registers imp for URLs with the given scheme.
func (t *Target) Handle(scheme string, imp Importer) {
	t.importers[scheme] = imp
}

// Drop processes a drop payload. It reports whether the payload was
// imported. An invalid payload returns (false, nil); an error is returned
// only when an acceptable URL could not be imported.
func (t *Target) Drop(ctx context.Context, payload string) (bool, error) {
	u, ok := t.acceptor.Accept(payload)
	if !ok {
		return false, nil
	}

	imp, ok := t.importers[u.Scheme]
	if !ok {
		t.logger.Warn("no importer for dropped URL", "url", u.Redacted())
		return false, serrors.DropNoImporter(u.Scheme)
	}

	if err := imp.Import(ctx, u); err != nil {
		t.logger.Error("import of dropped URL failed", "url", u.Redacted(), "error", err)
		return false, err
	}

	t.logger.Info("imported dropped URL", "url", u.Redacted())
	return true, nil
}

// Loader reads a component template from a directory.
type Loader interface {
	Load(ctx context.Context, dir string) (*types.Component, error)
}

// Reverser maps a directory back to the context it lives at.
type Reverser interface {
	Reverse(dir string) (types.Context, bool)
}

// FileImporter imports component templates from file:// URLs. The URL may
// name the template directory or its manifest file.
type FileImporter struct {
	loader   Loader
	reverser Reverser
	onImport func(*types.Component)
}

// NewFileImporter creates a file importer. onImport receives every loaded
// component; reverser may be nil, leaving imported components without a
// context.
func NewFileImporter(loader Loader, reverser Reverser, onImport func(*types.Component)) *FileImporter {
	return &FileImporter{loader: loader, reverser: reverser, onImport: onImport}
}

// Import implements Importer.
func (f *FileImporter) Import(ctx context.Context, u *url.URL) error {
	dir := filepath.FromSlash(u.Path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return serrors.IOFileNotFound(dir)
		}
		return serrors.IOReadError(dir, err)
	}
	if !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	comp, err := f.loader.Load(ctx, dir)
	if err != nil {
		return err
	}
	if f.reverser != nil {
		if c, ok := f.reverser.Reverse(comp.Directory.Root); ok {
			comp.Context = &c
		}
	}
	if f.onImport != nil {
		f.onImport(comp)
	}
	return nil
}
