// Package save decides how a component is persisted: in place when the
// requested context is the one it already lives at, or as a relocation to
// a new directory otherwise.
package save

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/logging"
	"github.com/meow-stack/meow-studio/internal/progress"
	"github.com/meow-stack/meow-studio/internal/store"
	"github.com/meow-stack/meow-studio/internal/types"
)

// Store persists component templates.
type Store interface {
	// SaveTemplate saves the component into its current directory.
	SaveTemplate(ctx context.Context, comp *types.Component, mon *progress.Monitor) (*store.SaveStats, error)

	// SaveAsTemplate saves the component into dir without touching its
	// current directory.
	SaveAsTemplate(ctx context.Context, comp *types.Component, dir string, mon *progress.Monitor, filter store.Filter) (*store.SaveStats, error)
}

// Resolver maps a context to the directory it denotes.
type Resolver interface {
	Resolve(c types.Context) (string, error)
}

// Recorder remembers where components were saved.
type Recorder interface {
	RecordSave(ctx context.Context, loc types.Context, dir string) error
}

// Mode is the kind of save performed.
type Mode string

const (
	ModeInPlace  Mode = "in-place"
	ModeRelocate Mode = "relocate"
)

// Result describes a successful save. Relocation is nil for in-place
// saves; otherwise the caller applies it to the component.
type Result struct {
	Mode       Mode              `json:"mode"`
	Dir        string            `json:"dir"`
	Relocation *types.Relocation `json:"relocation,omitempty"`
	Stats      *store.SaveStats  `json:"stats,omitempty"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder records every successful save target.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithFilter sets the filter applied to node files carried over by a
// relocating save.
func WithFilter(f store.Filter) Option {
	return func(o *Orchestrator) { o.filter = f }
}

// Orchestrator runs component saves. It never mutates the component it
// saves. Callers serialize saves of the same component.
type Orchestrator struct {
	store    Store
	resolver Resolver
	recorder Recorder
	filter   store.Filter
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(st Store, resolver Resolver, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:    st,
		resolver: resolver,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Save persists comp at target.
//
// When target equals the component's current context the save happens in
// place, and the resolved directory must be the component's current one.
// Otherwise the component is saved as a new template in the resolved
// directory and the returned Result carries the Relocation to apply.
//
// A nil target or a context that resolves to a second location is a
// ContractViolation. Store failures keep their kind; anything else is
// reported as an IOFailure.
func (o *Orchestrator) Save(ctx context.Context, comp *types.Component, target *types.Context, mon *progress.Monitor) (*Result, error) {
	if comp == nil {
		return nil, serrors.ContractViolation("no component to save")
	}
	if target == nil {
		return nil, serrors.ContractViolation("save target context is required").
			WithDetail("component", comp.Name)
	}

	logger := logging.WithComponent(o.logger, comp.TemplateID, comp.Name)
	start := time.Now()

	if err := mon.Check(ctx); err != nil {
		return nil, serrors.Cancelled(comp.Name, err)
	}

	dir, err := o.resolver.Resolve(*target)
	if err != nil {
		return nil, classify(dir, err)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, serrors.IOFailure(dir, err)
	}

	var res *Result
	if target.Equal(comp.Context) {
		res, err = o.saveInPlace(ctx, comp, dir, mon)
	} else {
		res, err = o.relocate(ctx, comp, *target, dir, mon)
	}
	if err != nil {
		logger.Warn("save failed", "target", target.String(), "dir", dir, "code", serrors.Code(err), "error", err)
		return nil, err
	}

	if res.Stats == nil {
		res.Stats = &store.SaveStats{}
	}
	logger.Info("component saved",
		"mode", res.Mode,
		"dir", res.Dir,
		"nodes", res.Stats.Nodes,
		"removed", res.Stats.Removed,
		"duration", time.Since(start),
	)

	if o.recorder != nil {
		if err := o.recorder.RecordSave(ctx, *target, dir); err != nil {
			logger.Warn("failed to record save location", "error", err)
		}
	}
	return res, nil
}

func (o *Orchestrator) saveInPlace(ctx context.Context, comp *types.Component, dir string, mon *progress.Monitor) (*Result, error) {
	current := comp.Directory.Root
	if current != "" {
		if abs, err := filepath.Abs(current); err == nil {
			current = abs
		}
	}
	if current != dir {
		return nil, serrors.LocationMismatch(dir, comp.Directory.Root).
			WithDetail("component", comp.Name)
	}

	stats, err := o.store.SaveTemplate(ctx, comp, mon)
	if err != nil {
		return nil, classify(dir, err)
	}
	return &Result{Mode: ModeInPlace, Dir: dir, Stats: stats}, nil
}

func (o *Orchestrator) relocate(ctx context.Context, comp *types.Component, target types.Context, dir string, mon *progress.Monitor) (*Result, error) {
	stats, err := o.store.SaveAsTemplate(ctx, comp, dir, mon, o.filter)
	if err != nil {
		return nil, classify(dir, err)
	}

	reloc := &types.Relocation{
		To:       target,
		FromRoot: comp.Directory.Root,
		ToRoot:   dir,
	}
	if comp.Context != nil {
		from := *comp.Context
		reloc.From = &from
	}
	return &Result{Mode: ModeRelocate, Dir: dir, Relocation: reloc, Stats: stats}, nil
}

// classify keeps the save kinds callers act on and folds everything else
// into IOFailure.
func classify(dir string, err error) error {
	switch serrors.Code(err) {
	case serrors.CodeContractViolation, serrors.CodeIOFailure, serrors.CodeCancelled, serrors.CodeLockFailure:
		return err
	}
	return serrors.IOFailure(dir, err)
}
