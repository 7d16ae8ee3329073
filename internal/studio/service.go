// Package studio wires the save orchestrator, the canvas glue and the
// listener bus into the service behind the editor's IPC socket.
package studio

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/meow-stack/meow-studio/internal/codec"
	"github.com/meow-stack/meow-studio/internal/config"
	"github.com/meow-stack/meow-studio/internal/drop"
	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/listener"
	"github.com/meow-stack/meow-studio/internal/mount"
	"github.com/meow-stack/meow-studio/internal/progress"
	"github.com/meow-stack/meow-studio/internal/save"
	"github.com/meow-stack/meow-studio/internal/settings"
	"github.com/meow-stack/meow-studio/internal/store"
	"github.com/meow-stack/meow-studio/internal/types"
	"github.com/meow-stack/meow-studio/internal/watch"
	"github.com/meow-stack/meow-studio/internal/zoom"
)

// LastLinkSetting is the settings key holding the last dropped web link.
const LastLinkSetting = "drop.last_link"

// busBuffer bounds the events awaiting delivery to listeners.
const busBuffer = 64

// ownWriteQuiet is how long the watcher ignores a directory after this
// service wrote it.
const ownWriteQuiet = 2 * time.Second

// SavedEvent is posted on the bus after every successful save.
type SavedEvent struct {
	SaveID     string            `json:"save_id,omitempty"`
	TemplateID string            `json:"template_id"`
	Target     string            `json:"target"`
	Result     *save.Result      `json:"result"`
	Relocation *types.Relocation `json:"relocation,omitempty"`
}

// ZoomEvent is posted when a canvas zoom level changes.
type ZoomEvent struct {
	Canvas string  `json:"canvas"`
	Level  float64 `json:"level"`
}

// LinkEvent is posted when a web link is dropped onto the editor.
type LinkEvent struct {
	URL string `json:"url"`
}

// ModifiedEvent is posted when a saved template directory is changed by
// another program.
type ModifiedEvent struct {
	Dir     string         `json:"dir"`
	Context *types.Context `json:"context,omitempty"`
}

// Service is the running studio.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	mounts  *mount.Table
	store   *store.TemplateStore
	db      *settings.DB
	saver   *save.Orchestrator
	zoom    *zoom.Controller
	bus     *listener.Bus
	drops   *drop.Target
	watcher *watch.Watcher

	mu    sync.Mutex
	saves map[string]*progress.Monitor

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// Open builds a Service from configuration. Relative paths in cfg are
// anchored at baseDir. The caller must Close the service.
func Open(cfg *config.Config, baseDir string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	serializer, err := codec.New(cfg.Save.Codec, cfg.Save.Compression)
	if err != nil {
		return nil, err
	}

	db, err := settings.Open(cfg.SettingsDB(baseDir))
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:    cfg,
		logger: logger.With("component", "studio"),
		mounts: mount.NewTable(cfg.MountRoots(baseDir)),
		store:  store.New(serializer, logger),
		db:     db,
		bus:    listener.NewBus(busBuffer, logger),
		saves:  make(map[string]*progress.Monitor),
		done:   make(chan struct{}),
	}

	opts := []save.Option{save.WithRecorder(db)}
	if len(cfg.Save.Exclude) > 0 {
		opts = append(opts, save.WithFilter(store.ExcludePrefixes(cfg.Save.Exclude...)))
	}
	s.saver = save.New(s.store, s.mounts, logger, opts...)
	s.zoom = zoom.NewController(cfg.Zoom, db, logger)

	s.drops = drop.NewTarget(drop.NewAcceptor(cfg.Drop.Schemes, logger), logger)
	s.drops.Handle("file", drop.NewFileImporter(s.store, s.mounts, s.imported))
	link := drop.ImporterFunc(s.linkDropped)
	s.drops.Handle("http", link)
	s.drops.Handle("https", link)

	if cfg.Watch.Enabled {
		w, err := watch.New(cfg.Watch.Debounce, logger)
		if err != nil {
			s.logger.Warn("template watcher unavailable", "error", err)
		} else {
			s.watcher = w
			s.wg.Add(1)
			go s.forwardChanges()
		}
	}

	s.logger.Info("studio opened",
		"mounts", s.mounts.Names(),
		"codec", serializer.CodecName(),
		"compression", serializer.Compression(),
		"watch", s.watcher != nil,
	)
	return s, nil
}

// Bus returns the listener bus events are posted on.
func (s *Service) Bus() *listener.Bus {
	return s.bus
}

// Store returns the template store.
func (s *Service) Store() *store.TemplateStore {
	return s.store
}

// Settings returns the settings database.
func (s *Service) Settings() *settings.DB {
	return s.db
}

// Zoom returns the zoom controller.
func (s *Service) Zoom() *zoom.Controller {
	return s.zoom
}

// Resolve returns the directory a "MOUNT:/path" context denotes.
func (s *Service) Resolve(target string) (string, error) {
	loc, err := types.ParseContext(target)
	if err != nil {
		return "", err
	}
	return s.mounts.Resolve(loc)
}

// Load reads the template in dir and places it at the context its
// directory lives at, if any.
func (s *Service) Load(ctx context.Context, dir string) (*types.Component, error) {
	comp, err := s.store.Load(ctx, dir)
	if err != nil {
		return nil, err
	}
	if loc, ok := s.mounts.Reverse(comp.Directory.Root); ok {
		comp.Context = &loc
	}
	return comp, nil
}

// Save saves comp at target ("MOUNT:/path"). A non-empty saveID makes the
// save cancellable through Cancel while it runs. The component is not
// modified; the caller applies the returned Relocation.
func (s *Service) Save(ctx context.Context, saveID string, comp *types.Component, target string) (*save.Result, error) {
	if comp == nil {
		return nil, serrors.ContractViolation("no component to save")
	}
	loc, err := types.ParseContext(target)
	if err != nil {
		return nil, serrors.ContractViolation(err.Error()).WithCause(err)
	}

	ctx, release := context.WithCancel(ctx)
	defer release()
	mon := progress.New(ctx)
	if saveID != "" {
		if err := s.track(saveID, mon); err != nil {
			return nil, err
		}
		defer s.untrack(saveID)
	}

	if dir, err := s.mounts.Resolve(loc); err == nil && s.watcher != nil {
		s.watcher.Quiet(dir, ownWriteQuiet)
	}

	res, err := s.saver.Save(ctx, comp, &loc, mon)
	if err != nil {
		return nil, err
	}

	if s.watcher != nil {
		if res.Relocation != nil && res.Relocation.FromRoot != "" {
			s.watcher.Unwatch(res.Relocation.FromRoot)
		}
		// Rewatching resets the quiet period, so quiet again afterwards.
		if err := s.watcher.Watch(res.Dir); err != nil {
			s.logger.Warn("cannot watch saved template", "dir", res.Dir, "error", err)
		}
		s.watcher.Quiet(res.Dir, ownWriteQuiet)
	}

	s.post(listener.KindSaved, SavedEvent{
		SaveID:     saveID,
		TemplateID: comp.TemplateID,
		Target:     loc.String(),
		Result:     res,
		Relocation: res.Relocation,
	})
	return res, nil
}

// Cancel requests cancellation of a running save. It reports whether a
// save with that ID was running.
func (s *Service) Cancel(saveID string) bool {
	s.mu.Lock()
	mon, ok := s.saves[saveID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	mon.Cancel()
	s.logger.Info("save cancellation requested", "save_id", saveID)
	return true
}

func (s *Service) track(saveID string, mon *progress.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.saves[saveID]; busy {
		return serrors.ContractViolation(fmt.Sprintf("save %s is already running", saveID))
	}
	s.saves[saveID] = mon
	return nil
}

func (s *Service) untrack(saveID string) {
	s.mu.Lock()
	delete(s.saves, saveID)
	s.mu.Unlock()
}

// Wheel applies a wheel event and posts the new level when it changed.
func (s *Service) Wheel(ctx context.Context, ev zoom.WheelEvent) (float64, bool, error) {
	before, err := s.zoom.Level(ctx, ev.Canvas)
	if err != nil {
		return 0, false, err
	}
	level, handled, err := s.zoom.Wheel(ctx, ev)
	if !handled {
		return before, false, err
	}
	if level != before {
		s.post(listener.KindZoom, ZoomEvent{Canvas: ev.Canvas, Level: level})
	}
	return level, handled, err
}

// Drop handles a payload dropped onto the editor.
func (s *Service) Drop(ctx context.Context, payload string) (bool, error) {
	return s.drops.Drop(ctx, payload)
}

func (s *Service) imported(comp *types.Component) {
	if s.watcher != nil {
		if err := s.watcher.Watch(comp.Directory.Root); err != nil {
			s.logger.Warn("cannot watch imported template", "dir", comp.Directory.Root, "error", err)
		}
	}
	s.post(listener.KindImported, comp)
}

func (s *Service) linkDropped(ctx context.Context, u *url.URL) error {
	if err := s.db.SetSetting(ctx, LastLinkSetting, u.String()); err != nil {
		return serrors.IOWriteError(LastLinkSetting, err)
	}
	s.post(listener.KindLinkDropped, LinkEvent{URL: u.String()})
	return nil
}

func (s *Service) forwardChanges() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case dir := <-s.watcher.Changes():
			ev := ModifiedEvent{Dir: dir}
			if loc, ok := s.mounts.Reverse(filepath.Clean(dir)); ok {
				ev.Context = &loc
			}
			s.logger.Info("template changed on disk", "dir", dir)
			s.post(listener.KindModified, ev)
		}
	}
}

func (s *Service) post(kind string, data any) {
	if err := s.bus.Post(listener.Event{Kind: kind, Data: data}); err != nil {
		s.logger.Debug("event not posted", "kind", kind, "error", err)
	}
}

// Close cancels running saves and releases every resource the service
// holds. Safe to call more than once.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		for _, mon := range s.saves {
			mon.Cancel()
		}
		s.mu.Unlock()

		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
		s.wg.Wait()
		s.bus.Close()
		err = s.db.Close()
		s.logger.Info("studio closed")
	})
	return err
}
