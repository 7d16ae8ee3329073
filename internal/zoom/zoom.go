// Package zoom maps modifier-qualified mouse-wheel events to canvas zoom
// levels.
package zoom

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/meow-stack/meow-studio/internal/config"
	"github.com/meow-stack/meow-studio/internal/logging"
)

// Modifiers is a set of keyboard modifiers held during a wheel event.
type Modifiers uint8

const (
	// ModPrimary is Ctrl, or Cmd on macOS.
	ModPrimary Modifiers = 1 << iota
	// ModAlt selects continuous zoom.
	ModAlt
	ModShift
)

// Has reports whether all of mod are set.
func (m Modifiers) Has(mod Modifiers) bool {
	return m&mod == mod
}

func (m Modifiers) String() string {
	var parts []string
	if m.Has(ModPrimary) {
		parts = append(parts, "primary")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "alt")
	}
	if m.Has(ModShift) {
		parts = append(parts, "shift")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// ParseModifiers parses a "+" or "," separated modifier list such as
// "primary+alt". "ctrl" and "cmd" are accepted for primary.
func ParseModifiers(s string) (Modifiers, bool) {
	var m Modifiers
	for _, part := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '+' || r == ',' }) {
		switch strings.TrimSpace(part) {
		case "primary", "ctrl", "cmd":
			m |= ModPrimary
		case "alt", "option":
			m |= ModAlt
		case "shift":
			m |= ModShift
		case "", "none":
		default:
			return 0, false
		}
	}
	return m, true
}

// WheelEvent is a scroll on a canvas. Delta counts notches; positive
// scrolls away from the user and zooms in.
type WheelEvent struct {
	Canvas    string    `json:"canvas"`
	Delta     int       `json:"delta"`
	Modifiers Modifiers `json:"modifiers"`
}

// Levels persists zoom levels per canvas.
type Levels interface {
	ZoomLevel(ctx context.Context, canvas string) (float64, bool, error)
	SetZoomLevel(ctx context.Context, canvas string, level float64) error
}

// Controller tracks the zoom level of each canvas.
type Controller struct {
	presets  []float64
	perNotch float64
	initial  float64
	levels   Levels
	logger   *slog.Logger

	mu      sync.Mutex
	current map[string]float64
}

// NewController creates a controller. levels may be nil, in which case
// zoom levels live only as long as the controller.
func NewController(cfg config.ZoomConfig, levels Levels, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	presets := append([]float64(nil), cfg.Presets...)
	sort.Float64s(presets)
	if len(presets) == 0 {
		presets = []float64{100}
	}

	c := &Controller{
		presets:  presets,
		perNotch: cfg.PercentPerNotch,
		levels:   levels,
		logger:   logger.With("component", "zoom"),
		current:  make(map[string]float64),
	}
	c.initial = c.clamp(cfg.Default)
	return c
}

// Presets returns the discrete zoom levels, ascending.
func (c *Controller) Presets() []float64 {
	return append([]float64(nil), c.presets...)
}

// Level returns the zoom level of a canvas.
func (c *Controller) Level(ctx context.Context, canvas string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx, canvas)
}

// Set clamps level and makes it the zoom level of a canvas.
func (c *Controller) Set(ctx context.Context, canvas string, level float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store(ctx, canvas, c.clamp(level))
}

// Wheel applies a wheel event. Without the primary modifier, or with a zero
// delta, the event is not handled and belongs to the canvas (scrolling).
// With the primary modifier the level moves one preset step per event; with
// primary and alt it moves Delta*PercentPerNotch percentage points. The
// returned level is the canvas level after the event. A persistence
// failure is returned alongside the applied level.
func (c *Controller) Wheel(ctx context.Context, ev WheelEvent) (float64, bool, error) {
	if !ev.Modifiers.Has(ModPrimary) || ev.Delta == 0 {
		return 0, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.load(ctx, ev.Canvas)
	if err != nil {
		return 0, false, err
	}

	var next float64
	switch {
	case ev.Modifiers.Has(ModAlt):
		next = c.clamp(cur + float64(ev.Delta)*c.perNotch)
	case ev.Delta > 0:
		next = NextPreset(c.presets, cur)
	default:
		next = PreviousPreset(c.presets, cur)
	}

	logging.WithCanvas(c.logger, ev.Canvas).Debug("wheel zoom",
		"delta", ev.Delta,
		"modifiers", ev.Modifiers.String(),
		"from", cur,
		"to", next,
	)
	level, err := c.store(ctx, ev.Canvas, next)
	return level, true, err
}

func (c *Controller) load(ctx context.Context, canvas string) (float64, error) {
	if level, ok := c.current[canvas]; ok {
		return level, nil
	}
	level := c.initial
	if c.levels != nil {
		stored, ok, err := c.levels.ZoomLevel(ctx, canvas)
		if err != nil {
			return 0, err
		}
		if ok {
			level = c.clamp(stored)
		}
	}
	c.current[canvas] = level
	return level, nil
}

func (c *Controller) store(ctx context.Context, canvas string, level float64) (float64, error) {
	c.current[canvas] = level
	if c.levels == nil {
		return level, nil
	}
	if err := c.levels.SetZoomLevel(ctx, canvas, level); err != nil {
		logging.WithCanvas(c.logger, canvas).Warn("failed to persist zoom level", "error", err)
		return level, err
	}
	return level, nil
}

func (c *Controller) clamp(level float64) float64 {
	lo, hi := c.presets[0], c.presets[len(c.presets)-1]
	if math.IsNaN(level) {
		return c.presets[0]
	}
	return math.Max(lo, math.Min(hi, level))
}

// presetEpsilon absorbs float drift from continuous zoom so a level a
// hair below a preset is treated as that preset.
const presetEpsilon = 1e-6

// NextPreset returns the smallest preset above level, or the largest
// preset when none is.
func NextPreset(presets []float64, level float64) float64 {
	for _, p := range presets {
		if p > level+presetEpsilon {
			return p
		}
	}
	return presets[len(presets)-1]
}

// PreviousPreset returns the largest preset below level, or the smallest
// preset when none is.
func PreviousPreset(presets []float64, level float64) float64 {
	for i := len(presets) - 1; i >= 0; i-- {
		if presets[i] < level-presetEpsilon {
			return presets[i]
		}
	}
	return presets[0]
}
