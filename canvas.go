package sketch

import (
	"errors"
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/sketch/gpubuf"
	"github.com/gogpu/sketch/gpucore"
)

// Canvas errors.
var (
	ErrInvalidConfig = errors.New("sketch: invalid config")
)

// Line is a single stroked segment between two points in canvas space.
// Canvas space runs from (0,0) at the bottom-left to (1,1) at the
// top-right, independent of the window size.
//
// The layout matches the storage buffer record read by the line shader:
// two vec2<f32> fields, 16 bytes total.
type Line struct {
	A f32.Vec2
	B f32.Vec2
}

// Config controls the initial sizing of a Canvas.
type Config struct {
	// LineCapacity is the number of line records reserved up front in
	// the line storage buffer. Appending beyond the capacity grows the
	// buffer and invalidates the geometry bind group.
	LineCapacity int

	// Usage is the buffer usage for the line storage buffer. It must
	// include gpucore.BufferUsageStorage so the shader can read it.
	Usage gpucore.BufferUsage
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		LineCapacity: 16,
		Usage:        gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LineCapacity < 0 {
		return fmt.Errorf("%w: line capacity %d is negative", ErrInvalidConfig, c.LineCapacity)
	}
	if !c.Usage.Contains(gpucore.BufferUsageStorage) {
		return fmt.Errorf("%w: usage must include storage", ErrInvalidConfig)
	}
	return nil
}

// Canvas accumulates finished lines in a GPU storage buffer and keeps a
// one-record preview buffer for the line currently being drawn. The
// geometry bind group exposes both buffers to the line shader and is
// rebuilt lazily whenever either buffer reallocates.
type Canvas struct {
	dev gpucore.Device

	lines   *gpubuf.Backed[Line]
	preview *gpubuf.Backed[Line]

	layout gpucore.BindGroupLayoutID
	group  gpucore.BindGroupID

	// Versions the current bind group was built against. When either
	// buffer reallocates its version advances and the group is stale.
	linesVersion   uint32
	previewVersion uint32

	width  float32
	height float32
}

// NewCanvas creates a Canvas on dev sized to width by height pixels.
func NewCanvas(dev gpucore.Device, width, height int, cfg Config) (*Canvas, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lines, err := gpubuf.WithCapacity[Line](dev, cfg.LineCapacity, cfg.Usage)
	if err != nil {
		return nil, fmt.Errorf("sketch: create line buffer: %w", err)
	}

	// The preview buffer always holds exactly one record. A degenerate
	// zero line renders nothing, which doubles as the cleared state.
	preview, err := gpubuf.WithData(dev, []Line{{}}, cfg.Usage)
	if err != nil {
		lines.Release()
		return nil, fmt.Errorf("sketch: create preview buffer: %w", err)
	}

	layout, err := dev.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "sketch geometry",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
			{Binding: 1, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
		},
	})
	if err != nil {
		preview.Release()
		lines.Release()
		return nil, fmt.Errorf("sketch: create geometry layout: %w", err)
	}

	return &Canvas{
		dev:     dev,
		lines:   lines,
		preview: preview,
		layout:  layout,
		width:   float32(width),
		height:  float32(height),
	}, nil
}

// FinishLine appends a completed line to the line storage buffer and
// clears the preview.
func (c *Canvas) FinishLine(line Line) error {
	err := c.lines.Append(func(b *gpubuf.Batch[Line]) {
		b.Push(line)
	})
	if err != nil {
		return fmt.Errorf("sketch: finish line: %w", err)
	}
	Logger().Debug("line finished", "count", c.lines.Len(), "version", c.lines.Version())
	c.ClearPreview()
	return nil
}

// SetPreview replaces the preview line, shown while the user is still
// dragging.
func (c *Canvas) SetPreview(line Line) {
	c.preview.Update(func(records []Line) {
		records[0] = line
	})
}

// ClearPreview resets the preview to a degenerate line that renders
// nothing.
func (c *Canvas) ClearPreview() {
	c.preview.Update(func(records []Line) {
		records[0] = Line{}
	})
}

// LineCount reports the number of finished lines.
func (c *Canvas) LineCount() int { return c.lines.Len() }

// Layout returns the bind group layout for the geometry bind group.
// Render pipelines reading the line buffers are created against it.
func (c *Canvas) Layout() gpucore.BindGroupLayoutID { return c.layout }

// Geometry returns the bind group exposing the line and preview buffers
// to the shader. The group is rebuilt when either buffer has
// reallocated since the last call, so the returned ID must be
// re-fetched every frame rather than cached.
func (c *Canvas) Geometry() (gpucore.BindGroupID, error) {
	lv, pv := c.lines.Version(), c.preview.Version()
	if c.group != gpucore.InvalidID && lv == c.linesVersion && pv == c.previewVersion {
		return c.group, nil
	}

	if c.group != gpucore.InvalidID {
		c.dev.DestroyBindGroup(c.group)
		c.group = gpucore.InvalidID
	}

	group, err := c.dev.CreateBindGroup(c.layout, []gpucore.BindGroupEntry{
		{Binding: 0, Buffer: c.lines.Raw()},
		{Binding: 1, Buffer: c.preview.Raw()},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("sketch: create geometry bind group: %w", err)
	}
	Logger().Debug("geometry bind group rebuilt", "linesVersion", lv, "previewVersion", pv)

	c.group = group
	c.linesVersion = lv
	c.previewVersion = pv
	return group, nil
}

// Resize updates the window size used by ProjectPoint.
func (c *Canvas) Resize(width, height int) {
	c.width = float32(width)
	c.height = float32(height)
}

// ProjectPoint converts a window-space point, with the origin at the
// top-left and y growing downward, to canvas space with the origin at
// the bottom-left.
func (c *Canvas) ProjectPoint(x, y float32) f32.Vec2 {
	return f32.Vec2{x / c.width, 1 - y/c.height}
}

// Release destroys all GPU resources owned by the canvas.
func (c *Canvas) Release() {
	if c.group != gpucore.InvalidID {
		c.dev.DestroyBindGroup(c.group)
		c.group = gpucore.InvalidID
	}
	if c.layout != gpucore.InvalidID {
		c.dev.DestroyBindGroupLayout(c.layout)
		c.layout = gpucore.InvalidID
	}
	c.preview.Release()
	c.lines.Release()
}
