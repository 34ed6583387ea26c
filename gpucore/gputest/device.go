// Package gputest provides an in-memory gpucore.Device for tests and
// examples. Buffers live in host byte slices, so uploads can be read back
// and compared without GPU hardware.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/sketch/gpucore"
)

// ErrAllocFailed is returned by CreateBuffer when FailNextAlloc is set.
var ErrAllocFailed = errors.New("gputest: simulated allocation failure")

type buffer struct {
	data  []byte
	usage gpucore.BufferUsage
}

type texture struct {
	width, height int
	format        gpucore.TextureFormat
	data          []byte
}

// Device is an in-memory implementation of gpucore.Device.
//
// Besides the Device contract it keeps counters (allocations, writes,
// live resources) that tests use to assert whether a commit took the
// partial-write or the reallocation path.
type Device struct {
	mu     sync.Mutex
	nextID uint64

	buffers    map[gpucore.BufferID]*buffer
	textures   map[gpucore.TextureID]*texture
	layouts    map[gpucore.BindGroupLayoutID]*gpucore.BindGroupLayoutDesc
	bindGroups map[gpucore.BindGroupID][]gpucore.BindGroupEntry

	bufferAllocs int
	bufferWrites int

	// FailNextAlloc makes the next CreateBuffer call fail with
	// ErrAllocFailed. It is consumed by that call.
	FailNextAlloc bool
}

// NewDevice creates an empty in-memory device.
func NewDevice() *Device {
	return &Device{
		nextID:     1,
		buffers:    make(map[gpucore.BufferID]*buffer),
		textures:   make(map[gpucore.TextureID]*texture),
		layouts:    make(map[gpucore.BindGroupLayoutID]*gpucore.BindGroupLayoutDesc),
		bindGroups: make(map[gpucore.BindGroupID][]gpucore.BindGroupEntry),
	}
}

func (d *Device) newID() uint64 {
	id := d.nextID
	d.nextID++
	return id
}

// CreateBuffer allocates a zeroed host-side buffer.
func (d *Device) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailNextAlloc {
		d.FailNextAlloc = false
		return gpucore.InvalidID, ErrAllocFailed
	}
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("gputest: buffer size must be positive, got %d", size)
	}

	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{data: make([]byte, size), usage: usage}
	d.bufferAllocs++
	return id, nil
}

// DestroyBuffer releases a buffer. Unknown IDs are ignored.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
}

// WriteBuffer copies data into a buffer. Writes to unknown buffers or
// past the end of a buffer panic: both indicate a bug in the code under
// test, and a real device would flag them as validation errors.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[id]
	if !ok {
		panic(fmt.Sprintf("gputest: write to unknown buffer %d", id))
	}
	if offset+uint64(len(data)) > uint64(len(buf.data)) {
		panic(fmt.Sprintf("gputest: write of %d bytes at offset %d exceeds buffer size %d",
			len(data), offset, len(buf.data)))
	}
	copy(buf.data[offset:], data)
	d.bufferWrites++
}

// ReadBuffer returns a copy of size bytes starting at offset.
func (d *Device) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("gputest: buffer %d not found", id)
	}
	if offset+size > uint64(len(buf.data)) {
		return nil, fmt.Errorf("gputest: read of %d bytes at offset %d exceeds buffer size %d",
			size, offset, len(buf.data))
	}
	out := make([]byte, size)
	copy(out, buf.data[offset:])
	return out, nil
}

// BufferSize returns the byte size of a buffer, or -1 if it does not exist.
func (d *Device) BufferSize(id gpucore.BufferID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[id]
	if !ok {
		return -1
	}
	return len(buf.data)
}

// CreateTexture allocates a host-side texture.
func (d *Device) CreateTexture(width, height int, format gpucore.TextureFormat) (gpucore.TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("gputest: texture dimensions must be positive, got %dx%d", width, height)
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = &texture{
		width:  width,
		height: height,
		format: format,
		data:   make([]byte, width*height*format.BytesPerPixel()),
	}
	return id, nil
}

// DestroyTexture releases a texture. Unknown IDs are ignored.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, id)
}

// WriteTexture copies pixel data into a texture.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[id]
	if !ok {
		panic(fmt.Sprintf("gputest: write to unknown texture %d", id))
	}
	if len(data) > len(tex.data) {
		panic(fmt.Sprintf("gputest: texture write of %d bytes exceeds texture size %d", len(data), len(tex.data)))
	}
	copy(tex.data, data)
}

// CreateBindGroupLayout records a layout descriptor.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc == nil || len(desc.Entries) == 0 {
		return gpucore.InvalidID, errors.New("gputest: bind group layout needs at least one entry")
	}
	id := gpucore.BindGroupLayoutID(d.newID())
	cp := *desc
	d.layouts[id] = &cp
	return id, nil
}

// DestroyBindGroupLayout releases a layout. Unknown IDs are ignored.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.layouts, id)
}

// CreateBindGroup records a bind group. Every referenced buffer must
// currently exist; a bind group holding a released buffer would be the
// stale-identity error the version contract exists to prevent.
func (d *Device) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.layouts[layout]; !ok {
		return gpucore.InvalidID, fmt.Errorf("gputest: bind group layout %d not found", layout)
	}
	for _, e := range entries {
		if _, ok := d.buffers[e.Buffer]; !ok {
			return gpucore.InvalidID, fmt.Errorf("gputest: bind group references unknown buffer %d", e.Buffer)
		}
	}
	id := gpucore.BindGroupID(d.newID())
	d.bindGroups[id] = append([]gpucore.BindGroupEntry(nil), entries...)
	return id, nil
}

// DestroyBindGroup releases a bind group. Unknown IDs are ignored.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bindGroups, id)
}

// BindGroupEntries returns a copy of the entries a bind group was created
// with, or nil if it does not exist.
func (d *Device) BindGroupEntries(id gpucore.BindGroupID) []gpucore.BindGroupEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries, ok := d.bindGroups[id]
	if !ok {
		return nil
	}
	return append([]gpucore.BindGroupEntry(nil), entries...)
}

// BufferAllocs returns the number of CreateBuffer calls that succeeded.
func (d *Device) BufferAllocs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bufferAllocs
}

// BufferWrites returns the number of WriteBuffer calls.
func (d *Device) BufferWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bufferWrites
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

var _ gpucore.Device = (*Device)(nil)
