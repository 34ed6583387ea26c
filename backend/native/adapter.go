// Package native implements gpucore.Device on top of gogpu/wgpu's
// hardware abstraction layer, so buffers and textures created through
// the gpucore interface live on a real GPU.
package native

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sketch/gpucore"
)

// readbackTimeout bounds the fence wait during buffer readback.
const readbackTimeout = 5 * time.Second

type trackedBuffer struct {
	buffer hal.Buffer
	size   uint64
}

type trackedTexture struct {
	texture hal.Texture
	width   int
	height  int
	format  gpucore.TextureFormat
}

// Adapter implements gpucore.Device over a hal.Device and hal.Queue.
//
// Adapter is safe for concurrent use. Resource maps are guarded by a
// mutex; IDs come from an atomic counter.
type Adapter struct {
	mu       sync.RWMutex
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance

	nextID atomic.Uint64

	buffers    map[gpucore.BufferID]trackedBuffer
	textures   map[gpucore.TextureID]trackedTexture
	layouts    map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	bindGroups map[gpucore.BindGroupID]hal.BindGroup
}

// NewAdapter wraps an already opened device and queue. Callers that
// want the package to bring up the GPU should use [Open] instead.
func NewAdapter(device hal.Device, queue hal.Queue) *Adapter {
	a := &Adapter{
		device:     device,
		queue:      queue,
		buffers:    make(map[gpucore.BufferID]trackedBuffer),
		textures:   make(map[gpucore.TextureID]trackedTexture),
		layouts:    make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		bindGroups: make(map[gpucore.BindGroupID]hal.BindGroup),
	}
	a.nextID.Store(1)
	return a
}

func (a *Adapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// CreateBuffer allocates a GPU buffer of size bytes.
func (a *Adapter) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("native: buffer size must be positive, got %d", size)
	}

	buffer, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Size:  uint64(size),
		Usage: convertBufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer: %w", err)
	}

	id := gpucore.BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = trackedBuffer{buffer: buffer, size: uint64(size)}
	a.mu.Unlock()
	return id, nil
}

// DestroyBuffer releases a GPU buffer. Unknown IDs are ignored.
func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	tb, ok := a.buffers[id]
	if ok {
		delete(a.buffers, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBuffer(tb.buffer)
	}
}

// WriteBuffer uploads data at offset through the queue.
func (a *Adapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) {
	a.mu.RLock()
	tb, ok := a.buffers[id]
	a.mu.RUnlock()

	if ok && len(data) > 0 {
		a.queue.WriteBuffer(tb.buffer, offset, data)
	}
}

// ReadBuffer copies size bytes at offset back to the host. The copy
// goes through a staging buffer and waits on a fence, so it is a full
// GPU round trip.
func (a *Adapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	a.mu.RLock()
	tb, ok := a.buffers[id]
	a.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("native: buffer %d not found", id)
	}
	if offset+size > tb.size {
		return nil, fmt.Errorf("native: read of %d bytes at offset %d exceeds buffer size %d", size, offset, tb.size)
	}

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "sketch_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "sketch_readback"})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(tb.buffer, staging, []hal.BufferCopy{
		{SrcOffset: offset, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("native: create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("native: submit: %w", err)
	}
	fenceOK, err := a.device.Wait(fence, 1, readbackTimeout)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("native: wait for readback: ok=%v err=%w", fenceOK, err)
	}

	out := make([]byte, size)
	if err := a.queue.ReadBuffer(staging, 0, out); err != nil {
		return nil, fmt.Errorf("native: read staging buffer: %w", err)
	}
	return out, nil
}

// CreateTexture allocates a 2D sampled texture.
func (a *Adapter) CreateTexture(width, height int, format gpucore.TextureFormat) (gpucore.TextureID, error) {
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("native: texture dimensions must be positive, got %dx%d", width, height)
	}

	texture, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Size: hal.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        convertTextureFormat(format),
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create texture: %w", err)
	}

	id := gpucore.TextureID(a.newID())
	a.mu.Lock()
	a.textures[id] = trackedTexture{texture: texture, width: width, height: height, format: format}
	a.mu.Unlock()
	return id, nil
}

// DestroyTexture releases a texture. Unknown IDs are ignored.
func (a *Adapter) DestroyTexture(id gpucore.TextureID) {
	a.mu.Lock()
	tt, ok := a.textures[id]
	if ok {
		delete(a.textures, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyTexture(tt.texture)
	}
}

// WriteTexture uploads tightly packed pixel data covering the whole
// texture. The tracked dimensions set the row stride.
func (a *Adapter) WriteTexture(id gpucore.TextureID, data []byte) {
	a.mu.RLock()
	tt, ok := a.textures[id]
	a.mu.RUnlock()

	if !ok || len(data) == 0 {
		return
	}

	a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  tt.texture,
			MipLevel: 0,
			Origin:   hal.Origin3D{},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(tt.width * tt.format.BytesPerPixel()),
			RowsPerImage: uint32(tt.height),
		},
		&hal.Extent3D{
			Width:              uint32(tt.width),
			Height:             uint32(tt.height),
			DepthOrArrayLayers: 1,
		},
	)
}

// CreateBindGroupLayout creates a layout with vertex and fragment
// visibility for every entry.
func (a *Adapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("native: nil bind group layout descriptor")
	}

	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           convertBindingType(e.Type),
				MinBindingSize: e.MinBindingSize,
			},
		}
	}

	layout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group layout: %w", err)
	}

	id := gpucore.BindGroupLayoutID(a.newID())
	a.mu.Lock()
	a.layouts[id] = layout
	a.mu.Unlock()
	return id, nil
}

// DestroyBindGroupLayout releases a layout. Unknown IDs are ignored.
func (a *Adapter) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	a.mu.Lock()
	layout, ok := a.layouts[id]
	if ok {
		delete(a.layouts, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBindGroupLayout(layout)
	}
}

// CreateBindGroup binds the referenced buffers against layout. An entry
// size of zero binds the rest of the buffer from the entry offset.
func (a *Adapter) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	a.mu.RLock()
	halLayout, ok := a.layouts[layout]
	if !ok {
		a.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("native: bind group layout %d not found", layout)
	}

	halEntries := make([]gputypes.BindGroupEntry, len(entries))
	for i, e := range entries {
		tb, ok := a.buffers[e.Buffer]
		if !ok {
			a.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("native: bind group references unknown buffer %d", e.Buffer)
		}
		size := e.Size
		if size == 0 {
			size = tb.size - e.Offset
		}
		halEntries[i] = gputypes.BindGroupEntry{
			Binding: e.Binding,
			Resource: gputypes.BufferBinding{
				Buffer: tb.buffer.NativeHandle(),
				Offset: e.Offset,
				Size:   size,
			},
		}
	}
	a.mu.RUnlock()

	group, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Layout:  halLayout,
		Entries: halEntries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group: %w", err)
	}

	id := gpucore.BindGroupID(a.newID())
	a.mu.Lock()
	a.bindGroups[id] = group
	a.mu.Unlock()
	return id, nil
}

// DestroyBindGroup releases a bind group. Unknown IDs are ignored.
func (a *Adapter) DestroyBindGroup(id gpucore.BindGroupID) {
	a.mu.Lock()
	group, ok := a.bindGroups[id]
	if ok {
		delete(a.bindGroups, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBindGroup(group)
	}
}

// Close destroys the device and, when the adapter opened it, the
// instance. Resources created through the adapter must be destroyed
// first.
func (a *Adapter) Close() {
	if a.device != nil {
		a.device.Destroy()
		a.device = nil
		a.queue = nil
	}
	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
	}
}

func convertBufferUsage(usage gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if usage.Contains(gpucore.BufferUsageMapRead) {
		out |= gputypes.BufferUsageMapRead
	}
	if usage.Contains(gpucore.BufferUsageMapWrite) {
		out |= gputypes.BufferUsageMapWrite
	}
	if usage.Contains(gpucore.BufferUsageCopySrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if usage.Contains(gpucore.BufferUsageCopyDst) {
		out |= gputypes.BufferUsageCopyDst
	}
	if usage.Contains(gpucore.BufferUsageIndex) {
		out |= gputypes.BufferUsageIndex
	}
	if usage.Contains(gpucore.BufferUsageVertex) {
		out |= gputypes.BufferUsageVertex
	}
	if usage.Contains(gpucore.BufferUsageUniform) {
		out |= gputypes.BufferUsageUniform
	}
	if usage.Contains(gpucore.BufferUsageStorage) {
		out |= gputypes.BufferUsageStorage
	}
	return out
}

func convertTextureFormat(format gpucore.TextureFormat) gputypes.TextureFormat {
	switch format {
	case gpucore.TextureFormatRGBA8UnormSRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb
	case gpucore.TextureFormatR8Unorm:
		return gputypes.TextureFormatR8Unorm
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

func convertBindingType(t gpucore.BindingType) gputypes.BufferBindingType {
	switch t {
	case gpucore.BindingTypeUniformBuffer:
		return gputypes.BufferBindingTypeUniform
	case gpucore.BindingTypeStorageBuffer:
		return gputypes.BufferBindingTypeStorage
	case gpucore.BindingTypeReadOnlyStorageBuffer:
		return gputypes.BufferBindingTypeReadOnlyStorage
	default:
		return gputypes.BufferBindingTypeUniform
	}
}

var _ gpucore.Device = (*Adapter)(nil)
