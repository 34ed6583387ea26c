// Package camera provides view-projection cameras and their GPU uniform
// bindings for the sketch canvas.
package camera

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/sketch/gpubuf"
	"github.com/gogpu/sketch/gpucore"
)

// Camera produces a view-projection matrix. Matrices are column-major,
// matching the layout shaders expect.
type Camera interface {
	ViewProj() f32.Mat4
}

// Uniform is the GPU-side camera block: a single column-major matrix.
type Uniform struct {
	ViewProj f32.Mat4
}

// Ortho is an orthographic camera over a pixel-space viewport, with the
// origin at the top-left and Y increasing downward.
type Ortho struct {
	left, right, bottom, top float32
}

// NewOrtho creates an orthographic camera with the given clip planes.
func NewOrtho(left, right, bottom, top float32) *Ortho {
	return &Ortho{left: left, right: right, bottom: bottom, top: top}
}

// Resize moves the right and bottom planes to track a new viewport size.
func (o *Ortho) Resize(width, height int) {
	o.right = float32(width)
	o.bottom = float32(height)
}

// ViewProj returns the orthographic projection, mapping the viewport
// rectangle onto clip space with a 0..1 depth range.
func (o *Ortho) ViewProj() f32.Mat4 {
	rml := o.right - o.left
	tmb := o.top - o.bottom
	return f32.Mat4{
		2 / rml, 0, 0, 0,
		0, 2 / tmb, 0, 0,
		0, 0, -1, 0,
		-(o.right + o.left) / rml, -(o.top + o.bottom) / tmb, 0, 1,
	}
}

// Binder owns the bind group layout shared by all camera bindings.
type Binder struct {
	dev    gpucore.Device
	layout gpucore.BindGroupLayoutID
}

// NewBinder creates the camera bind group layout: a single uniform
// buffer at binding 0.
func NewBinder(dev gpucore.Device) (*Binder, error) {
	layout, err := dev.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "camera",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeUniformBuffer},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("camera: create layout: %w", err)
	}
	return &Binder{dev: dev, layout: layout}, nil
}

// Layout returns the shared bind group layout, for pipeline construction.
func (b *Binder) Layout() gpucore.BindGroupLayoutID {
	return b.layout
}

// Bind uploads the camera's current matrix into a fresh uniform buffer
// and wraps it in a bind group.
func (b *Binder) Bind(cam Camera) (*Binding, error) {
	uniform, err := gpubuf.WithData(b.dev, []Uniform{{ViewProj: cam.ViewProj()}}, gpucore.BufferUsageUniform)
	if err != nil {
		return nil, fmt.Errorf("camera: create uniform buffer: %w", err)
	}
	group, err := b.dev.CreateBindGroup(b.layout, []gpucore.BindGroupEntry{
		{Binding: 0, Buffer: uniform.Raw()},
	})
	if err != nil {
		uniform.Release()
		return nil, fmt.Errorf("camera: create bind group: %w", err)
	}
	return &Binding{dev: b.dev, uniform: uniform, group: group}, nil
}

// Release destroys the layout. Bindings created from the binder must be
// released first.
func (b *Binder) Release() {
	if b.layout != gpucore.InvalidID {
		b.dev.DestroyBindGroupLayout(b.layout)
		b.layout = gpucore.InvalidID
	}
}

// Binding is a camera uniform buffer plus the bind group referencing it.
// The uniform buffer never reallocates (its size is fixed at one record),
// so the bind group stays valid for the binding's lifetime.
type Binding struct {
	dev     gpucore.Device
	uniform *gpubuf.Backed[Uniform]
	group   gpucore.BindGroupID
}

// Update rewrites the uniform block with the camera's current matrix.
// The write is in place; the bind group is untouched.
func (bd *Binding) Update(cam Camera) {
	bd.uniform.Update(func(u []Uniform) {
		u[0].ViewProj = cam.ViewProj()
	})
}

// Group returns the bind group to set during a render pass.
func (bd *Binding) Group() gpucore.BindGroupID {
	return bd.group
}

// Release destroys the bind group and uniform buffer.
func (bd *Binding) Release() {
	if bd.group != gpucore.InvalidID {
		bd.dev.DestroyBindGroup(bd.group)
		bd.group = gpucore.InvalidID
	}
	bd.uniform.Release()
}
