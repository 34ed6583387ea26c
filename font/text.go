package font

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/sketch/gpubuf"
	"github.com/gogpu/sketch/gpucore"
)

// Text keeps a string's glyph mesh in device buffers. Set rewrites the
// mesh in place, growing the buffers only when the new string needs
// more room than any previous one.
type Text struct {
	font   *Font
	origin f32.Vec2

	vertices *gpubuf.Backed[Vertex]
	indices  *gpubuf.Backed[uint32]
}

// NewText uploads the mesh for s and returns the handle for later
// rewrites. The origin fixes the top-left corner of the first glyph
// cell, in pixels.
func NewText(dev gpucore.Device, f *Font, s string, origin f32.Vec2) (*Text, error) {
	verts, indices := f.Mesh(s, origin)

	vb, err := gpubuf.WithData(dev, verts, gpucore.BufferUsageVertex)
	if err != nil {
		return nil, fmt.Errorf("font: create text vertex buffer: %w", err)
	}
	ib, err := gpubuf.WithData(dev, indices, gpucore.BufferUsageIndex)
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("font: create text index buffer: %w", err)
	}

	return &Text{font: f, origin: origin, vertices: vb, indices: ib}, nil
}

// Set replaces the displayed string. The existing buffers are truncated
// and refilled; a string needing more room than the buffers hold
// triggers a reallocation, visible through the buffer versions.
func (t *Text) Set(s string) error {
	verts, indices := t.font.Mesh(s, t.origin)

	t.vertices.Reset()
	err := t.vertices.Append(func(b *gpubuf.Batch[Vertex]) {
		for _, v := range verts {
			b.Push(v)
		}
	})
	if err != nil {
		return fmt.Errorf("font: rewrite text vertices: %w", err)
	}

	t.indices.Reset()
	err = t.indices.Append(func(b *gpubuf.Batch[uint32]) {
		for _, i := range indices {
			b.Push(i)
		}
	})
	if err != nil {
		return fmt.Errorf("font: rewrite text indices: %w", err)
	}
	return nil
}

// IndexCount reports the number of indices to draw for the current
// string.
func (t *Text) IndexCount() int { return t.indices.Len() }

// VertexBuffer returns the vertex buffer handle for binding.
func (t *Text) VertexBuffer() gpucore.BufferID { return t.vertices.Raw() }

// IndexBuffer returns the index buffer handle for binding.
func (t *Text) IndexBuffer() gpucore.BufferID { return t.indices.Raw() }

// Versions returns the vertex and index buffer versions, for consumers
// that cache bindings against the raw handles.
func (t *Text) Versions() (vertices, indices uint32) {
	return t.vertices.Version(), t.indices.Version()
}

// Release destroys both device buffers. The atlas is owned by the Font
// and unaffected.
func (t *Text) Release() {
	t.indices.Release()
	t.vertices.Release()
}
