package sketch

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/sketch/gpubuf"
	"github.com/gogpu/sketch/gpucore"
)

// LineMesh accumulates line segments as an indexed vertex mesh, for
// pipelines that draw lines from a vertex buffer instead of reading a
// storage buffer. Each added segment contributes two vertices and two
// indices; the vertex and index buffers grow independently.
type LineMesh struct {
	vertices *gpubuf.Backed[f32.Vec2]
	indices  *gpubuf.Backed[uint32]
}

// NewLineMesh creates a mesh with room for capacity segments before the
// first reallocation.
func NewLineMesh(dev gpucore.Device, capacity int) (*LineMesh, error) {
	vertices, err := gpubuf.WithCapacity[f32.Vec2](dev, capacity*2, gpucore.BufferUsageVertex)
	if err != nil {
		return nil, fmt.Errorf("sketch: create vertex buffer: %w", err)
	}
	indices, err := gpubuf.WithCapacity[uint32](dev, capacity*2, gpucore.BufferUsageIndex)
	if err != nil {
		vertices.Release()
		return nil, fmt.Errorf("sketch: create index buffer: %w", err)
	}
	return &LineMesh{vertices: vertices, indices: indices}, nil
}

// AddLine appends a segment from a to b.
func (m *LineMesh) AddLine(a, b f32.Vec2) error {
	return m.vertices.AppendIndexed(m.indices, func(batch *gpubuf.IndexedBatch[f32.Vec2]) {
		batch.PushLine(a, b)
	})
}

// AddLines appends several segments in one commit.
func (m *LineMesh) AddLines(lines []Line) error {
	return m.vertices.AppendIndexed(m.indices, func(batch *gpubuf.IndexedBatch[f32.Vec2]) {
		for _, l := range lines {
			batch.PushLine(l.A, l.B)
		}
	})
}

// IndexCount reports the number of indices to draw.
func (m *LineMesh) IndexCount() int { return m.indices.Len() }

// VertexBuffer returns the vertex buffer handle for binding.
func (m *LineMesh) VertexBuffer() gpucore.BufferID { return m.vertices.Raw() }

// IndexBuffer returns the index buffer handle for binding.
func (m *LineMesh) IndexBuffer() gpucore.BufferID { return m.indices.Raw() }

// Release destroys both device buffers.
func (m *LineMesh) Release() {
	m.indices.Release()
	m.vertices.Release()
}
