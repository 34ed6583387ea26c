package sketch

import (
	"encoding/binary"
	"testing"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/sketch/gpucore/gputest"
)

func TestLineMeshAddLine(t *testing.T) {
	dev := gputest.NewDevice()
	mesh, err := NewLineMesh(dev, 8)
	if err != nil {
		t.Fatalf("NewLineMesh() error = %v", err)
	}
	defer mesh.Release()

	if err := mesh.AddLine(f32.Vec2{0, 0}, f32.Vec2{1, 1}); err != nil {
		t.Fatalf("AddLine() error = %v", err)
	}
	if err := mesh.AddLine(f32.Vec2{1, 1}, f32.Vec2{2, 0}); err != nil {
		t.Fatalf("AddLine() error = %v", err)
	}

	if got := mesh.IndexCount(); got != 4 {
		t.Errorf("IndexCount() = %d, want 4", got)
	}

	// Indices enumerate the vertices in push order.
	data, err := dev.ReadBuffer(mesh.IndexBuffer(), 0, 16)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	for i, want := range []uint32{0, 1, 2, 3} {
		if got := binary.LittleEndian.Uint32(data[i*4:]); got != want {
			t.Errorf("index %d = %d, want %d", i, got, want)
		}
	}
}

func TestLineMeshAddLines(t *testing.T) {
	dev := gputest.NewDevice()
	mesh, err := NewLineMesh(dev, 2)
	if err != nil {
		t.Fatalf("NewLineMesh() error = %v", err)
	}
	defer mesh.Release()

	lines := []Line{
		{A: f32.Vec2{0, 0}, B: f32.Vec2{1, 0}},
		{A: f32.Vec2{1, 0}, B: f32.Vec2{1, 1}},
		{A: f32.Vec2{1, 1}, B: f32.Vec2{0, 1}},
	}
	allocs := dev.BufferAllocs()
	if err := mesh.AddLines(lines); err != nil {
		t.Fatalf("AddLines() error = %v", err)
	}

	if got := mesh.IndexCount(); got != 6 {
		t.Errorf("IndexCount() = %d, want 6", got)
	}
	// Three segments exceed the two-segment capacity: one reallocation
	// per buffer, in a single commit.
	if got := dev.BufferAllocs(); got != allocs+2 {
		t.Errorf("BufferAllocs() = %d, want %d", got, allocs+2)
	}
}
