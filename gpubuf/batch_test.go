package gpubuf

import (
	"bytes"
	"testing"

	"github.com/gogpu/sketch/gpucore"
	"github.com/gogpu/sketch/gpucore/gputest"
)

func TestNoOpBatch(t *testing.T) {
	dev := gputest.NewDevice()
	b, err := WithCapacity[rec](dev, 4, gpucore.BufferUsageStorage)
	if err != nil {
		t.Fatalf("WithCapacity() error = %v", err)
	}
	raw, version, writes := b.Raw(), b.Version(), dev.BufferWrites()

	if err := b.Append(func(*Batch[rec]) {}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if b.Raw() != raw {
		t.Error("empty batch changed buffer identity")
	}
	if b.Version() != version {
		t.Errorf("Version() = %d, want %d", b.Version(), version)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	if got := dev.BufferWrites(); got != writes {
		t.Errorf("BufferWrites() = %d, want %d (no device I/O)", got, writes)
	}
}

// TestCommitScenario walks the partial-write-then-reallocate sequence:
// a buffer with room for 16 records takes a single append as a partial
// write, then overflowing it in a second batch reallocates once.
func TestCommitScenario(t *testing.T) {
	dev := gputest.NewDevice()
	b, err := WithCapacity[rec](dev, 16, gpucore.BufferUsageStorage)
	if err != nil {
		t.Fatalf("WithCapacity() error = %v", err)
	}
	allocs := dev.BufferAllocs()

	// One record: partial write of 8 bytes at offset 0, same buffer.
	raw := b.Raw()
	if err := b.Append(func(batch *Batch[rec]) { batch.Push(rec{1, 2}) }); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got := b.Version(); got != 0 {
		t.Errorf("Version() after partial write = %d, want 0", got)
	}
	if b.Raw() != raw {
		t.Error("partial write changed buffer identity")
	}
	if got := dev.BufferAllocs(); got != allocs {
		t.Errorf("BufferAllocs() = %d, want %d", got, allocs)
	}
	if got, want := deviceBytes(t, dev, b), recordBytes(b.data); !bytes.Equal(got, want) {
		t.Errorf("device contents = %v, want %v", got, want)
	}

	// Sixteen more (17 total > capacity 16): exactly one reallocation,
	// full re-upload, version 1.
	err = b.Append(func(batch *Batch[rec]) {
		for i := 0; i < 16; i++ {
			batch.Push(rec{float32(i), float32(i)})
		}
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got := b.Version(); got != 1 {
		t.Errorf("Version() after grow = %d, want 1", got)
	}
	if b.Raw() == raw {
		t.Error("grow did not change buffer identity")
	}
	if got := dev.BufferAllocs(); got != allocs+1 {
		t.Errorf("BufferAllocs() = %d, want %d (exactly one reallocation)", got, allocs+1)
	}
	if got := dev.BufferSize(b.Raw()); got < 17*8 {
		t.Errorf("new device buffer size = %d, want >= %d", got, 17*8)
	}
	if got, want := deviceBytes(t, dev, b), recordBytes(b.data); !bytes.Equal(got, want) {
		t.Error("device contents differ from mirror after grow")
	}
}

func TestGrowthThenPartialWrite(t *testing.T) {
	dev := gputest.NewDevice()
	const capacity = 4
	b, err := WithCapacity[rec](dev, capacity, gpucore.BufferUsageStorage)
	if err != nil {
		t.Fatalf("WithCapacity() error = %v", err)
	}

	// capacity+1 records in one batch: exactly one reallocation sized to
	// the mirror's reserved storage, which holds at least capacity+1.
	allocs := dev.BufferAllocs()
	err = b.Append(func(batch *Batch[rec]) {
		for i := 0; i <= capacity; i++ {
			batch.Push(rec{float32(i), 0})
		}
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got := dev.BufferAllocs(); got != allocs+1 {
		t.Errorf("BufferAllocs() = %d, want %d", got, allocs+1)
	}
	if got := b.Version(); got != 1 {
		t.Errorf("Version() = %d, want 1", got)
	}
	if got := dev.BufferSize(b.Raw()); got < (capacity+1)*8 {
		t.Errorf("device buffer size = %d, want >= %d", got, (capacity+1)*8)
	}

	// One more record still fits the grown buffer: partial write only.
	allocs = dev.BufferAllocs()
	if err := b.Append(func(batch *Batch[rec]) { batch.Push(rec{99, 99}) }); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got := dev.BufferAllocs(); got != allocs {
		t.Errorf("BufferAllocs() = %d, want %d (no reallocation)", got, allocs)
	}
	if got := b.Version(); got != 1 {
		t.Errorf("Version() = %d, want 1 (unchanged)", got)
	}
	if got, want := deviceBytes(t, dev, b), recordBytes(b.data); !bytes.Equal(got, want) {
		t.Error("device contents differ from mirror")
	}
}

func TestVersionMonotonic(t *testing.T) {
	dev := gputest.NewDevice()
	b, err := WithCapacity[rec](dev, 1, gpucore.BufferUsageStorage)
	if err != nil {
		t.Fatalf("WithCapacity() error = %v", err)
	}

	last := b.Version()
	for i := 0; i < 20; i++ {
		if err := b.Append(func(batch *Batch[rec]) { batch.Push(rec{float32(i), 0}) }); err != nil {
			t.Fatalf("Append() #%d error = %v", i, err)
		}
		v := b.Version()
		if v < last {
			t.Fatalf("Version() decreased: %d -> %d", last, v)
		}
		if v > last+1 {
			t.Fatalf("Version() jumped by more than 1: %d -> %d", last, v)
		}
		last = v
	}
	if last == 0 {
		t.Error("20 single-record appends into capacity 1 never reallocated")
	}
}

func TestCommitRunsOnce(t *testing.T) {
	dev := gputest.NewDevice()
	b, err := WithCapacity[rec](dev, 4, gpucore.BufferUsageStorage)
	if err != nil {
		t.Fatalf("WithCapacity() error = %v", err)
	}

	batch := b.Batch().Push(rec{1, 1})
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	writes := dev.BufferWrites()
	if err := batch.Commit(); err != nil {
		t.Fatalf("second Commit() error = %v", err)
	}
	if got := dev.BufferWrites(); got != writes {
		t.Errorf("second Commit() performed device I/O: writes %d -> %d", writes, got)
	}
}

func TestDoubleOpenPanics(t *testing.T) {
	b, err := WithCapacity[rec](gputest.NewDevice(), 4, 0)
	if err != nil {
		t.Fatalf("WithCapacity() error = %v", err)
	}
	batch := b.Batch()
	defer func() {
		if recover() == nil {
			t.Error("second Batch() with first unresolved did not panic")
		}
		_ = batch.Commit()
	}()
	b.Batch()
}

func TestAppendCommitsOnPanic(t *testing.T) {
	dev := gputest.NewDevice()
	b, err := WithCapacity[rec](dev, 4, gpucore.BufferUsageStorage)
	if err != nil {
		t.Fatalf("WithCapacity() error = %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic did not propagate out of Append")
			}
		}()
		_ = b.Append(func(batch *Batch[rec]) {
			batch.Push(rec{5, 5})
			panic("boom")
		})
	}()

	// The record pushed before the panic was still committed.
	if got, want := deviceBytes(t, dev, b), recordBytes([]rec{{5, 5}}); !bytes.Equal(got, want) {
		t.Errorf("device contents = %v, want %v", got, want)
	}
	// And the buffer accepts a new batch (open flag was cleared).
	if err := b.Append(func(batch *Batch[rec]) { batch.Push(rec{6, 6}) }); err != nil {
		t.Fatalf("Append() after panic error = %v", err)
	}
}

func TestIndexedBatch(t *testing.T) {
	dev := gputest.NewDevice()
	vertices, err := WithCapacity[rec](dev, 8, gpucore.BufferUsageVertex)
	if err != nil {
		t.Fatalf("WithCapacity(vertices) error = %v", err)
	}
	indices, err := WithCapacity[uint32](dev, 8, gpucore.BufferUsageIndex)
	if err != nil {
		t.Fatalf("WithCapacity(indices) error = %v", err)
	}

	err = vertices.AppendIndexed(indices, func(batch *IndexedBatch[rec]) {
		batch.PushLine(rec{0, 0}, rec{1, 1}).PushLine(rec{2, 2}, rec{3, 3})
	})
	if err != nil {
		t.Fatalf("AppendIndexed() error = %v", err)
	}

	if got := vertices.Len(); got != 4 {
		t.Errorf("vertices.Len() = %d, want 4", got)
	}
	if got := indices.Len(); got != 4 {
		t.Errorf("indices.Len() = %d, want 4", got)
	}
	// Indices are the assigned vertex positions in push order.
	got, err := dev.ReadBuffer(indices.Raw(), 0, 16)
	if err != nil {
		t.Fatalf("ReadBuffer(indices) error = %v", err)
	}
	want := recordBytes([]uint32{0, 1, 2, 3})
	if !bytes.Equal(got, want) {
		t.Errorf("index contents = %v, want %v", got, want)
	}
}

// TestIndexedBatchIndependentGrowth overflows only the index buffer, so
// its version moves while the vertex buffer's does not.
func TestIndexedBatchIndependentGrowth(t *testing.T) {
	dev := gputest.NewDevice()
	vertices, err := WithCapacity[rec](dev, 64, gpucore.BufferUsageVertex)
	if err != nil {
		t.Fatalf("WithCapacity(vertices) error = %v", err)
	}
	indices, err := WithCapacity[uint32](dev, 2, gpucore.BufferUsageIndex)
	if err != nil {
		t.Fatalf("WithCapacity(indices) error = %v", err)
	}

	err = vertices.AppendIndexed(indices, func(batch *IndexedBatch[rec]) {
		batch.PushLine(rec{0, 0}, rec{1, 1}).PushLine(rec{2, 2}, rec{3, 3})
	})
	if err != nil {
		t.Fatalf("AppendIndexed() error = %v", err)
	}

	if got := vertices.Version(); got != 0 {
		t.Errorf("vertices.Version() = %d, want 0 (4 of 64 used)", got)
	}
	if got := indices.Version(); got != 1 {
		t.Errorf("indices.Version() = %d, want 1 (4 > capacity 2)", got)
	}
	// Sized by the index element width, not the vertex record width.
	if got := dev.BufferSize(indices.Raw()); got%4 != 0 || got < 16 {
		t.Errorf("index buffer size = %d, want multiple of 4 and >= 16", got)
	}
}

func TestIndexedBatchVertexBufferBusyPanics(t *testing.T) {
	dev := gputest.NewDevice()
	vertices, _ := WithCapacity[rec](dev, 4, 0)
	indices, _ := WithCapacity[uint32](dev, 4, 0)

	batch := vertices.Batch()
	defer func() {
		if recover() == nil {
			t.Error("BatchIndexed() with vertex batch open did not panic")
		}
		_ = batch.Commit()
	}()
	vertices.BatchIndexed(indices)
}
