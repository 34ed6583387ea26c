package gpubuf

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/sketch/gpucore"
)

// Backed is a growable device buffer mirrored by a host-side slice of T.
//
// The zero value is not usable; construct with [WithCapacity] or
// [WithData]. T must be fixed-size plain data (see the package
// documentation).
type Backed[T any] struct {
	dev   gpucore.Device
	data  []T
	usage gpucore.BufferUsage

	buffer  gpucore.BufferID
	size    uint64 // device buffer byte size
	version uint32
	open    bool // a batch is in flight
}

// WithCapacity creates a Backed buffer with an empty mirror and a device
// buffer sized for capacity records. The device buffer's contents are
// undefined until written. CopyDst is added to the usage flags.
//
// A capacity of zero defers the device allocation to the first commit,
// since the underlying allocator rejects zero-sized buffers. That first
// commit reallocates and therefore bumps the version from 0 to 1.
func WithCapacity[T any](dev gpucore.Device, capacity int, usage gpucore.BufferUsage) (*Backed[T], error) {
	if capacity < 0 {
		return nil, fmt.Errorf("gpubuf: negative capacity %d", capacity)
	}
	usage |= gpucore.BufferUsageCopyDst
	b := &Backed[T]{
		dev:   dev,
		data:  make([]T, 0, capacity),
		usage: usage,
	}
	if capacity > 0 {
		byteSize := uint64(capacity) * b.recordSize()
		id, err := dev.CreateBuffer(int(byteSize), usage)
		if err != nil {
			return nil, fmt.Errorf("gpubuf: create buffer for %d records: %w", capacity, err)
		}
		b.buffer = id
		b.size = byteSize
	}
	return b, nil
}

// WithData creates a Backed buffer whose mirror is a copy of records and
// whose device buffer is sized exactly to them and populated immediately.
// CopyDst is added to the usage flags. The version starts at 0.
//
// Empty records behave like WithCapacity with capacity zero.
func WithData[T any](dev gpucore.Device, records []T, usage gpucore.BufferUsage) (*Backed[T], error) {
	usage |= gpucore.BufferUsageCopyDst
	b := &Backed[T]{
		dev:   dev,
		data:  append(make([]T, 0, len(records)), records...),
		usage: usage,
	}
	if len(records) > 0 {
		bytes := recordBytes(b.data)
		id, err := dev.CreateBuffer(len(bytes), usage)
		if err != nil {
			return nil, fmt.Errorf("gpubuf: create buffer for %d records: %w", len(records), err)
		}
		dev.WriteBuffer(id, 0, bytes)
		b.buffer = id
		b.size = uint64(len(bytes))
	}
	return b, nil
}

// Len returns the number of records in the mirror, not the capacity.
func (b *Backed[T]) Len() int {
	return len(b.data)
}

// Version returns the reallocation counter. It increases by exactly one
// each time a commit replaces the device buffer, and never otherwise.
// Consumers holding the raw handle in a bind group compare this against
// their last observed value to detect staleness.
func (b *Backed[T]) Version() uint32 {
	return b.version
}

// Raw returns the device buffer handle for binding. The handle is valid
// until the next reallocating commit or Release; callers get no write
// access through it.
//
// Returns gpucore.InvalidID while the allocation is still deferred
// (zero-capacity construction with no committed records yet).
func (b *Backed[T]) Raw() gpucore.BufferID {
	return b.buffer
}

// Update invokes fn with mutable access to the entire mirror, then
// re-uploads the mirror's current length of bytes at offset 0. No
// reallocation check is made: fn must not grow the mirror beyond the
// device buffer's capacity. This is the path for rewriting fixed-size
// records in place, such as a uniform block.
func (b *Backed[T]) Update(fn func([]T)) {
	fn(b.data)
	if len(b.data) == 0 || b.buffer == gpucore.InvalidID {
		return
	}
	b.dev.WriteBuffer(b.buffer, 0, recordBytes(b.data))
}

// Reset truncates the mirror to length zero without touching the device
// buffer, whose contents are undefined until the next commit. Used for
// whole-content replacement: Reset, then append the new records.
//
// Reset panics if a batch is open.
func (b *Backed[T]) Reset() {
	if b.open {
		panic("gpubuf: Reset with a batch open")
	}
	b.data = b.data[:0]
}

// Release destroys the device buffer. The Backed must not be used
// afterwards.
func (b *Backed[T]) Release() {
	if b.buffer != gpucore.InvalidID {
		b.dev.DestroyBuffer(b.buffer)
		b.buffer = gpucore.InvalidID
		b.size = 0
	}
}

// commit reconciles the device buffer with mirror records appended since
// start. Called exactly once per batch, from Batch.Commit.
func (b *Backed[T]) commit(start int) error {
	if start >= len(b.data) {
		return nil
	}
	rs := b.recordSize()
	capBytes := uint64(cap(b.data)) * rs
	if capBytes > b.size {
		// The mirror's reserved storage outgrew the device buffer.
		// Size the new buffer to the full reserved capacity, not just
		// the used length, so steady appends amortize reallocations.
		id, err := b.dev.CreateBuffer(int(capBytes), b.usage)
		if err != nil {
			return fmt.Errorf("gpubuf: grow device buffer to %d bytes: %w", capBytes, err)
		}
		b.dev.WriteBuffer(id, 0, recordBytes(b.data))
		old := b.buffer
		b.buffer = id
		b.size = capBytes
		b.version++
		if old != gpucore.InvalidID {
			b.dev.DestroyBuffer(old)
		}
	} else {
		b.dev.WriteBuffer(b.buffer, uint64(start)*rs, recordBytes(b.data[start:]))
	}
	return nil
}

func (b *Backed[T]) recordSize() uint64 {
	var zero T
	return uint64(unsafe.Sizeof(zero))
}

// recordBytes views a record slice as its raw bytes for upload.
func recordBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0]))) //nolint:gosec // fixed-layout records
}
