package gpubuf

// Batch collects appends to a Backed buffer and commits them to the
// device in one step. Only one batch per Backed may be open at a time;
// opening a second panics. Obtain a batch with [Backed.Batch] or, for the
// scoped form, [Backed.Append].
type Batch[T any] struct {
	owner *Backed[T]
	start int // mirror length when the batch was opened
	done  bool
}

// Batch opens an append batch positioned at the current mirror length.
// The caller must call [Batch.Commit] exactly once, on every exit path;
// prefer [Backed.Append] which guarantees this.
func (b *Backed[T]) Batch() *Batch[T] {
	if b.open {
		panic("gpubuf: batch already open on this buffer")
	}
	b.open = true
	return &Batch[T]{owner: b, start: len(b.data)}
}

// Append runs fn with an open batch and commits on every exit path,
// including a panic inside fn. The commit error, if any, is returned.
func (b *Backed[T]) Append(fn func(*Batch[T])) (err error) {
	batch := b.Batch()
	defer func() {
		if cerr := batch.Commit(); err == nil {
			err = cerr
		}
	}()
	fn(batch)
	return nil
}

// Push appends a record to the mirror. No device I/O happens until the
// batch commits. Returns the batch for chaining.
func (t *Batch[T]) Push(v T) *Batch[T] {
	t.owner.data = append(t.owner.data, v)
	return t
}

// Commit reconciles the device buffer with the records pushed into this
// batch: a no-op if nothing was pushed, a partial write if the records
// fit the existing device buffer, a reallocation plus full re-upload
// (bumping the owner's version) if not.
//
// The flush runs exactly once; subsequent calls return nil without
// touching the device. An allocation failure is returned, leaving the
// mirror intact and ahead of the device buffer.
func (t *Batch[T]) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.owner.open = false
	return t.owner.commit(t.start)
}

// IndexedBatch appends vertex records and 32-bit indices together, for
// incrementally built indexed primitives. Each pushed vertex also appends
// its own position to the index buffer. On commit, the vertex and index
// buffers are reconciled independently: each is judged solely against its
// own capacity, so one may reallocate while the other takes a partial
// write.
type IndexedBatch[T any] struct {
	batch   *Batch[T]
	indices *Backed[uint32]
	start   int // index mirror length when the batch was opened
	done    bool
}

// BatchIndexed opens an indexed append batch with this buffer as the
// vertex source and indices as the index buffer. Both buffers are marked
// open; either being already open panics.
func (b *Backed[T]) BatchIndexed(indices *Backed[uint32]) *IndexedBatch[T] {
	if indices.open {
		panic("gpubuf: batch already open on index buffer")
	}
	batch := b.Batch()
	indices.open = true
	return &IndexedBatch[T]{batch: batch, indices: indices, start: len(indices.data)}
}

// AppendIndexed runs fn with an open indexed batch and commits on every
// exit path, including a panic inside fn.
func (b *Backed[T]) AppendIndexed(indices *Backed[uint32], fn func(*IndexedBatch[T])) (err error) {
	batch := b.BatchIndexed(indices)
	defer func() {
		if cerr := batch.Commit(); err == nil {
			err = cerr
		}
	}()
	fn(batch)
	return nil
}

// PushVertex appends v to the vertex buffer and the position it was
// assigned to the index buffer. Returns the batch for chaining.
func (t *IndexedBatch[T]) PushVertex(v T) *IndexedBatch[T] {
	t.indices.data = append(t.indices.data, uint32(t.batch.owner.Len())) //nolint:gosec // vertex counts fit uint32
	t.batch.Push(v)
	return t
}

// PushLine appends both endpoints of a line segment as vertices, each
// with its index.
func (t *IndexedBatch[T]) PushLine(a, b T) *IndexedBatch[T] {
	t.PushVertex(a)
	t.PushVertex(b)
	return t
}

// Commit reconciles the vertex buffer first, then the index buffer, each
// with its own grow-or-partial-write decision. Both reconciliations run
// even if the first fails; the first error is returned.
func (t *IndexedBatch[T]) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	verr := t.batch.Commit()
	t.indices.open = false
	ierr := t.indices.commit(t.start)
	if verr != nil {
		return verr
	}
	return ierr
}
