package gpucore

// Device abstracts the GPU operations the library performs.
//
// Implementations must be usable from the thread that owns the underlying
// device and queue; the library itself performs no concurrent access.
type Device interface {
	// === Buffer Management ===

	// CreateBuffer creates a GPU buffer of size bytes.
	//
	// The buffer contents are undefined until written. Returns the buffer
	// ID or an error if allocation fails. A size of zero is rejected.
	CreateBuffer(size int, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer at the given byte offset.
	// The data is copied to the GPU immediately or staged for later upload.
	WriteBuffer(id BufferID, offset uint64, data []byte)

	// ReadBuffer reads size bytes from a buffer starting at offset.
	// This may cause a GPU-CPU synchronization stall; it exists for
	// verification and debugging, not for per-frame use.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// === Texture Management ===

	// CreateTexture creates a 2D GPU texture.
	// Returns the texture ID or an error if allocation fails.
	CreateTexture(width, height int, format TextureFormat) (TextureID, error)

	// DestroyTexture releases a GPU texture.
	DestroyTexture(id TextureID)

	// WriteTexture writes pixel data covering the whole texture.
	// The data must match the texture format and dimensions.
	WriteTexture(id TextureID, data []byte)

	// === Bind Groups ===

	// CreateBindGroupLayout creates a bind group layout.
	// Bind group layouts describe the structure of resource bindings.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreateBindGroup creates a bind group binding actual buffers to a
	// layout. A bind group captures buffer identity: after a buffer it
	// references is reallocated, the group is stale and must be recreated.
	CreateBindGroup(layout BindGroupLayoutID, entries []BindGroupEntry) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)
}
