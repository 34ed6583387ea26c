// Package gpubuf implements a CPU-mirrored, GPU-backed growable buffer.
//
// A [Backed] buffer owns two copies of the same data: a typed host mirror
// (a Go slice) and a device buffer allocated through a [gpucore.Device].
// The mirror is the source of truth; after every completed operation the
// device buffer's first Len() records equal the mirror's.
//
// Appends are batched: a [Batch] collects pushes host-side and commits
// them to the device in one step. The commit picks the cheapest correct
// strategy. While the appended records still fit in the device buffer, it
// issues a partial write of just the new byte range, leaving the buffer's
// identity untouched. When the mirror's reserved storage has outgrown the
// device buffer, it allocates a new device buffer sized to the mirror's
// full capacity (anticipating further growth), re-uploads everything, and
// swaps the handle.
//
// Reallocation invalidates anything holding the old handle, most notably
// bind groups. [Backed.Version] counts reallocations; a consumer that
// bakes [Backed.Raw] into a bind group must compare the version before
// each reuse and rebuild the group when it changed. Partial writes never
// bump the version.
//
// Record types must be fixed-size plain data: no pointers, maps, slices,
// or other header-bearing types, since the mirror's raw bytes are
// uploaded directly.
//
// Backed buffers are not safe for concurrent use; the intended owner is a
// single render loop.
package gpubuf
