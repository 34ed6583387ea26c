// Package gpucore defines the device abstraction the sketch library is
// built against.
//
// The [Device] interface covers the small slice of a graphics API the
// library needs: buffer allocation and upload, texture upload for font
// atlases, and bind group construction. GPU resources are referred to by
// opaque IDs ([BufferID], [TextureID], ...); each Device implementation
// maintains the mapping between IDs and actual backend resources.
//
// Two implementations ship with the module:
//   - backend/native adapts a gogpu/wgpu HAL device and queue.
//   - gpucore/gputest keeps everything in host memory for tests and
//     examples, with a read-back path for verifying uploads.
//
// All Device operations are synchronous. Creation methods report
// allocation failure through their error return; write methods stage the
// data immediately and do not fail.
package gpucore
