// Package sketch is a small interactive line-drawing canvas built on a
// GPU device abstraction.
//
// # Overview
//
// The package keeps canvas geometry in CPU-mirrored, GPU-backed buffers
// (package gpubuf): finished line segments accumulate in a storage
// buffer, a one-slot preview buffer tracks the segment being drawn, and
// the bind group exposing both to a shader is rebuilt whenever a buffer
// reallocation invalidates it.
//
// # Quick Start
//
//	dev := gputest.NewDevice() // or native.Open() for a real GPU
//	canvas, err := sketch.NewCanvas(dev, 800, 600, sketch.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer canvas.Release()
//
//	canvas.SetPreview(sketch.Line{A: p, B: cursor})
//	canvas.FinishLine(sketch.Line{A: p, B: q})
//
//	geometry, err := canvas.Geometry() // bind group for the render pass
//
// # Architecture
//
// The library is organized into:
//   - Public API: Canvas, Line, LineMesh, Config
//   - gpubuf: backed buffers with batched appends and version tracking
//   - gpucore: the Device interface plus gputest, an in-memory Device
//   - camera, font: uniform bindings and SDF font text meshes
//   - backend/native: Device adapter over gogpu/wgpu HAL
//
// Rendering itself (surfaces, pipelines, shaders) stays outside this
// module; consumers bind the buffers and bind groups exposed here into
// their own passes.
package sketch
