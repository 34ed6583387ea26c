package font

import (
	"golang.org/x/image/math/f32"
)

// Vertex is one corner of a glyph quad: a position in pixels and a UV
// coordinate into the atlas. Two vec2<f32> fields, 16 bytes, matching
// the vertex layout the text shader reads.
type Vertex struct {
	Position f32.Vec2
	UV       f32.Vec2
}

// Mesh lays out text as one quad per visible glyph, returning the quad
// vertices and triangle indices. The origin is the top-left corner of
// the first glyph cell, in pixels; y grows downward, matching the atlas
// metrics. Zero-size glyphs such as spaces advance the cursor without
// emitting geometry.
func (f *Font) Mesh(text string, origin f32.Vec2) ([]Vertex, []uint32) {
	texW := float32(f.width)
	texH := float32(f.height)

	var (
		cursor  float32
		base    uint32
		verts   []Vertex
		indices []uint32
	)
	for _, c := range text {
		glyph := f.Glyph(c)

		if glyph.Width == 0 || glyph.Height == 0 {
			cursor += float32(glyph.XAdvance)
			continue
		}

		minUV := f32.Vec2{float32(glyph.X) / texW, float32(glyph.Y) / texH}
		maxUV := f32.Vec2{
			minUV[0] + float32(glyph.Width)/texW,
			minUV[1] + float32(glyph.Height)/texH,
		}

		p1 := f32.Vec2{
			origin[0] + cursor + float32(glyph.XOffset),
			origin[1] + float32(glyph.YOffset),
		}
		p2 := f32.Vec2{p1[0] + float32(glyph.Width), p1[1] + float32(glyph.Height)}

		verts = append(verts,
			Vertex{Position: f32.Vec2{p1[0], p1[1]}, UV: f32.Vec2{minUV[0], minUV[1]}},
			Vertex{Position: f32.Vec2{p2[0], p1[1]}, UV: f32.Vec2{maxUV[0], minUV[1]}},
			Vertex{Position: f32.Vec2{p2[0], p2[1]}, UV: f32.Vec2{maxUV[0], maxUV[1]}},
			Vertex{Position: f32.Vec2{p1[0], p2[1]}, UV: f32.Vec2{minUV[0], maxUV[1]}},
		)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)

		cursor += float32(glyph.XAdvance)
		base += 4
	}
	return verts, indices
}
