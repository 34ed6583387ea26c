// Package font loads msdf-bmfont atlases and builds textured glyph
// meshes for GPU text rendering.
//
// A font ships as a zip archive holding a JSON descriptor and a PNG
// atlas image whose pixels encode a multi-channel signed distance
// field. Load uploads the atlas to a texture and indexes the glyphs;
// [Font.Mesh] then turns a string into vertex and index data, and
// [Text] keeps such a mesh in device buffers that can be rewritten as
// the string changes.
package font

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/sketch/gpucore"
)

// Font loading errors.
var (
	ErrMissingFallback   = errors.New("font: fallback rune not in atlas")
	ErrMissingDescriptor = errors.New("font: archive has no JSON descriptor")
	ErrMissingAtlas      = errors.New("font: archive has no PNG atlas")
)

func init() {
	// Archives are read with klauspost's flate, which is considerably
	// faster than the standard library's on large atlas images.
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// Font is a loaded msdf atlas: a device texture plus a glyph index.
type Font struct {
	dev      gpucore.Device
	data     Data
	fallback rune

	texture gpucore.TextureID
	width   int
	height  int

	glyphs map[rune]int
}

// Load parses a font archive and uploads its atlas to dev. The fallback
// rune substitutes for characters missing from the atlas and must
// itself be present.
func Load(dev gpucore.Device, archive []byte, fallback rune) (*Font, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("font: open archive: %w", err)
	}

	var data Data
	found := false
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("font: parse descriptor %s: %w", f.Name, err)
		}
		found = true
		break
	}
	if !found {
		return nil, ErrMissingDescriptor
	}

	var atlas *image.RGBA
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".png") {
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("font: decode atlas %s: %w", f.Name, err)
		}
		atlas = toRGBA(img)
		break
	}
	if atlas == nil {
		return nil, ErrMissingAtlas
	}

	glyphs := make(map[rune]int, len(data.Glyphs))
	for i, g := range data.Glyphs {
		glyphs[rune(g.Char)] = i
	}
	if _, ok := glyphs[fallback]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingFallback, fallback)
	}

	bounds := atlas.Bounds()
	tex, err := dev.CreateTexture(bounds.Dx(), bounds.Dy(), gpucore.TextureFormatRGBA8UnormSRGB)
	if err != nil {
		return nil, fmt.Errorf("font: create atlas texture: %w", err)
	}
	dev.WriteTexture(tex, atlas.Pix)

	return &Font{
		dev:      dev,
		data:     data,
		fallback: fallback,
		texture:  tex,
		width:    bounds.Dx(),
		height:   bounds.Dy(),
		glyphs:   glyphs,
	}, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("font: open %s: %w", f.Name, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("font: read %s: %w", f.Name, err)
	}
	return raw, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

// Glyph looks up the glyph for r, falling back to the fallback glyph
// when the atlas does not cover r.
func (f *Font) Glyph(r rune) Glyph {
	if i, ok := f.glyphs[r]; ok {
		return f.data.Glyphs[i]
	}
	return f.data.Glyphs[f.glyphs[f.fallback]]
}

// Data returns the parsed descriptor.
func (f *Font) Data() Data { return f.data }

// Texture returns the atlas texture handle.
func (f *Font) Texture() gpucore.TextureID { return f.texture }

// LineHeight returns the vertical advance between baselines in atlas
// pixels.
func (f *Font) LineHeight() int { return f.data.Common.LineHeight }

// UnitRange returns the distance field range expressed in UV units, the
// value the msdf fragment shader needs to convert distances to screen
// pixels.
func (f *Font) UnitRange() f32.Vec2 {
	return f32.Vec2{
		float32(f.data.DistanceField.DistanceRange) / float32(f.data.Common.ScaleW),
		float32(f.data.DistanceField.DistanceRange) / float32(f.data.Common.ScaleH),
	}
}

// Release destroys the atlas texture.
func (f *Font) Release() {
	if f.texture != gpucore.InvalidID {
		f.dev.DestroyTexture(f.texture)
		f.texture = gpucore.InvalidID
	}
}
