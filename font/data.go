package font

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Rune is a rune that marshals as a one-character JSON string, the way
// BMFont descriptors encode the "char" field.
type Rune rune

// UnmarshalJSON decodes a one-character JSON string.
func (r *Rune) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	c, size := utf8.DecodeRuneInString(s)
	if c == utf8.RuneError || size != len(s) {
		return fmt.Errorf("font: %q is not a single character", s)
	}
	*r = Rune(c)
	return nil
}

// MarshalJSON encodes the rune as a one-character JSON string.
func (r Rune) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(rune(r)))
}

// Data is the parsed msdf-bmfont JSON descriptor bundled with the atlas
// image. Field names follow the BMFont text format, which the JSON
// variant mirrors.
type Data struct {
	Pages         []string      `json:"pages"`
	Glyphs        []Glyph       `json:"chars"`
	Info          Info          `json:"info"`
	Common        Common        `json:"common"`
	DistanceField DistanceField `json:"distanceField"`
}

// Glyph is the atlas placement and layout metrics of one character.
type Glyph struct {
	ID       uint32 `json:"id"`
	Index    uint32 `json:"index"`
	Page     uint32 `json:"page"`
	Char     Rune   `json:"char"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	XOffset  int    `json:"xoffset"`
	YOffset  int    `json:"yoffset"`
	XAdvance int    `json:"xadvance"`
	Channel  uint32 `json:"chnl"`
}

// Info describes the face the atlas was generated from.
type Info struct {
	Face     string   `json:"face"`
	Size     int      `json:"size"`
	Bold     int      `json:"bold"`
	Italic   int      `json:"italic"`
	Charset  []string `json:"charset"`
	Unicode  int      `json:"unicode"`
	StretchH int      `json:"stretchH"`
	Smooth   int      `json:"smooth"`
	AA       int      `json:"aa"`
	Padding  [4]int   `json:"padding"`
	Spacing  [2]int   `json:"spacing"`
}

// Common holds atlas-wide metrics.
type Common struct {
	LineHeight   int `json:"lineHeight"`
	Base         int `json:"base"`
	ScaleW       int `json:"scaleW"`
	ScaleH       int `json:"scaleH"`
	Pages        int `json:"pages"`
	Packed       int `json:"packed"`
	AlphaChannel int `json:"alphaChnl"`
	RedChannel   int `json:"redChnl"`
	GreenChannel int `json:"greenChnl"`
	BlueChannel  int `json:"blueChnl"`
}

// DistanceField describes the signed distance field encoding of the
// atlas. FieldType is "msdf" for the multi-channel variant.
type DistanceField struct {
	FieldType     string `json:"fieldType"`
	DistanceRange int    `json:"distanceRange"`
}
