package adminauth

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	defaultCaptchaWidth  = 120
	defaultCaptchaHeight = 40
	defaultCaptchaNoise  = 60

	// Cell size of one glyph of basicfont.Face7x13 on the unscaled canvas.
	glyphCell   = 9
	glyphHeight = 17
)

// ImageCaptchaRenderer draws the challenge as a PNG data URL. Glyphs are
// drawn at a small size with jittered baselines and colors, scaled to
// Width x Height and sprinkled with noise. Zero fields use 120x40 and 60
// noise dots.
type ImageCaptchaRenderer struct {
	Width  int
	Height int
	Noise  int
}

func (r ImageCaptchaRenderer) Render(challenge string) (string, error) {
	width, height, noise := r.Width, r.Height, r.Noise
	if width <= 0 {
		width = defaultCaptchaWidth
	}
	if height <= 0 {
		height = defaultCaptchaHeight
	}
	if noise <= 0 {
		noise = defaultCaptchaNoise
	}

	bg := color.RGBA{R: 236, G: 240, B: 245, A: 255}
	small := image.NewRGBA(image.Rect(0, 0, len(challenge)*glyphCell+4, glyphHeight))
	draw.Draw(small, small.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: small, Face: basicfont.Face7x13}
	for i, ch := range challenge {
		d.Src = image.NewUniform(glyphColor())
		d.Dot = fixed.P(2+i*glyphCell+rand.IntN(2), 12+rand.IntN(4))
		d.DrawString(string(ch))
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), small, small.Bounds(), draw.Src, nil)

	for i := 0; i < noise; i++ {
		dst.Set(rand.IntN(width), rand.IntN(height), glyphColor())
	}
	for i := 0; i < 3; i++ {
		noiseLine(dst, glyphColor())
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func glyphColor() color.RGBA {
	return color.RGBA{R: uint8(rand.IntN(120)), G: uint8(rand.IntN(120)), B: uint8(rand.IntN(160)), A: 255}
}

// noiseLine draws a straight line between random points on the left and
// right edges.
func noiseLine(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	y0, y1 := rand.IntN(b.Dy()), rand.IntN(b.Dy())
	w := b.Dx()
	for x := 0; x < w; x++ {
		img.Set(x, y0+(y1-y0)*x/w, c)
	}
}
