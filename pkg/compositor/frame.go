package compositor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/aretw0/framecast/pkg/domain"
)

// DefaultFrameName names the built-in frame.
const DefaultFrameName = "classic"

// DefaultFrameColor is the ring color of the built-in frame.
var DefaultFrameColor = color.NRGBA{R: 0xE1, G: 0x1D, B: 0x48, A: 0xFF}

// DefaultFrame generates a square frame of the given side: an opaque ring of
// side/12 pixels around a transparent center. Used when no frame is configured.
func DefaultFrame(side int) (domain.FrameAsset, error) {
	if side <= 0 {
		side = domain.DefaultOutputSize
	}
	border := side / 12
	if border < 1 {
		border = 1
	}

	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: DefaultFrameColor}, image.Point{}, draw.Src)
	inner := image.Rect(border, border, side-border, side-border)
	draw.Draw(img, inner, image.Transparent, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.FrameAsset{}, &domain.RenderError{Op: "encode", Err: err}
	}
	return LoadFrame(DefaultFrameName, buf.Bytes(), 0)
}
