package compositor

import "math"

// Placement is the layout of a cover-fit photo inside the photo area.
// All values are in output pixels.
type Placement struct {
	AreaX, AreaY float64
	AreaSide     float64

	Scale   float64
	Width   float64
	Height  float64
	OffsetX float64
	OffsetY float64
}

// CoverFit computes where a photoW×photoH photo lands on an outputSize square
// whose centered photo area has side outputSize*fraction.
// photoW, photoH and outputSize must be positive and fraction in (0, 1].
func CoverFit(photoW, photoH, outputSize int, fraction float64) Placement {
	side := float64(outputSize) * fraction
	origin := (float64(outputSize) - side) / 2

	w, h := float64(photoW), float64(photoH)
	scale := math.Max(side/w, side/h)

	p := Placement{
		AreaX:    origin,
		AreaY:    origin,
		AreaSide: side,
		Scale:    scale,
		Width:    w * scale,
		Height:   h * scale,
	}
	p.OffsetX = origin + (side-p.Width)/2
	p.OffsetY = origin + (side-p.Height)/2
	return p
}

// CropX is the number of scaled pixels cut from each horizontal side.
func (p Placement) CropX() float64 { return math.Max(0, (p.Width-p.AreaSide)/2) }

// CropY is the number of scaled pixels cut from each vertical side.
func (p Placement) CropY() float64 { return math.Max(0, (p.Height-p.AreaSide)/2) }
