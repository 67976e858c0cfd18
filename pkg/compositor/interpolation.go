package compositor

import (
	"fmt"
	"strings"

	"golang.org/x/image/draw"
)

// Interpolation selects the resampling kernel used to scale photo and frame.
type Interpolation string

const (
	InterpNearest        Interpolation = "nearest"
	InterpApproxBiLinear Interpolation = "approxbilinear"
	// InterpBiLinear matches what browser canvases use by default.
	InterpBiLinear   Interpolation = "bilinear"
	InterpCatmullRom Interpolation = "catmullrom"
)

// ParseInterpolation accepts the names above, case-insensitively. Empty means bilinear.
func ParseInterpolation(s string) (Interpolation, error) {
	switch i := Interpolation(strings.ToLower(strings.TrimSpace(s))); i {
	case "":
		return InterpBiLinear, nil
	case InterpNearest, InterpApproxBiLinear, InterpBiLinear, InterpCatmullRom:
		return i, nil
	default:
		return "", fmt.Errorf("unknown interpolation %q (want nearest, approxbilinear, bilinear or catmullrom)", s)
	}
}

func (i Interpolation) interpolator() draw.Interpolator {
	switch i {
	case InterpNearest:
		return draw.NearestNeighbor
	case InterpApproxBiLinear:
		return draw.ApproxBiLinear
	case InterpCatmullRom:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}
