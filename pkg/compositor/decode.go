package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	// Registered decoders: any common raster format a browser would accept.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/aretw0/framecast/pkg/domain"
)

// DefaultMaxSourcePixels bounds decoded photo and frame size (50 MP).
const DefaultMaxSourcePixels = 50_000_000

var (
	// ErrEmptyData is wrapped in a DecodeError when no bytes were supplied.
	ErrEmptyData = errors.New("empty image data")

	// ErrTooLarge is wrapped in a DecodeError when the header announces more pixels than allowed.
	ErrTooLarge = errors.New("image exceeds pixel limit")

	// ErrZeroSize is wrapped in a DecodeError when the header announces an empty image.
	ErrZeroSize = errors.New("image has zero width or height")

	// ErrInvalidFraction is returned for photo area fractions outside (0, 1].
	ErrInvalidFraction = errors.New("photo area fraction outside (0, 1]")
)

// LoadPhoto reads a photo header with the default pixel limit.
func LoadPhoto(data []byte) (domain.SourcePhoto, error) {
	return defaultCompositor.LoadPhoto(data)
}

// LoadFrame reads a frame header with the default pixel limit.
func LoadFrame(name string, data []byte, fraction float64) (domain.FrameAsset, error) {
	return defaultCompositor.LoadFrame(name, data, fraction)
}

// LoadPhoto reads the header of a user photo and returns it with its intrinsic size.
// The pixels are not decoded until compositing. The size is checked against the
// Compositor's pixel limit.
func (c *Compositor) LoadPhoto(data []byte) (domain.SourcePhoto, error) {
	cfg, format, err := decodeConfig("photo", data, c.maxPixels)
	if err != nil {
		return domain.SourcePhoto{}, err
	}
	return domain.SourcePhoto{
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
	}, nil
}

// LoadFrame reads the header of a frame graphic.
// A zero fraction means the photo area covers the whole canvas.
func (c *Compositor) LoadFrame(name string, data []byte, fraction float64) (domain.FrameAsset, error) {
	if fraction != 0 {
		if err := validFraction(fraction); err != nil {
			return domain.FrameAsset{}, err
		}
	}
	cfg, _, err := decodeConfig("frame", data, c.maxPixels)
	if err != nil {
		return domain.FrameAsset{}, err
	}
	return domain.FrameAsset{
		Name:              name,
		Data:              data,
		Width:             cfg.Width,
		Height:            cfg.Height,
		PhotoAreaFraction: fraction,
	}, nil
}

func decodeConfig(asset string, data []byte, maxPixels int64) (image.Config, string, error) {
	if len(data) == 0 {
		return image.Config{}, "", &domain.DecodeError{Asset: asset, Err: ErrEmptyData}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", &domain.DecodeError{Asset: asset, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, "", &domain.DecodeError{Asset: asset, Err: ErrZeroSize}
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return image.Config{}, "", &domain.DecodeError{
			Asset: asset,
			Err:   fmt.Errorf("%w: %dx%d > %d", ErrTooLarge, cfg.Width, cfg.Height, maxPixels),
		}
	}
	return cfg, format, nil
}

// decode checks the header first so oversized inputs are rejected before allocation.
func decode(asset string, data []byte, maxPixels int64) (image.Image, error) {
	if _, _, err := decodeConfig(asset, data, maxPixels); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.DecodeError{Asset: asset, Err: err}
	}
	if b := img.Bounds(); b.Empty() {
		return nil, &domain.DecodeError{Asset: asset, Err: ErrZeroSize}
	}
	return img, nil
}

func validFraction(f float64) error {
	if math.IsNaN(f) || f <= 0 || f > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidFraction, f)
	}
	return nil
}
