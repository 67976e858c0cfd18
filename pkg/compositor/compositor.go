package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/aretw0/framecast/internal/logging"
	"github.com/aretw0/framecast/pkg/domain"
)

// DefaultMaxOutputSize bounds the side of the drawing surface.
const DefaultMaxOutputSize = 8192

// ErrInvalidSize is wrapped in a RenderError when the surface size is unusable.
var ErrInvalidSize = errors.New("invalid output size")

// Compositor renders photos under frames. The zero value is not usable; call New.
// A Compositor holds configuration only and is safe for concurrent use.
type Compositor struct {
	interp        Interpolation
	maxPixels     int64
	maxOutputSize int
	logger        *slog.Logger
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithInterpolation sets the resampling kernel.
func WithInterpolation(i Interpolation) Option {
	return func(c *Compositor) {
		c.interp = i
	}
}

// WithMaxSourcePixels bounds the decoded size of photos and frames. Zero disables the check.
func WithMaxSourcePixels(n int64) Option {
	return func(c *Compositor) {
		c.maxPixels = n
	}
}

// WithMaxOutputSize bounds the side of the drawing surface.
func WithMaxOutputSize(n int) Option {
	return func(c *Compositor) {
		c.maxOutputSize = n
	}
}

// WithLogger sets a structured logger for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compositor) {
		c.logger = logger
	}
}

// New creates a Compositor with bilinear resampling and default limits.
func New(opts ...Option) *Compositor {
	c := &Compositor{
		interp:        InterpBiLinear,
		maxPixels:     DefaultMaxSourcePixels,
		maxOutputSize: DefaultMaxOutputSize,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCompositor = New()

// Composite renders with the default Compositor and encodes the result as PNG.
func Composite(photo domain.SourcePhoto, frame domain.FrameAsset, outputSize int) (*domain.CompositeResult, error) {
	return defaultCompositor.Composite(photo, frame, outputSize)
}

// Composite renders photo under frame on an outputSize square and encodes it as PNG.
// It fails with *domain.DecodeError or *domain.RenderError and never returns a partial result.
func (c *Compositor) Composite(photo domain.SourcePhoto, frame domain.FrameAsset, outputSize int) (*domain.CompositeResult, error) {
	start := time.Now()
	surface, err := c.Render(photo, frame, outputSize)
	if err != nil {
		return nil, err
	}
	res, err := surface.Result()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Composite finished",
		"frame", frame.Name,
		"size", outputSize,
		"bytes", len(res.PNG),
		"duration", time.Since(start),
	)
	return res, nil
}

// Render draws photo and frame onto a fresh surface without encoding it.
func (c *Compositor) Render(photo domain.SourcePhoto, frame domain.FrameAsset, outputSize int) (*Surface, error) {
	if outputSize <= 0 || (c.maxOutputSize > 0 && outputSize > c.maxOutputSize) {
		return nil, &domain.RenderError{Op: "allocate", Err: fmt.Errorf("%w: %d", ErrInvalidSize, outputSize)}
	}
	fraction := frame.AreaFraction()
	if err := validFraction(fraction); err != nil {
		return nil, &domain.RenderError{Op: "layout", Err: err}
	}

	photoImg, err := decode("photo", photo.Data, c.maxPixels)
	if err != nil {
		return nil, err
	}
	frameImg, err := decode("frame", frame.Data, c.maxPixels)
	if err != nil {
		return nil, err
	}

	pb := photoImg.Bounds()
	p := CoverFit(pb.Dx(), pb.Dy(), outputSize, fraction)

	dst := image.NewRGBA(image.Rect(0, 0, outputSize, outputSize))
	interp := c.interp.interpolator()

	// Bottom layer: the photo, clipped to the photo area.
	area := image.Rect(
		int(math.Round(p.AreaX)),
		int(math.Round(p.AreaY)),
		int(math.Round(p.AreaX+p.AreaSide)),
		int(math.Round(p.AreaY+p.AreaSide)),
	)
	clip, ok := dst.SubImage(area).(*image.RGBA)
	if !ok {
		return nil, &domain.RenderError{Op: "clip", Err: fmt.Errorf("unexpected surface type %T", dst.SubImage(area))}
	}
	s2d := f64.Aff3{
		p.Scale, 0, p.OffsetX - p.Scale*float64(pb.Min.X),
		0, p.Scale, p.OffsetY - p.Scale*float64(pb.Min.Y),
	}
	interp.Transform(clip, s2d, photoImg, pb, draw.Over, nil)

	// Top layer: the frame, stretched to the whole canvas.
	interp.Scale(dst, dst.Bounds(), frameImg, frameImg.Bounds(), draw.Over, nil)

	c.logger.Debug("Rendered surface",
		"photo_w", pb.Dx(), "photo_h", pb.Dy(),
		"scale", p.Scale, "offset_x", p.OffsetX, "offset_y", p.OffsetY,
	)
	return &Surface{img: dst, placement: p, frame: frame.Name}, nil
}

// Surface is the raster produced by Render. It is owned by the caller and is not
// modified after Render returns.
type Surface struct {
	img       *image.RGBA
	placement Placement
	frame     string
}

// Size is the side of the square surface in pixels.
func (s *Surface) Size() int { return s.img.Bounds().Dx() }

// Image exposes the pixels for inspection. Callers must not modify them.
func (s *Surface) Image() image.Image { return s.img }

// Placement returns the geometry used for the photo layer.
func (s *Surface) Placement() Placement { return s.placement }

// EncodePNG returns a fresh lossless encoding of the surface.
func (s *Surface) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, s.img); err != nil {
		return nil, &domain.RenderError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// Result encodes the surface into an immutable CompositeResult.
func (s *Surface) Result() (*domain.CompositeResult, error) {
	data, err := s.EncodePNG()
	if err != nil {
		return nil, err
	}
	return &domain.CompositeResult{PNG: data, Size: s.Size(), Frame: s.frame}, nil
}
