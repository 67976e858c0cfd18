package domain

const (
	// DefaultOutputSize is the side, in pixels, of the exported square image.
	DefaultOutputSize = 1080

	// FullPhotoAreaFraction is used by frames drawn over the whole canvas.
	FullPhotoAreaFraction = 1.0

	// BorderedPhotoAreaFraction is typical for frames that reserve a border.
	BorderedPhotoAreaFraction = 0.85
)

// SourcePhoto is a user-supplied raster image. Immutable once loaded.
type SourcePhoto struct {
	Data   []byte
	Width  int
	Height int
	Format string // decoder name reported by the header, e.g. "jpeg"
}

// FrameAsset is a campaign frame graphic. Shared read-only by all compositing operations.
type FrameAsset struct {
	Name   string
	Data   []byte
	Width  int
	Height int

	// PhotoAreaFraction is the side of the centered photo area relative to the
	// output size. It is an authoring parameter of the frame, in (0, 1].
	PhotoAreaFraction float64
}

// AreaFraction returns the configured fraction, defaulting to the full canvas.
func (f FrameAsset) AreaFraction() float64 {
	if f.PhotoAreaFraction == 0 {
		return FullPhotoAreaFraction
	}
	return f.PhotoAreaFraction
}

// CompositeResult is the encoded artifact of one compositing operation.
type CompositeResult struct {
	PNG   []byte
	Size  int
	Frame string
}

// ContentType is the MIME type of the encoded result.
func (r *CompositeResult) ContentType() string { return "image/png" }

// FrameInfo describes a registered frame without its bytes.
type FrameInfo struct {
	Name              string  `json:"name"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	PhotoAreaFraction float64 `json:"photo_area_fraction"`
	Active            bool    `json:"active"`
}

// Info summarizes the frame.
func (f FrameAsset) Info() FrameInfo {
	return FrameInfo{
		Name:              f.Name,
		Width:             f.Width,
		Height:            f.Height,
		PhotoAreaFraction: f.AreaFraction(),
	}
}
