// Package export packages composites for download and sharing and maps
// failures to short user-facing messages.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
)

const (
	DefaultFilePrefix = "campaign-photo"
	DefaultShareTitle = "Join the Campaign"
	DefaultShareText  = "Check out my campaign photo! Join the movement!"

	// FallbackBaseURL opens the messaging app with pre-filled text.
	FallbackBaseURL = "https://wa.me/?text="
)

// User-facing messages.
const (
	MsgReady            = "Your photo is ready!"
	MsgDownloaded       = "Photo downloaded!"
	MsgProcessFailed    = "Failed to process image"
	MsgNotAnImage       = "Please upload an image file"
	MsgFrameUnavailable = "Campaign frame unavailable"
	MsgShareFallback    = "Opening WhatsApp..."
	MsgShareFallbackTip = "Download the photo and share it manually"
)

// ShareOptions controls the text attached to shared composites.
type ShareOptions struct {
	Title      string
	Text       string
	FilePrefix string
}

// DefaultShareOptions returns the campaign defaults.
func DefaultShareOptions() ShareOptions {
	return ShareOptions{
		Title:      DefaultShareTitle,
		Text:       DefaultShareText,
		FilePrefix: DefaultFilePrefix,
	}
}

func (o ShareOptions) withDefaults() ShareOptions {
	d := DefaultShareOptions()
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.Text == "" {
		o.Text = d.Text
	}
	if o.FilePrefix == "" {
		o.FilePrefix = d.FilePrefix
	}
	return o
}

// DownloadName returns "<prefix>-<unix millis>.png".
func DownloadName(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	return fmt.Sprintf("%s-%d.png", prefix, at.UnixMilli())
}

// FallbackURL builds the deep link used when native sharing is not possible.
// Spaces are encoded as %20, not '+'.
func FallbackURL(text string) string {
	return FallbackBaseURL + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// NewDownload packages res for saving.
func NewDownload(res *domain.CompositeResult, prefix string, at time.Time) *domain.Download {
	return &domain.Download{
		FileName:    DownloadName(prefix, at),
		ContentType: res.ContentType(),
		PNG:         res.PNG,
	}
}

// NewSharePackage packages res for the native share sheet. Native is false
// until a Sharer accepts it.
func NewSharePackage(res *domain.CompositeResult, opts ShareOptions) *domain.SharePackage {
	opts = opts.withDefaults()
	return &domain.SharePackage{
		FileName:    opts.FilePrefix + ".png",
		ContentType: res.ContentType(),
		Title:       opts.Title,
		Text:        opts.Text,
		FallbackURL: FallbackURL(opts.Text),
		PNG:         res.PNG,
	}
}

// Share offers pkg to sharer. Any failure, or a nil sharer, leaves
// pkg.Native false so the caller opens pkg.FallbackURL instead. Only a done
// ctx is returned as an error.
func Share(ctx context.Context, sharer ports.Sharer, pkg *domain.SharePackage, logger *slog.Logger) error {
	pkg.Native = false
	if sharer == nil {
		return nil
	}
	err := sharer.Share(ctx, pkg)
	switch {
	case err == nil:
		pkg.Native = true
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, ports.ErrShareUnavailable):
		logger.Debug("Native share unavailable, using fallback link")
	default:
		logger.Info("Share failed, using fallback link", "error", err)
	}
	return nil
}

// UserMessage maps err to the short message shown to the user.
// It returns "" for errors that are never surfaced (telemetry).
func UserMessage(err error) string {
	var decodeErr *domain.DecodeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrRecord), errors.Is(err, domain.ErrFetch):
		return ""
	case errors.Is(err, domain.ErrFrameNotFound):
		return MsgFrameUnavailable
	case errors.As(err, &decodeErr) && decodeErr.Asset == "photo":
		return MsgNotAnImage
	default:
		return MsgProcessFailed
	}
}
