package ports

import (
	"context"

	"github.com/aretw0/framecast/pkg/domain"
)

// Studio is what inbound adapters (HTTP, MCP, CLI) drive.
type Studio interface {
	// Compose overlays photo with the named frame, or the active one when frame is empty.
	Compose(ctx context.Context, photo []byte, frame string) (*domain.CompositeResult, error)

	// Download packages a composite for saving and records a download.
	Download(ctx context.Context, res *domain.CompositeResult) (*domain.Download, error)

	// Share packages a composite for sharing and records a share.
	Share(ctx context.Context, res *domain.CompositeResult) (*domain.SharePackage, error)

	// Counts returns the current action totals.
	Counts() domain.ActionCounts

	// Watch streams action totals after every change until ctx is done.
	Watch(ctx context.Context) <-chan domain.ActionCounts

	// Frames lists the registered frames.
	Frames(ctx context.Context) ([]domain.FrameInfo, error)

	// SetActiveFrame switches the frame used when none is named.
	SetActiveFrame(ctx context.Context, name string) error
}
