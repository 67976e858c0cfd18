package ports

import (
	"context"

	"github.com/aretw0/framecast/pkg/domain"
)

// FrameRegistry resolves frame assets by name.
// This allows the frame source (config files, memory) to be decoupled.
type FrameRegistry interface {
	// Active returns the frame currently offered to users.
	Active(ctx context.Context) (domain.FrameAsset, error)

	// Get returns a frame by name, or domain.ErrFrameNotFound.
	Get(ctx context.Context, name string) (domain.FrameAsset, error)

	// List describes every registered frame, sorted by name.
	List(ctx context.Context) ([]domain.FrameInfo, error)

	// SetActive switches the active frame. Returns domain.ErrFrameNotFound for unknown names.
	SetActive(ctx context.Context, name string) error
}
