package ports

import (
	"context"
	"errors"

	"github.com/aretw0/framecast/pkg/domain"
)

// ErrShareUnavailable is returned by a Sharer when no native share mechanism exists.
var ErrShareUnavailable = errors.New("native share unavailable")

// Sharer hands a packaged composite to the platform's native share mechanism.
type Sharer interface {
	Share(ctx context.Context, pkg *domain.SharePackage) error
}
