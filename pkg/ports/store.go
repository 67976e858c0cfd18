package ports

import (
	"context"

	"github.com/aretw0/framecast/pkg/domain"
)

// CancelFunc releases a subscription. Calling it more than once is a no-op.
type CancelFunc func()

// EventStore defines the external store of action events.
// The counter only needs "append one event", "count events of a kind" and
// "notify me of new events".
type EventStore interface {
	// Append commits one event of the given kind.
	// Returns domain.ErrUnknownAction for kinds other than download and share.
	Append(ctx context.Context, kind domain.ActionKind) (domain.ActionEvent, error)

	// Count returns the number of committed events of the given kind.
	Count(ctx context.Context, kind domain.ActionKind) (int64, error)

	// Subscribe delivers every event committed after it returns, in commit order.
	// The channel is closed once cancel is called, ctx is done or the store is closed.
	Subscribe(ctx context.Context) (<-chan domain.ActionEvent, CancelFunc, error)

	// Close releases the underlying connection and ends all subscriptions.
	Close() error
}
