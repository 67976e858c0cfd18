package domain

import (
	"context"
	"time"
)

// CompositeEvent describes one finished compositing operation.
type CompositeEvent struct {
	Frame    string
	Size     int
	Bytes    int
	Duration time.Duration
	Err      error
}

// RecordEvent describes one attempt to append an action to the event store.
type RecordEvent struct {
	Kind ActionKind
	Err  error
}

// LifecycleHooks defines callbacks for observability.
type LifecycleHooks struct {
	OnComposite func(context.Context, *CompositeEvent)
	OnRecord    func(context.Context, *RecordEvent)
	OnCounts    func(context.Context, ActionCounts)
}
