package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionKind names a user action that is counted.
type ActionKind string

const (
	// ActionDownload is recorded when the user saves the composited photo.
	ActionDownload ActionKind = "download"

	// ActionShare is recorded when the user shares the composited photo.
	ActionShare ActionKind = "share"
)

// ActionKinds lists every counted kind in display order.
var ActionKinds = []ActionKind{ActionDownload, ActionShare}

// Valid reports whether k is a known kind.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionDownload, ActionShare:
		return true
	}
	return false
}

func (k ActionKind) String() string { return string(k) }

// ParseActionKind converts user input ("Download", " share ") into an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return k, nil
}

// ActionEvent is one committed record in the event store.
type ActionEvent struct {
	ID   string     `json:"id"`
	Kind ActionKind `json:"action_type"`
	// Seq is the per-kind total right after this event was committed.
	// Zero when the store cannot provide it.
	Seq int64     `json:"seq,omitempty"`
	At  time.Time `json:"at"`
}

// NewActionEvent creates an uncommitted event with a fresh ID.
func NewActionEvent(kind ActionKind) ActionEvent {
	return ActionEvent{
		ID:   uuid.NewString(),
		Kind: kind,
		At:   time.Now().UTC(),
	}
}
