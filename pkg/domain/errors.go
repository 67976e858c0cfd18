package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode matches any DecodeError.
	ErrDecode = errors.New("image could not be decoded")

	// ErrRender matches any RenderError.
	ErrRender = errors.New("drawing surface unavailable")

	// ErrFetch matches any FetchError.
	ErrFetch = errors.New("failed to fetch action counts")

	// ErrRecord matches any RecordError.
	ErrRecord = errors.New("failed to record action")

	// ErrUnknownAction is returned for action kinds other than download and share.
	ErrUnknownAction = errors.New("unknown action kind")

	// ErrFrameNotFound is returned when the frame registry has no frame with the requested name.
	ErrFrameNotFound = errors.New("frame not found")

	// ErrStoreClosed is returned by event stores after Close.
	ErrStoreClosed = errors.New("event store closed")
)

// DecodeError reports unreadable photo or frame bytes. Terminal for the compositing attempt.
type DecodeError struct {
	Asset string // "photo" or "frame"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Asset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// RenderError reports that the drawing surface could not be created or encoded.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool { return target == ErrRender }

// FetchError reports a failed count query. Recovered locally by defaulting to zero.
type FetchError struct {
	Kind ActionKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s count: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// RecordError reports a failed telemetry write. Never blocks the primary action.
type RecordError struct {
	Kind ActionKind
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.Kind, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func (e *RecordError) Is(target error) bool { return target == ErrRecord }
