package framecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/framecast/internal/logging"
	"github.com/aretw0/framecast/pkg/compositor"
	"github.com/aretw0/framecast/pkg/counter"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/export"
	"github.com/aretw0/framecast/pkg/ports"
)

// DefaultRecordTimeout bounds each background action write.
const DefaultRecordTimeout = 5 * time.Second

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("framecast: studio closed")

// Studio is the high-level entry point: compose, export and count.
type Studio struct {
	frames     ports.FrameRegistry
	store      ports.EventStore
	compositor *compositor.Compositor
	counter    *counter.Counter
	sharer     ports.Sharer
	share      export.ShareOptions
	outputSize int
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	timeout    time.Duration
	now        func() time.Time

	mu          sync.Mutex
	pending     sync.WaitGroup
	unsubscribe counter.Unsubscribe
	closed      bool
}

var _ ports.Studio = (*Studio)(nil)

// Option defines a functional option for configuring the Studio.
type Option func(*Studio)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Studio) {
		s.logger = logger
	}
}

// WithCompositor replaces the default bilinear compositor.
func WithCompositor(c *compositor.Compositor) Option {
	return func(s *Studio) {
		s.compositor = c
	}
}

// WithOutputSize sets the side of the exported image (default 1080).
func WithOutputSize(size int) Option {
	return func(s *Studio) {
		s.outputSize = size
	}
}

// WithSharer sets the native share mechanism. Without one every share uses the fallback link.
func WithSharer(sharer ports.Sharer) Option {
	return func(s *Studio) {
		s.sharer = sharer
	}
}

// WithShareOptions overrides the share title, text and file prefix.
func WithShareOptions(opts export.ShareOptions) Option {
	return func(s *Studio) {
		s.share = opts
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Studio) {
		s.hooks = hooks
	}
}

// WithRecordTimeout bounds each background action write.
func WithRecordTimeout(d time.Duration) Option {
	return func(s *Studio) {
		s.timeout = d
	}
}

// New creates a Studio over a frame registry and an event store.
// The store is owned by the caller and is not closed by Close.
func New(frames ports.FrameRegistry, store ports.EventStore, opts ...Option) (*Studio, error) {
	if frames == nil {
		return nil, fmt.Errorf("frame registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("event store is required")
	}

	s := &Studio{
		frames:     frames,
		store:      store,
		share:      export.DefaultShareOptions(),
		outputSize: domain.DefaultOutputSize,
		timeout:    DefaultRecordTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.compositor == nil {
		s.compositor = compositor.New(compositor.WithLogger(s.logger))
	}
	if s.outputSize <= 0 {
		return nil, fmt.Errorf("invalid output size %d", s.outputSize)
	}

	s.counter = counter.New(store,
		counter.WithLogger(s.logger),
		counter.WithHooks(s.hooks),
	)
	return s, nil
}

// Start subscribes to pushed events and then seeds the totals from the store.
// Subscribing first leaves no gap; events already in the seed are skipped.
// A failed seed is logged and the totals start at zero.
func (s *Studio) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.unsubscribe != nil {
		return nil
	}

	unsubscribe, err := s.counter.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to action events: %w", err)
	}
	s.unsubscribe = unsubscribe

	counts, err := s.counter.Initialize(ctx)
	if err != nil {
		s.logger.Warn("Starting with partial action counts", "error", err)
	}
	s.logger.Info("Studio started",
		"download", counts[domain.ActionDownload],
		"share", counts[domain.ActionShare],
	)
	return nil
}

// Refresh re-reads the totals from the store. Totals never decrease.
func (s *Studio) Refresh(ctx context.Context) (domain.ActionCounts, error) {
	return s.counter.Initialize(ctx)
}

// Compose overlays photo with the named frame, or the active frame when name is empty.
func (s *Studio) Compose(ctx context.Context, photo []byte, name string) (*domain.CompositeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		frame domain.FrameAsset
		err   error
	)
	if name == "" {
		frame, err = s.frames.Active(ctx)
	} else {
		frame, err = s.frames.Get(ctx, name)
	}
	if err != nil {
		return nil, err
	}

	start := s.now()
	res, err := s.composite(photo, frame)
	event := &domain.CompositeEvent{
		Frame:    frame.Name,
		Size:     s.outputSize,
		Duration: s.now().Sub(start),
		Err:      err,
	}
	if res != nil {
		event.Bytes = len(res.PNG)
	}
	if s.hooks.OnComposite != nil {
		s.hooks.OnComposite(ctx, event)
	}

	if err != nil {
		s.logger.Info("Composite failed", "frame", frame.Name, "error", err)
		return nil, err
	}
	return res, nil
}

func (s *Studio) composite(data []byte, frame domain.FrameAsset) (*domain.CompositeResult, error) {
	photo, err := s.compositor.LoadPhoto(data)
	if err != nil {
		return nil, err
	}
	return s.compositor.Composite(photo, frame, s.outputSize)
}

// Download packages res for saving and records a download in the background.
func (s *Studio) Download(ctx context.Context, res *domain.CompositeResult) (*domain.Download, error) {
	if res == nil || len(res.PNG) == 0 {
		return nil, fmt.Errorf("nothing to download")
	}
	dl := export.NewDownload(res, s.share.FilePrefix, s.now())
	s.recordAsync(ctx, domain.ActionDownload)
	return dl, nil
}

// Share offers res to the native sharer and records a share in the background.
// When the sharer is missing or fails the returned package has Native false
// and the caller should open its FallbackURL.
func (s *Studio) Share(ctx context.Context, res *domain.CompositeResult) (*domain.SharePackage, error) {
	if res == nil || len(res.PNG) == 0 {
		return nil, fmt.Errorf("nothing to share")
	}
	pkg := export.NewSharePackage(res, s.share)
	if err := export.Share(ctx, s.sharer, pkg, s.logger); err != nil {
		return nil, err
	}
	s.recordAsync(ctx, domain.ActionShare)
	return pkg, nil
}

// Record appends one action synchronously. The local total moves when the
// store pushes the event back.
func (s *Studio) Record(ctx context.Context, kind domain.ActionKind) error {
	return s.counter.RecordAction(ctx, kind)
}

func (s *Studio) recordAsync(ctx context.Context, kind domain.ActionKind) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("Studio closed, action not recorded", "kind", kind)
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()

	// Detached from the request: the response may be written before the write lands.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	go func() {
		defer s.pending.Done()
		defer cancel()
		_ = s.counter.RecordAction(rctx, kind)
	}()
}

// Counts returns the current totals.
func (s *Studio) Counts() domain.ActionCounts {
	return s.counter.Counts()
}

// Watch streams totals after every change until ctx is done or the Studio closes.
func (s *Studio) Watch(ctx context.Context) <-chan domain.ActionCounts {
	return s.counter.Watch(ctx)
}

// Frames lists the registered frames.
func (s *Studio) Frames(ctx context.Context) ([]domain.FrameInfo, error) {
	return s.frames.List(ctx)
}

// SetActiveFrame switches the frame used when Compose gets no name.
func (s *Studio) SetActiveFrame(ctx context.Context, name string) error {
	if err := s.frames.SetActive(ctx, name); err != nil {
		return err
	}
	s.logger.Info("Active frame changed", "frame", name)
	return nil
}

// OutputSize is the side of every composite in pixels.
func (s *Studio) OutputSize() int { return s.outputSize }

// Close waits for background writes, then stops the counter. Idempotent.
func (s *Studio) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	s.pending.Wait()
	if unsubscribe != nil {
		unsubscribe()
	}
	s.counter.Close()
	return nil
}
