package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
)

// Registry implements ports.FrameRegistry using an in-memory map.
// Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	frames map[string]domain.FrameAsset
	active string
}

var _ ports.FrameRegistry = (*Registry)(nil)

// NewRegistry creates a registry from loaded frames. The first frame is active.
func NewRegistry(frames ...domain.FrameAsset) (*Registry, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("at least one frame is required")
	}
	r := &Registry{frames: make(map[string]domain.FrameAsset, len(frames))}
	for _, f := range frames {
		if f.Name == "" {
			return nil, fmt.Errorf("frame missing name")
		}
		if _, dup := r.frames[f.Name]; dup {
			return nil, fmt.Errorf("duplicate frame %q", f.Name)
		}
		r.frames[f.Name] = f
	}
	r.active = frames[0].Name
	return r, nil
}

// Active returns the active frame.
func (r *Registry) Active(ctx context.Context) (domain.FrameAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frames[r.active], nil
}

// Get returns a frame by name.
func (r *Registry) Get(ctx context.Context, name string) (domain.FrameAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.frames[name]
	if !ok {
		return domain.FrameAsset{}, fmt.Errorf("%w: %s", domain.ErrFrameNotFound, name)
	}
	return f, nil
}

// List returns all frames sorted by name.
func (r *Registry) List(ctx context.Context) ([]domain.FrameInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]domain.FrameInfo, 0, len(r.frames))
	for name, f := range r.frames {
		info := f.Info()
		info.Active = name == r.active
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name }) // Deterministic order
	return infos, nil
}

// SetActive switches the active frame.
func (r *Registry) SetActive(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.frames[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrFrameNotFound, name)
	}
	r.active = name
	return nil
}
