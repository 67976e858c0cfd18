package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
)

// FrameRegistryContractTest is a reusable test suite that verifies if an adapter complies with ports.FrameRegistry.
// The registry must contain exactly the frames named in want, with active set as the active one.
func FrameRegistryContractTest(t *testing.T, registry ports.FrameRegistry, want []string, active string) {
	t.Helper()
	ctx := context.Background()

	// 1. Test Get (Success)
	t.Run("Get_Success", func(t *testing.T) {
		for _, name := range want {
			frame, err := registry.Get(ctx, name)
			if err != nil {
				t.Fatalf("unexpected error getting frame %s: %v", name, err)
			}
			if frame.Name != name {
				t.Errorf("name mismatch: got %q, want %q", frame.Name, name)
			}
			if len(frame.Data) == 0 {
				t.Errorf("frame %s has no data", name)
			}
			if frame.Width <= 0 || frame.Height <= 0 {
				t.Errorf("frame %s has no intrinsic size (%dx%d)", name, frame.Width, frame.Height)
			}
		}
	})

	// 2. Test Get (NotFound)
	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := registry.Get(ctx, "non-existent-frame")
		if !errors.Is(err, domain.ErrFrameNotFound) {
			t.Errorf("expected ErrFrameNotFound, got %v", err)
		}
	})

	// 3. Test List
	t.Run("List", func(t *testing.T) {
		frames, err := registry.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing frames: %v", err)
		}
		if len(frames) != len(want) {
			t.Fatalf("expected %d frames, got %d", len(want), len(frames))
		}

		actives := 0
		lookup := make(map[string]bool)
		for i, f := range frames {
			lookup[f.Name] = true
			if f.Active {
				actives++
				if f.Name != active {
					t.Errorf("frame %s marked active, want %s", f.Name, active)
				}
			}
			if i > 0 && frames[i-1].Name > f.Name {
				t.Errorf("frames not sorted: %s before %s", frames[i-1].Name, f.Name)
			}
		}
		if actives != 1 {
			t.Errorf("expected exactly one active frame, got %d", actives)
		}
		for _, name := range want {
			if !lookup[name] {
				t.Errorf("frame %s missing from list", name)
			}
		}
	})

	// 4. Test Active / SetActive
	t.Run("Active", func(t *testing.T) {
		frame, err := registry.Active(ctx)
		if err != nil {
			t.Fatalf("unexpected error resolving active frame: %v", err)
		}
		if frame.Name != active {
			t.Errorf("active frame = %s, want %s", frame.Name, active)
		}

		if err := registry.SetActive(ctx, "non-existent-frame"); !errors.Is(err, domain.ErrFrameNotFound) {
			t.Errorf("expected ErrFrameNotFound, got %v", err)
		}

		last := want[len(want)-1]
		if err := registry.SetActive(ctx, last); err != nil {
			t.Fatalf("SetActive(%s): %v", last, err)
		}
		frame, err = registry.Active(ctx)
		if err != nil || frame.Name != last {
			t.Errorf("active frame after switch = %s (%v), want %s", frame.Name, err, last)
		}

		// Restore
		if err := registry.SetActive(ctx, active); err != nil {
			t.Fatalf("SetActive(%s): %v", active, err)
		}
	})
}
