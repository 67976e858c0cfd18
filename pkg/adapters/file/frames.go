// Package file provides filesystem-backed adapters: a frame loader and an
// outbox sharer.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/framecast/pkg/adapters/memory"
	"github.com/aretw0/framecast/pkg/compositor"
	"github.com/aretw0/framecast/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ManifestName is the optional per-directory frame manifest.
const ManifestName = "frames.yaml"

// FrameSpec describes one frame graphic on disk.
type FrameSpec struct {
	Name              string  `yaml:"name" mapstructure:"name"`
	Path              string  `yaml:"path" mapstructure:"path"`
	PhotoAreaFraction float64 `yaml:"photo_area_fraction" mapstructure:"photo_area_fraction"`
}

// Manifest is the content of frames.yaml.
type Manifest struct {
	Active string      `yaml:"active"`
	Frames []FrameSpec `yaml:"frames"`
}

// LoadOption configures LoadFrames and LoadDir.
type LoadOption func(*loader)

type loader struct {
	comp *compositor.Compositor
}

// WithCompositor checks frame headers against c's pixel limit instead of the default.
func WithCompositor(c *compositor.Compositor) LoadOption {
	return func(l *loader) {
		l.comp = c
	}
}

func newLoader(opts []LoadOption) *loader {
	l := &loader{comp: compositor.New()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFrames reads every spec (relative paths resolve against baseDir) and
// returns a registry. active selects the initial frame; empty means the first.
func LoadFrames(baseDir string, specs []FrameSpec, active string, opts ...LoadOption) (*memory.Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no frames configured")
	}
	l := newLoader(opts)

	frames := make([]domain.FrameAsset, 0, len(specs))
	for _, spec := range specs {
		path := spec.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		name := spec.Name
		if name == "" {
			name = frameName(path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %q: %w", name, err)
		}
		frame, err := l.comp.LoadFrame(name, data, spec.PhotoAreaFraction)
		if err != nil {
			return nil, fmt.Errorf("failed to load frame %q: %w", name, err)
		}
		frames = append(frames, frame)
	}

	reg, err := memory.NewRegistry(frames...)
	if err != nil {
		return nil, err
	}
	if active != "" {
		if err := reg.SetActive(context.Background(), active); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadDir loads the frames of dir. With a frames.yaml manifest the manifest
// decides; otherwise every .png in dir becomes a full-canvas frame named after
// its file, sorted by name.
func LoadDir(dir string, opts ...LoadOption) (*memory.Registry, error) {
	manifest, err := readManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		return LoadFrames(dir, manifest.Frames, manifest.Active, opts...)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}
	var specs []FrameSpec
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		specs = append(specs, FrameSpec{Path: e.Name()})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Path < specs[j].Path })
	if len(specs) == 0 {
		return nil, fmt.Errorf("no .png frames in %s", dir)
	}
	return LoadFrames(dir, specs, "", opts...)
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

func frameName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
