package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
)

// Outbox implements ports.Sharer by dropping share packages into a directory
// watched by some other delivery process. Each package becomes
// <stamp>-<file name> plus a .json sidecar with title, text and fallback link.
type Outbox struct {
	Dir string
	now func() time.Time
}

var _ ports.Sharer = (*Outbox)(nil)

// NewOutbox creates an outbox. If dir is empty, it defaults to ".framecast/outbox".
func NewOutbox(dir string) *Outbox {
	if dir == "" {
		dir = filepath.Join(".framecast", "outbox")
	}
	return &Outbox{Dir: dir, now: time.Now}
}

// Share writes pkg atomically. The JSON sidecar is written last so a watcher
// that keys on it never sees a partial image.
func (o *Outbox) Share(ctx context.Context, pkg *domain.SharePackage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(pkg.PNG) == 0 {
		return fmt.Errorf("share package has no image")
	}
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure outbox directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s", o.now().UnixMilli(), pkg.FileName)
	if err := writeAtomic(o.Dir, name, pkg.PNG); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal share package: %w", err)
	}
	return writeAtomic(o.Dir, strings.TrimSuffix(name, filepath.Ext(name))+".json", meta)
}

// writeAtomic writes to a temp file in dir, syncs it, then renames it into place.
func writeAtomic(dir, name string, data []byte) error {
	tmpFile, err := os.CreateTemp(dir, "tmp-*-"+name)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Closed before rename for Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to rename %s: %w", name, err)
	}
	return nil
}
