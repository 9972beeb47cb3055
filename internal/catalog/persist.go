package catalog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/haasonsaas/livebridge/internal/daw"
)

const (
	snapshotVersion = 1
	snapshotName    = "catalog.json.gz"
	// Snapshots older than this are ignored at startup; the browser
	// content has likely drifted.
	snapshotMaxAge = 7 * 24 * time.Hour
)

// snapshot is the on-disk form: version header, flat list, and the
// by-name index so a disk load needs no rebuild pass.
type snapshot struct {
	Version int               `json:"version"`
	SavedAt time.Time         `json:"saved_at"`
	Items   []Item            `json:"items"`
	ByName  map[string]string `json:"by_name"`
}

// SaveToDisk writes the current indices as a gzip-compressed JSON file.
// The write goes to a temp file first and renames into place, so a
// crash mid-write never leaves a torn snapshot.
func (c *Cache) SaveToDisk() error {
	c.mu.Lock()
	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now(),
		Items:   c.items,
		ByName:  c.byName,
	}
	c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("catalog dir: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, snapshotName+".tmp-*")
	if err != nil {
		return fmt.Errorf("catalog temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode catalog snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("compress catalog snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush catalog snapshot: %w", err)
	}
	final := filepath.Join(c.dir, snapshotName)
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("commit catalog snapshot: %w", err)
	}
	c.logger.Info("catalog snapshot written", "path", final, "items", len(snap.Items))
	return nil
}

// LoadFromDisk restores the last persisted snapshot if it exists, parses,
// carries the current format version, and is younger than a week.
// Success commits the indices and fires the readiness event.
func (c *Cache) LoadFromDisk() error {
	path := filepath.Join(c.dir, snapshotName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return daw.E(daw.KindNotReady, "no catalog snapshot at %s", path)
		}
		return fmt.Errorf("open catalog snapshot: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("catalog snapshot not gzip: %w", err)
	}
	defer zr.Close()

	var snap snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return fmt.Errorf("decode catalog snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("catalog snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	if age := time.Since(snap.SavedAt); age > snapshotMaxAge {
		return daw.E(daw.KindNotReady, "catalog snapshot is stale (%s old)", age.Round(time.Hour))
	}
	if len(snap.Items) == 0 {
		return daw.E(daw.KindNotReady, "catalog snapshot is empty")
	}

	c.commit(snap.Items, "disk")
	c.metrics.CatalogPopulateCounter.WithLabelValues("disk", "success").Inc()
	c.logger.Info("catalog restored from disk",
		"path", path, "items", len(snap.Items), "saved_at", snap.SavedAt)
	return nil
}
