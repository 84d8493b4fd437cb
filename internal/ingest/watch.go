package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Watcher polls a directory on an interval and re-ingests any file
// whose mtime has advanced since the last scan, adapted from the
// teacher's output.go WatchMode: same lastModTime-map-plus-ticker
// shape, but re-ingesting through Service instead of re-running a
// Searcher. A modified file is re-extracted and saved as a new
// (sha256, filename) record; the earlier record stays in the catalog
// unchanged.
type Watcher struct {
	svc         *Service
	root        string
	interval    time.Duration
	lastModTime map[string]time.Time
}

// NewWatcher builds a Watcher over root, polling every interval.
func NewWatcher(svc *Service, root string, interval time.Duration) *Watcher {
	return &Watcher{
		svc:         svc,
		root:        root,
		interval:    interval,
		lastModTime: make(map[string]time.Time),
	}
}

// Run scans root once, then polls on ctx or the watcher's interval
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.scanAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.checkForChanges(ctx)
		}
	}
}

func (w *Watcher) scanAll(ctx context.Context) {
	filepath.Walk(w.root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		w.lastModTime[p] = info.ModTime()
		w.ingest(ctx, p)
		return nil
	})
}

func (w *Watcher) checkForChanges(ctx context.Context) {
	filepath.Walk(w.root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		lastMod, exists := w.lastModTime[p]
		if !exists || info.ModTime().After(lastMod) {
			w.lastModTime[p] = info.ModTime()
			fmt.Printf("[changed] %s at %s\n", p, info.ModTime().Format("15:04:05"))
			w.ingest(ctx, p)
		}
		return nil
	})
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	result, err := w.svc.IngestFile(ctx, filepath.Base(path), path)
	if err != nil {
		w.svc.Logger.Warn("watch ingest failed", "path", path, "error", err)
		return
	}
	if result.Err != nil {
		w.svc.Logger.Warn("watch ingest failed", "path", path, "error", result.Err)
	}
}
