package rulegraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/brunobiangulo/rulegraph/corpus"
)

// DefaultDebounce is the quiet period before a rebuild.
const DefaultDebounce = 500 * time.Millisecond

// SourcePaths returns the paths of sources.
func SourcePaths(sources []corpus.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Path
	}
	return out
}

// Watch rebuilds e whenever one of paths changes. Files are watched
// through their parent directory so replace-on-save editors are seen;
// directories report changes to any file inside them. Events closer
// together than debounce trigger one rebuild. onBuild, when set, receives
// each rebuild's result. Watch blocks until ctx is done.
func Watch(ctx context.Context, e Engine, paths []string, debounce time.Duration, onBuild func(*Build, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		target := abs
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			dirs[abs] = true
		} else {
			files[abs] = true
			target = filepath.Dir(abs)
		}
		if err := w.Add(target); err != nil {
			return fmt.Errorf("watching %s: %w", target, err)
		}
		slog.Debug("watch: watching", "path", target)
	}

	relevant := func(ev fsnotify.Event) bool {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
			return false
		}
		name := filepath.Clean(ev.Name)
		return files[name] || dirs[filepath.Dir(name)]
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	slog.Info("watch: started", "paths", len(paths), "debounce", debounce)
	for {
		select {
		case <-ctx.Done():
			slog.Info("watch: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			slog.Debug("watch: source changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch: watcher error", "error", err)

		case <-fire:
			fire = nil
			b, err := e.Build(ctx)
			if err != nil {
				slog.Error("watch: rebuild failed", "error", err)
			}
			if onBuild != nil {
				onBuild(b, err)
			}
		}
	}
}
