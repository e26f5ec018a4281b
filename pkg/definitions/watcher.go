package definitions

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watcher mirrors the scan logic incrementally so the registry stays live
// without full rescans. fsnotify does not recurse, so every subdirectory is
// added explicitly, including ones created after startup.
type watcher struct {
	fsw  *fsnotify.Watcher
	sync *Sync
	done chan struct{}
}

func (s *Sync) restartWatcher(ctx context.Context, dirs []string) error {
	s.mu.Lock()
	old := s.fsw
	s.fsw = nil
	s.mu.Unlock()

	if old != nil {
		if err := old.close(); err != nil {
			s.logger.Warn("Failed to close previous definitions watcher", "error", err)
		}
	}

	if len(dirs) == 0 {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w := &watcher{fsw: fsw, sync: s, done: make(chan struct{})}

	for _, dir := range dirs {
		w.addRecursive(dir)
	}

	go w.loop(ctx)

	s.mu.Lock()
	s.fsw = w
	s.mu.Unlock()

	return nil
}

func (w *watcher) addRecursive(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}

		if err := w.fsw.Add(path); err != nil {
			w.sync.logger.Warn("Failed to watch directory", "dir", path, "error", err)
		}

		return nil
	})
	if err != nil {
		w.sync.logger.Warn("Failed to walk directory for watching", "dir", dir, "error", err)
	}
}

func (w *watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.sync.logger.Warn("Definitions watcher error", "error", err)
		}
	}
}

func (w *watcher) handle(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			// New subdirectory: watch it and pick up definitions inside.
			w.addRecursive(event.Name)
			w.scanDir(ctx, event.Name)

			return
		}

		if IsDefinitionFile(event.Name) {
			w.sync.Reconcile(ctx, event.Name)
		}
	case event.Op.Has(fsnotify.Write):
		if IsDefinitionFile(event.Name) {
			w.sync.Reconcile(ctx, event.Name)
		}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		// A rename away is a delete here; the create side re-registers the
		// file under its new path-derived identity.
		if IsDefinitionFile(event.Name) {
			w.sync.Remove(event.Name)
		}
	}
}

func (w *watcher) scanDir(ctx context.Context, dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !IsDefinitionFile(path) {
			return nil
		}

		w.sync.Reconcile(ctx, path)

		return nil
	})
	if err != nil {
		w.sync.logger.Warn("Failed to scan new directory", "dir", dir, "error", err)
	}
}

func (w *watcher) close() error {
	close(w.done)

	return w.fsw.Close()
}
