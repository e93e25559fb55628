package resolver

import (
	"github.com/fsnotify/fsnotify"

	"github.com/mlld-lang/mlld-core/rtlog"
)

// Watcher invalidates cached `static`/`cached(ttl)` filesystem imports
// (the ones Resolver.Resolve registers) when their backing file
// changes, for long-running/dev-mode hosts, so edits to a local file
// module take effect without a process restart.
type Watcher struct {
	fsw   *fsnotify.Watcher
	cache *Cache
	paths map[string]string // watched path -> cache key
	log   *rtlog.Logger
}

// NewWatcher starts an fsnotify watcher bound to cache. Callers must
// call Close when done.
func NewWatcher(cache *Cache, log *rtlog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw, cache: cache, paths: map[string]string{}, log: log}, nil
}

// Watch registers path (a resolved filesystem specifier's absolute
// path) to invalidate key in cache on write/remove/rename events.
func (w *Watcher) Watch(path, key string) error {
	w.paths[path] = key
	return w.fsw.Add(path)
}

// Run drains filesystem events until the watcher is closed, invalidating
// cache entries as their source files change.
func (w *Watcher) Run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if key, tracked := w.paths[ev.Name]; tracked {
				w.cache.Invalidate(key)
				if w.log != nil {
					w.log.Debugf("resolver: invalidated cache for %s (%s)", ev.Name, ev.Op)
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warnf("resolver: watch error: %v", err)
			}
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
