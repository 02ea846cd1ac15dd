package archive

import (
	"os"
	"sync"
)

// tmpFiles tracks in-flight temporary archives so an interrupted run can
// sweep them before exiting.
var tmpFiles = &tmpRegistry{}

type tmpRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func (r *tmpRegistry) add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paths == nil {
		r.paths = make(map[string]struct{})
	}
	r.paths[path] = struct{}{}
}

func (r *tmpRegistry) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

func (r *tmpRegistry) sweep() {
	r.mu.Lock()
	paths := make([]string, 0, len(r.paths))
	for p := range r.paths {
		paths = append(paths, p)
	}
	r.paths = nil
	r.mu.Unlock()

	for _, p := range paths {
		_ = os.Remove(p)
	}
}

// CleanupTmp removes temporary archives belonging to writers that never
// reached Close or Abort. The CLI calls it on the signal exit path.
func CleanupTmp() {
	tmpFiles.sweep()
}
