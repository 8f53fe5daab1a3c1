package watcher

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/imHansiy/mediadex/internal/scanner"
)

// OnScanDue is called (debounced) when video files appear or disappear
// under a watched root. The callback should hand off quickly; enqueueing
// a scan is the expected move.
type OnScanDue func(path string)

// Watcher monitors the custom presets file and, for local deployments,
// the scan roots themselves. Preset edits reload the registry in place;
// video churn under a root reports a scan as due. Remote (AList) roots
// cannot be watched, so cmd passes no roots for those.
type Watcher struct {
	registry    *scanner.Registry
	preset      string
	presetsFile string
	roots       []string
	callback    OnScanDue
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	watched     map[string]bool
	debounce    map[string]*time.Timer
	stop        chan struct{}
}

func New(registry *scanner.Registry, preset, presetsFile string, roots []string, cb OnScanDue) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		registry:    registry,
		preset:      preset,
		presetsFile: filepath.Clean(presetsFile),
		roots:       roots,
		callback:    cb,
		watcher:     fw,
		watched:     make(map[string]bool),
		debounce:    make(map[string]*time.Timer),
		stop:        make(chan struct{}),
	}, nil
}

// Start begins watching and processes events.
func (w *Watcher) Start() {
	go w.eventLoop()

	if w.presetsFile != "." {
		// Editors replace files via rename, which unhooks a watch on the
		// file itself. Watching the parent directory survives that.
		if err := w.watcher.Add(filepath.Dir(w.presetsFile)); err != nil {
			log.Printf("[watcher] error watching presets dir: %v", err)
		}
	}

	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			log.Printf("[watcher] error adding %s: %v", root, err)
		}
	}

	w.mu.Lock()
	watched := len(w.watched)
	w.mu.Unlock()
	log.Printf("[watcher] filesystem watcher started (%d paths across %d roots)", watched, len(w.roots))
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if info.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return nil
			}
			w.mu.Lock()
			w.watched[path] = true
			w.mu.Unlock()
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) == w.presetsFile {
		if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
			w.debounced("presets:"+w.presetsFile, w.reloadPresets)
		}
		return
	}

	// Skip hidden files and temp files
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part") {
		return
	}

	isCreate := event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
	isRemove := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)

	if !isCreate && !isRemove {
		return
	}

	// For created dirs, add them to the watch list
	if isCreate {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			w.mu.Lock()
			w.watcher.Add(event.Name)
			w.watched[event.Name] = true
			w.mu.Unlock()
			return
		}
	}

	if !w.registry.Get(w.preset).IsVideo(base) {
		return
	}

	eventName := event.Name
	w.debounced(eventName, func() {
		log.Printf("[watcher] video change at %s, scan due", eventName)
		w.callback(eventName)
	})
}

// debounced schedules fn one second after the latest event for key, so a
// burst (a file still copying in, an editor's save dance) collapses to
// one call.
func (w *Watcher) debounced(key string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.debounce[key]; ok {
		timer.Stop()
	}
	w.debounce[key] = time.AfterFunc(1*time.Second, func() {
		w.mu.Lock()
		delete(w.debounce, key)
		w.mu.Unlock()
		fn()
	})
}

func (w *Watcher) reloadPresets() {
	if err := w.registry.LoadFile(w.presetsFile); err != nil {
		log.Printf("[watcher] presets reload failed: %v", err)
		return
	}
	log.Printf("[watcher] presets reloaded from %s", w.presetsFile)
}
