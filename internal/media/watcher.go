package media

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// OnChange is called, debounced, when a video file appears, changes or
// disappears under the watched root.
type OnChange func(path string)

// Watcher monitors the movies root for filesystem changes so the
// catalog can be rescanned without manual intervention.
type Watcher struct {
	root     string
	callback OnChange
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watched  map[string]bool
	debounce map[string]*time.Timer
	stop     chan struct{}
}

// NewWatcher creates a filesystem watcher over the movies root.
func NewWatcher(root string, cb OnChange) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		callback: cb,
		watcher:  fw,
		watched:  make(map[string]bool),
		debounce: make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// Start begins watching the movies root and processes events.
func (w *Watcher) Start() {
	go w.eventLoop()

	w.mu.Lock()
	if err := w.addRecursive(w.root); err != nil {
		log.Printf("[watcher] error adding %s: %v", w.root, err)
	}
	count := len(w.watched)
	w.mu.Unlock()

	log.Printf("[watcher] filesystem watcher started, %d directories", count)
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
			w.watched[path] = true
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

	// For created dirs, add them to the watch list; new content inside
	// will produce its own events.
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

	if !isVideoExtension(strings.ToLower(filepath.Ext(event.Name))) {
		return
	}

	// Debounce: 1 second
	w.mu.Lock()
	if timer, ok := w.debounce[event.Name]; ok {
		timer.Stop()
	}
	eventName := event.Name
	w.debounce[eventName] = time.AfterFunc(1*time.Second, func() {
		w.mu.Lock()
		delete(w.debounce, eventName)
		w.mu.Unlock()

		w.callback(eventName)
	})
	w.mu.Unlock()
}

func isVideoExtension(ext string) bool {
	video := map[string]bool{
		".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
		".m4v": true, ".wmv": true, ".flv": true, ".webm": true,
		".ts": true, ".m2ts": true, ".mpg": true, ".mpeg": true,
	}
	return video[ext]
}
