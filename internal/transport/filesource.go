package transport

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lumenfield/swarmview/internal/frame"
	"github.com/lumenfield/swarmview/internal/framestore"
)

// FileSource replays frames from a local JSON file instead of the
// network, for offline and demo use. The file holds one full state
// frame; every write republishes it, so pointing a generator at the
// file behaves like a slow push feed.
type FileSource struct {
	watcher  *fsnotify.Watcher
	path     string
	store    *framestore.Store
	debounce time.Duration
	done     chan struct{}
}

// NewFileSource loads the frame file once, publishes it, and starts
// watching the parent directory for rewrites (editors replace files
// rather than writing in place).
func NewFileSource(path string, store *framestore.Store) (*FileSource, error) {
	if err := publishFile(path, store); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("replay watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	fs := &FileSource{
		watcher:  w,
		path:     path,
		store:    store,
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
	go fs.loop()
	return fs, nil
}

// Close stops the watcher.
func (fs *FileSource) Close() error {
	close(fs.done)
	return fs.watcher.Close()
}

func (fs *FileSource) loop() {
	var timer *time.Timer
	for {
		select {
		case <-fs.done:
			return
		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(fs.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce: reset timer on each write.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(fs.debounce, func() {
				if err := publishFile(fs.path, fs.store); err != nil {
					log.Printf("replay: %v", err)
				}
			})
		case _, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func publishFile(path string, store *framestore.Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	f, err := frame.Decode(data)
	if err != nil {
		return err
	}
	store.Publish(f, framestore.SourcePush)
	return nil
}
