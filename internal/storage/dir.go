package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const valueExt = ".val"

// Dir is a backend storing one file per key. File names are the hex encoding
// of the key, so any key is a valid name.
type Dir struct {
	path string

	mu sync.Mutex
	// written remembers the last value this process wrote per key (nil for
	// removals) so the watcher can skip its own writes.
	written map[string]*string

	watcher *fsnotify.Watcher
	closeCh chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// OpenDir opens, creating if needed, a directory backend.
func OpenDir(path string) (*Dir, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(clean, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Dir{
		path:    clean,
		written: make(map[string]*string),
		closeCh: make(chan struct{}),
	}, nil
}

func (d *Dir) file(key string) string {
	return filepath.Join(d.path, hex.EncodeToString([]byte(key))+valueExt)
}

func keyFromFile(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, valueExt) {
		return "", false
	}
	raw, err := hex.DecodeString(strings.TrimSuffix(base, valueExt))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (d *Dir) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Get implements Backend.
func (d *Dir) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if d.isClosed() {
		return "", false, ErrClosed
	}
	data, err := os.ReadFile(d.file(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set implements Backend. The value is written to a temporary file and
// renamed into place.
func (d *Dir) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	v := value
	d.written[key] = &v
	d.mu.Unlock()

	tmp, err := os.CreateTemp(d.path, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), d.file(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// Remove implements Backend.
func (d *Dir) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.written[key] = nil
	d.mu.Unlock()

	err := os.Remove(d.file(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Watch reports changes to the directory made by other processes. Writes made
// through this Dir are not reported. Watch may be called once.
func (d *Dir) Watch(fn func(Change)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.watcher != nil {
		return errors.New("storage: dir already watched")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(d.path); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", d.path, err)
	}
	d.watcher = w

	d.wg.Add(1)
	go d.processLoop(w, fn)
	return nil
}

func (d *Dir) processLoop(w *fsnotify.Watcher, fn func(Change)) {
	defer d.wg.Done()

	for {
		select {
		case <-d.closeCh:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			key, ok := keyFromFile(ev.Name)
			if !ok {
				continue
			}
			if c, changed := d.observe(key); changed {
				fn(c)
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// observe reads the current state of key and reports whether it differs
// from what this process last wrote.
func (d *Dir) observe(key string) (Change, bool) {
	var current *string
	if data, err := os.ReadFile(d.file(key)); err == nil {
		s := string(data)
		current = &s
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	last, known := d.written[key]
	if known && sameValue(last, current) {
		return Change{}, false
	}
	// Remember what we reported so repeated events for one edit collapse.
	d.written[key] = current
	return Change{Key: key, Value: current, Origin: External}, true
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Close stops the watcher, if any.
func (d *Dir) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.closeCh)
	w := d.watcher
	d.mu.Unlock()

	var err error
	if w != nil {
		err = w.Close()
	}
	d.wg.Wait()
	return err
}
