// Package filesource tracks the files a hosting application has selected on
// its file-input elements, and resolves direct file references under a root
// directory.
package filesource

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Errors returned by Resolve.
var (
	// ErrNoRoot indicates file references are not enabled.
	ErrNoRoot = errors.New("filesource: no root directory configured")

	// ErrOutsideRoot indicates a reference escapes the root directory.
	ErrOutsideRoot = errors.New("filesource: reference outside root")
)

// File is one selected file.
type File struct {
	// Name is the base name reported to the application.
	Name string

	// Open returns the file contents.
	Open func() (io.ReadCloser, error)
}

// FromBytes returns a File backed by data.
func FromBytes(name string, data []byte) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath returns a File backed by the file at path.
func FromPath(path string) File {
	return File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Registry maps element ids to the files selected on them.
type Registry struct {
	mu    sync.RWMutex
	files map[string][]File
	root  string
}

// NewRegistry creates a registry. root enables Resolve for references inside
// that directory; an empty root disables it.
func NewRegistry(root string) *Registry {
	return &Registry{
		files: make(map[string][]File),
		root:  root,
	}
}

// Select records the files selected on elementID, replacing earlier ones.
// Selecting no files removes the element.
func (r *Registry) Select(elementID string, files ...File) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(files) == 0 {
		delete(r.files, elementID)
		return
	}
	r.files[elementID] = append([]File(nil), files...)
}

// SelectRefs resolves refs under the root and selects them on elementID.
func (r *Registry) SelectRefs(elementID string, refs ...string) error {
	files := make([]File, 0, len(refs))
	for _, ref := range refs {
		f, err := r.Resolve(ref)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	r.Select(elementID, files...)
	return nil
}

// Files returns the files selected on elementID. ok is false when the
// element is unknown.
func (r *Registry) Files(elementID string) (files []File, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files, ok = r.files[elementID]
	return files, ok
}

// Resolve returns the file ref names inside the root directory. Opening the
// file goes through os.OpenInRoot, so symlinks cannot escape the root either.
func (r *Registry) Resolve(ref string) (File, error) {
	if r.root == "" {
		return File{}, ErrNoRoot
	}
	clean := filepath.Clean(filepath.FromSlash(ref))
	if !filepath.IsLocal(clean) {
		return File{}, ErrOutsideRoot
	}

	root := r.root
	return File{
		Name: filepath.Base(clean),
		Open: func() (io.ReadCloser, error) {
			return os.OpenInRoot(root, clean)
		},
	}, nil
}
