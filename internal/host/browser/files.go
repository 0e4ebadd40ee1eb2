//go:build js && wasm

package browser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"syscall/js"

	"github.com/dshills/portsdriver/internal/filesource"
)

// ErrNoReferences indicates a file reference was used in the browser, where
// only files selected on an input element can be read.
var ErrNoReferences = errors.New("browser: file references are not supported")

// Files reads files selected on <input type="file"> elements.
type Files struct {
	doc js.Value
}

// NewFiles wraps window.document.
func NewFiles() *Files {
	return &Files{doc: js.Global().Get("document")}
}

// Files returns the files selected on element id. ok is false when no
// such element exists.
func (f *Files) Files(id string) ([]filesource.File, bool) {
	el := f.doc.Call("getElementById", id)
	if !truthy(el) {
		return nil, false
	}
	list := el.Get("files")
	if !truthy(list) {
		return nil, true
	}

	n := list.Get("length").Int()
	files := make([]filesource.File, 0, n)
	for i := 0; i < n; i++ {
		file := list.Call("item", i)
		files = append(files, filesource.File{
			Name: file.Get("name").String(),
			Open: func() (io.ReadCloser, error) {
				data, err := readArrayBuffer(file)
				if err != nil {
					return nil, err
				}
				return io.NopCloser(bytes.NewReader(data)), nil
			},
		})
	}
	return files, true
}

// Resolve implements builtin.FileSource.
func (f *Files) Resolve(ref string) (filesource.File, error) {
	return filesource.File{}, fmt.Errorf("%w: %q", ErrNoReferences, ref)
}

// readArrayBuffer reads file with FileReader.readAsArrayBuffer and waits for
// the load or error event. It must not run on the event loop.
func readArrayBuffer(file js.Value) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 2)

	reader := js.Global().Get("FileReader").New()
	onLoad := js.FuncOf(func(this js.Value, args []js.Value) any {
		buf := js.Global().Get("Uint8Array").New(reader.Get("result"))
		data := make([]byte, buf.Get("length").Int())
		js.CopyBytesToGo(data, buf)
		done <- result{data: data}
		return nil
	})
	onError := js.FuncOf(func(this js.Value, args []js.Value) any {
		msg := "read failed"
		if e := reader.Get("error"); truthy(e) {
			msg = e.Get("message").String()
		}
		done <- result{err: fmt.Errorf("browser: %s", msg)}
		return nil
	})
	defer onLoad.Release()
	defer onError.Release()

	reader.Call("addEventListener", "load", onLoad)
	reader.Call("addEventListener", "error", onError)
	if err := catch(func() { reader.Call("readAsArrayBuffer", file) }); err != nil {
		return nil, err
	}

	r := <-done
	return r.data, r.err
}
