//go:build js && wasm

package browser

import (
	"sync"
	"syscall/js"
)

// Document writes title and style updates to the page.
type Document struct {
	doc js.Value

	mu     sync.Mutex
	styles map[string]js.Value
}

// NewDocument wraps window.document.
func NewDocument() *Document {
	return &Document{
		doc:    js.Global().Get("document"),
		styles: make(map[string]js.Value),
	}
}

// SetTitle sets document.title.
func (d *Document) SetTitle(title string) {
	d.doc.Set("title", title)
}

// UpsertStyle sets the text of the style element id, appending it to the
// head the first time.
func (d *Document) UpsertStyle(id, css string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.styles[id]
	if !ok {
		el = d.doc.Call("getElementById", id)
		if !truthy(el) {
			el = d.doc.Call("createElement", "style")
			el.Set("id", id)
			d.doc.Get("head").Call("appendChild", el)
		}
		d.styles[id] = el
	}
	el.Set("textContent", css)
}
