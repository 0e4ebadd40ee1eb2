// Package document models the parts of a page the driver mutates: the title
// and style elements identified by id.
package document

import "sync"

// OpKind identifies a document mutation.
type OpKind string

const (
	// OpTitle sets the document title.
	OpTitle OpKind = "title"
	// OpStyle creates or replaces a style element's text.
	OpStyle OpKind = "style"
)

// Op describes one mutation, for hosts that mirror the model elsewhere.
type Op struct {
	Kind  OpKind `json:"kind"`
	ID    string `json:"id,omitempty"`
	Value string `json:"value"`
}

// Document is an in-memory page model. It is safe for concurrent use.
type Document struct {
	mu       sync.RWMutex
	title    string
	styles   map[string]string
	order    []string
	onChange func(Op)
}

// New creates an empty document.
func New() *Document {
	return &Document{styles: make(map[string]string)}
}

// OnChange registers fn to receive every mutation. It replaces any previous
// callback. fn runs on the mutating goroutine after the change is applied.
func (d *Document) OnChange(fn func(Op)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// SetTitle sets the document title.
func (d *Document) SetTitle(title string) {
	d.mu.Lock()
	d.title = title
	fn := d.onChange
	d.mu.Unlock()

	if fn != nil {
		fn(Op{Kind: OpTitle, Value: title})
	}
}

// Title returns the document title.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.title
}

// UpsertStyle creates the style element id on first use and sets its text
// content. Later calls replace the text; the element is never duplicated.
func (d *Document) UpsertStyle(id, css string) {
	d.mu.Lock()
	if _, ok := d.styles[id]; !ok {
		d.order = append(d.order, id)
	}
	d.styles[id] = css
	fn := d.onChange
	d.mu.Unlock()

	if fn != nil {
		fn(Op{Kind: OpStyle, ID: id, Value: css})
	}
}

// Style returns the text of style element id.
func (d *Document) Style(id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	css, ok := d.styles[id]
	return css, ok
}

// StyleCount returns the number of style elements.
func (d *Document) StyleCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.styles)
}

// Ops returns the mutations that rebuild the current state, styles in
// creation order. Hosts use it to bring a fresh remote view up to date.
func (d *Document) Ops() []Op {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ops := make([]Op, 0, len(d.order)+1)
	if d.title != "" {
		ops = append(ops, Op{Kind: OpTitle, Value: d.title})
	}
	for _, id := range d.order {
		ops = append(ops, Op{Kind: OpStyle, ID: id, Value: d.styles[id]})
	}
	return ops
}
