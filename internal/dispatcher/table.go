package dispatcher

import (
	"encoding/json"
	"sort"

	"github.com/dshills/portsdriver/internal/port"
)

// Handler performs the side effect for one message. It may reply through in.
// Install hooks are called with a nil payload.
type Handler func(in port.Sender, payload json.RawMessage)

// Table maps message tags to handlers. A plugin is a Table.
type Table map[string]Handler

// Merge combines tables into a new table. For every tag present in any input
// the result holds the handler from the last table that defines it. Inputs are
// never modified; nil tables are skipped.
func Merge(tables ...Table) Table {
	size := 0
	for _, t := range tables {
		size += len(t)
	}

	merged := make(Table, size)
	for _, t := range tables {
		for tag, h := range t {
			merged[tag] = h
		}
	}
	return merged
}

// Tags returns the table's tags in lexical order.
func (t Table) Tags() []string {
	tags := make([]string, 0, len(t))
	for tag := range t {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Has returns true if the table defines tag.
func (t Table) Has(tag string) bool {
	_, ok := t[tag]
	return ok
}

// validate reports the first tag mapped to a nil handler.
func (t Table) validate() (string, bool) {
	for _, tag := range t.Tags() {
		if t[tag] == nil {
			return tag, false
		}
	}
	return "", true
}
