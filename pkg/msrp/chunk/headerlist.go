package chunk

import (
	"sort"

	"firestige.xyz/msrp/pkg/msrp/header"
)

// HeaderList is the ordered, by-name-keyed header collection a Chunk
// carries, per SPEC_FULL.md §3. Ordered() renders headers sorted by the
// canonical precedence level from SPEC_FULL.md §4.A; insertion order is
// preserved as the (unspecified) tie-break within a level.
type HeaderList struct {
	items []*header.Header
}

// NewHeaderList returns an empty header collection.
func NewHeaderList() *HeaderList {
	return &HeaderList{}
}

// Add appends h, permitting a header name to repeat.
func (l *HeaderList) Add(h *header.Header) {
	l.items = append(l.items, h)
}

// Set removes any existing header(s) named h.Name and appends h.
func (l *HeaderList) Set(h *header.Header) {
	kept := l.items[:0:0]
	for _, existing := range l.items {
		if existing.Name != h.Name {
			kept = append(kept, existing)
		}
	}
	l.items = append(kept, h)
}

// Get returns the first header with the given name.
func (l *HeaderList) Get(name string) (*header.Header, bool) {
	for _, h := range l.items {
		if h.Name == name {
			return h, true
		}
	}
	return nil, false
}

// All returns every header with the given name, in insertion order.
func (l *HeaderList) All(name string) []*header.Header {
	var out []*header.Header
	for _, h := range l.items {
		if h.Name == name {
			out = append(out, h)
		}
	}
	return out
}

// Remove deletes every header with the given name.
func (l *HeaderList) Remove(name string) {
	kept := l.items[:0:0]
	for _, h := range l.items {
		if h.Name != name {
			kept = append(kept, h)
		}
	}
	l.items = kept
}

// Len returns the number of headers in the collection, counting repeats.
func (l *HeaderList) Len() int { return len(l.items) }

// Ordered returns the headers sorted by canonical precedence level, stable
// on insertion order within a level.
func (l *HeaderList) Ordered() []*header.Header {
	out := make([]*header.Header, len(l.items))
	copy(out, l.items)
	sort.SliceStable(out, func(i, j int) bool {
		return header.Level(out[i].Name) < header.Level(out[j].Name)
	})
	return out
}
