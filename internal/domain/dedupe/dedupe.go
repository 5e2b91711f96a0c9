// Package dedupe guards snapshot identifiers that are already being worked
// on, so overlapping runs never fetch the same snapshot twice at once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 4096

// Deduper records claimed identifiers.
type Deduper interface {
	// SeenAndRecord atomically checks whether id is claimed and claims it if
	// not. It returns true when id was already claimed.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases id so a later attempt may claim it again.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of claimed identifiers.
	Size() int64
}

// inMemoryDeduper keeps claims in a map and, when bounded, evicts the oldest
// claim once maxSize is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates a deduper. By default it keeps at most 4096
// claims; WithMaxSize(0) makes it unbounded.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.claims = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.claims[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.claims, oldest.Value.(string))
	}
	d.claims[id] = d.order.PushBack(id)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[id]; ok {
		d.order.Remove(el)
		delete(d.claims, id)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.claims))
}
