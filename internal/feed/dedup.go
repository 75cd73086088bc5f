package feed

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultDedupSize is the number of recent event ids remembered.
const DefaultDedupSize = 100

// Deduper is a bounded FIFO set of recently notified event ids. Once more
// than capacity ids are recorded the oldest are evicted, and an evicted id
// is treated as new again.
type Deduper struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	ids      *orderedmap.OrderedMap[string, uint64]
}

func NewDeduper(capacity int) *Deduper {
	if capacity <= 0 {
		capacity = DefaultDedupSize
	}
	return &Deduper{
		capacity: capacity,
		ids:      orderedmap.New[string, uint64](),
	}
}

// IsNew reports whether id is absent from the window.
func (d *Deduper) IsNew(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ids.Get(id)
	return !ok
}

// Record appends id. Recording an id already present keeps its original position.
func (d *Deduper) Record(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(id)
}

func (d *Deduper) record(id string) {
	if _, ok := d.ids.Get(id); ok {
		return
	}
	d.seq++
	d.ids.Set(id, d.seq)
	for d.ids.Len() > d.capacity {
		oldest := d.ids.Oldest()
		d.ids.Delete(oldest.Key)
	}
}

// Size returns the number of ids held.
func (d *Deduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ids.Len()
}

// Capacity returns the configured bound.
func (d *Deduper) Capacity() int {
	return d.capacity
}

// Snapshot returns the ids oldest first.
func (d *Deduper) Snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, d.ids.Len())
	for pair := d.ids.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Restore records ids in order, oldest first.
func (d *Deduper) Restore(ids []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.record(id)
	}
}
