// Package dedupe tracks which screening jobs are already queued or done so a
// submission revision is screened at most once.
package dedupe

import (
	"container/list"
	"context"
	"strconv"
	"sync"
)

// Key returns the dedupe key for a submission revision.
func Key(submissionID string, revision int) string {
	return submissionID + "@" + strconv.Itoa(revision)
}

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord reports whether key was already recorded and records it
	// when it was not. The check and the insert happen under one lock.
	SeenAndRecord(ctx context.Context, key string) bool

	// Forget drops key so the job can be enqueued again, for example after
	// the queue rejected it.
	Forget(ctx context.Context, key string)

	Size() int64
}

type memoryDeduper struct {
	mu       sync.Mutex
	keys     map[string]*list.Element
	order    *list.List // oldest at the front
	capacity int        // <= 0 means unbounded
}

// NewMemoryDeduper returns an in-process Deduper. When bounded, the oldest
// key is evicted once capacity is reached.
func NewMemoryDeduper(opts ...Option) Deduper {
	d := &memoryDeduper{capacity: 10000}
	for _, opt := range opts {
		opt(d)
	}
	d.keys = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *memoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.keys[key]; ok {
		return true
	}
	if d.capacity > 0 && d.order.Len() >= d.capacity {
		if oldest := d.order.Front(); oldest != nil {
			delete(d.keys, oldest.Value.(string))
			d.order.Remove(oldest)
		}
	}
	d.keys[key] = d.order.PushBack(key)
	return false
}

func (d *memoryDeduper) Forget(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		d.order.Remove(el)
		delete(d.keys, key)
	}
}

func (d *memoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
