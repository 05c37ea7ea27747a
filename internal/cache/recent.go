// Package cache holds small in-process caches used by the workers.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Recent remembers the most recently touched keys. It is bounded both by
// size, evicting the least recently touched key, and by age.
type Recent struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	order   *list.List
}

type entry struct {
	key    string
	seenAt time.Time
}

// NewRecent creates a Recent set. A ttl of zero keeps keys until evicted by size.
func NewRecent(maxSize int, ttl time.Duration) *Recent {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Recent{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Touch marks key as seen now.
func (r *Recent) Touch(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if elem, ok := r.items[key]; ok {
		elem.Value.(*entry).seenAt = now
		r.order.MoveToFront(elem)
		return
	}

	r.items[key] = r.order.PushFront(&entry{key: key, seenAt: now})
	if r.order.Len() > r.maxSize {
		r.remove(r.order.Back())
	}
}

func (r *Recent) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.items[key]; ok {
		r.remove(elem)
	}
}

// Keys returns the live keys, most recently touched first. Expired keys are
// dropped as a side effect.
func (r *Recent) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expire()
	keys := make([]string, 0, r.order.Len())
	for elem := r.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry).key)
	}
	return keys
}

func (r *Recent) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expire()
	return len(r.items)
}

// expire walks from the oldest end; entries are ordered by seenAt.
func (r *Recent) expire() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-r.ttl)
	for elem := r.order.Back(); elem != nil; {
		prev := elem.Prev()
		if !elem.Value.(*entry).seenAt.Before(cutoff) {
			return
		}
		r.remove(elem)
		elem = prev
	}
}

func (r *Recent) remove(elem *list.Element) {
	delete(r.items, elem.Value.(*entry).key)
	r.order.Remove(elem)
}
