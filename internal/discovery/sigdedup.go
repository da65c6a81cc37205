package discovery

import (
	"container/list"
	"sync"
)

// sigDedup is the bounded FIFO signature set every on-chain subscriber runs inbound
// events through before emitting a candidate (spec.md §4.E WebSocket hygiene, §5
// "Deduplication of inbound WebSocket events is FIFO by signature within a bounded LRU").
// It tracks membership only — there is no read path to promote on, so eviction is plain
// FIFO rather than the PriceCache's access-order LRU.
type sigDedup struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	seen     map[string]*list.Element
}

func newSigDedup(capacity int) *sigDedup {
	if capacity <= 0 {
		capacity = 2048
	}
	return &sigDedup{
		capacity: capacity,
		ll:       list.New(),
		seen:     make(map[string]*list.Element, capacity),
	}
}

// seenOrAdd reports whether sig was already recorded. If not, it records it and evicts
// the oldest entry once the set is over capacity.
func (d *sigDedup) seenOrAdd(sig string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[sig]; ok {
		return true
	}

	el := d.ll.PushFront(sig)
	d.seen[sig] = el

	if d.ll.Len() > d.capacity {
		back := d.ll.Back()
		if back != nil {
			d.ll.Remove(back)
			delete(d.seen, back.Value.(string))
		}
	}

	return false
}
