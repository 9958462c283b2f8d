package embedcache

import (
	"container/list"
	"sync"
)

// memEntry is a linked-list node holding a key-vector pair.
type memEntry struct {
	key    Fingerprint
	vector []float32
}

// memoryTier is a count-bounded LRU map of fingerprints to vectors.
//
// Entries are immutable once written: Put with an existing key only refreshes
// recency, it never replaces the stored vector.
type memoryTier struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List
	items      map[Fingerprint]*list.Element
}

func newMemoryTier(maxEntries int) *memoryTier {
	return &memoryTier{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[Fingerprint]*list.Element),
	}
}

// Get returns the vector for key, marking it most recently used.
func (m *memoryTier) Get(key Fingerprint) ([]float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	m.ll.MoveToFront(el)
	return el.Value.(*memEntry).vector, true
}

// Put inserts the vector for key, evicting the least recently used entry
// when the tier is full. It returns the number of evictions performed.
func (m *memoryTier) Put(key Fingerprint, vector []float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		m.ll.MoveToFront(el)
		return 0
	}

	el := m.ll.PushFront(&memEntry{key: key, vector: vector})
	m.items[key] = el

	evicted := 0
	for m.ll.Len() > m.maxEntries {
		oldest := m.ll.Back()
		if oldest == nil {
			break
		}
		m.ll.Remove(oldest)
		delete(m.items, oldest.Value.(*memEntry).key)
		evicted++
	}
	return evicted
}

// Len returns the number of resident entries.
func (m *memoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

// Clear drops all entries.
func (m *memoryTier) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ll.Init()
	m.items = make(map[Fingerprint]*list.Element)
}
