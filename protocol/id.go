package protocol

import "sync"

// IDAllocator hands out message ids in [1, IDModulus), wrapping back to 1
// after the ceiling. Id 0 is never issued. Safe for concurrent use.
type IDAllocator struct {
	mu   sync.Mutex
	last uint32
}

// Next returns the id following the last one issued, skipping ids for
// which busy reports true. busy may be nil.
func (a *IDAllocator) Next(busy func(uint32) bool) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.last
	for range IDModulus - 1 {
		id++
		if id >= IDModulus {
			id = 1
		}
		if busy == nil || !busy(id) {
			a.last = id
			return id, nil
		}
	}
	return 0, ErrIDsExhausted
}

// Last returns the most recently issued id, or 0 if none.
func (a *IDAllocator) Last() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Reset makes the next issued id follow last. Used when resuming numbering.
func (a *IDAllocator) Reset(last uint32) {
	a.mu.Lock()
	a.last = last % IDModulus
	a.mu.Unlock()
}
