package signals

import (
	"sync"

	"github.com/feedfuse/feedfuse/pkg/models"
)

// ringBuffer is a bounded FIFO of signals for one user. When full, the
// oldest entry is evicted. Multiple workers may append for the same user
// concurrently, so access is guarded; windowing downstream relies on
// timestamps, not position.
type ringBuffer struct {
	mu       sync.Mutex
	entries  []models.Signal
	head     int
	size     int
	capacity int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringBuffer{
		entries:  make([]models.Signal, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) Append(s models.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < r.capacity {
		r.entries[(r.head+r.size)%r.capacity] = s
		r.size++
		return
	}
	// Full: overwrite the oldest slot.
	r.entries[r.head] = s
	r.head = (r.head + 1) % r.capacity
}

// Snapshot returns the buffered signals in arrival order.
func (r *ringBuffer) Snapshot() []models.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Signal, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.head+i)%r.capacity]
	}
	return out
}

func (r *ringBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
