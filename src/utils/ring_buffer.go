package utils

const defaultRingCapacity = 120

// -----------------------------------------------------------------------------
// RingBuffer keeps the last Capacity() values appended to it. It grows until
// full, then overwrites from the oldest slot. Callers provide locking.
// -----------------------------------------------------------------------------

type RingBuffer[T any] struct {
	items []T
	limit int
	head  int // oldest item once full
}

// -----------------------------------------------------------------------------

func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &RingBuffer[T]{
		items: make([]T, 0, capacity),
		limit: capacity,
	}
}

// -----------------------------------------------------------------------------

func (rb *RingBuffer[T]) Append(v T) {
	if len(rb.items) < rb.limit {
		rb.items = append(rb.items, v)
		return
	}
	rb.items[rb.head] = v
	rb.head = (rb.head + 1) % rb.limit
}

// -----------------------------------------------------------------------------

// GetLatest returns up to n newest values, oldest first.
func (rb *RingBuffer[T]) GetLatest(n int) []T {
	if n > len(rb.items) {
		n = len(rb.items)
	}
	if n <= 0 {
		return []T{}
	}

	ordered := make([]T, 0, len(rb.items))
	ordered = append(ordered, rb.items[rb.head:]...)
	ordered = append(ordered, rb.items[:rb.head]...)
	return ordered[len(ordered)-n:]
}

// -----------------------------------------------------------------------------

func (rb *RingBuffer[T]) GetAll() []T {
	return rb.GetLatest(len(rb.items))
}

// -----------------------------------------------------------------------------

func (rb *RingBuffer[T]) Size() int { return len(rb.items) }

func (rb *RingBuffer[T]) Capacity() int { return rb.limit }
