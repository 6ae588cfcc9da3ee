package utils

import "sort"

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of float64 samples (batch
// processing latencies, milliseconds). True ring buffer - no resizing.
// -----------------------------------------------------------------------------

type RingBuffer struct {
	data     []float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 100 // Default reasonable size
	}

	return &RingBuffer{
		data:     make([]float64, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds a sample, overwriting the oldest once full.
func (rb *RingBuffer) Append(sample float64) {
	rb.data[rb.index] = sample
	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetAll returns all samples in insertion order (oldest to newest)
func (rb *RingBuffer) GetAll() []float64 {
	if rb.size == 0 {
		return []float64{}
	}

	result := make([]float64, rb.size)

	// Calculate start index (oldest element)
	var startIdx int
	if rb.size == rb.capacity {
		// Buffer is full, oldest is at current index (wrap-around)
		startIdx = rb.index
	} else {
		startIdx = 0
	}

	for i := 0; i < rb.size; i++ {
		result[i] = rb.data[(startIdx+i)%rb.capacity]
	}

	return result
}

// -----------------------------------------------------------------------------

// Average of the held samples; 0 when empty.
func (rb *RingBuffer) Average() float64 {
	if rb.size == 0 {
		return 0
	}

	var sum float64
	for _, v := range rb.GetAll() {
		sum += v
	}
	return sum / float64(rb.size)
}

// -----------------------------------------------------------------------------

// Median of the held samples; 0 when empty.
func (rb *RingBuffer) Median() float64 {
	if rb.size == 0 {
		return 0
	}

	samples := rb.GetAll()
	sort.Float64s(samples)

	mid := len(samples) / 2
	if len(samples)%2 == 1 {
		return samples[mid]
	}
	return (samples[mid-1] + samples[mid]) / 2
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (rb *RingBuffer) Clear() {
	rb.index = 0
	rb.size = 0
}
