package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferAppendAndWrap(t *testing.T) {
	rb := NewRingBuffer(3)

	rb.Append(1)
	rb.Append(2)
	assert.Equal(t, 2, rb.Size())
	assert.Equal(t, []float64{1, 2}, rb.GetAll())

	rb.Append(3)
	rb.Append(4) // overwrites 1
	assert.Equal(t, 3, rb.Size())
	assert.Equal(t, []float64{2, 3, 4}, rb.GetAll())
}

func TestRingBufferAverage(t *testing.T) {
	rb := NewRingBuffer(4)
	assert.Equal(t, 0.0, rb.Average())

	rb.Append(2)
	rb.Append(4)
	rb.Append(6)
	assert.InDelta(t, 4.0, rb.Average(), 1e-9)
}

func TestRingBufferMedian(t *testing.T) {
	rb := NewRingBuffer(5)
	assert.Equal(t, 0.0, rb.Median())

	rb.Append(5)
	rb.Append(1)
	rb.Append(3)
	assert.InDelta(t, 3.0, rb.Median(), 1e-9)

	rb.Append(7)
	// Even count: mean of the two middle samples.
	assert.InDelta(t, 4.0, rb.Median(), 1e-9)
}

func TestRingBufferClear(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Append(1)
	rb.Append(2)
	rb.Clear()

	assert.Equal(t, 0, rb.Size())
	assert.Equal(t, 2, rb.Capacity())
	assert.Empty(t, rb.GetAll())
}

func TestRingBufferDefaultCapacity(t *testing.T) {
	rb := NewRingBuffer(0)
	assert.Equal(t, 100, rb.Capacity())
}
