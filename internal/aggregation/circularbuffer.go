//
// Copyright (C) 2020 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package aggregation

// CircularBuffer is a moving window with a max size, where every time a new value is inserted
// past capacity, the oldest value is dropped. It backs the windowed aggregators.
// For performance reasons it is implemented as a fixed size slice with a pointer to where to
// insert the next value such that no new memory allocations need to be made.
//
// CircularBuffer is not safe for concurrent use; the Registry serializes access.
type CircularBuffer struct {
	values []float64
	total  float64
	index  int
}

// NewCircularBuffer allocates memory for a new CircularBuffer with the given windowSize
func NewCircularBuffer(windowSize int) *CircularBuffer {
	if windowSize <= 0 {
		panic("illegal window size")
	}

	return &CircularBuffer{
		values: make([]float64, 0, windowSize),
	}
}

// Len returns the number of actual values present in the buffer
func (buff *CircularBuffer) Len() int {
	return len(buff.values)
}

// Mean returns the average value of all data points in the window.
//
// NOTE: If there is no data in the buffer, this function will return: NaN
func (buff *CircularBuffer) Mean() float64 {
	return buff.total / float64(len(buff.values))
}

// Values returns a copy of the window in insertion order, oldest first.
func (buff *CircularBuffer) Values() []float64 {
	out := make([]float64, 0, len(buff.values))
	if len(buff.values) < cap(buff.values) {
		return append(out, buff.values...)
	}
	out = append(out, buff.values[buff.index:]...)
	return append(out, buff.values[:buff.index]...)
}

// AddValue appends a new value onto the backing slice,
// overriding the oldest existing value if count has reached windowSize
func (buff *CircularBuffer) AddValue(value float64) {
	if len(buff.values) < cap(buff.values) {
		buff.values = append(buff.values, value)
		buff.total += value
		return
	}

	// subtract old value and add new value
	buff.total = buff.total - buff.values[buff.index] + value
	// record new value where old was
	buff.values[buff.index] = value

	buff.index++
	if buff.index >= cap(buff.values) {
		// wrap if needed
		buff.index = 0
	}
}
