//
// Copyright (C) 2020 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package aggregation

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	// epsilon is used to compare floating point numbers to each other
	epsilon = math.Nextafter(1.0, 2.0) - 1.0
)

func assertBufferSize(t *testing.T, buff *CircularBuffer, expectedSize int) {
	if buff.Len() != expectedSize {
		t.Errorf("expected buffer size of %d, but was %d", expectedSize, buff.Len())
	}
}

func TestCircularBuffer_AddValue(t *testing.T) {
	windowSizes := []int{1, 5, 10, 20, 100, 999}

	for _, window := range windowSizes {
		t.Run(fmt.Sprintf("WindowOf%d", window), func(t *testing.T) {
			buff := NewCircularBuffer(window)

			assertBufferSize(t, buff, 0)
			// fill up the buffer
			for i := 0; i < window; i++ {
				buff.AddValue(float64(i))
			}
			assertBufferSize(t, buff, window)

			// attempt to overflow
			for i := 0; i < window*5; i++ {
				buff.AddValue(float64(i))
				// make sure does not overflow
				assertBufferSize(t, buff, window)
			}
		})
	}
}

func TestCircularBuffer_Mean(t *testing.T) {
	tests := []struct {
		name     string
		window   int
		data     []float64
		expected float64
	}{
		{
			name:     "Basic",
			window:   10,
			data:     []float64{1, 2, 3, 4, 5},
			expected: 3,
		},
		{
			name:     "Basic 2",
			window:   100,
			data:     []float64{10, 20},
			expected: 15,
		},
		{
			name:     "Circular Overflow",
			window:   2,
			data:     []float64{5, 20, 20},
			expected: 20,
		},
		{
			name:     "Circular Overflow 2",
			window:   3,
			data:     []float64{5, 5, 5, 5, 5, 5, 5, 5, 6, 100},
			expected: 37,
		},
		{
			name:     "Negative RSSI",
			window:   4,
			data:     []float64{-70, -60, -65, -55, -50},
			expected: -57.5,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buff := NewCircularBuffer(test.window)
			for _, val := range test.data {
				buff.AddValue(val)
			}

			mean := buff.Mean()
			if math.Abs(mean-test.expected) > epsilon {
				t.Errorf("expected mean of %v, but got %v", test.expected, mean)
			}
		})
	}
}

func TestCircularBuffer_MeanEmpty(t *testing.T) {
	assert.True(t, math.IsNaN(NewCircularBuffer(3).Mean()))
}

func TestCircularBuffer_Values(t *testing.T) {
	buff := NewCircularBuffer(3)
	assert.Empty(t, buff.Values())

	buff.AddValue(1)
	buff.AddValue(2)
	assert.Equal(t, []float64{1, 2}, buff.Values())

	buff.AddValue(3)
	buff.AddValue(4)
	assert.Equal(t, []float64{2, 3, 4}, buff.Values(), "oldest value is evicted first")

	buff.AddValue(5)
	buff.AddValue(6)
	buff.AddValue(7)
	assert.Equal(t, []float64{5, 6, 7}, buff.Values())

	// the returned slice is a copy
	vals := buff.Values()
	vals[0] = 100
	assert.Equal(t, []float64{5, 6, 7}, buff.Values())
}

func TestCircularBuffer_Len(t *testing.T) {
	tests := []struct {
		name          string
		windowSize    int
		numberToAdd   uint64
		expectedCount int
	}{
		{
			name:          "Below Window Size",
			windowSize:    20,
			numberToAdd:   1,
			expectedCount: 1,
		},
		{
			name:          "Above Window Size",
			windowSize:    20,
			numberToAdd:   100,
			expectedCount: 20,
		},
		{
			name:          "Exactly Window Size",
			windowSize:    20,
			numberToAdd:   20,
			expectedCount: 20,
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			buff := NewCircularBuffer(test.windowSize)
			var i uint64
			for i = 0; i < test.numberToAdd; i++ {
				buff.AddValue(1.0)
			}

			count := buff.Len()
			if count != test.expectedCount {
				t.Errorf("buff.Len() returned %d, but we expected %d", count, test.expectedCount)
			}
		})
	}
}

func TestNewCircularBuffer_IllegalWindow(t *testing.T) {
	assert.Panics(t, func() { NewCircularBuffer(0) })
	assert.Panics(t, func() { NewCircularBuffer(-3) })
}
