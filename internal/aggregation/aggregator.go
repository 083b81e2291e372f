//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package aggregation

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Aggregator smooths a raw RSSI stream for a single (target, anchor) pair.
type Aggregator interface {
	// AddSample consumes one raw RSSI value (dBm) observed at timestamp (seconds).
	AddSample(rssi float64, timestamp float64)
	// Value returns the current smoothed RSSI. The second return is false
	// until the first sample has been added.
	Value() (float64, bool)
	// LastUpdate returns the timestamp of the most recently added sample.
	LastUpdate() float64
}

// Strategy names an Aggregator variant.
type Strategy string

const (
	MostRecentStrategy Strategy = "most_recent"
	MeanStrategy       Strategy = "mean"
	MedianStrategy     Strategy = "median"
	KalmanStrategy     Strategy = "kalman"
)

const (
	DefaultWindowSize = 10

	DefaultProcessVariance     = 1e-3
	DefaultMeasurementVariance = 10.0
	// DefaultInitialEstimate is a typical RSSI, used to seed the Kalman state.
	DefaultInitialEstimate = -50.0
)

// ErrUnknownStrategy is returned when parsing an unsupported Strategy.
var ErrUnknownStrategy = errors.New("unknown aggregation strategy")

// ParseStrategy converts a configuration value into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case MostRecentStrategy, MeanStrategy, MedianStrategy, KalmanStrategy:
		return st, nil
	}
	return "", errors.Wrapf(ErrUnknownStrategy, "%q", s)
}

// Params configures the Aggregator variants created by a Registry.
type Params struct {
	Strategy   Strategy
	WindowSize int

	ProcessVariance     float64
	MeasurementVariance float64
	InitialEstimate     float64
}

// DefaultParams returns windowed-mean parameters with the default window.
func DefaultParams() Params {
	return Params{
		Strategy:            MeanStrategy,
		WindowSize:          DefaultWindowSize,
		ProcessVariance:     DefaultProcessVariance,
		MeasurementVariance: DefaultMeasurementVariance,
		InitialEstimate:     DefaultInitialEstimate,
	}
}

// Validate returns an error if an Aggregator cannot be built from the params.
func (p Params) Validate() error {
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		return err
	}
	if (p.Strategy == MeanStrategy || p.Strategy == MedianStrategy) && p.WindowSize <= 0 {
		return errors.Errorf("window size must be > 0, got %d", p.WindowSize)
	}
	if p.Strategy == KalmanStrategy && p.MeasurementVariance <= 0 {
		return errors.Errorf("measurement variance must be > 0, got %v", p.MeasurementVariance)
	}
	return nil
}

// New creates a fresh Aggregator of the configured variant.
func (p Params) New() Aggregator {
	switch p.Strategy {
	case MostRecentStrategy:
		return &MostRecent{}
	case MedianStrategy:
		return NewWindowedMedian(p.WindowSize)
	case KalmanStrategy:
		return NewKalman(p.ProcessVariance, p.MeasurementVariance, p.InitialEstimate)
	default:
		return NewWindowedMean(p.WindowSize)
	}
}

// MostRecent reports the last sample added.
type MostRecent struct {
	value    float64
	lastRead float64
	seen     bool
}

func (a *MostRecent) AddSample(rssi float64, timestamp float64) {
	a.value = rssi
	a.lastRead = timestamp
	a.seen = true
}

func (a *MostRecent) Value() (float64, bool) { return a.value, a.seen }

func (a *MostRecent) LastUpdate() float64 { return a.lastRead }

// WindowedMean reports the mean of the most recent N samples.
type WindowedMean struct {
	buff     *CircularBuffer
	lastRead float64
}

// NewWindowedMean creates a WindowedMean with a window of windowSize samples.
func NewWindowedMean(windowSize int) *WindowedMean {
	return &WindowedMean{buff: NewCircularBuffer(windowSize)}
}

func (a *WindowedMean) AddSample(rssi float64, timestamp float64) {
	a.buff.AddValue(rssi)
	a.lastRead = timestamp
}

func (a *WindowedMean) Value() (float64, bool) {
	if a.buff.Len() == 0 {
		return 0, false
	}
	return a.buff.Mean(), true
}

func (a *WindowedMean) LastUpdate() float64 { return a.lastRead }

// WindowedMedian reports the median of the most recent N samples.
type WindowedMedian struct {
	buff     *CircularBuffer
	lastRead float64
}

// NewWindowedMedian creates a WindowedMedian with a window of windowSize samples.
func NewWindowedMedian(windowSize int) *WindowedMedian {
	return &WindowedMedian{buff: NewCircularBuffer(windowSize)}
}

func (a *WindowedMedian) AddSample(rssi float64, timestamp float64) {
	a.buff.AddValue(rssi)
	a.lastRead = timestamp
}

func (a *WindowedMedian) Value() (float64, bool) {
	if a.buff.Len() == 0 {
		return 0, false
	}
	return Median(a.buff.Values()), true
}

func (a *WindowedMedian) LastUpdate() float64 { return a.lastRead }

// Median returns the median of values, averaging the two middle values when the
// count is even. The slice is sorted in place. It returns NaN for an empty slice.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
