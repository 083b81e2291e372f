//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package aggregation

import "math"

// Kalman is a scalar Kalman filter over the RSSI stream.
//
// Unlike a textbook filter, the error covariance update adds process noise scaled
// by the magnitude of the current estimate: P = (1-K)*P + |x|*q.
type Kalman struct {
	x float64 // state estimate (dBm)
	p float64 // error covariance
	q float64 // process variance
	r float64 // measurement variance

	lastRead float64
	seen     bool
}

// NewKalman creates a filter seeded with initialEstimate and an error covariance of 1.
func NewKalman(processVariance, measurementVariance, initialEstimate float64) *Kalman {
	return &Kalman{
		x: initialEstimate,
		p: 1.0,
		q: processVariance,
		r: measurementVariance,
	}
}

// Update folds measurement z into the estimate and returns the new estimate.
func (k *Kalman) Update(z float64) float64 {
	gain := k.p / (k.p + k.r)
	k.x += gain * (z - k.x)
	k.p = (1.0-gain)*k.p + math.Abs(k.x)*k.q
	return k.x
}

func (k *Kalman) AddSample(rssi float64, timestamp float64) {
	k.Update(rssi)
	k.lastRead = timestamp
	k.seen = true
}

// Value returns the filtered RSSI; false until a sample has been added.
func (k *Kalman) Value() (float64, bool) { return k.x, k.seen }

func (k *Kalman) LastUpdate() float64 { return k.lastRead }

// ErrorCovariance returns the current error covariance P.
func (k *Kalman) ErrorCovariance() float64 { return k.p }
