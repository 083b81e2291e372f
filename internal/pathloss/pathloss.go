//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package pathloss

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDomain is returned when a numeric input lies outside the domain of the model,
// such as a non-positive distance.
var ErrDomain = errors.New("value outside model domain")

// Model is the log-distance path-loss model:
//
//	rssi = L0 - 10 * N * log10(d)
//
// where d is in meters. L0 is the expected RSSI (dBm) at 1 meter and N is the
// path-loss exponent. Both are calibrated per deployment.
type Model struct {
	L0 float64 `yaml:"l0" json:"l0"`
	N  float64 `yaml:"n" json:"n"`
}

const (
	DefaultL0       = -45.0
	DefaultExponent = 4.5
)

// DefaultModel returns the model calibrated for the reference ESP8266/ESP32 deployment.
func DefaultModel() Model {
	return Model{L0: DefaultL0, N: DefaultExponent}
}

// Validate returns an error if the model constants cannot produce finite values.
func (m Model) Validate() error {
	if math.IsNaN(m.L0) || math.IsInf(m.L0, 0) {
		return errors.Wrapf(ErrDomain, "path-loss L0 must be finite, got %v", m.L0)
	}
	if m.N == 0 || math.IsNaN(m.N) || math.IsInf(m.N, 0) {
		return errors.Wrapf(ErrDomain, "path-loss exponent must be finite and non-zero, got %v", m.N)
	}
	return nil
}

// DistanceToRSSI returns the expected RSSI at the given distance in meters.
// The model is undefined at distances <= 0.
func (m Model) DistanceToRSSI(distanceM float64) (float64, error) {
	if !(distanceM > 0) {
		return 0, errors.Wrapf(ErrDomain, "distance must be > 0, got %v", distanceM)
	}
	return m.L0 - 10.0*m.N*math.Log10(distanceM), nil
}

// RSSIToDistance returns the distance in meters at which the model predicts rssi.
func (m Model) RSSIToDistance(rssi float64) float64 {
	return math.Pow(10, (m.L0-rssi)/(10.0*m.N))
}

// CalibrationSample is a single (distance, RSSI) pair recorded at a known range.
type CalibrationSample struct {
	DistanceM float64
	RSSI      float64
}

// Fit estimates L0 and N from calibration samples. Since the model is linear in
// its parameters when expressed against -10*log10(d), an ordinary least squares
// solve gives the same optimum as a nonlinear fit.
func Fit(samples []CalibrationSample) (Model, error) {
	rows := make([]float64, 0, 2*len(samples))
	rhs := make([]float64, 0, len(samples))
	distinct := make(map[float64]struct{})
	for _, s := range samples {
		if !(s.DistanceM > 0) {
			return Model{}, errors.Wrapf(ErrDomain, "calibration distance must be > 0, got %v", s.DistanceM)
		}
		rows = append(rows, 1, -10.0*math.Log10(s.DistanceM))
		rhs = append(rhs, s.RSSI)
		distinct[s.DistanceM] = struct{}{}
	}
	if len(distinct) < 2 {
		return Model{}, errors.Wrapf(ErrDomain, "need samples at 2 or more distinct distances, got %d", len(distinct))
	}

	a := mat.NewDense(len(samples), 2, rows)
	b := mat.NewVecDense(len(samples), rhs)

	var qr mat.QR
	qr.Factorize(a)

	var x mat.VecDense
	if err := qr.SolveVecTo(&x, false, b); err != nil {
		return Model{}, errors.Wrap(err, "path-loss least squares failed")
	}

	m := Model{L0: x.AtVec(0), N: x.AtVec(1)}
	return m, m.Validate()
}
