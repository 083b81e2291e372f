//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package localization

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// linearRBF interpolates scattered values with the linear radial basis
// φ(r) = r and no polynomial term:
//
//	f(p) = Σ w_i · ‖p − c_i‖
//
// The weights make f pass exactly through every center. A single center
// has no distance structure, so it is represented as a constant surface.
type linearRBF struct {
	centers  []Point
	weights  []float64
	constant float64
}

func fitLinearRBF(centers []Point, values []float64) (*linearRBF, error) {
	n := len(centers)
	if n == 0 || n != len(values) {
		return nil, errors.Errorf("need matching, non-empty centers and values (got %d and %d)", n, len(values))
	}
	if n == 1 {
		return &linearRBF{constant: values[0]}, nil
	}

	phi := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := centers[i].DistanceTo(centers[j])
			phi.Set(i, j, r)
			phi.Set(j, i, r)
		}
	}
	f := mat.NewVecDense(n, append([]float64(nil), values...))

	var w mat.VecDense
	if err := w.SolveVec(phi, f); err != nil {
		// near-coincident centers
		x, _ := solveLeastSquares(phi, f)
		w.CloneFromVec(x)
	}

	return &linearRBF{
		centers: centers,
		weights: append([]float64(nil), w.RawVector().Data...),
	}, nil
}

// At evaluates the interpolant at p.
func (f *linearRBF) At(p Point) float64 {
	if len(f.centers) == 0 {
		return f.constant
	}
	var sum float64
	for i, c := range f.centers {
		sum += f.weights[i] * p.DistanceTo(c)
	}
	return sum
}
