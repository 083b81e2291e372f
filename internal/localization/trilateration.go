//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package localization

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const minTrilaterationAnchors = 2

// Trilateration estimates position by linearized least-squares trilateration.
//
// The circle equation of the last anchor (in ID order) is subtracted from every
// other anchor's, giving one row per remaining anchor:
//
//	2(x_i−x_n)X + 2(y_i−y_n)Y = x_i²+y_i²−x_n²−y_n²−d_i²+d_n²
//
// The system is solved for the minimum-norm least-squares solution via SVD,
// so collinear or coincident anchors yield an unreliable fix rather than an error.
type Trilateration struct {
	geometry Geometry
}

func NewTrilateration(geometry Geometry) *Trilateration {
	return &Trilateration{geometry: geometry}
}

func (t *Trilateration) Algorithm() Algorithm { return TLSL }

func (t *Trilateration) Localize(snapshot Snapshot) (Estimate, error) {
	r := t.geometry.rangeAnchors(snapshot)
	n := len(r.ids)
	if err := insufficient(TLSL, n, minTrilaterationAnchors); err != nil {
		return nil, err
	}
	for i, d := range r.distances {
		if math.IsInf(d, 0) || math.IsNaN(d) {
			return nil, errors.Wrapf(ErrDomain, "distance to anchor %s is %v", r.ids[i], d)
		}
	}

	ref, dRef := r.positions[n-1], r.distances[n-1]
	rows := n - 1
	a := mat.NewDense(rows, 2, nil)
	b := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		p, d := r.positions[i], r.distances[i]
		a.Set(i, 0, 2*(p.X-ref.X))
		a.Set(i, 1, 2*(p.Y-ref.Y))
		b.SetVec(i, p.X*p.X+p.Y*p.Y-ref.X*ref.X-ref.Y*ref.Y-d*d+dRef*dRef)
	}

	x, fit := solveLeastSquares(a, b)
	return PositionWithDistances{
		At:        Point{X: x.AtVec(0), Y: x.AtVec(1)},
		Distances: r.distanceMap(),
		Fit:       &fit,
	}, nil
}

// solveLeastSquares returns the minimum-norm x minimizing ‖a·x − b‖₂ using the
// pseudo-inverse built from a thin SVD. Singular values below
// 1e-15·max(rows, cols)·σ_max are treated as zero.
func solveLeastSquares(a *mat.Dense, b *mat.VecDense) (*mat.VecDense, Fit) {
	r, c := a.Dims()
	x := mat.NewVecDense(c, nil)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return x, Fit{Residual: mat.Norm(b, 2)}
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	tol := 0.0
	if len(s) > 0 {
		tol = 1e-15 * float64(max(r, c)) * s[0]
	}

	// x = V · Σ⁺ · Uᵀ · b
	var utb mat.VecDense
	utb.MulVec(u.T(), b)
	rank := 0
	for i, sv := range s {
		if sv > tol {
			rank++
			utb.SetVec(i, utb.AtVec(i)/sv)
		} else {
			utb.SetVec(i, 0)
		}
	}
	x.MulVec(&v, &utb)

	var residual mat.VecDense
	residual.MulVec(a, x)
	residual.SubVec(&residual, b)

	return x, Fit{
		Rank:     rank,
		Residual: mat.Norm(&residual, 2),
		Reliable: rank == c,
	}
}
