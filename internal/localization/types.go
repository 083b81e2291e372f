//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package localization

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Point is a 2-D position in the deployment's coordinate space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// AnchorTable maps an anchor ID to its known position.
// It is loaded once and must not be modified while localizers are using it.
type AnchorTable map[string]Point

// Snapshot maps an anchor ID to the smoothed RSSI observed for a single target.
type Snapshot map[string]float64

// Algorithm names a localization algorithm.
type Algorithm string

const (
	// TLSL is least-squares trilateration.
	TLSL Algorithm = "TLSL"
	// TWCL is the inverse-distance weighted centroid.
	TWCL Algorithm = "TWCL"
	// FPL is fingerprint matching against interpolated RSSI surfaces.
	FPL Algorithm = "FPL"
)

var ErrUnknownAlgorithm = errors.New("unknown localization algorithm")

// ParseAlgorithm converts a case-insensitive algorithm name into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToUpper(strings.TrimSpace(s))); a {
	case TLSL, TWCL, FPL:
		return a, nil
	}
	return "", errors.Wrapf(ErrUnknownAlgorithm, "%q", s)
}

// ParseAlgorithms parses a comma separated list of algorithm names,
// ignoring empty entries and duplicates.
func ParseAlgorithms(list string) ([]Algorithm, error) {
	var algs []Algorithm
	seen := make(map[Algorithm]bool)
	for _, s := range strings.Split(list, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		a, err := ParseAlgorithm(s)
		if err != nil {
			return nil, err
		}
		if !seen[a] {
			seen[a] = true
			algs = append(algs, a)
		}
	}
	return algs, nil
}

// Localizer estimates a target position from a single RSSI snapshot.
//
// Localize must be a pure function of its input: implementations hold only
// immutable state so that several localizers may run against the same
// snapshot, concurrently if desired.
type Localizer interface {
	Algorithm() Algorithm
	Localize(snapshot Snapshot) (Estimate, error)
}

// Estimate is the result of a single Localize call.
// It is one of PositionOnly, PositionWithDistances or PositionWithHeatmap.
type Estimate interface {
	Position() Point
	withPosition(p Point) Estimate
}

// PositionOnly is an estimate without any diagnostics.
type PositionOnly struct {
	At Point
}

func (e PositionOnly) Position() Point { return e.At }

func (e PositionOnly) withPosition(p Point) Estimate {
	e.At = p
	return e
}

// PositionWithDistances is produced by the geometric algorithms. Distances holds
// the estimated distance to every contributing anchor, in deployment units.
type PositionWithDistances struct {
	At        Point
	Distances map[string]float64
	// Fit is only set by solvers which report solution quality.
	Fit *Fit
}

func (e PositionWithDistances) Position() Point { return e.At }

func (e PositionWithDistances) withPosition(p Point) Estimate {
	e.At = p
	return e
}

// PositionWithHeatmap is produced by fingerprinting; Heatmap is the full error surface.
type PositionWithHeatmap struct {
	At      Point
	Heatmap Grid
}

func (e PositionWithHeatmap) Position() Point { return e.At }

func (e PositionWithHeatmap) withPosition(p Point) Estimate {
	e.At = p
	return e
}

// Fit describes the least-squares solution behind a trilateration estimate.
type Fit struct {
	// Rank of the linearized system; full rank is 2.
	Rank int `json:"rank"`
	// Residual is the Euclidean norm of A·x - b.
	Residual float64 `json:"residual"`
	// Reliable is false when the system was rank deficient, in which case
	// the minimum-norm solution was returned.
	Reliable bool `json:"reliable"`
}

// Grid is a dense surface sampled on a regular lattice.
// Values is indexed [row][column], where rows follow Ys and columns follow Xs.
type Grid struct {
	Xs     []float64   `json:"x"`
	Ys     []float64   `json:"y"`
	Values [][]float64 `json:"values"`
}

// newGrid allocates a zeroed Grid over the given axes.
func newGrid(xs, ys []float64) Grid {
	values := make([][]float64, len(ys))
	backing := make([]float64, len(xs)*len(ys))
	for row := range values {
		values[row] = backing[row*len(xs) : (row+1)*len(xs)]
	}
	return Grid{Xs: xs, Ys: ys, Values: values}
}

// PointAt returns the coordinates of the cell at row, col.
func (g Grid) PointAt(row, col int) Point {
	return Point{X: g.Xs[col], Y: g.Ys[row]}
}
