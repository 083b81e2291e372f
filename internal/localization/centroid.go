//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package localization

import (
	"math"

	"github.com/pkg/errors"
)

const minCentroidAnchors = 1

// WeightedCentroid estimates position as the average of anchor positions
// weighted by the inverse of their estimated distance.
type WeightedCentroid struct {
	geometry Geometry
}

func NewWeightedCentroid(geometry Geometry) *WeightedCentroid {
	return &WeightedCentroid{geometry: geometry}
}

func (w *WeightedCentroid) Algorithm() Algorithm { return TWCL }

func (w *WeightedCentroid) Localize(snapshot Snapshot) (Estimate, error) {
	r := w.geometry.rangeAnchors(snapshot)
	if err := insufficient(TWCL, len(r.ids), minCentroidAnchors); err != nil {
		return nil, err
	}

	weights := make([]float64, len(r.ids))
	var total float64
	for i, d := range r.distances {
		if d == 0 {
			return nil, errors.Wrapf(ErrDomain, "zero distance to anchor %s", r.ids[i])
		}
		weights[i] = 1 / d
		total += weights[i]
	}
	if total == 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return nil, errors.Wrapf(ErrDomain, "inverse distance weights sum to %v", total)
	}

	var pos Point
	for i, p := range r.positions {
		wt := weights[i] / total
		pos.X += wt * p.X
		pos.Y += wt * p.Y
	}

	return PositionWithDistances{At: pos, Distances: r.distanceMap()}, nil
}
