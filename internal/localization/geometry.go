//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package localization

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"edgexfoundry/app-rssi-localization/internal/pathloss"
)

// DefaultDistanceScale converts meters to centimeters.
const DefaultDistanceScale = 100.0

// Geometry holds what the distance-based localizers need to turn RSSI into ranges.
type Geometry struct {
	Anchors AnchorTable
	Model   pathloss.Model
	// DistanceScale is the number of deployment units per meter.
	DistanceScale float64
}

// Validate returns an error if the Geometry can't be used for localization.
func (g Geometry) Validate() error {
	if err := g.Model.Validate(); err != nil {
		return err
	}
	if !(g.DistanceScale > 0) || math.IsInf(g.DistanceScale, 1) {
		return errors.Wrapf(ErrDomain, "distance scale must be positive, got %v", g.DistanceScale)
	}
	return nil
}

// ranges holds the anchors common to the table and a snapshot, ordered by ID,
// along with the estimated distance to each.
type ranges struct {
	ids       []string
	positions []Point
	distances []float64
}

// rangeAnchors intersects the anchor table with the snapshot and converts each
// RSSI to a distance in deployment units.
func (g Geometry) rangeAnchors(snapshot Snapshot) ranges {
	ids := maps.Keys(snapshot)
	slices.Sort(ids)

	r := ranges{
		ids:       ids[:0],
		positions: make([]Point, 0, len(ids)),
		distances: make([]float64, 0, len(ids)),
	}
	for _, id := range ids {
		pos, known := g.Anchors[id]
		if !known {
			continue
		}
		r.ids = append(r.ids, id)
		r.positions = append(r.positions, pos)
		r.distances = append(r.distances, g.Model.RSSIToDistance(snapshot[id])*g.DistanceScale)
	}
	return r
}

func (r ranges) distanceMap() map[string]float64 {
	m := make(map[string]float64, len(r.ids))
	for i, id := range r.ids {
		m[id] = r.distances[i]
	}
	return m
}
